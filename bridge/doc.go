// Package bridge assembles the loader and engine into the Authenticator, the
// high-level entry point of pamgate.
//
// The builder produces an immutable Authenticator:
//
//	auth, err := bridge.New(
//	    bridge.WithWorkers(4),
//	    bridge.WithChatTimeout(30*time.Second),
//	)
//
// Chat and ChatContext expose the same engine to blocking and cooperative
// callers; both return a *pamgate.Conversation whose Recv/Answer methods carry
// the per-message timeout or context.
package bridge
