// Package pamgate bridges the synchronous, callback-driven libpam conversation
// contract to a message-passing model usable from both blocking and
// context-aware Go code.
//
// PAM performs a transaction ("authenticate user X") by invoking an
// application-supplied conversation callback on the caller's own thread and
// expecting immediate string answers. pamgate runs every transaction on a
// dedicated worker goroutine pinned to its OS thread, translates each callback
// invocation into a typed Message, and delivers it over a bounded,
// timeout-guarded channel. The caller answers prompts through the same
// channel; every hand-off across the thread boundary is bounded so a hung PAM
// module can never deadlock the process.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	pamgate/          Root package with the Message and Conversation protocol types
//	├── bridge/       High-level Authenticator facade (builder, Chat/ChatContext)
//	├── engine/       Worker pool and per-transaction conversation state machine
//	├── loader/       Dynamic libpam capability loader (purego, no cgo)
//	├── channel/      Bounded timeout-guarded message pipe
//	├── errors/       Structured error types
//	└── cmd/pamgate/  Interactive command-line login client
//
// # Quick Start
//
// Authenticate a user:
//
//	auth, err := bridge.New(bridge.WithWorkers(2))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer auth.Close()
//
//	conv, err := auth.Chat("login", "alice")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    msg, err := conv.Recv(time.Minute)
//	    if err != nil {
//	        break
//	    }
//	    if msg.Kind == pamgate.MsgNoEcho {
//	        conv.Answer(readPassword(), time.Second)
//	    }
//	    if msg.Terminal() {
//	        fmt.Println(msg) // Authenticated, AuthenticationFailed, ...
//	        break
//	    }
//	}
//
// # Thread Safety
//
// Authenticator and Engine are safe for concurrent use. A Conversation is a
// single-producer/single-consumer pair: the engine's worker produces messages,
// exactly one caller goroutine should consume them and supply answers.
//
// # Native Module Contract
//
// The PAM transaction handle never leaves the worker goroutine that created
// it; it is started and ended on the same locked OS thread on every exit path.
// Timeouts bound the bridge's waits, not PAM's execution: a hung module call
// still occupies its worker until it returns, so the pool size is the outer
// safety valve against systemic hangs.
package pamgate
