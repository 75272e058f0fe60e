// Package engine runs PAM transactions on a bounded pool of OS-thread-pinned
// workers and translates the module's synchronous conversation callbacks into
// the ordered Message stream defined by the root package.
//
// # Worker Pool
//
// The pool is a fixed set of goroutines, each locked to its OS thread, parked
// on an unbuffered dispatch channel. Admission is non-blocking: Begin rejects
// with a pool-exhausted error when no worker is idle instead of queuing, so a
// hung native call never silently backs up unrelated requests. Exactly one
// worker owns a conversation, and only that worker ever touches its native
// transaction handle.
//
// # Conversation State Machine
//
// Init: the worker starts the transaction and binds the conversation callback
// to the message pipes. Running: pam_authenticate and pam_acct_mgmt execute;
// each callback invocation blocks the worker until the caller consumed the
// message and, for prompts, answered — both waits are timeout-bounded.
// Terminated: the disposition maps to a terminal Message, the transaction is
// ended, the pipes close, the worker returns to the pool.
//
// A timeout while waiting on the caller is a protocol error: the bridge sends
// a terminal Error, closes the channel, and refuses the callback so the module
// unwinds with PAM_CONV_ERR. The worker stays occupied until the native call
// actually returns; timeouts bound the bridge's waits, not PAM's execution.
//
// Most users should use the bridge package for a simpler API.
// This package is for advanced use cases requiring direct control.
package engine
