// Package channel provides the bounded, timeout-guarded pipe that carries the
// conversation protocol across the worker/caller thread boundary.
//
// A conversation uses two pipes: one carries Messages from the PAM worker out
// to the caller, the other carries the caller's free-text answers back in. The
// pipes are deliberately small: the native call genuinely cannot proceed until
// an answer exists, and the channel reflects that lock-step dependency instead
// of hiding it behind buffering.
//
// Every blocking operation exists in two forms: a thread-blocking one taking a
// time.Duration and a cooperative one taking a context.Context, so the same
// pipe instance serves synchronous and asynchronous callers without duplicated
// protocol logic.
package channel
