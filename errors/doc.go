// Package errors provides structured error types for the pamgate bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Construction failures (loader, invalid config) are returned
// synchronously from builders; per-transaction failures travel through the
// conversation channel as protocol messages and never appear as Go errors.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConverse, errors.KindTimeout).
//		Op("recv answer").
//		Detail("caller did not answer within %s", timeout).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Exhausted(workers)
//	err := errors.Timeout(errors.PhaseConverse, "send message")
//
// All errors implement the standard error interface and support errors.Is/As;
// the IsTimeout/IsClosed/IsExhausted/IsUnavailable predicates match by Kind
// regardless of Phase.
package errors
