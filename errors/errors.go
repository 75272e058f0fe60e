package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // capability loading
	PhaseConfig   Phase = "config"   // builder validation
	PhaseBegin    Phase = "begin"    // conversation admission
	PhaseConverse Phase = "converse" // channel hand-offs
	PhaseShutdown Phase = "shutdown" // engine teardown
)

// Kind categorizes the error
type Kind string

const (
	KindUnavailable   Kind = "unavailable"    // native module missing or symbol unresolved
	KindExhausted     Kind = "pool_exhausted" // no idle worker
	KindTimeout       Kind = "timeout"        // a bounded wait expired
	KindClosed        Kind = "closed"         // channel or engine already terminated
	KindInvalidConfig Kind = "invalid_config"
	KindInvalidInput  Kind = "invalid_input"
	KindNative        Kind = "native" // unexpected PAM return code
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
	Code   int32 // native PAM return code, when Kind is KindNative
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Kind == KindNative {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Code sets the native return code
func (b *Builder) Code(code int32) *Builder {
	b.err.Code = code
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Unavailable creates a loader-unavailable error
func Unavailable(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindUnavailable,
		Detail: detail,
		Cause:  cause,
	}
}

// Exhausted creates a pool-exhausted error
func Exhausted(workers int) *Error {
	return &Error{
		Phase:  PhaseBegin,
		Kind:   KindExhausted,
		Detail: fmt.Sprintf("all %d workers busy", workers),
	}
}

// Timeout creates a timeout error for a bounded wait
func Timeout(phase Phase, op string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindTimeout,
		Op:    op,
	}
}

// Closed creates a closed-channel error
func Closed(phase Phase, op string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindClosed,
		Op:    op,
	}
}

// InvalidConfig creates a builder validation error
func InvalidConfig(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Native creates an error for an unexpected PAM return code
func Native(op string, code int32, desc string) *Error {
	return &Error{
		Phase:  PhaseConverse,
		Kind:   KindNative,
		Op:     op,
		Code:   code,
		Detail: desc,
	}
}

// Kind-based predicates. Phase is deliberately ignored: callers care that a
// wait timed out, not which hand-off it was.

func is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// IsTimeout reports whether err is a bounded-wait expiry
func IsTimeout(err error) bool { return is(err, KindTimeout) }

// IsClosed reports whether err is a closed-channel outcome
func IsClosed(err error) bool { return is(err, KindClosed) }

// IsExhausted reports whether err is a pool-exhausted rejection
func IsExhausted(err error) bool { return is(err, KindExhausted) }

// IsUnavailable reports whether err means the native module could not be loaded
func IsUnavailable(err error) bool { return is(err, KindUnavailable) }
