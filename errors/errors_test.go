package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "phase and kind only",
			err:  New(PhaseBegin, KindExhausted).Build(),
			contains: []string{
				"[begin]",
				"pool_exhausted",
			},
		},
		{
			name: "with operation",
			err:  New(PhaseConverse, KindTimeout).Op("recv").Build(),
			contains: []string{
				"[converse]",
				"timeout",
				"in recv",
			},
		},
		{
			name: "with detail",
			err:  New(PhaseConfig, KindInvalidConfig).Detail("workers must be positive: %d", -1).Build(),
			contains: []string{
				"[config]",
				"invalid_config",
				"workers must be positive: -1",
			},
		},
		{
			name: "native code",
			err:  Native("pam_authenticate", 19, "conversation error"),
			contains: []string{
				"[converse]",
				"native",
				"in pam_authenticate",
				"conversation error",
				"(code 19)",
			},
		},
		{
			name: "with cause",
			err:  New(PhaseLoad, KindUnavailable).Cause(fmt.Errorf("dlopen failed")).Build(),
			contains: []string{
				"[load]",
				"unavailable",
				"caused by: dlopen failed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("error message %q missing %q", msg, want)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("symbol not found")
	err := Unavailable("pam_start", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
	if err.Unwrap() != cause {
		t.Fatal("Unwrap should return the cause")
	}
}

func TestError_Is(t *testing.T) {
	a := Timeout(PhaseConverse, "recv")
	b := Timeout(PhaseConverse, "send")
	c := Timeout(PhaseShutdown, "close")

	if !stderrors.Is(a, b) {
		t.Fatal("same phase and kind should match regardless of op")
	}
	if stderrors.Is(a, c) {
		t.Fatal("different phase should not match")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"timeout matches", Timeout(PhaseConverse, "recv"), IsTimeout, true},
		{"timeout ignores phase", Timeout(PhaseShutdown, "close"), IsTimeout, true},
		{"closed matches", Closed(PhaseConverse, "send"), IsClosed, true},
		{"exhausted matches", Exhausted(4), IsExhausted, true},
		{"unavailable matches", Unavailable("libpam.so.0", nil), IsUnavailable, true},
		{"wrong kind", Closed(PhaseConverse, "send"), IsTimeout, false},
		{"plain error", fmt.Errorf("boom"), IsClosed, false},
		{"nil error", nil, IsExhausted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v for %v", got, tt.want, tt.err)
			}
		})
	}
}

func TestExhausted_Detail(t *testing.T) {
	err := Exhausted(4)
	if !strings.Contains(err.Error(), "all 4 workers busy") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
