package loader

import "fmt"

// Style classifies a single conversation message (PAM msg_style).
type Style int32

const (
	// PromptEchoOff asks for an answer that must be concealed (passwords).
	PromptEchoOff Style = 1
	// PromptEchoOn asks for an answer that may be echoed while typed.
	PromptEchoOn Style = 2
	// ErrorMsg carries error text from the module; no answer expected.
	ErrorMsg Style = 3
	// TextInfo carries informational text from the module; no answer expected.
	TextInfo Style = 4
)

// Code is a native PAM return code (Linux-PAM numbering).
type Code int32

const (
	Success          Code = 0
	OpenErr          Code = 1
	SymbolErr        Code = 2
	ServiceErr       Code = 3
	SystemErr        Code = 4
	BufErr           Code = 5
	PermDenied       Code = 6
	AuthErr          Code = 7
	CredInsufficient Code = 8
	AuthinfoUnavail  Code = 9
	UserUnknown      Code = 10
	MaxTries         Code = 11
	NewAuthtokReqd   Code = 12
	AcctExpired      Code = 13
	ConvErr          Code = 19
	Abort            Code = 26
)

var codeNames = map[Code]string{
	Success:          "PAM_SUCCESS",
	OpenErr:          "PAM_OPEN_ERR",
	SymbolErr:        "PAM_SYMBOL_ERR",
	ServiceErr:       "PAM_SERVICE_ERR",
	SystemErr:        "PAM_SYSTEM_ERR",
	BufErr:           "PAM_BUF_ERR",
	PermDenied:       "PAM_PERM_DENIED",
	AuthErr:          "PAM_AUTH_ERR",
	CredInsufficient: "PAM_CRED_INSUFFICIENT",
	AuthinfoUnavail:  "PAM_AUTHINFO_UNAVAIL",
	UserUnknown:      "PAM_USER_UNKNOWN",
	MaxTries:         "PAM_MAXTRIES",
	NewAuthtokReqd:   "PAM_NEW_AUTHTOK_REQD",
	AcctExpired:      "PAM_ACCT_EXPIRED",
	ConvErr:          "PAM_CONV_ERR",
	Abort:            "PAM_ABORT",
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("PAM error %d", int32(c))
}

// OK reports success.
func (c Code) OK() bool { return c == Success }

// AuthDenial reports whether the code is an ordinary negative outcome of the
// authentication step, as opposed to a bridge or system level error.
func (c Code) AuthDenial() bool {
	switch c {
	case PermDenied, AuthErr, CredInsufficient, AuthinfoUnavail, UserUnknown, MaxTries:
		return true
	default:
		return false
	}
}

// AcctDenial reports whether the code is an ordinary negative outcome of the
// account-validation step.
func (c Code) AcctDenial() bool {
	switch c {
	case PermDenied, AuthErr, UserUnknown, AcctExpired, NewAuthtokReqd:
		return true
	default:
		return false
	}
}

// ConvFunc receives one conversation message from the native module and
// returns the reply. Returning ok=false aborts the conversation: the module
// sees PAM_CONV_ERR and unwinds. The function is invoked synchronously on the
// worker's OS thread, never concurrently for one transaction.
type ConvFunc func(style Style, text string) (reply string, ok bool)

// Transaction is one started PAM transaction. All methods must be called from
// the goroutine that obtained it; the underlying native handle is thread-affine
// and is released by End on every exit path.
type Transaction interface {
	// Authenticate runs the module's authentication stack. The conversation
	// callback fires zero or more times before it returns.
	Authenticate() Code

	// AcctMgmt runs the module's account-validation stack.
	AcctMgmt() Code

	// End closes the transaction, reporting the final status to the module.
	End(status Code)
}

// Transactor starts PAM transactions. *Capability implements it over the
// loaded native module; tests substitute scripted implementations.
type Transactor interface {
	Start(service, user string, conv ConvFunc) (Transaction, error)
}

// Describer is optionally implemented by transactors that can render native
// return codes into human-readable text (the real module via pam_strerror).
type Describer interface {
	Describe(code Code) string
}
