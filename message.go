package pamgate

import "fmt"

// MessageKind discriminates the Message variants of the conversation protocol.
type MessageKind uint8

const (
	// MsgEcho is a prompt whose answer may be shown while typed.
	MsgEcho MessageKind = iota
	// MsgNoEcho is a prompt whose answer must be concealed (passwords).
	MsgNoEcho
	// MsgInfo is an informational text from the module; no answer expected.
	MsgInfo
	// MsgError is an error text; terminal when emitted by the bridge itself.
	MsgError
	// MsgAuthenticationFailed reports a negative authentication outcome.
	MsgAuthenticationFailed
	// MsgValidationFailed reports a negative account-validation outcome.
	MsgValidationFailed
	// MsgAuthenticated reports a successful transaction.
	MsgAuthenticated
)

// String returns the protocol name of the kind.
func (k MessageKind) String() string {
	switch k {
	case MsgEcho:
		return "echo"
	case MsgNoEcho:
		return "no-echo"
	case MsgInfo:
		return "info"
	case MsgError:
		return "error"
	case MsgAuthenticationFailed:
		return "authentication-failed"
	case MsgValidationFailed:
		return "validation-failed"
	case MsgAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Message is one unit of the conversation protocol. Messages are produced only
// by the engine's worker, in the exact order the PAM module emits them; a
// terminal variant is always the last message of a conversation.
type Message struct {
	Kind MessageKind
	Text string
}

// Echo builds a prompt message whose answer may be echoed.
func Echo(text string) Message { return Message{Kind: MsgEcho, Text: text} }

// NoEcho builds a prompt message whose answer must be concealed.
func NoEcho(text string) Message { return Message{Kind: MsgNoEcho, Text: text} }

// Info builds an informational message.
func Info(text string) Message { return Message{Kind: MsgInfo, Text: text} }

// ErrorText builds an error message.
func ErrorText(text string) Message { return Message{Kind: MsgError, Text: text} }

// AuthenticationFailed is the terminal message for a denied authentication step.
func AuthenticationFailed() Message { return Message{Kind: MsgAuthenticationFailed} }

// ValidationFailed is the terminal message for a denied account-validation step.
func ValidationFailed() Message { return Message{Kind: MsgValidationFailed} }

// Authenticated is the terminal message for a successful transaction.
func Authenticated() Message { return Message{Kind: MsgAuthenticated} }

// Prompt reports whether the message requires an answer from the caller.
func (m Message) Prompt() bool {
	return m.Kind == MsgEcho || m.Kind == MsgNoEcho
}

// Terminal reports whether the message ends the conversation. MsgError counts:
// the bridge only emits it right before closing the channel, and a module-side
// PAM_ERROR_MSG is followed by the real disposition anyway, so callers treat
// the closed channel as the end.
func (m Message) Terminal() bool {
	switch m.Kind {
	case MsgAuthenticationFailed, MsgValidationFailed, MsgAuthenticated:
		return true
	default:
		return false
	}
}

// String renders the message for logs and CLIs.
func (m Message) String() string {
	if m.Text == "" {
		return m.Kind.String()
	}
	return fmt.Sprintf("%s: %s", m.Kind, m.Text)
}
