package pamgate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pamgate/pamgate/channel"
)

// Conversation is the caller's end of one PAM transaction: messages flow out
// through Recv, answers flow back through Answer. Exactly one goroutine should
// consume a conversation.
type Conversation struct {
	id       uuid.UUID
	messages *channel.Pipe[Message]
	answers  *channel.Pipe[string]
}

// NewConversation wires a conversation over its two pipes. It is used by the
// engine; applications obtain conversations from bridge.Authenticator.
func NewConversation(id uuid.UUID, messages *channel.Pipe[Message], answers *channel.Pipe[string]) *Conversation {
	return &Conversation{id: id, messages: messages, answers: answers}
}

// ID returns the conversation's correlation ID.
func (c *Conversation) ID() uuid.UUID { return c.id }

// Recv blocks until the worker delivers the next Message, the timeout expires,
// or the conversation terminates.
func (c *Conversation) Recv(timeout time.Duration) (Message, error) {
	return c.messages.Recv(timeout)
}

// RecvContext is the cooperative form of Recv.
func (c *Conversation) RecvContext(ctx context.Context) (Message, error) {
	return c.messages.RecvContext(ctx)
}

// Answer supplies the reply to the most recent prompt. The worker is blocked
// inside the PAM callback until the answer arrives or its chat timeout trips.
func (c *Conversation) Answer(text string, timeout time.Duration) error {
	return c.answers.Send(text, timeout)
}

// AnswerContext is the cooperative form of Answer.
func (c *Conversation) AnswerContext(ctx context.Context, text string) error {
	return c.answers.SendContext(ctx, text)
}

// Close drops the caller's end. The in-flight native call still runs to
// completion on its worker (it cannot be interrupted), but all further sends
// are discarded and the worker returns to the pool once PAM unwinds.
func (c *Conversation) Close() {
	c.messages.Close()
	c.answers.Close()
}
