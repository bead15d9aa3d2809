package gateway

import (
	"context"
	"fmt"
)

// Button is a single inline action offered with a message. A button carries
// either a callback action (Action plus optional Data payload) or an external
// URL, never both.
type Button struct {
	Text   string
	Action string
	Data   string
	URL    string
}

// SendOptions customises an outbound text message.
type SendOptions struct {
	Keyboard [][]Button
	Markdown bool
}

// Gateway abstracts the outbound messaging channel. Implementations must
// return an *Error on delivery failure; none of the operations are assumed
// idempotent, so callers must not blindly retry.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...SendOptions) error
	SendPhoto(ctx context.Context, chatID int64, photoRef, caption string) error
	CopyMessage(ctx context.Context, toChat, fromChat int64, messageID int) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, opts ...SendOptions) error
}

// Error is the typed failure returned by gateway operations.
type Error struct {
	Op     string
	ChatID int64
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s to chat %d: %v", e.Op, e.ChatID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
