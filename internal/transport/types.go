package transport

import (
	"context"
	"errors"
)

// ErrForbidden is reported when the recipient has blocked or removed the bot.
// Adapters must wrap the platform-specific "forbidden" condition in this
// sentinel so callers can classify it with errors.Is. It is the only delivery
// error that should ever change a recipient's directory status.
var ErrForbidden = errors.New("recipient forbidden")

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
	// UpdateJoined is emitted when the bot itself is added to a group chat.
	UpdateJoined UpdateKind = "joined"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID            int
	ChatID        int64
	ChatTitle     string
	FromID        int64
	FromFirstName string
	Text          string
	IsGroup       bool
	// ReplyTo is set when the message replies to another message in the chat.
	ReplyTo *MessageRef
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the messaging transport consumed by the broadcast engine and the
// command router. Implementations must return ErrForbidden (wrapped or direct)
// when the recipient has blocked/removed the bot.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, chatID int64, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opt *SendOptions) (MessageRef, error)
	Copy(ctx context.Context, chatID int64, from MessageRef) (MessageRef, error)
}
