package broadcast

import (
	"context"
	"fmt"

	"animecast/internal/transport"
)

// Payload is one deliverable message, sendable to any chat id.
type Payload interface {
	// Describe returns a short label for logs ("copy 123/45", "photo ...").
	Describe() string
	Send(ctx context.Context, adapter transport.Adapter, chatID int64) error
}

// CopyPayload re-sends an existing message, media included, without the
// forwarded-from header.
type CopyPayload struct {
	From transport.MessageRef
}

func (p CopyPayload) Describe() string {
	return fmt.Sprintf("copy %d/%d", p.From.ChatID, p.From.MessageID)
}

func (p CopyPayload) Send(ctx context.Context, adapter transport.Adapter, chatID int64) error {
	_, err := adapter.Copy(ctx, chatID, p.From)
	return err
}

// PhotoPayload sends a photo by URL with an HTML caption.
type PhotoPayload struct {
	URL     string
	Caption string
}

func (p PhotoPayload) Describe() string { return "photo " + p.URL }

func (p PhotoPayload) Send(ctx context.Context, adapter transport.Adapter, chatID int64) error {
	_, err := adapter.SendPhoto(ctx, chatID, p.URL, p.Caption, &transport.SendOptions{ParseMode: "HTML"})
	return err
}

// TextPayload sends plain or HTML text.
type TextPayload struct {
	Text string
	Opt  *transport.SendOptions
}

func (p TextPayload) Describe() string { return "text" }

func (p TextPayload) Send(ctx context.Context, adapter transport.Adapter, chatID int64) error {
	_, err := adapter.SendText(ctx, chatID, p.Text, p.Opt)
	return err
}
