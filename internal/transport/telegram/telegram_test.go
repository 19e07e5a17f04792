package telegram

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"animecast/internal/transport"
)

func discardLogger() zerolog.Logger { return zerolog.New(io.Discard) }

func TestClassify(t *testing.T) {
	t.Parallel()
	forbidden := tele.NewError(403, "Forbidden: bot was blocked by the user")
	badRequest := tele.NewError(400, "Bad Request: chat not found")

	cases := []struct {
		name          string
		err           error
		wantForbidden bool
	}{
		{"nil", nil, false},
		{"403", forbidden, true},
		{"wrapped 403", fmt.Errorf("send: %w", forbidden), true},
		{"400", badRequest, false},
		{"plain error", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tc.err)
			if tc.err == nil {
				if got != nil {
					t.Fatalf("classify(nil) = %v", got)
				}
				return
			}
			if errors.Is(got, transport.ErrForbidden) != tc.wantForbidden {
				t.Fatalf("classify(%v) forbidden = %v, want %v", tc.err, !tc.wantForbidden, tc.wantForbidden)
			}
			// The original error must survive wrapping for log context.
			var apiErr *tele.Error
			if errors.As(tc.err, &apiErr) && !errors.As(got, &apiErr) {
				t.Fatal("classify lost the underlying API error")
			}
		})
	}
}

func TestSendOptions(t *testing.T) {
	t.Parallel()
	if got := sendOptions(nil); got == nil || got.ParseMode != "" {
		t.Fatalf("sendOptions(nil) = %+v", got)
	}
	got := sendOptions(&transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	if got.ParseMode != "HTML" || !got.DisableWebPagePreview {
		t.Fatalf("sendOptions = %+v", got)
	}
}

func TestReplyRef(t *testing.T) {
	t.Parallel()
	if ref := replyRef(&tele.Message{}); ref != nil {
		t.Fatalf("replyRef without reply = %+v", ref)
	}
	m := &tele.Message{ReplyTo: &tele.Message{ID: 9, Chat: &tele.Chat{ID: -100}}}
	ref := replyRef(m)
	if ref == nil || ref.MessageID != 9 || ref.ChatID != -100 {
		t.Fatalf("replyRef = %+v", ref)
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "  "}, discardLogger()); err == nil {
		t.Fatal("New accepted empty token")
	}
}
