package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"animecast/internal/transport"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter bridges the bot engine to Telegram via telebot's long poller.
type Adapter struct {
	cfg Config
	log zerolog.Logger

	bot *tele.Bot
	out atomic.Value // stores (chan<- transport.Update)

	runMu   sync.Mutex
	running bool
	done    chan struct{}

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the poll loop. Logged on stop to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log zerolog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	a := &Adapter{cfg: cfg, log: log.With().Str("comp", "telegram").Logger(), bot: b}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- transport.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		up := transport.Update{
			Kind: transport.UpdateMessage,
			Message: &transport.Message{
				ID:            m.ID,
				ChatID:        m.Chat.ID,
				ChatTitle:     m.Chat.Title,
				FromID:        m.Sender.ID,
				FromFirstName: m.Sender.FirstName,
				Text:          m.Text,
				IsGroup:       m.Chat.Type != tele.ChatPrivate,
				ReplyTo:       replyRef(m),
			},
		}
		a.sendUpdate(up)
		return nil
	})

	a.bot.Handle(tele.OnAddedToGroup, func(c tele.Context) error {
		m := c.Message()
		if m == nil {
			return nil
		}
		up := transport.Update{
			Kind: transport.UpdateJoined,
			Message: &transport.Message{
				ID:        m.ID,
				ChatID:    m.Chat.ID,
				ChatTitle: m.Chat.Title,
				IsGroup:   true,
			},
		}
		a.sendUpdate(up)
		return nil
	})
}

func replyRef(m *tele.Message) *transport.MessageRef {
	if m.ReplyTo == nil {
		return nil
	}
	return &transport.MessageRef{ChatID: m.ReplyTo.Chat.ID, MessageID: m.ReplyTo.ID}
}

func (a *Adapter) sendUpdate(up transport.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- transport.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.done = make(chan struct{})
	a.out.Store(out)
	done := a.done
	a.runMu.Unlock()

	go func() {
		defer close(done)
		a.bot.Start()
	}()
	go func() {
		<-ctx.Done()
		_ = a.Stop(context.Background())
	}()

	a.log.Info().Str("bot", a.bot.Me.Username).Msg("telegram poller started")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = false
	done := a.done
	a.runMu.Unlock()

	a.bot.Stop()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn().Msg("telegram stop timed out")
	}
	if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
		a.log.Warn().Uint64("count", n).Msg("incoming updates dropped (channel full)")
	}
	a.log.Info().Msg("telegram poller stopped")
	return nil
}

func (a *Adapter) SendText(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	msg, err := a.bot.Send(&tele.Chat{ID: chatID}, text, sendOptions(opt))
	if err != nil {
		return transport.MessageRef{}, classify(err)
	}
	return transport.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	msg, err := a.bot.Send(&tele.Chat{ID: chatID}, photo, sendOptions(opt))
	if err != nil {
		return transport.MessageRef{}, classify(err)
	}
	return transport.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

func (a *Adapter) Copy(ctx context.Context, chatID int64, from transport.MessageRef) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	src := tele.StoredMessage{MessageID: strconv.Itoa(from.MessageID), ChatID: from.ChatID}
	msg, err := a.bot.Copy(&tele.Chat{ID: chatID}, src)
	if err != nil {
		return transport.MessageRef{}, classify(err)
	}
	return transport.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

func sendOptions(opt *transport.SendOptions) *tele.SendOptions {
	if opt == nil {
		return &tele.SendOptions{}
	}
	return &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}
}

// classify wraps Telegram "forbidden" failures in transport.ErrForbidden so
// the dispatcher can tell a blocked recipient from a transient error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isForbidden(err) {
		return fmt.Errorf("%w: %w", transport.ErrForbidden, err)
	}
	return err
}

func isForbidden(err error) bool {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 403
	}
	return false
}
