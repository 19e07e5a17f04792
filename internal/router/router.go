// Package router is the admin/user command surface on top of the transport
// update stream.
package router

import (
	"context"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"

	"animecast/internal/broadcast"
	"animecast/internal/storage"
	"animecast/internal/transport"
)

type Config struct {
	AdminID     int64
	ChannelName string
}

type Router struct {
	cfg     Config
	adapter transport.Adapter
	dir     *storage.Directory
	queue   *storage.Queue
	links   *storage.Links
	coord   *broadcast.Coordinator
	log     zerolog.Logger
}

func New(cfg Config, adapter transport.Adapter, store *storage.Store, coord *broadcast.Coordinator, log zerolog.Logger) *Router {
	return &Router{
		cfg:     cfg,
		adapter: adapter,
		dir:     store.Directory(),
		queue:   store.Schedule(),
		links:   store.Links(),
		coord:   coord,
		log:     log.With().Str("comp", "router").Logger(),
	}
}

// Run consumes updates until ctx is done. Handlers run on their own
// goroutines so a long broadcast pass does not stall update intake.
func (r *Router) Run(ctx context.Context, in <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-in:
			if !ok {
				return
			}
			go r.dispatch(ctx, up)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, up transport.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Any("panic", rec).Str("stack", string(debug.Stack())).Msg("panic in update handler")
		}
	}()

	if up.Message == nil {
		return
	}
	if up.Kind == transport.UpdateJoined {
		r.handleJoined(ctx, up.Message)
		return
	}

	cmd, args := splitCommand(up.Message.Text)
	switch cmd {
	case "/start":
		r.handleStart(ctx, up.Message)
	case "/admin":
		r.adminOnly(ctx, up.Message, r.handleAdmin)
	case "/broadcast":
		r.adminOnly(ctx, up.Message, r.handleBroadcast)
	case "/schedule":
		r.adminOnly(ctx, up.Message, withArgs(args, r.handleSchedule))
	case "/pending":
		r.adminOnly(ctx, up.Message, r.handlePending)
	case "/setlink":
		r.adminOnly(ctx, up.Message, withArgs(args, r.handleSetLink))
	case "/deletelink":
		r.adminOnly(ctx, up.Message, withArgs(args, r.handleDeleteLink))
	}
}

type handler func(ctx context.Context, msg *transport.Message)

// adminOnly silently drops commands from anyone but the admin, matching the
// original single-admin model.
func (r *Router) adminOnly(ctx context.Context, msg *transport.Message, h handler) {
	if msg.FromID != r.cfg.AdminID {
		return
	}
	h(ctx, msg)
}

func withArgs(args string, h func(ctx context.Context, msg *transport.Message, args string)) handler {
	return func(ctx context.Context, msg *transport.Message) { h(ctx, msg, args) }
}

// splitCommand extracts a leading /command (with any @botname suffix removed)
// and the remaining argument string.
func splitCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ = strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func (r *Router) reply(ctx context.Context, chatID int64, html string) {
	_, err := r.adapter.SendText(ctx, chatID, html, &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	if err != nil {
		r.log.Warn().Int64("chat_id", chatID).Err(err).Msg("reply failed")
	}
}
