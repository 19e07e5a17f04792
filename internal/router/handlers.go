package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"animecast/internal/broadcast"
	"animecast/internal/storage"
	"animecast/internal/transport"
	"animecast/pkg/htmlui"
)

func (r *Router) handleJoined(ctx context.Context, msg *transport.Message) {
	if err := r.dir.Register(ctx, msg.ChatID, storage.KindGroup, msg.ChatTitle); err != nil {
		r.log.Error().Int64("chat_id", msg.ChatID).Err(err).Msg("group register failed")
		return
	}
	r.reply(ctx, msg.ChatID, "✅ <b>Bot Activated!</b> Ready to serve this group.")
}

func (r *Router) handleStart(ctx context.Context, msg *transport.Message) {
	if msg.IsGroup {
		r.handleJoined(ctx, msg)
		return
	}
	if err := r.dir.Register(ctx, msg.ChatID, storage.KindIndividual, ""); err != nil {
		r.log.Error().Int64("chat_id", msg.ChatID).Err(err).Msg("user register failed")
		r.reply(ctx, msg.ChatID, "⚠️ Something went wrong, please try again.")
		return
	}
	r.reply(ctx, msg.ChatID, fmt.Sprintf(
		"🌟 <b>Konnichiwa, %s!</b> 🌟\n\n"+
			"Welcome to the <b>Ultimate Anime Broadcast Bot</b>.\n\n"+
			"🤖 <b>What do I do?</b>\n"+
			"• I deliver the hottest anime recommendations every few minutes.\n"+
			"• I notify you about updates from <b>%s</b>.\n"+
			"• I bring you direct links to watch your favorite shows.\n\n"+
			"✨ <i>Sit back, relax, and let the anime come to you!</i>",
		htmlui.Esc(msg.FromFirstName), htmlui.Esc(r.cfg.ChannelName)))
}

func (r *Router) handleAdmin(ctx context.Context, msg *transport.Message) {
	st, err := r.dir.Stats(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("stats query failed")
		r.reply(ctx, msg.ChatID, "⚠️ Storage error, check logs.")
		return
	}
	r.reply(ctx, msg.ChatID, fmt.Sprintf(
		"📊 <b>ADMIN DASHBOARD</b>\n"+
			"━━━━━━━━━━━━━━━━━━\n"+
			"✅ <b>Active Users:</b> %d\n"+
			"❌ <b>Blocked Users:</b> %d\n"+
			"👥 <b>Groups:</b> %d\n"+
			"━━━━━━━━━━━━━━━━━━\n"+
			"<b>Commands:</b>\n"+
			"<code>/broadcast</code> (reply to message)\n"+
			"<code>/schedule 2024-05-20 14:30 [all|chat_id]</code> (reply to message)\n"+
			"<code>/pending</code>\n"+
			"<code>/setlink Naruto | https://t.me/post/1</code>\n"+
			"<code>/deletelink Naruto</code>",
		st.Active, st.Inactive, st.Groups))
}

func (r *Router) handleBroadcast(ctx context.Context, msg *transport.Message) {
	if msg.ReplyTo == nil {
		r.reply(ctx, msg.ChatID, "⚠️ Reply to a message (text, video, photo) to broadcast it.")
		return
	}
	r.reply(ctx, msg.ChatID, "🚀 Broadcasting started...")

	res, err := r.coord.RunAll(ctx, broadcast.CopyPayload{From: *msg.ReplyTo})
	if err != nil {
		r.log.Error().Err(err).Msg("manual broadcast failed")
		r.reply(ctx, msg.ChatID, "⚠️ Broadcast failed, check logs.")
		return
	}
	r.reply(ctx, msg.ChatID, fmt.Sprintf(
		"✅ <b>Broadcast Complete</b>\n\nDelivered: %d\nBlocked/Kicked: %d\nOther failures: %d",
		res.Delivered, res.Unreachable, res.Failed))
}

const scheduleUsage = "❌ Usage: <code>/schedule YYYY-MM-DD HH:MM [all|chat_id]</code> (reply to a message)"

func (r *Router) handleSchedule(ctx context.Context, msg *transport.Message, args string) {
	if msg.ReplyTo == nil {
		r.reply(ctx, msg.ChatID, "⚠️ Reply to a message to schedule it.")
		return
	}
	post, err := parseScheduleArgs(args)
	if err != nil {
		r.reply(ctx, msg.ChatID, scheduleUsage)
		return
	}
	post.FromChatID = msg.ReplyTo.ChatID
	post.MessageID = msg.ReplyTo.MessageID

	id, err := r.queue.Enqueue(ctx, post)
	if err != nil {
		if errors.Is(err, storage.ErrBadDueTime) {
			r.reply(ctx, msg.ChatID, scheduleUsage)
			return
		}
		r.log.Error().Err(err).Msg("schedule enqueue failed")
		r.reply(ctx, msg.ChatID, "⚠️ Could not save the scheduled post, check logs.")
		return
	}

	target := "all recipients"
	if post.Mode == storage.TargetSingle {
		target = "chat " + strconv.FormatInt(post.TargetChatID, 10)
	}
	r.reply(ctx, msg.ChatID, fmt.Sprintf("✅ Post #%d scheduled for <b>%s</b> → %s.", id, htmlui.Esc(post.DueAt), target))
}

// parseScheduleArgs parses "YYYY-MM-DD HH:MM [all|chat_id]".
func parseScheduleArgs(args string) (storage.ScheduledPost, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return storage.ScheduledPost{}, storage.ErrBadDueTime
	}
	dueAt := fields[0] + " " + fields[1]
	if _, err := storage.ParseDueTime(dueAt); err != nil {
		return storage.ScheduledPost{}, err
	}

	post := storage.ScheduledPost{DueAt: dueAt, Mode: storage.TargetAll}
	if len(fields) >= 3 && !strings.EqualFold(fields[2], "all") {
		target, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return storage.ScheduledPost{}, fmt.Errorf("bad target %q: %w", fields[2], err)
		}
		post.Mode = storage.TargetSingle
		post.TargetChatID = target
	}
	return post, nil
}

func (r *Router) handlePending(ctx context.Context, msg *transport.Message) {
	posts, err := r.queue.Pending(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("pending query failed")
		r.reply(ctx, msg.ChatID, "⚠️ Storage error, check logs.")
		return
	}
	if len(posts) == 0 {
		r.reply(ctx, msg.ChatID, "📭 No scheduled posts pending.")
		return
	}

	var b strings.Builder
	b.WriteString("🗓 <b>Pending posts</b>\n")
	for _, p := range posts {
		target := "all"
		if p.Mode == storage.TargetSingle {
			target = strconv.FormatInt(p.TargetChatID, 10)
		}
		fmt.Fprintf(&b, "#%d — %s → %s\n", p.ID, htmlui.Esc(p.DueAt), target)
	}
	r.reply(ctx, msg.ChatID, b.String())
}

func (r *Router) handleSetLink(ctx context.Context, msg *transport.Message, args string) {
	name, url, ok := strings.Cut(args, "|")
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if !ok || name == "" || url == "" {
		r.reply(ctx, msg.ChatID, "❌ Format: <code>/setlink Anime Name | https://t.me/link</code>")
		return
	}
	if err := r.links.Set(ctx, name, url); err != nil {
		r.log.Error().Err(err).Msg("setlink failed")
		r.reply(ctx, msg.ChatID, "⚠️ Could not save the link, check logs.")
		return
	}
	r.reply(ctx, msg.ChatID, fmt.Sprintf("✅ Link saved! Posts matching '%s' will link to: %s",
		htmlui.Esc(strings.ToLower(name)), htmlui.Esc(url)))
}

func (r *Router) handleDeleteLink(ctx context.Context, msg *transport.Message, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		r.reply(ctx, msg.ChatID, "❌ Usage: <code>/deletelink anime name</code>")
		return
	}
	existed, err := r.links.Delete(ctx, name)
	if err != nil {
		r.log.Error().Err(err).Msg("deletelink failed")
		r.reply(ctx, msg.ChatID, "⚠️ Could not delete the link, check logs.")
		return
	}
	if !existed {
		r.reply(ctx, msg.ChatID, fmt.Sprintf("⚠️ No link found for <b>%s</b>.", htmlui.Esc(strings.ToLower(name))))
		return
	}
	r.reply(ctx, msg.ChatID, fmt.Sprintf("🗑 <b>Deleted!</b> The custom link for '%s' has been removed.", htmlui.Esc(strings.ToLower(name))))
}
