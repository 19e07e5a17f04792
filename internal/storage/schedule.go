package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DueTimeLayout is minute-resolution wall clock time. The format is
// string-sortable, so due comparisons work as plain string comparisons.
const DueTimeLayout = "2006-01-02 15:04"

// ErrBadDueTime is returned by Enqueue for a due time that does not parse at
// minute resolution. It is surfaced to the admin, never retried.
var ErrBadDueTime = errors.New("bad due time")

type TargetMode string

const (
	TargetAll    TargetMode = "all"
	TargetSingle TargetMode = "single"
)

type ScheduledPost struct {
	ID         int64
	FromChatID int64
	MessageID  int
	DueAt      string // DueTimeLayout
	Mode       TargetMode
	// TargetChatID is the explicit recipient when Mode is TargetSingle.
	TargetChatID int64
}

// ParseDueTime validates a due time string against DueTimeLayout.
func ParseDueTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DueTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD HH:MM)", ErrBadDueTime, s)
	}
	return t, nil
}

// Queue is the durable scheduled-post queue. It performs no cleanup of its
// own: callers remove entries after dispatching them, so a crash in between
// re-dispatches on the next tick rather than losing the post.
type Queue struct {
	db *sql.DB
}

func (q *Queue) Enqueue(ctx context.Context, p ScheduledPost) (int64, error) {
	if _, err := ParseDueTime(p.DueAt); err != nil {
		return 0, err
	}
	mode := p.Mode
	if mode == "" {
		mode = TargetAll
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO scheduled_posts(from_chat_id, message_id, due_at, mode, target_chat_id, created_at)
		 VALUES(?,?,?,?,?,?)`,
		p.FromChatID, p.MessageID, p.DueAt, string(mode), p.TargetChatID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Due returns entries whose due time has passed, in insertion order.
func (q *Queue) Due(ctx context.Context, now time.Time) ([]ScheduledPost, error) {
	return q.query(ctx,
		`SELECT id, from_chat_id, message_id, due_at, mode, target_chat_id
		 FROM scheduled_posts WHERE due_at <= ? ORDER BY id`,
		now.Format(DueTimeLayout))
}

// Pending returns every queued entry in insertion order.
func (q *Queue) Pending(ctx context.Context) ([]ScheduledPost, error) {
	return q.query(ctx,
		`SELECT id, from_chat_id, message_id, due_at, mode, target_chat_id
		 FROM scheduled_posts ORDER BY id`)
}

func (q *Queue) query(ctx context.Context, stmt string, args ...any) ([]ScheduledPost, error) {
	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledPost
	for rows.Next() {
		var p ScheduledPost
		if err := rows.Scan(&p.ID, &p.FromChatID, &p.MessageID, &p.DueAt, &p.Mode, &p.TargetChatID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queue) Remove(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM scheduled_posts WHERE id=?`, id)
	return err
}
