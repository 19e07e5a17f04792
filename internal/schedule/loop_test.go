package schedule

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"animecast/internal/broadcast"
	"animecast/internal/storage"
)

type fakeQueue struct {
	entries []storage.ScheduledPost
	removed []int64
}

func (q *fakeQueue) Due(_ context.Context, now time.Time) ([]storage.ScheduledPost, error) {
	cutoff := now.Format(storage.DueTimeLayout)
	var out []storage.ScheduledPost
	for _, e := range q.entries {
		if e.DueAt <= cutoff {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *fakeQueue) Remove(_ context.Context, id int64) error {
	q.removed = append(q.removed, id)
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return nil
}

type runCall struct {
	payload broadcast.Payload
	targets []int64 // nil for RunAll
}

type fakeRunner struct {
	calls []runCall
	err   error
}

func (r *fakeRunner) Run(_ context.Context, p broadcast.Payload, targets []int64) (broadcast.Result, error) {
	r.calls = append(r.calls, runCall{payload: p, targets: targets})
	return broadcast.Result{Delivered: len(targets)}, r.err
}

func (r *fakeRunner) RunAll(_ context.Context, p broadcast.Payload) (broadcast.Result, error) {
	r.calls = append(r.calls, runCall{payload: p})
	return broadcast.Result{Delivered: 2}, r.err
}

func newTestLoop(q *fakeQueue, r *fakeRunner, at string) *Loop {
	l := NewLoop(q, r, zerolog.New(io.Discard))
	l.now = func() time.Time {
		t, _ := time.ParseInLocation(storage.DueTimeLayout, at, time.Local)
		return t
	}
	return l
}

func TestTickProcessesAndRemovesDueBatch(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{entries: []storage.ScheduledPost{
		{ID: 1, FromChatID: 100, MessageID: 7, DueAt: "2024-05-20 14:30", Mode: storage.TargetAll},
		{ID: 2, FromChatID: 100, MessageID: 8, DueAt: "2024-05-20 14:30", Mode: storage.TargetAll},
		{ID: 3, FromChatID: 100, MessageID: 9, DueAt: "2024-05-20 18:00", Mode: storage.TargetAll},
	}}
	r := &fakeRunner{}
	l := newTestLoop(q, r, "2024-05-20 14:30")

	if err := l.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("broadcast calls = %d, want 2", len(r.calls))
	}
	if len(q.removed) != 2 || q.removed[0] != 1 || q.removed[1] != 2 {
		t.Fatalf("removed = %v, want [1 2]", q.removed)
	}

	// Next tick: the two dispatched entries are gone, no third call for them.
	if err := l.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("broadcast calls after second tick = %d, want still 2", len(r.calls))
	}
}

func TestTickKeepsEntryWhenPassFails(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{entries: []storage.ScheduledPost{
		{ID: 1, DueAt: "2024-05-20 14:30", Mode: storage.TargetAll},
	}}
	r := &fakeRunner{err: errors.New("directory unavailable")}
	l := newTestLoop(q, r, "2024-05-20 14:30")

	if err := l.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(q.removed) != 0 {
		t.Fatalf("removed = %v, want none (entry retries next tick)", q.removed)
	}

	// Pass recovers: the entry goes out and is removed.
	r.err = nil
	if err := l.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if len(q.removed) != 1 || q.removed[0] != 1 {
		t.Fatalf("removed = %v, want [1]", q.removed)
	}
}

func TestTickSingleTargetMode(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{entries: []storage.ScheduledPost{
		{ID: 1, FromChatID: 50, MessageID: 3, DueAt: "2024-05-20 14:30", Mode: storage.TargetSingle, TargetChatID: 777},
	}}
	r := &fakeRunner{}
	l := newTestLoop(q, r, "2024-05-20 14:30")

	if err := l.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("broadcast calls = %d, want 1", len(r.calls))
	}
	if got := r.calls[0].targets; len(got) != 1 || got[0] != 777 {
		t.Fatalf("targets = %v, want [777]", got)
	}
	cp, ok := r.calls[0].payload.(broadcast.CopyPayload)
	if !ok {
		t.Fatalf("payload = %T, want CopyPayload", r.calls[0].payload)
	}
	if cp.From.ChatID != 50 || cp.From.MessageID != 3 {
		t.Fatalf("payload ref = %+v", cp.From)
	}
}

func TestTickNoDueEntriesIsNoop(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{entries: []storage.ScheduledPost{
		{ID: 1, DueAt: "2030-01-01 00:00", Mode: storage.TargetAll},
	}}
	r := &fakeRunner{}
	l := newTestLoop(q, r, "2024-05-20 14:30")

	if err := l.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(r.calls) != 0 || len(q.removed) != 0 {
		t.Fatalf("expected no-op, got calls=%d removed=%v", len(r.calls), q.removed)
	}
}
