// Package schedule drains the scheduled-post queue: once a minute it collects
// every entry whose due time has passed and hands each to the broadcast
// coordinator.
package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"animecast/internal/broadcast"
	"animecast/internal/storage"
	"animecast/internal/transport"
)

// DefaultInterval is the queue polling cadence.
const DefaultInterval = time.Minute

type QueueView interface {
	Due(ctx context.Context, now time.Time) ([]storage.ScheduledPost, error)
	Remove(ctx context.Context, id int64) error
}

type Broadcaster interface {
	Run(ctx context.Context, p broadcast.Payload, targets []int64) (broadcast.Result, error)
	RunAll(ctx context.Context, p broadcast.Payload) (broadcast.Result, error)
}

type Loop struct {
	queue  QueueView
	runner Broadcaster
	log    zerolog.Logger

	now func() time.Time // test hook
}

func NewLoop(queue QueueView, runner Broadcaster, log zerolog.Logger) *Loop {
	return &Loop{
		queue:  queue,
		runner: runner,
		log:    log.With().Str("comp", "schedule").Logger(),
		now:    time.Now,
	}
}

// Tick processes the current batch of due entries in insertion order. Each
// entry is removed only after its broadcast pass returns; if the pass itself
// errors the entry stays queued for the next tick (at-least-once). Per-
// recipient failures are already absorbed inside the pass and never block
// removal.
func (l *Loop) Tick(ctx context.Context) error {
	due, err := l.queue.Due(ctx, l.now())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	l.log.Info().Int("due", len(due)).Msg("processing scheduled posts")

	for _, e := range due {
		payload := broadcast.CopyPayload{
			From: transport.MessageRef{ChatID: e.FromChatID, MessageID: e.MessageID},
		}

		var res broadcast.Result
		var runErr error
		if e.Mode == storage.TargetSingle {
			res, runErr = l.runner.Run(ctx, payload, []int64{e.TargetChatID})
		} else {
			res, runErr = l.runner.RunAll(ctx, payload)
		}
		if runErr != nil {
			// Leave the entry queued; a duplicate send on the next tick beats
			// a silent drop.
			l.log.Error().Int64("post", e.ID).Err(runErr).Msg("scheduled broadcast failed, will retry next tick")
			continue
		}

		if err := l.queue.Remove(ctx, e.ID); err != nil {
			l.log.Error().Int64("post", e.ID).Err(err).Msg("scheduled post remove failed")
			continue
		}
		l.log.Info().
			Int64("post", e.ID).
			Str("due_at", e.DueAt).
			Int("delivered", res.Delivered).
			Int("unreachable", res.Unreachable).
			Int("failed", res.Failed).
			Msg("scheduled post dispatched")
	}
	return nil
}
