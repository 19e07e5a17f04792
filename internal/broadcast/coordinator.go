package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DirectoryView is the slice of the recipient directory the coordinator needs.
type DirectoryView interface {
	ListActive(ctx context.Context) ([]int64, error)
	MarkInactive(ctx context.Context, chatID int64) error
}

// Result aggregates one broadcast pass. Counts always sum to the number of
// attempted targets.
type Result struct {
	Delivered   int
	Unreachable int
	Failed      int
}

func (r Result) Total() int { return r.Delivered + r.Unreachable + r.Failed }

// Coordinator drives the dispatcher over a target set for one payload. Passes
// are serialized: the scheduler loop, the auto-poster and manual broadcasts
// all share the dispatcher's flood-limit spacing, and interleaving passes
// would undermine it. SetAllowConcurrent opts out.
type Coordinator struct {
	dispatcher *Dispatcher
	dir        DirectoryView
	log        zerolog.Logger

	// allowConcurrent skips pass serialization. The shared dispatcher limiter
	// still spaces individual sends. Atomic: config reload flips it while
	// passes are running.
	allowConcurrent atomic.Bool

	passMu sync.Mutex
}

func NewCoordinator(d *Dispatcher, dir DirectoryView, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		dispatcher: d,
		dir:        dir,
		log:        log.With().Str("comp", "broadcast").Logger(),
	}
}

// SetAllowConcurrent toggles pass serialization. Safe to call while passes
// are running; an in-flight pass keeps the mode it started with.
func (c *Coordinator) SetAllowConcurrent(v bool) { c.allowConcurrent.Store(v) }

// RunAll broadcasts to a snapshot of all active recipients.
func (c *Coordinator) RunAll(ctx context.Context, p Payload) (Result, error) {
	targets, err := c.dir.ListActive(ctx)
	if err != nil {
		return Result{}, err
	}
	return c.Run(ctx, p, targets)
}

// Run broadcasts the payload to each target in order. The pass never aborts on
// a per-recipient failure: even a payload every recipient rejects completes
// the pass, so directory cleanup still happens and counts stay honest. An
// empty target set returns a zero result.
func (c *Coordinator) Run(ctx context.Context, p Payload, targets []int64) (Result, error) {
	if !c.allowConcurrent.Load() {
		c.passMu.Lock()
		defer c.passMu.Unlock()
	}

	start := time.Now()
	var res Result
	for _, chatID := range targets {
		switch c.dispatcher.Deliver(ctx, chatID, p) {
		case Delivered:
			res.Delivered++
		case Unreachable:
			res.Unreachable++
			if err := c.dir.MarkInactive(ctx, chatID); err != nil {
				c.log.Error().Int64("chat_id", chatID).Err(err).Msg("mark inactive failed")
			}
		case TransientFailure:
			res.Failed++
		}
	}

	c.log.Info().
		Str("payload", p.Describe()).
		Int("total", res.Total()).
		Int("delivered", res.Delivered).
		Int("unreachable", res.Unreachable).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("broadcast pass finished")
	return res, nil
}
