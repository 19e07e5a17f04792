// Package supervisor runs named goroutines tied to a shared context, with
// panic recovery and graceful waiting on shutdown.
package supervisor

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func New(parent context.Context, log zerolog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel, log: log.With().Str("comp", "supervisor").Logger()}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Go starts a named goroutine. A panic is logged and does not take down the
// process; an error return is logged at error level.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Str("goroutine", name).Any("panic", r).Str("stack", string(debug.Stack())).Msg("goroutine panicked")
			}
		}()
		if err := fn(s.ctx); err != nil && s.ctx.Err() == nil {
			s.log.Error().Str("goroutine", name).Err(err).Msg("goroutine exited with error")
		}
	}()
}

// Stop cancels the shared context and waits for all goroutines, or until ctx
// expires.
func (s *Supervisor) Stop(ctx context.Context) {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("supervisor stop timed out")
	}
}
