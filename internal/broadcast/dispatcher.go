package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"animecast/internal/transport"
)

// Outcome classifies one delivery attempt.
type Outcome int

const (
	Delivered Outcome = iota
	// Unreachable means the recipient blocked or removed the bot. It is the
	// only outcome that triggers a directory update.
	Unreachable
	// TransientFailure covers every other delivery error: bad payload,
	// malformed image URL, network trouble. Logged, never retried.
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Unreachable:
		return "unreachable"
	default:
		return "transient_failure"
	}
}

const defaultSpacing = 50 * time.Millisecond

// Dispatcher delivers one payload to one recipient and enforces a minimum
// spacing between consecutive deliveries. One dispatcher instance is shared by
// every broadcast path so the spacing holds across concurrent callers.
type Dispatcher struct {
	adapter transport.Adapter
	log     zerolog.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

func NewDispatcher(adapter transport.Adapter, spacing time.Duration, log zerolog.Logger) *Dispatcher {
	if spacing <= 0 {
		spacing = defaultSpacing
	}
	return &Dispatcher{
		adapter: adapter,
		log:     log.With().Str("comp", "dispatcher").Logger(),
		limiter: rate.NewLimiter(rate.Every(spacing), 1),
	}
}

// Apply reconfigures the inter-call spacing (config hot reload).
func (d *Dispatcher) Apply(spacing time.Duration) {
	if spacing <= 0 {
		spacing = defaultSpacing
	}
	d.mu.Lock()
	d.limiter = rate.NewLimiter(rate.Every(spacing), 1)
	d.mu.Unlock()
}

// Deliver sends the payload to one recipient and classifies the result. The
// dispatcher itself never touches the directory; status changes belong to the
// coordinator.
func (d *Dispatcher) Deliver(ctx context.Context, chatID int64, p Payload) Outcome {
	d.mu.Lock()
	lim := d.limiter
	d.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return TransientFailure
	}

	err := p.Send(ctx, d.adapter, chatID)
	switch {
	case err == nil:
		return Delivered
	case errors.Is(err, transport.ErrForbidden):
		d.log.Debug().Int64("chat_id", chatID).Msg("recipient unreachable")
		return Unreachable
	default:
		d.log.Warn().Int64("chat_id", chatID).Str("payload", p.Describe()).Err(err).Msg("delivery failed")
		return TransientFailure
	}
}
