// Package autopost is the fixed-interval content broadcaster: every firing
// fetches one anime pick and fans a photo post out to all active recipients.
package autopost

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"animecast/internal/broadcast"
	"animecast/internal/content"
)

// DefaultInterval matches the original 10-minute cadence.
const DefaultInterval = 10 * time.Minute

type Config struct {
	ChannelName string
	ChannelLink string
}

type Source interface {
	FetchOne(ctx context.Context) (*content.Item, error)
}

type LinkResolver interface {
	Resolve(ctx context.Context, title string) (string, bool, error)
}

type Broadcaster interface {
	RunAll(ctx context.Context, p broadcast.Payload) (broadcast.Result, error)
}

type Poster struct {
	cfg    Config
	source Source
	links  LinkResolver
	runner Broadcaster
	log    zerolog.Logger
}

func NewPoster(cfg Config, source Source, links LinkResolver, runner Broadcaster, log zerolog.Logger) *Poster {
	return &Poster{
		cfg:    cfg,
		source: source,
		links:  links,
		runner: runner,
		log:    log.With().Str("comp", "autopost").Logger(),
	}
}

// Tick runs one firing. An empty fetch is a defined no-op, not an error; a
// fetch error skips the cycle and is reported to the caller for logging.
func (p *Poster) Tick(ctx context.Context) error {
	item, err := p.source.FetchOne(ctx)
	if err != nil {
		return err
	}
	if item == nil {
		p.log.Debug().Msg("no content this cycle")
		return nil
	}

	caption := BuildCaption(item, p.watchLink(ctx, item), p.cfg.ChannelName, p.cfg.ChannelLink)
	res, err := p.runner.RunAll(ctx, broadcast.PhotoPayload{URL: item.ImageURL, Caption: caption})
	if err != nil {
		return err
	}
	p.log.Info().
		Str("title", item.Title).
		Int("delivered", res.Delivered).
		Int("unreachable", res.Unreachable).
		Int("failed", res.Failed).
		Msg("auto post sent")
	return nil
}

// watchLink resolves a curated channel link for the item, trying the display
// title first and the alternate title second. Resolver trouble only loses the
// override, never the post.
func (p *Poster) watchLink(ctx context.Context, item *content.Item) string {
	for _, title := range []string{item.Title, item.AltTitle} {
		if title == "" {
			continue
		}
		url, ok, err := p.links.Resolve(ctx, title)
		if err != nil {
			p.log.Warn().Str("title", title).Err(err).Msg("link resolve failed")
			continue
		}
		if ok {
			return url
		}
	}
	return ""
}
