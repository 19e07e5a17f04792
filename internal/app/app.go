// Package app wires the bot together: storage, transport, the broadcast
// engine, periodic jobs, the command router, and the keep-alive server.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"animecast/internal/autopost"
	"animecast/internal/broadcast"
	"animecast/internal/config"
	"animecast/internal/content"
	"animecast/internal/health"
	"animecast/internal/router"
	"animecast/internal/runtime/supervisor"
	"animecast/internal/schedule"
	"animecast/internal/storage"
	"animecast/internal/transport"
	"animecast/internal/transport/telegram"
)

type App struct {
	log  zerolog.Logger
	cfgm *config.Manager

	store      *storage.Store
	adapter    *telegram.Adapter
	dispatcher *broadcast.Dispatcher
	coord      *broadcast.Coordinator
	health     *health.Server
	cron       *cron.Cron
	sup        *supervisor.Supervisor
}

func New(cfgPath string) (*App, error) {
	boot := newLogger(config.LoggingConfig{Level: "info", Console: true})
	cfgm := config.NewManager(cfgPath, boot)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.Logging)
	return &App{log: log, cfgm: cfgm}, nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	return newLoggerTo(os.Stdout, cfg)
}

// newLoggerTo filters through the global level only, never a per-instance
// level, so a config reload can loosen verbosity on existing sub-loggers as
// well as tighten it.
func newLoggerTo(w io.Writer, cfg config.LoggingConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02T15:04:05.000"}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()

	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: config.DurationOrDefault(cfg.Storage.BusyTimeout, 5*time.Second),
	}, a.log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.DurationOrDefault(cfg.Telegram.PollTimeout, 10*time.Second),
	}, a.log)
	if err != nil {
		_ = store.Close()
		return err
	}
	a.adapter = adapter

	a.dispatcher = broadcast.NewDispatcher(adapter,
		config.DurationOrDefault(cfg.Broadcast.Spacing, 50*time.Millisecond), a.log)
	a.coord = broadcast.NewCoordinator(a.dispatcher, store.Directory(), a.log)
	a.coord.SetAllowConcurrent(cfg.Broadcast.AllowConcurrent)

	a.sup = supervisor.New(ctx, a.log)

	// Command surface.
	rt := router.New(router.Config{
		AdminID:     cfg.Telegram.AdminID,
		ChannelName: cfg.Channel.Name,
	}, adapter, store, a.coord, a.log)
	updates := make(chan transport.Update, 128)
	a.sup.Go("router", func(c context.Context) error {
		rt.Run(c, updates)
		return nil
	})
	if err := adapter.Start(a.sup.Context(), updates); err != nil {
		return err
	}

	// Periodic jobs share one cron; ticks that overrun their interval are
	// skipped instead of piling up behind the dispatcher's spacing.
	cronLog := a.log.With().Str("comp", "cron").Logger()
	a.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(&cronLog)),
		cron.SkipIfStillRunning(cron.PrintfLogger(&cronLog)),
	))

	loop := schedule.NewLoop(store.Schedule(), a.coord, a.log)
	pollEvery := config.DurationOrDefault(cfg.Schedule.PollInterval, schedule.DefaultInterval)
	if _, err := a.cron.AddFunc(everySpec(pollEvery), a.job("schedule", loop.Tick)); err != nil {
		return err
	}

	if cfg.Autopost.Enabled {
		source := content.NewClient(cfg.Autopost.Endpoint, a.log)
		poster := autopost.NewPoster(autopost.Config{
			ChannelName: cfg.Channel.Name,
			ChannelLink: cfg.Channel.Link,
		}, source, store.Links(), a.coord, a.log)
		postEvery := config.DurationOrDefault(cfg.Autopost.Interval, autopost.DefaultInterval)
		if _, err := a.cron.AddFunc(everySpec(postEvery), a.job("autopost", poster.Tick)); err != nil {
			return err
		}
	}
	a.cron.Start()

	a.health = health.NewServer(a.log)
	if err := a.health.Start(health.Config{Enabled: cfg.Health.Enabled, Addr: cfg.Health.Addr}); err != nil {
		return err
	}

	// Live config: log level and dispatcher pacing follow file edits.
	a.sup.Go("config.watch", a.cfgm.Watch)
	sub := a.cfgm.Subscribe(1)
	a.sup.Go("config.apply", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case next := <-sub:
				a.apply(next)
			}
		}
	})

	a.log.Info().Msg("animecast started")
	return nil
}

func (a *App) apply(cfg *config.Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Logging.Level))
	a.dispatcher.Apply(config.DurationOrDefault(cfg.Broadcast.Spacing, 50*time.Millisecond))
	a.coord.SetAllowConcurrent(cfg.Broadcast.AllowConcurrent)
	a.log.Info().Msg("runtime config applied")
}

// job adapts a tick method to a cron func with error logging.
func (a *App) job(name string, tick func(ctx context.Context) error) func() {
	return func() {
		if err := tick(a.sup.Context()); err != nil {
			a.log.Error().Str("job", name).Err(err).Msg("periodic job failed")
		}
	}
}

func everySpec(d time.Duration) string { return "@every " + d.String() }

func (a *App) Stop(ctx context.Context) error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.adapter != nil {
		_ = a.adapter.Stop(ctx)
	}
	if a.health != nil {
		a.health.Stop(ctx)
	}
	if a.sup != nil {
		a.sup.Stop(ctx)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info().Msg("animecast stopped")
	return nil
}
