package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oio/domestic-ai/internal/config"
	"github.com/oio/domestic-ai/internal/fleet"
	"github.com/oio/domestic-ai/internal/journal"
	"github.com/oio/domestic-ai/internal/logging"
	"github.com/oio/domestic-ai/internal/observability"
	"github.com/oio/domestic-ai/internal/server"
	"github.com/oio/domestic-ai/internal/signalfile"
	"github.com/oio/domestic-ai/internal/supervise"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "domesticd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to fleet manifest (TOML)")
		adminAddr   = flag.String("admin", "", "admin API listen address (overrides manifest)")
		journalPath = flag.String("journal", "", "sqlite journal path (overrides manifest)")
		watchEvery  = flag.Duration("watch", 15*time.Second, "health re-check interval, 0 disables")
		downOnly    = flag.Bool("down", false, "stop the fleet and exit")
	)
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}
	if *journalPath != "" {
		cfg.JournalPath = *journalPath
	}
	logger := observability.InitLogger(cfg.Name)
	logger.Info().Str("root", cfg.Root).Int("services", len(cfg.Services)).Msg("manifest loaded")

	units, err := fleet.UnitsFromConfig(cfg)
	if err != nil {
		return err
	}
	reg := fleet.NewRegistry()
	for _, u := range units {
		reg.Register(u)
	}

	var (
		rec    journal.Recorder = journal.Discard{}
		events server.EventSource
	)
	if cfg.JournalPath != "" {
		jnl, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("journal open failed: %w", err)
		}
		defer jnl.Close()
		rec = jnl
		events = jnl
	}

	logDir := filepath.Join(cfg.Root, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("log dir: %w", err)
	}

	orc := supervise.New(reg, supervise.Config{
		Root:        cfg.Root,
		LogDir:      logDir,
		SignalGrace: cfg.SignalGrace.Duration,
		StopGrace:   cfg.StopGrace.Duration,
	}, nil, nil, nil, rec)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *downOnly {
		return orc.Down(ctx)
	}

	// A leftover signal file would make the bot refuse to start.
	if signalfile.Exists(cfg.Root) {
		if err := signalfile.Remove(cfg.Root); err != nil {
			log.Warn().Err(err).Msg("stale shutdown signal not removed")
		}
	}

	if err := orc.Up(ctx); err != nil {
		return err
	}

	// Operators can request teardown by touching the signal file.
	var downRequested <-chan struct{}
	if watcher, err := signalfile.NewWatcher(cfg.Root); err != nil {
		log.Warn().Err(err).Msg("shutdown watcher unavailable")
	} else {
		defer watcher.Close()
		if err := watcher.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("shutdown watcher not started")
		} else {
			downRequested = watcher.Notify()
		}
	}

	srv := server.New(cfg.Name, cfg.AdminAddr, cfg.CorsOrigins, orc, events)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Run(ctx)
	}()
	if *watchEvery > 0 {
		go orc.Watch(ctx, *watchEvery)
	}

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin api: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case <-downRequested:
		log.Info().Msg("shutdown requested via signal file")
	}

	downCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return orc.Down(downCtx)
}
