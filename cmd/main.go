package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/okian/eventwatch/internal/adapters/dispatch"
	"github.com/okian/eventwatch/internal/adapters/feed"
	"github.com/okian/eventwatch/internal/adapters/http/api"
	"github.com/okian/eventwatch/internal/adapters/repository"
	"github.com/okian/eventwatch/internal/adapters/webhook"
	service "github.com/okian/eventwatch/internal/app"
	"github.com/okian/eventwatch/internal/config"
	"github.com/okian/eventwatch/internal/domain/format"
	"github.com/okian/eventwatch/internal/domain/ledger"
	"github.com/okian/eventwatch/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// rawEventsFile is the mirror of the last fetched events document.
const rawEventsFile = "events.json"

func main() {
	if err := logger.Init(); err != nil {
		// Logger isn't available yet.
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("invalid log_format: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "watcher exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the watcher and blocks until ctx is cancelled, or until the
// single cycle finishes when RunOnce is set.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := repository.Open(repository.Config{Driver: cfg.LedgerDriver, Dir: cfg.StateDir}, log.Named("store"))
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "close ledger store", logger.Error(err))
		}
	}()

	svc, err := build(cfg, store, log)
	if err != nil {
		return err
	}

	if cfg.RunOnce {
		log.Info(ctx, "running a single cycle")
		return svc.RunOnce(ctx)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer svc.Stop()

	var srv *http.Server
	if cfg.Addr != "" {
		mux := http.NewServeMux()
		api.NewServer(svc).Register(mux)

		srv = &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		go func() {
			log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "HTTP server failed", logger.Error(fmt.Errorf("%w: %w", api.ErrServe, err)))
			}
		}()
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn(ctx, "systemd readiness notification failed", logger.Error(err))
	} else if ok {
		log.Debug(ctx, "systemd notified ready")
	}

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down...")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
		}
	}

	log.Info(ctx, "watcher stopped")
	return nil
}

// build assembles the service from configuration around an open store.
func build(cfg *config.Config, store repository.Store, log logger.Logger) (*service.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	feedOpts := []feed.Option{
		feed.WithURLs(cfg.EventsURL, cfg.RaidsURL, cfg.EggsURL),
		feed.WithTimeout(cfg.HTTPTimeout()),
		feed.WithLogger(log.Named("feed")),
	}
	if cfg.KeepRawEvents {
		feedOpts = append(feedOpts, feed.WithRawEventsPath(filepath.Join(cfg.StateDir, rawEventsFile)))
	}

	sender, err := webhook.NewDiscordSender(cfg.SendTimeout(), webhook.WithRatePerSec(cfg.SendRatePerSec))
	if err != nil {
		return nil, fmt.Errorf("create webhook sender: %w", err)
	}

	return service.New(
		service.WithLogger(log.Named("watcher")),
		service.WithFeed(feed.NewClient(feedOpts...)),
		service.WithDispatcher(dispatch.New(sender,
			dispatch.WithSendTimeout(cfg.SendTimeout()),
			dispatch.WithLogger(log.Named("dispatch")),
		)),
		service.WithLedger(ledger.New(store, ledger.WithLogger(log.Named("ledger")))),
		service.WithFormatter(format.New(
			format.WithLocation(loc),
			format.WithMention(cfg.MentionRole),
		)),
		service.WithTargets(service.DispatchTargets{
			Events: cfg.EventWebhooks,
			Raids:  cfg.RaidWebhooks,
			Eggs:   cfg.EggWebhooks,
		}),
		service.WithInterval(cfg.PollInterval()),
		service.WithLocation(loc),
		service.WithDatasets(cfg.EnableEvents, cfg.EnableRaids, cfg.EnableEggs),
	), nil
}
