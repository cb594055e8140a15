// Package app wires the service together and owns its lifecycle: the
// store, the pipeline, the fan-out workers, both HTTP listeners, and
// the retention scheduler.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"parley/internal/retention"
	"parley/pkg/api"
	"parley/pkg/banner"
	"parley/pkg/config"
	"parley/pkg/events"
	"parley/pkg/idempotency"
	"parley/pkg/logger"
	"parley/pkg/messages"
	"parley/pkg/permissions"
	"parley/pkg/state"
	"parley/pkg/store"
	"parley/pkg/tasks"
	"parley/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.Effective
	version   string
	commit    string
	buildDate string

	st    *store.Store
	bus   *events.Bus
	disp  *tasks.Dispatcher
	guard *idempotency.Guard
	svc   *messages.Service
	api   *api.API
	sweep *retention.Sweeper

	srv        *http.Server
	beaconFast *fasthttp.Server
	beaconNet  *http.Server
}

// New initializes everything that does not need a running context:
// the data directory layout, the store, and the pipeline graph. Call
// Run to start the listeners and block until shutdown.
func New(eff config.Effective, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, fmt.Errorf("prepare data dir %s: %w", eff.DBPath, err)
	}
	st, err := store.Open(state.PathsVar.Store)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", state.PathsVar.Store, err)
	}

	bus := events.NewBus(cfg.Pipeline.QueueCapacity)
	guard := idempotency.NewGuard(cfg.Pipeline.IdempotencyWindow.Duration())
	disp := tasks.NewDispatcher(cfg.Pipeline.QueueCapacity, cfg.Pipeline.Workers)
	calc := permissions.NewCalculator(st)
	svc := messages.NewService(st, calc, bus, disp, guard, cfg.Snapshot)

	disp.RegisterHandler(tasks.KindLastMessage, tasks.NewLastMessageConsumer(st).Handle)
	disp.RegisterHandler(tasks.KindAck, tasks.NewAckConsumer(st).Handle)
	disp.RegisterHandler(tasks.KindPush, tasks.NewPushConsumer(nil).Handle)
	if cfg.Embeds.ServiceURL != "" {
		fetcher := tasks.NewHTTPFetcher(cfg.Embeds.ServiceURL, cfg.Embeds.Timeout.Duration())
		disp.RegisterHandler(tasks.KindEmbeds,
			tasks.NewEmbedConsumer(fetcher, svc, cfg.Embeds.Timeout.Duration()).Handle)
	}

	telemetry.ObserveStore(st)
	telemetry.ObserveBus(bus)
	telemetry.ObserveQueues(disp)

	return &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		st:        st,
		bus:       bus,
		disp:      disp,
		guard:     guard,
		svc:       svc,
		api:       api.New(svc, st, calc, bus, cfg),
		sweep:     retention.NewSweeper(cfg, st, guard),
	}, nil
}

// Run starts the workers and listeners and blocks until ctx is
// cancelled or a listener fails.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()
	a.disp.Start()

	stopRetention, err := a.sweep.Start(ctx)
	if err != nil {
		return err
	}

	errCh := a.startHTTP()
	beaconErrCh := a.startBeacon()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("http_server_failed", "error", runErr)
	case runErr = <-beaconErrCh:
		logger.Error("beacon_server_failed", "error", runErr)
	}

	a.shutdown(stopRetention)
	return runErr
}

// shutdown drains in dependency order: listeners first so no new work
// arrives, then the workers, then the store.
func (a *App) shutdown(stopRetention context.CancelFunc) {
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	if a.beaconFast != nil {
		if err := a.beaconFast.Shutdown(); err != nil {
			logger.Warn("beacon_shutdown_error", "error", err)
		}
	}
	if a.beaconNet != nil {
		if err := a.beaconNet.Shutdown(sctx); err != nil {
			logger.Warn("beacon_shutdown_error", "error", err)
		}
	}

	stopRetention()
	a.disp.Stop()

	if err := a.st.Close(); err != nil {
		logger.Warn("store_close_error", "error", err)
	}
	logger.Info("shutdown_complete")
	logger.Sync()
}
