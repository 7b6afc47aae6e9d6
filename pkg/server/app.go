package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AnnuityPricer/internal/service/ratelimit"
	"AnnuityPricer/pkg/config"
	xhttp "AnnuityPricer/pkg/http"
	pkgkafka "AnnuityPricer/pkg/kafka"
	applogger "AnnuityPricer/pkg/logger"
)

const (
	pruneEvery = time.Minute
	pruneIdle  = 10 * time.Minute
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	limiter    *ratelimit.Limiter
}

// New creates a new App. consumer and limiter may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	limiter *ratelimit.Limiter,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		consumer:   consumer,
		limiter:    limiter,
	}
}

// Run starts the application and blocks until interrupted or the HTTP
// server fails.
func (a *App) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	return a.run(ctx, sigCh)
}

func (a *App) run(ctx context.Context, stop <-chan os.Signal) error {
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if a.limiter != nil {
		go a.pruneLoop(ctx)
	}

	errCh := a.httpServer.Start()
	a.log.Info("application started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("events_backend", a.cfg.Events.Backend),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("cors_origins", a.cfg.Server.CORS.AllowOrigins))

	var runErr error
	select {
	case sig := <-stop:
		a.log.Info("shutdown signal received", applogger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			a.log.Error("http server error", applogger.Error(err))
			runErr = err
		}
	}

	a.shutdown(context.Background())
	return runErr
}

// shutdown stops accepting requests first, then drains the consumer.
// Infrastructure clients are closed by the DI cleanup.
func (a *App) shutdown(ctx context.Context) {
	a.log.Info("shutting down")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}

func (a *App) pruneLoop(ctx context.Context) {
	t := time.NewTicker(pruneEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Prune(pruneIdle); n > 0 {
				a.log.Debug("rate limiter pruned", applogger.Int("buckets", n))
			}
		}
	}
}
