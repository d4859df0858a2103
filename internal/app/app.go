package app

import (
	"context"
	"errors"
	"fmt"

	"signalbot/internal/config"
	"signalbot/internal/engine"
	"signalbot/internal/gateway/notifier"
	"signalbot/internal/logger"
	signalhttp "signalbot/internal/transport/http/signal"

	"golang.org/x/sync/errgroup"
)

// App wires configuration into the running alert server, the order stream
// consumers and the notification queue.
type App struct {
	cfg      *config.Config
	cfgPath  string
	engine   *engine.Engine
	http     *signalhttp.Server
	notifier *notifier.Observer
	closers  []func() error
	Summary  *StartupSummary
}

// NewApp builds the application without starting it. cfgPath is only used
// for hot reloading the HTTP access list.
func NewApp(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, cfgPath)
}

// Run serves until ctx is cancelled, then waits for in-flight entries and
// closes the stores.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.engine == nil || a.http == nil {
		return fmt.Errorf("engine or http server not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.cfg.HTTP.WatchConfig && a.cfgPath != "" {
		access := a.http.Access()
		if err := config.WatchHTTP(a.cfgPath, func(h config.HTTPConfig) {
			if access != nil {
				access.Update(h.AllowIPs, h.DenyMode())
			}
		}); err != nil {
			logger.Warnf("config watch disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("signal http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return a.engine.RunOrderStream(ctx)
	})
	if a.notifier != nil {
		group.Go(func() error {
			return a.notifier.Run(ctx)
		})
	}
	err := group.Wait()
	a.engine.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the journal and event store. It is safe to call twice.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Engine exposes the alert router (for tests and replay harnesses).
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) HTTP() *signalhttp.Server {
	if a == nil {
		return nil
	}
	return a.http
}
