package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
	"github.com/localroute/localroute/internal/usecase/pipeline"
)

// Watch keeps the process alive and refreshes whenever the site list changes
// or SIGUSR1 arrives. It returns on SIGINT, SIGTERM or ctx cancellation.
func (a *App) Watch(ctx context.Context, onResult func(*domain.RunResult, error)) error {
	ctx = logging.CtxWithFields(a.Context(ctx), map[string]any{
		logging.FieldLayer:  "app",
		logging.FieldAction: "Watch",
	})
	log := logging.FromCtx(ctx)

	pidFile := createPidFile(log)
	defer removePidFile(pidFile, log)

	if err := a.bus.Start(); err != nil {
		return logging.WrapErr(log, err, "failed to start event bus")
	}
	defer func() {
		if err := a.bus.Stop(); err != nil {
			log.Warn().Err(err).Msg("event bus did not stop cleanly")
		}
	}()

	handler := pipeline.NewRefreshHandler(a.pipeline, onResult)
	if err := a.bus.Subscribe(handler); err != nil {
		return logging.WrapErr(log, err, "failed to subscribe refresh handler")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- a.watcher.Watch(watchCtx, a.config.Sites.Path)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	log.Info().Str(logging.FieldPath, a.config.Sites.Path).Msg("watching for changes, send SIGUSR1 to reload")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			return err
		case sig := <-sigs:
			if sig != syscall.SIGUSR1 {
				log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
				return nil
			}
			if err := a.bus.Publish(domain.EventManualReload, domain.ReloadPayload{Source: "signal"}); err != nil {
				log.Error().Err(err).Msg("failed to publish reload event")
			}
		}
	}
}
