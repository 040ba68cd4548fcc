// Package lifecycle implements the service lifecycle use case: starting,
// stopping and restarting the proxy and DNS containers as a unit.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/localroute/localroute/internal/boundaries/out"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Default readiness timings.
const (
	DefaultReadyTimeout = 30 * time.Second
	DefaultSettle       = 5 * time.Second
	DefaultPollInterval = time.Second
)

// Config holds the lifecycle settings.
type Config struct {
	Network      domain.NetworkSpec
	Services     []domain.ServiceSpec // start order; stop runs in reverse
	ReadyTimeout time.Duration
	Settle       time.Duration
	PollInterval time.Duration
}

// Service implements the LifecycleService interface.
type Service struct {
	runtime out.ServiceRuntime
	config  Config
}

// NewService creates a new lifecycle service.
func NewService(runtime out.ServiceRuntime, config Config) *Service {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = DefaultReadyTimeout
	}
	if config.Settle < 0 {
		config.Settle = 0
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Service{
		runtime: runtime,
		config:  config,
	}
}

// Stop stops every service in reverse start order. Services that do not exist
// or are already stopped are skipped, so Stop is safe before the first Start.
func (s *Service) Stop(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "StopServices",
	})
	log := logging.FromCtx(ctx)

	for i := len(s.config.Services) - 1; i >= 0; i-- {
		name := s.config.Services[i].Name
		if err := s.runtime.StopService(ctx, name); err != nil {
			return lifecycleError(domain.StageRestartServices, name, err)
		}
		log.Debug().Str(logging.FieldService, name).Msg("service stopped")
	}
	return nil
}

// Start ensures the network exists and starts every service in order.
func (s *Service) Start(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "StartServices",
	})
	log := logging.FromCtx(ctx)

	if err := s.runtime.EnsureNetwork(ctx, s.config.Network); err != nil {
		return lifecycleError(domain.StageRestartServices, s.config.Network.Name, err)
	}

	for _, spec := range s.config.Services {
		if err := s.runtime.StartService(ctx, spec); err != nil {
			return lifecycleError(domain.StageRestartServices, spec.Name, err)
		}
		log.Info().Str(logging.FieldService, spec.Name).Str("image", spec.Image).Msg("service started")
	}
	return nil
}

// Restart stops then starts the services so they pick up new configuration.
func (s *Service) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Down stops and removes the services and their network.
func (s *Service) Down(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "DownServices",
	})
	log := logging.FromCtx(ctx)

	for i := len(s.config.Services) - 1; i >= 0; i-- {
		name := s.config.Services[i].Name
		if err := s.runtime.StopService(ctx, name); err != nil {
			return lifecycleError(domain.StageCleanServices, name, err)
		}
		if err := s.runtime.RemoveService(ctx, name); err != nil {
			return lifecycleError(domain.StageCleanServices, name, err)
		}
		log.Info().Str(logging.FieldService, name).Msg("service removed")
	}

	if s.config.Network.Name != "" {
		if err := s.runtime.RemoveNetwork(ctx, s.config.Network.Name); err != nil {
			return lifecycleError(domain.StageCleanServices, s.config.Network.Name, err)
		}
	}
	return nil
}

// WaitReady polls until every service runs, then waits the settle delay so the
// daemons inside can bind their ports.
func (s *Service) WaitReady(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "WaitReady",
	})
	log := logging.FromCtx(ctx)

	deadline := time.Now().Add(s.config.ReadyTimeout)
	for {
		pending, err := s.notRunning(ctx)
		if err == nil && pending == "" {
			break
		}
		if time.Now().After(deadline) {
			cause := domain.ErrServiceNotReady
			if err != nil {
				cause = fmt.Errorf("%w: %v", domain.ErrServiceNotReady, err)
			}
			return lifecycleError(domain.StageWaitReady, pending, cause)
		}
		if err := sleep(ctx, s.config.PollInterval); err != nil {
			return lifecycleError(domain.StageWaitReady, pending, err)
		}
	}

	log.Debug().Dur("settle", s.config.Settle).Msg("services running, settling")
	if err := sleep(ctx, s.config.Settle); err != nil {
		return lifecycleError(domain.StageWaitReady, "", err)
	}
	return nil
}

// notRunning returns the first service that is not running yet.
func (s *Service) notRunning(ctx context.Context) (string, error) {
	for _, spec := range s.config.Services {
		running, err := s.runtime.IsServiceRunning(ctx, spec.Name)
		if err != nil {
			return spec.Name, err
		}
		if !running {
			return spec.Name, nil
		}
	}
	return "", nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func lifecycleError(stage domain.Stage, entity string, err error) error {
	return &domain.StageError{
		Stage:  stage,
		Kind:   domain.KindLifecycle,
		Entity: entity,
		Err:    err,
	}
}
