// Package resolver implements the system resolver use case: pointing the host
// at the local DNS service with a one-time backup.
package resolver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/localroute/localroute/internal/boundaries/out"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Config holds resolver settings.
type Config struct {
	TimeoutSeconds int
	ReleasePort    bool
}

// Service implements the ResolverService interface.
type Service struct {
	store    out.ResolverStore
	releaser out.PortReleaser
	config   Config
}

// NewService creates a new resolver service. releaser may be nil.
func NewService(store out.ResolverStore, releaser out.PortReleaser, config Config) *Service {
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 1
	}
	return &Service{
		store:    store,
		releaser: releaser,
		config:   config,
	}
}

// Content returns the resolver file body pointing at addr.
func (s *Service) Content(addr string) []byte {
	return []byte(fmt.Sprintf("nameserver %s\noptions timeout:%d\n", addr, s.config.TimeoutSeconds))
}

// Point backs up the current resolver file (only if no backup exists yet),
// writes the local nameserver and verifies the result.
func (s *Service) Point(ctx context.Context, addr string) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "PointResolver",
		"nameserver":         addr,
	})
	log := logging.FromCtx(ctx)

	exists, err := s.store.Exists(ctx)
	if err != nil {
		return resolverError(domain.StageResolver, err)
	}
	if exists {
		backedUp, err := s.store.BackupExists(ctx)
		if err != nil {
			return resolverError(domain.StageResolver, err)
		}
		if !backedUp {
			if err := s.store.Backup(ctx); err != nil {
				return resolverError(domain.StageResolver, err)
			}
			log.Info().Msg("original resolver configuration backed up")
		}
	}

	if err := s.store.Write(ctx, s.Content(addr)); err != nil {
		return resolverError(domain.StageResolver, err)
	}

	data, err := s.store.Read(ctx)
	if err != nil {
		return resolverError(domain.StageResolver, err)
	}
	if !PointsAt(data, addr) {
		return resolverError(domain.StageResolver, fmt.Errorf("%w: %s", domain.ErrResolverVerifyFailed, addr))
	}

	log.Info().Msg("resolver points at local DNS")
	return nil
}

// Restore puts the backed up resolver file back.
func (s *Service) Restore(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "RestoreResolver",
	})

	if err := s.store.Restore(ctx); err != nil {
		return resolverError(domain.StageRestoreResolver, err)
	}
	log := logging.FromCtx(ctx)
	log.Info().Msg("resolver configuration restored")
	return nil
}

// ReleasePort frees the DNS port from host daemons when enabled.
func (s *Service) ReleasePort(ctx context.Context) error {
	if !s.config.ReleasePort || s.releaser == nil {
		return nil
	}
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "ReleaseDNSPort",
	})

	if err := s.releaser.Release(ctx); err != nil {
		return resolverError(domain.StagePortRelease, err)
	}
	return nil
}

// PointsAt reports whether data contains a `nameserver addr` line.
func PointsAt(data []byte, addr string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "nameserver" && fields[1] == addr {
			return true
		}
	}
	return false
}

func resolverError(stage domain.Stage, err error) error {
	return &domain.StageError{
		Stage:  stage,
		Kind:   domain.KindSystemConfiguration,
		Entity: "resolver",
		Err:    err,
	}
}
