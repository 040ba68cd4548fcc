// Package certs implements the certificate provisioner use case.
package certs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/localroute/localroute/internal/boundaries/out"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Backend selection modes.
const (
	BackendAuto       = "auto"
	BackendMkcert     = "mkcert"
	BackendSelfSigned = "selfsigned"
)

// Config holds the provisioner settings.
type Config struct {
	CertDir string
	Backend string
}

// Service implements the CertificateProvisioner interface.
type Service struct {
	store    out.ConfigStore
	backends map[string]out.CertificateBackend
	config   Config
}

// NewService creates a new certificate provisioner. Backends are keyed by Name().
func NewService(store out.ConfigStore, config Config, backends ...out.CertificateBackend) *Service {
	if config.Backend == "" {
		config.Backend = BackendAuto
	}
	byName := make(map[string]out.CertificateBackend, len(backends))
	for _, b := range backends {
		byName[b.Name()] = b
	}
	return &Service{
		store:    store,
		backends: byName,
		config:   config,
	}
}

// Paths returns the key and certificate paths for a domain. Both must be
// direct children of the certificate directory.
func (s *Service) Paths(name string) (keyPath, certPath string, err error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", "", fmt.Errorf("%w: %q is not a valid certificate name", domain.ErrSiteDomainInvalid, name)
	}

	dir := filepath.Clean(s.config.CertDir)
	keyPath = filepath.Join(dir, name+".key")
	certPath = filepath.Join(dir, name+".crt")
	for _, p := range []string{keyPath, certPath} {
		if filepath.Dir(p) != dir {
			return "", "", fmt.Errorf("%w: %q escapes the certificate directory", domain.ErrSiteDomainInvalid, name)
		}
	}
	return keyPath, certPath, nil
}

// Provision ensures a keypair exists for every TLS site. Existing pairs are
// left untouched. The first failure aborts with a provisioning error naming the domain.
func (s *Service) Provision(ctx context.Context, sites domain.SiteList) ([]domain.CertificateRecord, error) {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "ProvisionCertificates",
	})
	log := logging.FromCtx(ctx)

	var (
		records []domain.CertificateRecord
		backend out.CertificateBackend
	)

	for _, site := range sites.TLSSites() {
		keyPath, certPath, err := s.Paths(site.Domain)
		if err != nil {
			return records, provisioningError(site.Domain, err)
		}
		record := domain.CertificateRecord{Domain: site.Domain, KeyPath: keyPath, CertPath: certPath}

		existing, err := s.bothExist(ctx, keyPath, certPath)
		if err != nil {
			return records, provisioningError(site.Domain, err)
		}
		if existing {
			record.Existed = true
			records = append(records, record)
			log.Debug().Str(logging.FieldDomain, site.Domain).Msg("certificate exists, skipping")
			continue
		}

		if backend == nil {
			backend, err = s.selectBackend(ctx)
			if err != nil {
				return records, provisioningError(site.Domain, err)
			}
			if err := backend.Prepare(ctx); err != nil {
				return records, provisioningError(site.Domain, fmt.Errorf("%s: %w", backend.Name(), err))
			}
			log.Info().Str("backend", backend.Name()).Msg("certificate backend selected")
		}

		if err := backend.Generate(ctx, site.Domain, keyPath, certPath); err != nil {
			return records, provisioningError(site.Domain, fmt.Errorf("%s: %w", backend.Name(), err))
		}

		generated, err := s.bothExist(ctx, keyPath, certPath)
		if err != nil {
			return records, provisioningError(site.Domain, err)
		}
		if !generated {
			return records, provisioningError(site.Domain, fmt.Errorf("%s: %w", backend.Name(), domain.ErrCertFilesMissing))
		}

		record.Backend = backend.Name()
		records = append(records, record)
		log.Info().Str(logging.FieldDomain, site.Domain).Str("backend", backend.Name()).Msg("certificate generated")
	}

	return records, nil
}

func (s *Service) bothExist(ctx context.Context, keyPath, certPath string) (bool, error) {
	keyOK, err := s.store.Exists(ctx, keyPath)
	if err != nil {
		return false, err
	}
	certOK, err := s.store.Exists(ctx, certPath)
	if err != nil {
		return false, err
	}
	return keyOK && certOK, nil
}

// selectBackend picks the backend once per run. A backend that fails later is
// never swapped for another one.
func (s *Service) selectBackend(ctx context.Context) (out.CertificateBackend, error) {
	switch s.config.Backend {
	case BackendAuto:
		if b, ok := s.backends[BackendMkcert]; ok && b.Available(ctx) {
			return b, nil
		}
		if b, ok := s.backends[BackendSelfSigned]; ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: no backend configured", domain.ErrCertBackendUnavailable)
	case BackendMkcert, BackendSelfSigned:
		b, ok := s.backends[s.config.Backend]
		if !ok || !b.Available(ctx) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCertBackendUnavailable, s.config.Backend)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown certificate backend %q", domain.ErrInvalidConfig, s.config.Backend)
	}
}

func provisioningError(name string, err error) error {
	return &domain.StageError{
		Stage:  domain.StageProvisionCerts,
		Kind:   domain.KindProvisioning,
		Entity: name,
		Err:    err,
	}
}
