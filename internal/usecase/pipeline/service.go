// Package pipeline implements the orchestrator: the ordered provisioning
// stages, fatal/soft failure classification and serialized refreshes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/localroute/localroute/internal/boundaries/in"
	"github.com/localroute/localroute/internal/boundaries/out"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Config holds the pipeline settings. Paths are absolute.
type Config struct {
	SitesPath          string
	ProxyConfigPath    string
	ResolverConfigPath string
	CertDir            string
	Nameserver         string // address written to the host resolver file
	ConfigureResolver  bool
	ReleasePort        bool
}

// Service implements the Orchestrator interface.
type Service struct {
	registry  in.SiteRegistry
	renderer  in.ConfigRenderer
	certs     in.CertificateProvisioner
	resolver  in.ResolverService
	lifecycle in.LifecycleService
	verifier  in.VerificationService
	store     out.ConfigStore
	config    Config

	// runMu serializes every run that writes generated files.
	runMu sync.Mutex

	// refresh coalescing state
	refreshMu      sync.Mutex
	refreshRunning bool
	refreshPending bool

	current atomic.Pointer[domain.SiteList]
}

// NewService creates a new pipeline service.
func NewService(
	registry in.SiteRegistry,
	renderer in.ConfigRenderer,
	certs in.CertificateProvisioner,
	resolver in.ResolverService,
	lifecycle in.LifecycleService,
	verifier in.VerificationService,
	store out.ConfigStore,
	config Config,
) *Service {
	if config.Nameserver == "" {
		config.Nameserver = "127.0.0.1"
	}
	return &Service{
		registry:  registry,
		renderer:  renderer,
		certs:     certs,
		resolver:  resolver,
		lifecycle: lifecycle,
		verifier:  verifier,
		store:     store,
		config:    config,
	}
}

// Sites returns the current snapshot, or an empty list before the first run.
func (s *Service) Sites() domain.SiteList {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return domain.NewSiteList(nil)
}

// Setup runs every stage.
func (s *Service) Setup(ctx context.Context) (*domain.RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	r, ctx := s.newRun(ctx, "Setup")

	sites, err := s.validate(ctx, r)
	if err != nil {
		return r.finish(), err
	}

	if err := r.stage(ctx, domain.StageEnsureDirs, func(ctx context.Context) error {
		return s.ensureDirs(ctx)
	}); err != nil {
		return r.finish(), err
	}

	return s.apply(ctx, r, sites, true)
}

// Refresh reloads the site list and runs from render-configs onward. A call
// made while a refresh is running returns domain.ErrRefreshQueued and the
// running refresh repeats once when it finishes.
func (s *Service) Refresh(ctx context.Context) (*domain.RunResult, error) {
	s.refreshMu.Lock()
	if s.refreshRunning {
		s.refreshPending = true
		s.refreshMu.Unlock()
		log := logging.FromCtx(ctx)
		log.Debug().Msg("refresh in progress, request queued")
		return nil, domain.ErrRefreshQueued
	}
	s.refreshRunning = true
	s.refreshMu.Unlock()

	for {
		result, err := s.refreshOnce(ctx)

		s.refreshMu.Lock()
		if !s.refreshPending || ctx.Err() != nil {
			s.refreshRunning = false
			s.refreshPending = false
			s.refreshMu.Unlock()
			return result, err
		}
		s.refreshPending = false
		s.refreshMu.Unlock()

		log := logging.FromCtx(ctx)
		log.Info().Msg("running queued refresh")
	}
}

func (s *Service) refreshOnce(ctx context.Context) (*domain.RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	r, ctx := s.newRun(ctx, "Refresh")

	sites, err := s.validate(ctx, r)
	if err != nil {
		return r.finish(), err
	}

	return s.apply(ctx, r, sites, false)
}

// Clean brings the services down and deletes the generated configuration.
// Certificates are kept. With restoreDNS the resolver backup is put back.
func (s *Service) Clean(ctx context.Context, restoreDNS bool) (*domain.RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	r, ctx := s.newRun(ctx, "Clean")

	if err := r.stage(ctx, domain.StageCleanServices, s.lifecycle.Down); err != nil {
		return r.finish(), err
	}

	if err := r.stage(ctx, domain.StageCleanConfigs, func(ctx context.Context) error {
		var errs *multierror.Error
		for _, path := range []string{s.config.ProxyConfigPath, s.config.ResolverConfigPath} {
			if err := s.store.Remove(ctx, path); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		return errs.ErrorOrNil()
	}); err != nil {
		return r.finish(), err
	}

	if restoreDNS {
		if err := r.stage(ctx, domain.StageRestoreResolver, s.resolver.Restore); err != nil {
			return r.finish(), err
		}
	} else {
		r.skip(domain.StageRestoreResolver)
	}

	return r.finish(), nil
}

func (s *Service) validate(ctx context.Context, r *run) (domain.SiteList, error) {
	var sites domain.SiteList
	err := r.stage(ctx, domain.StageValidate, func(ctx context.Context) error {
		var err error
		sites, err = s.registry.LoadFile(ctx, s.config.SitesPath)
		var ve *domain.ValidationError
		if err != nil && !errors.As(err, &ve) {
			return &domain.StageError{
				Stage:  domain.StageValidate,
				Kind:   domain.KindValidation,
				Entity: s.config.SitesPath,
				Err:    err,
			}
		}
		return err
	})
	if err != nil {
		return domain.SiteList{}, err
	}

	s.current.Store(&sites)
	r.result.Sites = sites
	r.log.Info().Int("sites", sites.Len()).Msg("site list loaded")
	return sites, nil
}

// apply runs render-configs through verify.
func (s *Service) apply(ctx context.Context, r *run, sites domain.SiteList, setup bool) (*domain.RunResult, error) {
	var rendered domain.RenderedConfig
	if err := r.stage(ctx, domain.StageRender, func(ctx context.Context) error {
		var err error
		rendered, err = s.renderer.Render(sites)
		return err
	}); err != nil {
		return r.finish(), err
	}

	if err := r.stage(ctx, domain.StageWriteConfigs, func(ctx context.Context) error {
		if err := s.store.WriteFile(ctx, s.config.ProxyConfigPath, rendered.Proxy); err != nil {
			return writeError(s.config.ProxyConfigPath, err)
		}
		return writeError(s.config.ResolverConfigPath,
			s.store.WriteFile(ctx, s.config.ResolverConfigPath, rendered.Resolver))
	}); err != nil {
		return r.finish(), err
	}

	if err := r.stage(ctx, domain.StageProvisionCerts, func(ctx context.Context) error {
		records, err := s.certs.Provision(ctx, sites)
		r.result.Certificates = records
		return err
	}); err != nil {
		return r.finish(), err
	}

	if setup && s.config.ReleasePort {
		if err := r.stage(ctx, domain.StagePortRelease, s.resolver.ReleasePort); err != nil {
			return r.finish(), err
		}
	}

	if s.config.ConfigureResolver {
		if err := r.stage(ctx, domain.StageResolver, func(ctx context.Context) error {
			return s.resolver.Point(ctx, s.config.Nameserver)
		}); err != nil {
			return r.finish(), err
		}
	} else {
		r.skip(domain.StageResolver)
	}

	if err := r.stage(ctx, domain.StageRestartServices, s.lifecycle.Restart); err != nil {
		return r.finish(), err
	}

	if err := r.stage(ctx, domain.StageWaitReady, s.lifecycle.WaitReady); err != nil {
		return r.finish(), err
	}

	if err := r.stage(ctx, domain.StageVerify, func(ctx context.Context) error {
		report := s.verifier.Verify(ctx, sites)
		r.result.Report = &report
		return verificationError(report)
	}); err != nil {
		return r.finish(), err
	}

	return r.finish(), nil
}

func (s *Service) ensureDirs(ctx context.Context) error {
	dirs := []string{
		filepath.Dir(s.config.ProxyConfigPath),
		filepath.Dir(s.config.ResolverConfigPath),
		s.config.CertDir,
	}
	for _, dir := range dirs {
		if err := s.store.EnsureDir(ctx, dir); err != nil {
			return &domain.StageError{
				Stage:  domain.StageEnsureDirs,
				Kind:   domain.KindProvisioning,
				Entity: dir,
				Err:    err,
			}
		}
	}
	return nil
}

func writeError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StageError{
		Stage:  domain.StageWriteConfigs,
		Kind:   domain.KindProvisioning,
		Entity: path,
		Err:    err,
	}
}

func verificationError(report domain.VerificationReport) error {
	failed := report.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, c := range failed {
		names = append(names, c.Domain)
	}
	return &domain.StageError{
		Stage:  domain.StageVerify,
		Kind:   domain.KindVerification,
		Entity: strings.Join(names, ", "),
		Err:    fmt.Errorf("%d of %d sites failed checks", len(failed), len(report.Checks)),
	}
}

// stageKinds is the failure class of errors that arrive without one.
var stageKinds = map[domain.Stage]domain.ErrorKind{
	domain.StageValidate:        domain.KindValidation,
	domain.StageEnsureDirs:      domain.KindProvisioning,
	domain.StageRender:          domain.KindProvisioning,
	domain.StageWriteConfigs:    domain.KindProvisioning,
	domain.StageProvisionCerts:  domain.KindProvisioning,
	domain.StagePortRelease:     domain.KindSystemConfiguration,
	domain.StageResolver:        domain.KindSystemConfiguration,
	domain.StageRestartServices: domain.KindLifecycle,
	domain.StageWaitReady:       domain.KindLifecycle,
	domain.StageVerify:          domain.KindVerification,
	domain.StageCleanServices:   domain.KindLifecycle,
	domain.StageCleanConfigs:    domain.KindProvisioning,
	domain.StageRestoreResolver: domain.KindSystemConfiguration,
}

// classify returns err as a StageError for stage.
func classify(stage domain.Stage, err error) *domain.StageError {
	var se *domain.StageError
	if errors.As(err, &se) {
		return se
	}

	entity := ""
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		entity = ve.Domain
	}
	return &domain.StageError{
		Stage:  stage,
		Kind:   stageKinds[stage],
		Entity: entity,
		Err:    err,
	}
}

type run struct {
	result   *domain.RunResult
	warnings *multierror.Error
	log      zerolog.Logger
	caller   context.Context // cancellation is honoured only between stages
}

func (s *Service) newRun(ctx context.Context, usecase string) (*run, context.Context) {
	id := uuid.New().String()
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: usecase,
		logging.FieldRunID:   id,
	})
	log := logging.FromCtx(ctx)
	log.Info().Msg("pipeline run started")

	r := &run{
		result: &domain.RunResult{RunID: id},
		log:    log,
		caller: ctx,
	}
	// Stages run to completion once started; each external call keeps its
	// own timeout.
	return r, context.WithoutCancel(ctx)
}

// stage runs fn as stage. A fatal failure is returned; a soft one is
// recorded as a warning and nil is returned. A cancelled caller stops the run
// before the stage starts, whatever the stage kind.
func (r *run) stage(ctx context.Context, stage domain.Stage, fn func(context.Context) error) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{logging.FieldStage: string(stage)})
	log := logging.FromCtx(ctx)

	if err := r.caller.Err(); err != nil {
		se := &domain.StageError{Stage: stage, Kind: stageKinds[stage], Err: err}
		r.result.Stages = append(r.result.Stages, domain.StageOutcome{Stage: stage, Status: domain.StatusFailed, Err: se})
		log.Warn().Err(err).Msg("run cancelled before stage")
		return se
	}

	start := time.Now()
	err := fn(ctx)
	outcome := domain.StageOutcome{Stage: stage, Status: domain.StatusOK, Duration: time.Since(start)}

	if err == nil {
		r.result.Stages = append(r.result.Stages, outcome)
		log.Debug().Dur(logging.FieldDuration, outcome.Duration).Msg("stage completed")
		return nil
	}

	se := classify(stage, err)
	outcome.Err = se
	if se.Fatal() {
		outcome.Status = domain.StatusFailed
		r.result.Stages = append(r.result.Stages, outcome)
		log.Error().Err(se).Msg("stage failed")
		return se
	}

	outcome.Status = domain.StatusSoftFailed
	r.result.Stages = append(r.result.Stages, outcome)
	r.warnings = multierror.Append(r.warnings, se)
	log.Warn().Err(se).Msg("stage failed, continuing")
	return nil
}

func (r *run) skip(stage domain.Stage) {
	r.result.Stages = append(r.result.Stages, domain.StageOutcome{Stage: stage, Status: domain.StatusSkipped})
}

func (r *run) finish() *domain.RunResult {
	if err := r.warnings.ErrorOrNil(); err != nil {
		r.result.Warnings = err
	}
	r.log.Info().
		Int("stages", len(r.result.Stages)).
		Bool("warnings", r.result.Warnings != nil).
		Msg("pipeline run finished")
	return r.result
}
