// Package app provides the application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/localroute/localroute/internal/adapters/out/certbackend"
	"github.com/localroute/localroute/internal/adapters/out/dnsprobe"
	"github.com/localroute/localroute/internal/adapters/out/docker"
	"github.com/localroute/localroute/internal/adapters/out/eventbus"
	"github.com/localroute/localroute/internal/adapters/out/filesystem"
	"github.com/localroute/localroute/internal/adapters/out/httpprober"
	"github.com/localroute/localroute/internal/adapters/out/portrelease"
	"github.com/localroute/localroute/internal/adapters/out/resolvconf"
	"github.com/localroute/localroute/internal/adapters/out/sitewatcher"
	"github.com/localroute/localroute/internal/boundaries/out"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
	"github.com/localroute/localroute/internal/usecase/certs"
	"github.com/localroute/localroute/internal/usecase/lifecycle"
	"github.com/localroute/localroute/internal/usecase/pipeline"
	"github.com/localroute/localroute/internal/usecase/render"
	"github.com/localroute/localroute/internal/usecase/resolver"
	"github.com/localroute/localroute/internal/usecase/sites"
	"github.com/localroute/localroute/internal/usecase/verify"
)

// Options are the command-line inputs that shape the application.
type Options struct {
	ConfigPath string
	SitesPath  string
	Console    io.Writer // log output; stderr when nil
}

// App holds the wired services for one process.
type App struct {
	config    Config
	log       zerolog.Logger
	logCloser io.Closer
	runtime   *docker.Runtime
	pipeline  *pipeline.Service
	bus       *eventbus.InMemory
	watcher   out.SiteWatcher
}

// New loads configuration and wires every adapter and use case.
func New(opts Options) (*App, error) {
	_, cfg, err := initConfig(opts.ConfigPath, opts.SitesPath)
	if err != nil {
		return nil, err
	}

	log, closer, err := logging.New(cfg.Logging, opts.Console)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logging.SetDefault(log)

	runtime, err := docker.NewRuntime()
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	a := &App{
		config:    cfg,
		log:       log,
		logCloser: closer,
		runtime:   runtime,
	}
	a.wire()

	log.Debug().
		Str(logging.FieldLayer, "app").
		Str("project_dir", cfg.ProjectDir).
		Str("sites", cfg.Sites.Path).
		Msg("application configured")

	return a, nil
}

func (a *App) wire() {
	cfg := a.config
	store := filesystem.NewStore(cfg.ProjectDir)

	registry := sites.NewService()

	renderer := render.NewService(
		render.WithServiceAddress(cfg.Network.ServiceAddress),
		render.WithUpstreamResolvers(cfg.DNS.Upstreams),
		render.WithCacheSize(cfg.DNS.CacheSize),
		render.WithProxyCertDir(cfg.Proxy.CertDir),
	)

	provisioner := certs.NewService(store,
		certs.Config{CertDir: cfg.Output.CertDir, Backend: cfg.Certs.Backend},
		certbackend.NewMkcert(
			certbackend.WithBinary(cfg.Certs.MkcertBinary),
			certbackend.WithCommandTimeout(cfg.Certs.CommandTimeout),
		),
		certbackend.NewSelfSigned(time.Duration(cfg.Certs.ValidityDays)*24*time.Hour),
	)

	resolverSvc := resolver.NewService(
		resolvconf.New(cfg.Resolver.Path, cfg.Resolver.BackupPath, resolvconf.WithSudo(cfg.Resolver.Sudo)),
		portrelease.New(portrelease.WithSudo(cfg.Resolver.Sudo)),
		resolver.Config{
			TimeoutSeconds: cfg.Resolver.TimeoutSeconds,
			ReleasePort:    cfg.Resolver.ReleasePort,
		},
	)

	network, services := lifecycle.BuildSpecs(lifecycle.SpecOptions{
		NetworkName:      cfg.Network.Name,
		Subnet:           cfg.Network.Subnet,
		Gateway:          cfg.Network.Gateway,
		ProxyAddress:     cfg.Network.ServiceAddress,
		DNSAddress:       cfg.Network.DNSAddress,
		ProxyImage:       cfg.Proxy.Image,
		DNSImage:         cfg.DNS.Image,
		ProxyConfPath:    cfg.Output.ProxyConfig,
		ResolverConfPath: cfg.Output.ResolverConfig,
		CertDir:          cfg.Output.CertDir,
		ProxyCertDir:     cfg.Proxy.CertDir,
		DNSBindAddress:   cfg.DNS.BindAddress,
	})
	lifecycleSvc := lifecycle.NewService(a.runtime, lifecycle.Config{
		Network:      network,
		Services:     services,
		ReadyTimeout: cfg.Readiness.Timeout,
		Settle:       cfg.Readiness.Settle,
		PollInterval: cfg.Readiness.PollInterval,
	})

	verifier := verify.NewService(
		dnsprobe.New(),
		httpprober.New(httpprober.WithTimeout(cfg.Verify.CheckTimeout)),
		verify.Config{
			DNSServer:    cfg.Verify.DNSServer,
			Address:      cfg.Network.ServiceAddress,
			CheckTimeout: cfg.Verify.CheckTimeout,
			StageTimeout: cfg.Verify.StageTimeout,
			Concurrency:  cfg.Verify.Concurrency,
		},
	)

	a.pipeline = pipeline.NewService(registry, renderer, provisioner, resolverSvc, lifecycleSvc, verifier, store,
		pipeline.Config{
			SitesPath:          cfg.Sites.Path,
			ProxyConfigPath:    cfg.Output.ProxyConfig,
			ResolverConfigPath: cfg.Output.ResolverConfig,
			CertDir:            cfg.Output.CertDir,
			Nameserver:         cfg.Resolver.Nameserver,
			ConfigureResolver:  cfg.Resolver.Enabled,
			ReleasePort:        cfg.Resolver.ReleasePort,
		},
	)

	a.bus = eventbus.NewInMemory(16, a.log)
	a.watcher = sitewatcher.New(a.bus, sitewatcher.WithDebounce(cfg.Watch.Debounce))
}

// Config returns the resolved configuration.
func (a *App) Config() Config { return a.config }

// Context attaches the application logger to ctx.
func (a *App) Context(ctx context.Context) context.Context {
	return logging.WithCtx(ctx, a.log)
}

// Setup runs the full pipeline.
func (a *App) Setup(ctx context.Context) (*domain.RunResult, error) {
	return a.pipeline.Setup(a.Context(ctx))
}

// Refresh re-renders, restarts and verifies.
func (a *App) Refresh(ctx context.Context) (*domain.RunResult, error) {
	return a.pipeline.Refresh(a.Context(ctx))
}

// Clean stops the services and deletes the generated configuration.
func (a *App) Clean(ctx context.Context, restoreDNS bool) (*domain.RunResult, error) {
	return a.pipeline.Clean(a.Context(ctx), restoreDNS)
}

// Close releases the Docker client and the log file.
func (a *App) Close() error {
	var errs *multierror.Error
	if err := a.runtime.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := a.logCloser.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}
