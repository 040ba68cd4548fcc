// Package in defines input ports (interfaces) for use cases.
// These interfaces define the contract between driving adapters (CLI)
// and the business logic (use cases).
package in

import (
	"context"

	"github.com/localroute/localroute/internal/domain"
)

// SiteRegistry parses and validates the site list.
type SiteRegistry interface {
	Load(ctx context.Context, raw []byte) (domain.SiteList, error)
	LoadFile(ctx context.Context, path string) (domain.SiteList, error)
}

// ConfigRenderer turns a site list into proxy and resolver configuration text.
type ConfigRenderer interface {
	Render(sites domain.SiteList) (domain.RenderedConfig, error)
}

// CertificateProvisioner ensures a keypair exists for every TLS site.
type CertificateProvisioner interface {
	Provision(ctx context.Context, sites domain.SiteList) ([]domain.CertificateRecord, error)
}

// ResolverService points the host resolver at the local DNS service.
type ResolverService interface {
	Point(ctx context.Context, addr string) error
	Restore(ctx context.Context) error
	ReleasePort(ctx context.Context) error
}

// LifecycleService controls the proxy and DNS services as a unit.
type LifecycleService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Down(ctx context.Context) error
	WaitReady(ctx context.Context) error
}

// VerificationService runs the per-site DNS and HTTP checks.
type VerificationService interface {
	Verify(ctx context.Context, sites domain.SiteList) domain.VerificationReport
}

// Orchestrator runs the provisioning pipeline.
type Orchestrator interface {
	Setup(ctx context.Context) (*domain.RunResult, error)
	Refresh(ctx context.Context) (*domain.RunResult, error)
	Clean(ctx context.Context, restoreDNS bool) (*domain.RunResult, error)
}
