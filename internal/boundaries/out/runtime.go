// Package out defines output ports (interfaces) for infrastructure.
// These interfaces define the contract between use cases and driven adapters
// (Docker, filesystem, resolver, probes, etc.).
package out

import (
	"context"

	"github.com/localroute/localroute/internal/domain"
)

// ServiceRuntime defines the contract for managing the proxy and DNS containers.
// This interface abstracts the underlying container runtime.
type ServiceRuntime interface {
	// Network management
	EnsureNetwork(ctx context.Context, spec domain.NetworkSpec) error
	RemoveNetwork(ctx context.Context, name string) error

	// StartService creates the container when missing (or when its image changed)
	// and starts it.
	StartService(ctx context.Context, spec domain.ServiceSpec) error
	// StopService stops the named container. A missing or stopped container is a no-op.
	StopService(ctx context.Context, name string) error
	// RemoveService removes the named container. A missing container is a no-op.
	RemoveService(ctx context.Context, name string) error

	IsServiceRunning(ctx context.Context, name string) (bool, error)
}
