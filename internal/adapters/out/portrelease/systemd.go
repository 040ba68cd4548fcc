// Package portrelease frees the DNS port held by host resolver daemons.
package portrelease

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/localroute/localroute/internal/adapters/out/command"
	"github.com/localroute/localroute/internal/logging"
)

// DefaultServices are the units known to bind port 53 on common distributions.
var DefaultServices = []string{"systemd-resolved", "named", "bind9", "dnsmasq"}

// Systemd implements the PortReleaser interface with systemctl.
type Systemd struct {
	services []string
	useSudo  bool
	timeout  time.Duration
	run      command.Runner
}

// Option configures the releaser.
type Option func(*Systemd)

// WithServices overrides the units to stop.
func WithServices(services []string) Option {
	return func(s *Systemd) {
		if len(services) > 0 {
			s.services = services
		}
	}
}

// WithSudo runs systemctl through sudo.
func WithSudo(enabled bool) Option {
	return func(s *Systemd) {
		s.useSudo = enabled
	}
}

// WithRunner replaces command execution.
func WithRunner(run command.Runner) Option {
	return func(s *Systemd) {
		s.run = run
	}
}

// New creates a systemd port releaser.
func New(opts ...Option) *Systemd {
	s := &Systemd{
		services: DefaultServices,
		timeout:  15 * time.Second,
		run:      command.Exec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Release stops and disables every active unit in the list. Inactive or
// unknown units are skipped.
func (s *Systemd) Release(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "portrelease",
		logging.FieldAction:  "release",
	})
	log := logging.FromCtx(ctx)

	var result *multierror.Error
	for _, unit := range s.services {
		if !s.active(ctx, unit) {
			log.Debug().Str(logging.FieldService, unit).Msg("unit not active")
			continue
		}

		for _, verb := range []string{"stop", "disable"} {
			if err := s.systemctl(ctx, verb, unit); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s %s: %w", verb, unit, err))
			}
		}
		log.Info().Str(logging.FieldService, unit).Msg("unit stopped to free the DNS port")
	}

	return result.ErrorOrNil()
}

func (s *Systemd) active(ctx context.Context, unit string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.run(ctx, nil, "systemctl", "is-active", "--quiet", unit)
	return err == nil
}

func (s *Systemd) systemctl(ctx context.Context, verb, unit string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name, args := command.Sudo(s.useSudo, "systemctl", verb, unit)
	_, err := s.run(ctx, nil, name, args...)
	return err
}
