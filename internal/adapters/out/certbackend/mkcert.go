// Package certbackend implements certificate backends for TLS sites.
package certbackend

import (
	"context"
	"os/exec"
	"time"

	"github.com/localroute/localroute/internal/adapters/out/command"
	"github.com/localroute/localroute/internal/logging"
)

// Mkcert generates locally trusted certificates with the mkcert tool.
type Mkcert struct {
	binary   string
	timeout  time.Duration
	run      command.Runner
	lookPath func(string) (string, error)
}

// MkcertOption configures the mkcert backend.
type MkcertOption func(*Mkcert)

// WithBinary overrides the mkcert executable.
func WithBinary(path string) MkcertOption {
	return func(m *Mkcert) {
		if path != "" {
			m.binary = path
		}
	}
}

// WithRunner replaces command execution.
func WithRunner(run command.Runner) MkcertOption {
	return func(m *Mkcert) {
		m.run = run
	}
}

// WithLookPath replaces executable discovery.
func WithLookPath(lookPath func(string) (string, error)) MkcertOption {
	return func(m *Mkcert) {
		m.lookPath = lookPath
	}
}

// WithCommandTimeout bounds each mkcert invocation.
func WithCommandTimeout(timeout time.Duration) MkcertOption {
	return func(m *Mkcert) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// NewMkcert creates a new mkcert backend.
func NewMkcert(opts ...MkcertOption) *Mkcert {
	m := &Mkcert{
		binary:   "mkcert",
		timeout:  30 * time.Second,
		run:      command.Exec,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the backend name.
func (m *Mkcert) Name() string {
	return "mkcert"
}

// Available checks if mkcert is on the PATH.
func (m *Mkcert) Available(_ context.Context) bool {
	_, err := m.lookPath(m.binary)
	return err == nil
}

// Prepare installs the local CA into the system trust stores.
func (m *Mkcert) Prepare(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "mkcert",
		logging.FieldAction:  "install",
	})
	log := logging.FromCtx(ctx)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.run(ctx, nil, m.binary, "-install"); err != nil {
		return logging.WrapErr(log, err, "failed to install local CA")
	}
	log.Debug().Msg("local CA installed")
	return nil
}

// Generate issues a certificate for domain at the given paths.
func (m *Mkcert) Generate(ctx context.Context, domain, keyPath, certPath string) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "mkcert",
		logging.FieldAction:  "generate",
		logging.FieldDomain:  domain,
	})
	log := logging.FromCtx(ctx)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.run(ctx, nil, m.binary, "-cert-file", certPath, "-key-file", keyPath, domain); err != nil {
		return logging.WrapErr(log, err, "failed to generate certificate")
	}
	log.Debug().Str("cert", certPath).Str("key", keyPath).Msg("certificate generated")
	return nil
}
