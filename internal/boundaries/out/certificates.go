package out

import "context"

// CertificateBackend produces a keypair for one domain at the given paths.
type CertificateBackend interface {
	Name() string
	// Available reports whether the backend can be used on this host.
	Available(ctx context.Context) bool
	// Prepare runs once per provisioning run before any Generate call.
	Prepare(ctx context.Context) error
	Generate(ctx context.Context, domain, keyPath, certPath string) error
}
