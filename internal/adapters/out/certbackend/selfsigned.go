package certbackend

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/localroute/localroute/internal/logging"
)

// DefaultValidity is the lifetime of self-signed certificates.
const DefaultValidity = 365 * 24 * time.Hour

// SelfSigned generates an RSA keypair and a self-signed server certificate.
type SelfSigned struct {
	validity     time.Duration
	organization string
	country      string
	now          func() time.Time
}

// NewSelfSigned creates a new self-signed backend.
func NewSelfSigned(validity time.Duration) *SelfSigned {
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &SelfSigned{
		validity:     validity,
		organization: "LocalRoute",
		country:      "US",
		now:          time.Now,
	}
}

// Name returns the backend name.
func (s *SelfSigned) Name() string {
	return "selfsigned"
}

// Available always returns true; generation needs no external tooling.
func (s *SelfSigned) Available(_ context.Context) bool {
	return true
}

// Prepare is a no-op.
func (s *SelfSigned) Prepare(_ context.Context) error {
	return nil
}

// Generate writes a PEM key (0600) and certificate (0644) for domain.
func (s *SelfSigned) Generate(ctx context.Context, domain, keyPath, certPath string) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "selfsigned",
		logging.FieldAction:  "generate",
		logging.FieldDomain:  domain,
	})
	log := logging.FromCtx(ctx)

	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return logging.WrapErr(log, err, "failed to generate key")
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return logging.WrapErr(log, err, "failed to generate serial number")
	}

	now := s.now().UTC()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   domain,
			Organization: []string{s.organization},
			Country:      []string{s.country},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(s.validity),
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:              []string{domain},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return logging.WrapErr(log, err, "failed to create certificate")
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	if err := writePEM(keyPath, keyPEM, 0600); err != nil {
		return logging.WrapErr(log, err, "failed to write key")
	}
	if err := writePEM(certPath, certPEM, 0644); err != nil {
		return logging.WrapErr(log, err, "failed to write certificate")
	}

	log.Debug().Time("not_after", template.NotAfter).Msg("self-signed certificate generated")
	return nil
}

func writePEM(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}
