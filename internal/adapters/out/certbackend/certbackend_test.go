package certbackend

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localroute/localroute/internal/adapters/out/command"
)

type recordedCall struct {
	name string
	args []string
}

func recordingRunner(calls *[]recordedCall, err error) command.Runner {
	return func(_ context.Context, _ []byte, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name: name, args: args})
		return nil, err
	}
}

func TestMkcert_Commands(t *testing.T) {
	var calls []recordedCall
	m := NewMkcert(WithRunner(recordingRunner(&calls, nil)))

	require.NoError(t, m.Prepare(context.Background()))
	require.NoError(t, m.Generate(context.Background(), "app.local", "ssl/app.local.key", "ssl/app.local.crt"))

	require.Len(t, calls, 2)
	assert.Equal(t, "mkcert", calls[0].name)
	assert.Equal(t, []string{"-install"}, calls[0].args)
	assert.Equal(t, []string{"-cert-file", "ssl/app.local.crt", "-key-file", "ssl/app.local.key", "app.local"}, calls[1].args)
}

func TestMkcert_GenerateError(t *testing.T) {
	var calls []recordedCall
	cause := errors.New("mkcert exited with status 1")
	m := NewMkcert(WithRunner(recordingRunner(&calls, cause)), WithBinary("/opt/mkcert"))

	err := m.Generate(context.Background(), "app.local", "k", "c")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "/opt/mkcert", calls[0].name)
}

func TestMkcert_Available(t *testing.T) {
	found := NewMkcert(WithLookPath(func(string) (string, error) { return "/usr/bin/mkcert", nil }))
	missing := NewMkcert(WithLookPath(func(string) (string, error) { return "", errors.New("not found") }))

	assert.True(t, found.Available(context.Background()))
	assert.False(t, missing.Available(context.Background()))
	assert.Equal(t, "mkcert", found.Name())
}

func TestMkcert_RunnerHonoursTimeout(t *testing.T) {
	m := NewMkcert(
		WithCommandTimeout(10*time.Millisecond),
		WithRunner(func(ctx context.Context, _ []byte, _ string, _ ...string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	)

	err := m.Prepare(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelfSigned_Generate(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "ssl", "app.local.key")
	certPath := filepath.Join(dir, "ssl", "app.local.crt")

	s := NewSelfSigned(0)
	require.NoError(t, s.Generate(context.Background(), "app.local", keyPath, certPath))

	keyInfo, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), keyInfo.Mode().Perm())

	raw, err := os.ReadFile(certPath)
	require.NoError(t, err)
	block, _ := pem.Decode(raw)
	require.NotNil(t, block)
	assert.Equal(t, "CERTIFICATE", block.Type)

	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "app.local", cert.Subject.CommonName)
	assert.Equal(t, []string{"LocalRoute"}, cert.Subject.Organization)
	assert.Equal(t, []string{"US"}, cert.Subject.Country)
	assert.Contains(t, cert.DNSNames, "app.local")
	assert.WithinDuration(t, time.Now().Add(DefaultValidity), cert.NotAfter, time.Hour)
	assert.NoError(t, cert.VerifyHostname("app.local"))

	rawKey, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	keyBlock, _ := pem.Decode(rawKey)
	require.NotNil(t, keyBlock)
	_, err = x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	assert.NoError(t, err)
}

func TestSelfSigned_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	err := NewSelfSigned(time.Hour).Generate(ctx, "app.local", filepath.Join(dir, "k"), filepath.Join(dir, "c"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "k"))
}
