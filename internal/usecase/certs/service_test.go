package certs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/localroute/localroute/internal/boundaries/out/mocks"
	"github.com/localroute/localroute/internal/domain"
)

func tlsSites() domain.SiteList {
	return domain.NewSiteList([]domain.Site{
		{Domain: "app.local", Upstream: "http://localhost:3000", TLS: true},
		{Domain: "plain.local", Upstream: "http://localhost:3001"},
		{Domain: "api.local", Upstream: "http://localhost:3002", TLS: true},
	})
}

func newBackend(t *testing.T, name string) *mocks.MockCertificateBackend {
	b := mocks.NewMockCertificateBackend(t)
	b.On("Name").Return(name).Maybe()
	return b
}

func TestService_Provision_SkipsExisting(t *testing.T) {
	store := mocks.NewMockConfigStore(t)
	mkcert := newBackend(t, BackendMkcert)

	store.On("Exists", mock.Anything, mock.Anything).Return(true, nil)

	svc := NewService(store, Config{CertDir: "ssl"}, mkcert)
	records, err := svc.Provision(context.Background(), tlsSites())

	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.True(t, r.Existed)
		assert.Empty(t, r.Backend)
	}
	assert.Equal(t, filepath.Join("ssl", "app.local.key"), records[0].KeyPath)
	assert.Equal(t, filepath.Join("ssl", "app.local.crt"), records[0].CertPath)
	mkcert.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mkcert.AssertNotCalled(t, "Prepare", mock.Anything)
}

func TestService_Provision_GeneratesWithMkcertWhenAvailable(t *testing.T) {
	store := mocks.NewMockConfigStore(t)
	mkcert := newBackend(t, BackendMkcert)
	selfSigned := newBackend(t, BackendSelfSigned)

	generated := map[string]bool{}
	store.On("Exists", mock.Anything, mock.Anything).Return(func(_ context.Context, path string) bool {
		return generated[path]
	}, nil)

	mkcert.On("Available", mock.Anything).Return(true).Once()
	mkcert.On("Prepare", mock.Anything).Return(nil).Once()
	mkcert.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			generated[args.String(2)] = true
			generated[args.String(3)] = true
		}).
		Return(nil).Twice()

	svc := NewService(store, Config{CertDir: "ssl", Backend: BackendAuto}, mkcert, selfSigned)
	records, err := svc.Provision(context.Background(), tlsSites())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "app.local", records[0].Domain)
	assert.Equal(t, "api.local", records[1].Domain)
	assert.Equal(t, BackendMkcert, records[0].Backend)
	assert.False(t, records[0].Existed)
	selfSigned.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Provision_Idempotent(t *testing.T) {
	store := mocks.NewMockConfigStore(t)
	backend := newBackend(t, BackendSelfSigned)

	generated := map[string]bool{}
	store.On("Exists", mock.Anything, mock.Anything).Return(func(_ context.Context, path string) bool {
		return generated[path]
	}, nil)
	backend.On("Available", mock.Anything).Return(true).Once()
	backend.On("Prepare", mock.Anything).Return(nil).Once()
	backend.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			generated[args.String(2)] = true
			generated[args.String(3)] = true
		}).
		Return(nil).Twice()

	svc := NewService(store, Config{CertDir: "ssl", Backend: BackendSelfSigned}, backend)

	_, err := svc.Provision(context.Background(), tlsSites())
	require.NoError(t, err)

	records, err := svc.Provision(context.Background(), tlsSites())
	require.NoError(t, err)
	for _, r := range records {
		assert.True(t, r.Existed)
	}
	backend.AssertNumberOfCalls(t, "Generate", 2)
}

func TestService_Provision_AutoFallsBackToSelfSigned(t *testing.T) {
	store := mocks.NewMockConfigStore(t)
	mkcert := newBackend(t, BackendMkcert)
	selfSigned := newBackend(t, BackendSelfSigned)

	generated := map[string]bool{}
	store.On("Exists", mock.Anything, mock.Anything).Return(func(_ context.Context, path string) bool {
		return generated[path]
	}, nil)
	mkcert.On("Available", mock.Anything).Return(false).Once()
	selfSigned.On("Prepare", mock.Anything).Return(nil).Once()
	selfSigned.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			generated[args.String(2)] = true
			generated[args.String(3)] = true
		}).
		Return(nil)

	svc := NewService(store, Config{CertDir: "ssl"}, mkcert, selfSigned)
	records, err := svc.Provision(context.Background(), tlsSites())

	require.NoError(t, err)
	assert.Equal(t, BackendSelfSigned, records[0].Backend)
}

func TestService_Provision_FailureNamesDomainWithoutFallback(t *testing.T) {
	store := mocks.NewMockConfigStore(t)
	mkcert := newBackend(t, BackendMkcert)
	selfSigned := newBackend(t, BackendSelfSigned)

	store.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	mkcert.On("Available", mock.Anything).Return(true).Once()
	mkcert.On("Prepare", mock.Anything).Return(nil).Once()
	mkcert.On("Generate", mock.Anything, "app.local", mock.Anything, mock.Anything).
		Return(errors.New("mkcert exited with status 1")).Once()

	svc := NewService(store, Config{CertDir: "ssl"}, mkcert, selfSigned)
	_, err := svc.Provision(context.Background(), tlsSites())

	require.Error(t, err)
	var stageErr *domain.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, domain.KindProvisioning, stageErr.Kind)
	assert.Equal(t, "app.local", stageErr.Entity)
	assert.True(t, stageErr.Fatal())
	selfSigned.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Provision_MissingFilesAfterGenerate(t *testing.T) {
	store := mocks.NewMockConfigStore(t)
	backend := newBackend(t, BackendSelfSigned)

	store.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	backend.On("Available", mock.Anything).Return(true).Once()
	backend.On("Prepare", mock.Anything).Return(nil).Once()
	backend.On("Generate", mock.Anything, "app.local", mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewService(store, Config{CertDir: "ssl", Backend: BackendSelfSigned}, backend)
	_, err := svc.Provision(context.Background(), tlsSites())

	assert.ErrorIs(t, err, domain.ErrCertFilesMissing)
}

func TestService_Provision_ExplicitMkcertUnavailable(t *testing.T) {
	store := mocks.NewMockConfigStore(t)
	mkcert := newBackend(t, BackendMkcert)

	store.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	mkcert.On("Available", mock.Anything).Return(false).Once()

	svc := NewService(store, Config{CertDir: "ssl", Backend: BackendMkcert}, mkcert)
	_, err := svc.Provision(context.Background(), tlsSites())

	assert.ErrorIs(t, err, domain.ErrCertBackendUnavailable)
}

func TestService_Provision_NoTLSSites(t *testing.T) {
	store := mocks.NewMockConfigStore(t)
	svc := NewService(store, Config{CertDir: "ssl"})

	records, err := svc.Provision(context.Background(), domain.NewSiteList([]domain.Site{
		{Domain: "plain.local", Upstream: "http://localhost:1"},
	}))

	require.NoError(t, err)
	assert.Empty(t, records)
}
