// Package mocks provides testify mocks for the input ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/localroute/localroute/internal/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockSiteRegistry is a mock implementation of in.SiteRegistry.
type MockSiteRegistry struct {
	mock.Mock
}

func NewMockSiteRegistry(t testingT) *MockSiteRegistry {
	m := &MockSiteRegistry{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSiteRegistry) Load(ctx context.Context, raw []byte) (domain.SiteList, error) {
	args := m.Called(ctx, raw)
	return args.Get(0).(domain.SiteList), args.Error(1)
}

func (m *MockSiteRegistry) LoadFile(ctx context.Context, path string) (domain.SiteList, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(domain.SiteList), args.Error(1)
}

// MockConfigRenderer is a mock implementation of in.ConfigRenderer.
type MockConfigRenderer struct {
	mock.Mock
}

func NewMockConfigRenderer(t testingT) *MockConfigRenderer {
	m := &MockConfigRenderer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockConfigRenderer) Render(sites domain.SiteList) (domain.RenderedConfig, error) {
	args := m.Called(sites)
	return args.Get(0).(domain.RenderedConfig), args.Error(1)
}

// MockCertificateProvisioner is a mock implementation of in.CertificateProvisioner.
type MockCertificateProvisioner struct {
	mock.Mock
}

func NewMockCertificateProvisioner(t testingT) *MockCertificateProvisioner {
	m := &MockCertificateProvisioner{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCertificateProvisioner) Provision(ctx context.Context, sites domain.SiteList) ([]domain.CertificateRecord, error) {
	args := m.Called(ctx, sites)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CertificateRecord), args.Error(1)
}

// MockResolverService is a mock implementation of in.ResolverService.
type MockResolverService struct {
	mock.Mock
}

func NewMockResolverService(t testingT) *MockResolverService {
	m := &MockResolverService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResolverService) Point(ctx context.Context, addr string) error {
	args := m.Called(ctx, addr)
	return args.Error(0)
}

func (m *MockResolverService) Restore(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockResolverService) ReleasePort(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockLifecycleService is a mock implementation of in.LifecycleService.
type MockLifecycleService struct {
	mock.Mock
}

func NewMockLifecycleService(t testingT) *MockLifecycleService {
	m := &MockLifecycleService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLifecycleService) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLifecycleService) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLifecycleService) Restart(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLifecycleService) Down(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLifecycleService) WaitReady(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockVerificationService is a mock implementation of in.VerificationService.
type MockVerificationService struct {
	mock.Mock
}

func NewMockVerificationService(t testingT) *MockVerificationService {
	m := &MockVerificationService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockVerificationService) Verify(ctx context.Context, sites domain.SiteList) domain.VerificationReport {
	args := m.Called(ctx, sites)
	return args.Get(0).(domain.VerificationReport)
}

// MockOrchestrator is a mock implementation of in.Orchestrator.
type MockOrchestrator struct {
	mock.Mock
}

func NewMockOrchestrator(t testingT) *MockOrchestrator {
	m := &MockOrchestrator{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOrchestrator) Setup(ctx context.Context) (*domain.RunResult, error) {
	args := m.Called(ctx)
	return runResult(args.Get(0)), args.Error(1)
}

func (m *MockOrchestrator) Refresh(ctx context.Context) (*domain.RunResult, error) {
	args := m.Called(ctx)
	return runResult(args.Get(0)), args.Error(1)
}

func (m *MockOrchestrator) Clean(ctx context.Context, restoreDNS bool) (*domain.RunResult, error) {
	args := m.Called(ctx, restoreDNS)
	return runResult(args.Get(0)), args.Error(1)
}

func runResult(v any) *domain.RunResult {
	if v == nil {
		return nil
	}
	return v.(*domain.RunResult)
}
