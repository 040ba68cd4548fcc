package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCertificateBackend is a mock implementation of out.CertificateBackend.
type MockCertificateBackend struct {
	mock.Mock
}

// NewMockCertificateBackend creates a mock that asserts its expectations on cleanup.
func NewMockCertificateBackend(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCertificateBackend {
	m := &MockCertificateBackend{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCertificateBackend) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCertificateBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockCertificateBackend) Prepare(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCertificateBackend) Generate(ctx context.Context, domain, keyPath, certPath string) error {
	args := m.Called(ctx, domain, keyPath, certPath)
	return args.Error(0)
}
