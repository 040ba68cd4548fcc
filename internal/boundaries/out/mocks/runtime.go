// Package mocks provides testify mocks for the output ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/localroute/localroute/internal/domain"
)

// MockServiceRuntime is a mock implementation of out.ServiceRuntime.
type MockServiceRuntime struct {
	mock.Mock
}

// NewMockServiceRuntime creates a mock that asserts its expectations on cleanup.
func NewMockServiceRuntime(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockServiceRuntime {
	m := &MockServiceRuntime{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockServiceRuntime) EnsureNetwork(ctx context.Context, spec domain.NetworkSpec) error {
	args := m.Called(ctx, spec)
	return args.Error(0)
}

func (m *MockServiceRuntime) RemoveNetwork(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockServiceRuntime) StartService(ctx context.Context, spec domain.ServiceSpec) error {
	args := m.Called(ctx, spec)
	return args.Error(0)
}

func (m *MockServiceRuntime) StopService(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockServiceRuntime) RemoveService(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockServiceRuntime) IsServiceRunning(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}
