package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockResolverStore is a mock implementation of out.ResolverStore.
type MockResolverStore struct {
	mock.Mock
}

// NewMockResolverStore creates a mock that asserts its expectations on cleanup.
func NewMockResolverStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockResolverStore {
	m := &MockResolverStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResolverStore) Read(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockResolverStore) Write(ctx context.Context, data []byte) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *MockResolverStore) Exists(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockResolverStore) BackupExists(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockResolverStore) Backup(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockResolverStore) Restore(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockPortReleaser is a mock implementation of out.PortReleaser.
type MockPortReleaser struct {
	mock.Mock
}

// NewMockPortReleaser creates a mock that asserts its expectations on cleanup.
func NewMockPortReleaser(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPortReleaser {
	m := &MockPortReleaser{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPortReleaser) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
