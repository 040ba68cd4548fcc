package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockConfigStore is a mock implementation of out.ConfigStore.
type MockConfigStore struct {
	mock.Mock
}

// NewMockConfigStore creates a mock that asserts its expectations on cleanup.
func NewMockConfigStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockConfigStore {
	m := &MockConfigStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockConfigStore) EnsureDir(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockConfigStore) WriteFile(ctx context.Context, path string, data []byte) error {
	args := m.Called(ctx, path, data)
	return args.Error(0)
}

func (m *MockConfigStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockConfigStore) Exists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	if fn, ok := args.Get(0).(func(context.Context, string) bool); ok {
		return fn(ctx, path), args.Error(1)
	}
	return args.Bool(0), args.Error(1)
}

func (m *MockConfigStore) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}
