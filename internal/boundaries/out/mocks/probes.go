package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockDNSLookup is a mock implementation of out.DNSLookup.
type MockDNSLookup struct {
	mock.Mock
}

// NewMockDNSLookup creates a mock that asserts its expectations on cleanup.
func NewMockDNSLookup(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockDNSLookup {
	m := &MockDNSLookup{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDNSLookup) LookupA(ctx context.Context, server, domain string) ([]string, error) {
	args := m.Called(ctx, server, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockHTTPProber is a mock implementation of out.HTTPProber.
type MockHTTPProber struct {
	mock.Mock
}

// NewMockHTTPProber creates a mock that asserts its expectations on cleanup.
func NewMockHTTPProber(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockHTTPProber {
	m := &MockHTTPProber{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockHTTPProber) Probe(ctx context.Context, url, host string) (int, int64, error) {
	args := m.Called(ctx, url, host)
	return args.Int(0), args.Get(1).(int64), args.Error(2)
}
