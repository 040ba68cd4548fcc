package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/localroute/localroute/internal/boundaries/out/mocks"
	"github.com/localroute/localroute/internal/domain"
)

const serviceAddr = "172.20.0.2"

func testConfig() Config {
	return Config{
		DNSServer:    "127.0.0.1:53",
		Address:      serviceAddr,
		CheckTimeout: time.Second,
		StageTimeout: 5 * time.Second,
		Concurrency:  2,
	}
}

func TestService_Verify_AllPass(t *testing.T) {
	dns := mocks.NewMockDNSLookup(t)
	prober := mocks.NewMockHTTPProber(t)

	sites := domain.NewSiteList([]domain.Site{
		{Domain: "app.local", Upstream: "http://127.0.0.1:8080", DNSOverride: true},
		{Domain: "secure.local", Upstream: "http://127.0.0.1:9090", TLS: true},
	})

	dns.On("LookupA", mock.Anything, "127.0.0.1:53", "app.local").Return([]string{serviceAddr}, nil)
	prober.On("Probe", mock.Anything, "http://172.20.0.2/", "app.local").Return(200, int64(3), nil)
	prober.On("Probe", mock.Anything, "https://172.20.0.2/", "secure.local").Return(301, int64(4), nil)

	report := NewService(dns, prober, testConfig()).Verify(context.Background(), sites)

	require.Len(t, report.Checks, 2)
	assert.True(t, report.Passed())

	app := report.Checks[0]
	assert.Equal(t, "app.local", app.Domain)
	require.NotNil(t, app.DNS)
	assert.Equal(t, serviceAddr, app.DNS.Answer)
	assert.Equal(t, 200, app.HTTP.Status)
	assert.Equal(t, "app.local", app.HTTP.Host)

	secure := report.Checks[1]
	assert.Nil(t, secure.DNS, "no dns check without override")
	assert.Equal(t, "https://172.20.0.2/", secure.HTTP.URL)
	assert.Equal(t, int64(4), secure.HTTP.ElapsedMs)
}

func TestService_Verify_FailuresAreIsolatedPerSite(t *testing.T) {
	dns := mocks.NewMockDNSLookup(t)
	prober := mocks.NewMockHTTPProber(t)

	sites := domain.NewSiteList([]domain.Site{
		{Domain: "wrong.local", Upstream: "http://127.0.0.1:1", DNSOverride: true},
		{Domain: "down.local", Upstream: "http://127.0.0.1:2"},
		{Domain: "ok.local", Upstream: "http://127.0.0.1:3", DNSOverride: true},
		{Domain: "broken.local", Upstream: "http://127.0.0.1:4"},
	})

	dns.On("LookupA", mock.Anything, mock.Anything, "wrong.local").Return([]string{"10.0.0.9", serviceAddr}, nil)
	dns.On("LookupA", mock.Anything, mock.Anything, "ok.local").Return([]string{serviceAddr}, nil)
	prober.On("Probe", mock.Anything, mock.Anything, "wrong.local").Return(200, int64(1), nil)
	prober.On("Probe", mock.Anything, mock.Anything, "down.local").Return(0, int64(1), errors.New("connection refused"))
	prober.On("Probe", mock.Anything, mock.Anything, "ok.local").Return(404, int64(1), nil)
	prober.On("Probe", mock.Anything, mock.Anything, "broken.local").Return(502, int64(1), nil)

	report := NewService(dns, prober, testConfig()).Verify(context.Background(), sites)
	require.Len(t, report.Checks, 4)

	wrong := report.Checks[0]
	assert.False(t, wrong.Passed())
	assert.False(t, wrong.DNS.Passed)
	assert.Equal(t, "10.0.0.9", wrong.DNS.Answer)
	assert.Contains(t, wrong.DNS.Err, "expected 172.20.0.2")
	assert.True(t, wrong.HTTP.Passed)

	down := report.Checks[1]
	assert.False(t, down.Passed())
	assert.Equal(t, "connection refused", down.HTTP.Err)
	assert.False(t, down.HTTP.TimedOut)

	assert.True(t, report.Checks[2].Passed(), "a 404 from the upstream is still a reachable site")

	broken := report.Checks[3]
	assert.False(t, broken.Passed())
	assert.Equal(t, 502, broken.HTTP.Status)

	failed := report.Failed()
	require.Len(t, failed, 3)
	assert.Equal(t, []string{"wrong.local", "down.local", "broken.local"},
		[]string{failed[0].Domain, failed[1].Domain, failed[2].Domain})
}

func TestService_Verify_DNSErrorAndEmptyAnswer(t *testing.T) {
	dns := mocks.NewMockDNSLookup(t)
	prober := mocks.NewMockHTTPProber(t)

	sites := domain.NewSiteList([]domain.Site{
		{Domain: "a.local", Upstream: "http://127.0.0.1:1", DNSOverride: true},
		{Domain: "b.local", Upstream: "http://127.0.0.1:2", DNSOverride: true},
	})

	dns.On("LookupA", mock.Anything, mock.Anything, "a.local").Return(nil, context.DeadlineExceeded)
	dns.On("LookupA", mock.Anything, mock.Anything, "b.local").Return([]string{}, nil)
	prober.On("Probe", mock.Anything, mock.Anything, mock.Anything).Return(200, int64(1), nil)

	report := NewService(dns, prober, testConfig()).Verify(context.Background(), sites)

	assert.True(t, report.Checks[0].DNS.TimedOut)
	assert.False(t, report.Checks[0].DNS.Passed)
	assert.Equal(t, "no A records returned", report.Checks[1].DNS.Err)
}

// orderedProber answers sites after per-host delays so completion order differs from site order.
type orderedProber struct {
	delays map[string]time.Duration
	status map[string]int
}

func (p *orderedProber) Probe(ctx context.Context, url, host string) (int, int64, error) {
	select {
	case <-time.After(p.delays[host]):
		return p.status[host], p.delays[host].Milliseconds(), nil
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

type noDNS struct{}

func (noDNS) LookupA(context.Context, string, string) ([]string, error) {
	return nil, errors.New("unexpected lookup")
}

func TestService_Verify_AttributesResultsRegardlessOfCompletionOrder(t *testing.T) {
	prober := &orderedProber{
		delays: map[string]time.Duration{
			"first.local":  120 * time.Millisecond,
			"second.local": 60 * time.Millisecond,
			"third.local":  0,
		},
		status: map[string]int{"first.local": 201, "second.local": 202, "third.local": 203},
	}
	sites := domain.NewSiteList([]domain.Site{
		{Domain: "first.local", Upstream: "http://127.0.0.1:1"},
		{Domain: "second.local", Upstream: "http://127.0.0.1:2"},
		{Domain: "third.local", Upstream: "http://127.0.0.1:3"},
	})

	cfg := testConfig()
	cfg.Concurrency = 3
	report := NewService(noDNS{}, prober, cfg).Verify(context.Background(), sites)

	require.Len(t, report.Checks, 3)
	for i, want := range []struct {
		domain string
		status int
	}{{"first.local", 201}, {"second.local", 202}, {"third.local", 203}} {
		assert.Equal(t, want.domain, report.Checks[i].Domain)
		assert.Equal(t, want.status, report.Checks[i].HTTP.Status)
	}
}

func TestService_Verify_StageTimeoutMarksOutstandingChecks(t *testing.T) {
	prober := &orderedProber{
		delays: map[string]time.Duration{
			"fast.local": 0,
			"slow.local": time.Hour,
		},
		status: map[string]int{"fast.local": 200},
	}
	sites := domain.NewSiteList([]domain.Site{
		{Domain: "fast.local", Upstream: "http://127.0.0.1:1"},
		{Domain: "slow.local", Upstream: "http://127.0.0.1:2"},
	})

	cfg := testConfig()
	cfg.CheckTimeout = time.Hour
	cfg.StageTimeout = 100 * time.Millisecond

	start := time.Now()
	report := NewService(noDNS{}, prober, cfg).Verify(context.Background(), sites)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, report.Checks, 2)
	assert.True(t, report.Checks[0].Passed())

	slow := report.Checks[1]
	assert.Equal(t, "slow.local", slow.Domain)
	assert.False(t, slow.Passed())
	assert.True(t, slow.HTTP.TimedOut)
}

func TestService_Verify_Empty(t *testing.T) {
	report := NewService(noDNS{}, &orderedProber{}, testConfig()).Verify(context.Background(), domain.NewSiteList(nil))
	assert.Empty(t, report.Checks)
	assert.True(t, report.Passed())
}

func TestNewService_Defaults(t *testing.T) {
	s := NewService(noDNS{}, &orderedProber{}, Config{Address: serviceAddr})
	assert.Equal(t, DefaultDNSServer, s.config.DNSServer)
	assert.Equal(t, DefaultCheckTimeout, s.config.CheckTimeout)
	assert.Equal(t, DefaultStageTimeout, s.config.StageTimeout)
	assert.Equal(t, DefaultConcurrency, s.config.Concurrency)
}

// trackingProber blocks each call briefly and records the peak number of
// calls in flight at once.
type trackingProber struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	hold     time.Duration
	status   map[string]int
}

func (p *trackingProber) Probe(ctx context.Context, url, host string) (int, int64, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	select {
	case <-time.After(p.hold):
		return p.status[host], p.hold.Milliseconds(), nil
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

func TestService_Verify_FanOutRespectsConcurrency(t *testing.T) {
	const limit = 3

	var list []domain.Site
	prober := &trackingProber{hold: 40 * time.Millisecond, status: map[string]int{}}
	for i := range 9 {
		name := fmt.Sprintf("site%d.local", i)
		list = append(list, domain.Site{Domain: name, Upstream: fmt.Sprintf("http://127.0.0.1:%d", 3000+i)})
		prober.status[name] = 200 + i
	}

	cfg := testConfig()
	cfg.Concurrency = limit
	report := NewService(noDNS{}, prober, cfg).Verify(context.Background(), domain.NewSiteList(list))

	prober.mu.Lock()
	peak := prober.peak
	prober.mu.Unlock()

	assert.LessOrEqual(t, peak, limit)
	assert.GreaterOrEqual(t, peak, 2, "checks should overlap")

	require.Len(t, report.Checks, len(list))
	for i, check := range report.Checks {
		assert.Equal(t, list[i].Domain, check.Domain)
		assert.Equal(t, 200+i, check.HTTP.Status)
		assert.True(t, check.Passed())
	}
}
