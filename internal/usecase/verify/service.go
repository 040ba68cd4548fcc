// Package verify implements the verification use case: per-site DNS and
// HTTP(S) checks against the local proxy and resolver.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localroute/localroute/internal/boundaries/out"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Defaults for Config.
const (
	DefaultDNSServer    = "127.0.0.1:53"
	DefaultCheckTimeout = 5 * time.Second
	DefaultStageTimeout = 30 * time.Second
	DefaultConcurrency  = 4
)

const stageTimeoutReason = "verification stage timed out"

// Config holds the verification settings.
type Config struct {
	DNSServer    string
	Address      string // fixed service address every override resolves to
	CheckTimeout time.Duration
	StageTimeout time.Duration
	Concurrency  int
}

// Service implements the VerificationService interface.
type Service struct {
	dns    out.DNSLookup
	prober out.HTTPProber
	config Config
}

// NewService creates a new verification service.
func NewService(dns out.DNSLookup, prober out.HTTPProber, config Config) *Service {
	if config.DNSServer == "" {
		config.DNSServer = DefaultDNSServer
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = DefaultCheckTimeout
	}
	if config.StageTimeout <= 0 {
		config.StageTimeout = DefaultStageTimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &Service{
		dns:    dns,
		prober: prober,
		config: config,
	}
}

type indexedCheck struct {
	index int
	check domain.SiteCheck
}

// Verify checks every site and returns one SiteCheck per site, in site order.
// Checks still running when the stage deadline passes are reported as timed out.
func (s *Service) Verify(ctx context.Context, sites domain.SiteList) domain.VerificationReport {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "VerifySites",
		"sites":              sites.Len(),
	})
	log := logging.FromCtx(ctx)
	start := time.Now()

	checks := make([]domain.SiteCheck, sites.Len())
	for i, site := range sites.Sites() {
		checks[i] = s.pending(site)
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.config.StageTimeout)
	defer cancel()

	results := make(chan indexedCheck, sites.Len())
	go func() {
		g, gctx := errgroup.WithContext(stageCtx)
		g.SetLimit(s.config.Concurrency)
		for i, site := range sites.Sites() {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				results <- indexedCheck{index: i, check: s.checkSite(gctx, site)}
				return nil
			})
		}
		_ = g.Wait()
	}()

	finished := make([]bool, sites.Len())
	for received := 0; received < sites.Len(); {
		select {
		case r := <-results:
			checks[r.index] = r.check
			finished[r.index] = true
			received++
		case <-stageCtx.Done():
			received = sites.Len()
		}
	}

	for i := range checks {
		if !finished[i] {
			markTimedOut(&checks[i])
			log.Warn().Str(logging.FieldDomain, checks[i].Domain).Msg(stageTimeoutReason)
		}
	}

	report := domain.VerificationReport{Checks: checks, Duration: time.Since(start)}
	log.Info().
		Int("failed", len(report.Failed())).
		Dur(logging.FieldDuration, report.Duration).
		Msg("verification finished")
	return report
}

// pending returns the check skeleton for site before any probe has run.
func (s *Service) pending(site domain.Site) domain.SiteCheck {
	c := domain.SiteCheck{
		Domain: site.Domain,
		HTTP: domain.HTTPCheck{
			URL:  s.url(site),
			Host: site.Domain,
		},
	}
	if site.DNSOverride {
		c.DNS = &domain.DNSCheck{Expected: s.config.Address}
	}
	return c
}

func (s *Service) url(site domain.Site) string {
	scheme := "http"
	if site.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, s.config.Address)
}

func (s *Service) checkSite(ctx context.Context, site domain.Site) domain.SiteCheck {
	c := s.pending(site)
	log := logging.FromCtx(ctx).With().Str(logging.FieldDomain, site.Domain).Logger()

	if c.DNS != nil {
		s.checkDNS(ctx, site, c.DNS)
		if c.DNS.Passed {
			log.Debug().Str("answer", c.DNS.Answer).Msg("dns check passed")
		} else {
			log.Warn().Str("answer", c.DNS.Answer).Str("error", c.DNS.Err).Msg("dns check failed")
		}
	}

	s.checkHTTP(ctx, site, &c.HTTP)
	if c.HTTP.Passed {
		log.Debug().Int("status", c.HTTP.Status).Msg("http check passed")
	} else {
		log.Warn().Int("status", c.HTTP.Status).Str("error", c.HTTP.Err).Msg("http check failed")
	}
	return c
}

func (s *Service) checkDNS(ctx context.Context, site domain.Site, c *domain.DNSCheck) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()

	answers, err := s.dns.LookupA(ctx, s.config.DNSServer, site.Domain)
	if err != nil {
		c.Err = err.Error()
		c.TimedOut = isTimeout(ctx, err)
		return
	}
	if len(answers) == 0 {
		c.Err = "no A records returned"
		return
	}

	c.Answer = answers[0]
	if c.Answer != c.Expected {
		c.Err = fmt.Sprintf("resolved to %s, expected %s", c.Answer, c.Expected)
		return
	}
	c.Passed = true
}

func (s *Service) checkHTTP(ctx context.Context, site domain.Site, c *domain.HTTPCheck) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()

	status, elapsed, err := s.prober.Probe(ctx, c.URL, site.Domain)
	c.Status = status
	c.ElapsedMs = elapsed
	if err != nil {
		c.Err = err.Error()
		c.TimedOut = isTimeout(ctx, err)
		return
	}
	if status >= http.StatusInternalServerError {
		c.Err = fmt.Sprintf("proxy answered %d", status)
		return
	}
	c.Passed = true
}

func markTimedOut(c *domain.SiteCheck) {
	if c.DNS != nil && !c.DNS.Passed && c.DNS.Err == "" {
		c.DNS.TimedOut = true
		c.DNS.Err = stageTimeoutReason
	}
	if !c.HTTP.Passed && c.HTTP.Err == "" {
		c.HTTP.TimedOut = true
		c.HTTP.Err = stageTimeoutReason
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
