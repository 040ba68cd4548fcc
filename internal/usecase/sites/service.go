// Package sites implements the site registry use case: parsing and
// validating the declared site list into an immutable snapshot.
package sites

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Service implements the SiteRegistry interface.
type Service struct{}

// NewService creates a new site registry.
func NewService() *Service {
	return &Service{}
}

// Load parses raw in either encoding and returns a validated snapshot.
// It stops at the first invalid site.
func (s *Service) Load(ctx context.Context, raw []byte) (domain.SiteList, error) {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "LoadSites",
	})
	log := logging.FromCtx(ctx)

	var (
		entries []rawSite
		err     error
		format  = "document"
	)
	if isLegacy(raw) {
		format = "legacy"
		entries, err = parseLegacy(raw)
	} else {
		entries, err = parseDocument(raw)
	}
	if err != nil {
		log.Debug().Err(err).Str("format", format).Msg("site list could not be parsed")
		return domain.SiteList{}, err
	}

	sites := make([]domain.Site, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		site, err := validate(i, entry)
		if err != nil {
			log.Debug().Err(err).Int("position", i+1).Msg("site rejected")
			return domain.SiteList{}, err
		}
		if _, dup := seen[site.Domain]; dup {
			return domain.SiteList{}, &domain.ValidationError{
				Domain: site.Domain,
				Field:  keyDomain,
				Reason: "declared more than once",
				Err:    domain.ErrSiteDuplicate,
			}
		}
		seen[site.Domain] = struct{}{}
		sites = append(sites, site)
	}

	log.Debug().Str("format", format).Int("count", len(sites)).Msg("site list loaded")
	return domain.NewSiteList(sites), nil
}

// LoadFile reads and parses the site list at path.
func (s *Service) LoadFile(ctx context.Context, path string) (domain.SiteList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.SiteList{}, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return domain.SiteList{}, fmt.Errorf("failed to read site list: %w", err)
	}
	return s.Load(ctx, raw)
}
