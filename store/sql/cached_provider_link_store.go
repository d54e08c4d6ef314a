package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-bankfeed/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const providerLinkCacheKeyPrefix = "go-bankfeed::provider_link::v1"

// CachedProviderLinkStore wraps the SQL store with read-through caching
// on single-link lookups. Writes invalidate; list reads stay on SQL.
type CachedProviderLinkStore struct {
	base  core.ProviderLinkStore
	cache repositorycache.CacheService
}

func NewCachedProviderLinkStore(
	base core.ProviderLinkStore,
	cacheService repositorycache.CacheService,
) (*CachedProviderLinkStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base provider link store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: provider link cache service is required")
	}
	return &CachedProviderLinkStore{base: base, cache: cacheService}, nil
}

// ProviderLinkCacheKey returns the deterministic cache key contract for
// provider-link reads: go-bankfeed::provider_link::v1::<link_id> with
// the id segment URL-path escaped.
func ProviderLinkCacheKey(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: provider link id is required")
	}
	return strings.Join([]string{providerLinkCacheKeyPrefix, url.PathEscape(trimmed)}, "::"), nil
}

func (s *CachedProviderLinkStore) Create(ctx context.Context, in core.CreateProviderLinkInput) (core.ProviderLink, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: cached provider link store is not configured")
	}
	return s.base.Create(ctx, in)
}

func (s *CachedProviderLinkStore) Get(ctx context.Context, id string) (core.ProviderLink, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: cached provider link store is not configured")
	}
	// Transactional reads bypass the cache so in-flight writes stay
	// invisible to other callers until commit.
	if _, ok := txFromContext(ctx); ok {
		return s.base.Get(ctx, id)
	}
	cacheKey, err := ProviderLinkCacheKey(id)
	if err != nil {
		return core.ProviderLink{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.ProviderLink, error) {
		return s.base.Get(ctx, id)
	})
}

func (s *CachedProviderLinkStore) ListByUser(ctx context.Context, userID string) ([]core.ProviderLink, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached provider link store is not configured")
	}
	return s.base.ListByUser(ctx, userID)
}

func (s *CachedProviderLinkStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached provider link store is not configured")
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	cacheKey, err := ProviderLinkCacheKey(id)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.ProviderLinkStore = (*CachedProviderLinkStore)(nil)
