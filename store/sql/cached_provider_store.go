package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-leads/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const providerCacheKeyPrefix = "go-leads::provider::v1"

// CachedProviderStore wraps a ProviderStore with read-through caching for
// the two hot lookups on the inbound SMS path. Requeue candidate listing is
// never cached since it depends on unlock rows that change under it.
type CachedProviderStore struct {
	base  core.ProviderStore
	cache repositorycache.CacheService
}

func NewCachedProviderStore(
	base core.ProviderStore,
	cacheService repositorycache.CacheService,
) (*CachedProviderStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base provider store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: provider cache service is required")
	}
	return &CachedProviderStore{base: base, cache: cacheService}, nil
}

// ProviderCacheKey returns the deterministic cache key contract for provider
// reads: go-leads::provider::v1::<kind>::<value> with each segment URL-path
// escaped.
func ProviderCacheKey(kind string, value string) string {
	segments := []string{url.PathEscape(kind), url.PathEscape(value)}
	return strings.Join(append([]string{providerCacheKeyPrefix}, segments...), "::")
}

func (s *CachedProviderStore) Get(ctx context.Context, providerID string) (core.Provider, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Provider{}, fmt.Errorf("sqlstore: cached provider store is not configured")
	}
	cacheKey := ProviderCacheKey("id", strings.TrimSpace(providerID))
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Provider, error) {
		return s.base.Get(ctx, providerID)
	})
}

func (s *CachedProviderStore) GetByPhone(ctx context.Context, phone string) (core.Provider, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Provider{}, fmt.Errorf("sqlstore: cached provider store is not configured")
	}
	canonical := phone
	if normalized, err := core.NormalizePhone(phone); err == nil {
		canonical = normalized
	}
	cacheKey := ProviderCacheKey("phone", canonical)
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Provider, error) {
		return s.base.GetByPhone(ctx, phone)
	})
}

func (s *CachedProviderStore) ListRequeueCandidates(ctx context.Context, leadID string) ([]core.Provider, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached provider store is not configured")
	}
	return s.base.ListRequeueCandidates(ctx, leadID)
}

// Invalidate drops both cached entries for the provider after an upstream
// profile change.
func (s *CachedProviderStore) Invalidate(ctx context.Context, provider core.Provider) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached provider store is not configured")
	}
	keys := []string{ProviderCacheKey("id", strings.TrimSpace(provider.ID))}
	if provider.Phone != "" {
		canonical := provider.Phone
		if normalized, err := core.NormalizePhone(provider.Phone); err == nil {
			canonical = normalized
		}
		keys = append(keys, ProviderCacheKey("phone", canonical))
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var _ core.ProviderStore = (*CachedProviderStore)(nil)
