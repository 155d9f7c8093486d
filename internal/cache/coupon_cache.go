package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shopcore/coupon-service/internal/models"
)

// CouponCache is a TTL read cache for coupon metadata keyed by code. Entries
// age out on their own; admin writes invalidate explicitly.
type CouponCache struct {
	store *gocache.Cache
}

func New(ttl time.Duration) *CouponCache {
	return &CouponCache{store: gocache.New(ttl, 2*ttl)}
}

func (c *CouponCache) Get(code string) (*models.CouponMeta, bool) {
	v, ok := c.store.Get(code)
	if !ok {
		return nil, false
	}
	return v.(*models.CouponMeta), true
}

func (c *CouponCache) Set(code string, meta *models.CouponMeta) {
	c.store.SetDefault(code, meta)
}

func (c *CouponCache) Delete(code string) {
	c.store.Delete(code)
}

// CouponFinder is the store being cached.
type CouponFinder interface {
	FindByCode(ctx context.Context, code string) (*models.CouponMeta, error)
	ListActiveCodes(ctx context.Context) ([]string, error)
}

// CachingCouponStore decorates a CouponFinder with the TTL cache. Misses and
// errors pass through; only found coupons are cached.
type CachingCouponStore struct {
	inner CouponFinder
	cache *CouponCache
}

func NewCachingCouponStore(inner CouponFinder, cache *CouponCache) *CachingCouponStore {
	return &CachingCouponStore{inner: inner, cache: cache}
}

func (s *CachingCouponStore) FindByCode(ctx context.Context, code string) (*models.CouponMeta, error) {
	if meta, ok := s.cache.Get(code); ok {
		return meta, nil
	}
	meta, err := s.inner.FindByCode(ctx, code)
	if err != nil || meta == nil {
		return meta, err
	}
	s.cache.Set(code, meta)
	return meta, nil
}

// ListActiveCodes always hits the store; the listing changes with every
// admin write and is cheap relative to the per-code lookups it fans into.
func (s *CachingCouponStore) ListActiveCodes(ctx context.Context) ([]string, error) {
	return s.inner.ListActiveCodes(ctx)
}
