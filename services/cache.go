package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Valeamar/tidal2025/models"
	"github.com/Valeamar/tidal2025/utils"

	"golang.org/x/sync/singleflight"
)

// ============================================================================
// CACHE KEYS
// ============================================================================

// QuoteCacheKey hashes product name and location into a stable cache key.
func QuoteCacheKey(productName string, location models.FarmLocation) string {
	raw := strings.ToLower(strings.TrimSpace(productName)) + "_" + location.Key()
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DefaultComputeTimeout bounds a shared lookup once it is detached from the
// caller that started it.
const DefaultComputeTimeout = 30 * time.Second

// flightContext keeps the caller's values but not its cancellation, so one
// caller giving up does not fail the others waiting on the same flight.
func flightContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultComputeTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// ============================================================================
// IN-MEMORY CACHE
// ============================================================================

type memoryEntry struct {
	quotes    []models.PriceQuote
	expiresAt time.Time
}

// MemoryQuoteCache is a process-local TTL cache with one in-flight compute
// per key. Errors and empty results are not cached.
type MemoryQuoteCache struct {
	ttl            time.Duration
	computeTimeout time.Duration
	now            func() time.Time
	mu             sync.RWMutex
	entries        map[string]memoryEntry
	group          singleflight.Group
}

func NewMemoryQuoteCache(ttl time.Duration) *MemoryQuoteCache {
	return &MemoryQuoteCache{
		ttl:            ttl,
		computeTimeout: DefaultComputeTimeout,
		now:            time.Now,
		entries:        make(map[string]memoryEntry),
	}
}

func (c *MemoryQuoteCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]models.PriceQuote, error)) ([]models.PriceQuote, error) {
	if quotes, ok := c.get(key); ok {
		utils.Log.WithField("key", key).Debug("[QuoteCache] ✅ Cache HIT")
		return quotes, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if quotes, ok := c.get(key); ok {
			return quotes, nil
		}
		utils.Log.WithField("key", key).Debug("[QuoteCache] ⚠️  Cache MISS")
		fctx, cancel := flightContext(ctx, c.computeTimeout)
		defer cancel()
		quotes, err := compute(fctx)
		if err != nil {
			return nil, err
		}
		c.set(key, quotes)
		return quotes, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneQuotes(res.Val.([]models.PriceQuote)), nil
	}
}

func (c *MemoryQuoteCache) get(key string) ([]models.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return cloneQuotes(e.quotes), true
}

func (c *MemoryQuoteCache) set(key string, quotes []models.PriceQuote) {
	if len(quotes) == 0 || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{quotes: cloneQuotes(quotes), expiresAt: c.now().Add(c.ttl)}
}

// CleanExpired drops expired entries and returns how many were removed.
func (c *MemoryQuoteCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *MemoryQuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneQuotes(quotes []models.PriceQuote) []models.PriceQuote {
	if quotes == nil {
		return nil
	}
	return append([]models.PriceQuote(nil), quotes...)
}

// ============================================================================
// CACHED PROVIDER
// ============================================================================

// CachedMarketData puts a QuoteCache in front of a MarketDataProvider.
type CachedMarketData struct {
	Provider MarketDataProvider
	Cache    QuoteCache
}

func NewCachedMarketData(provider MarketDataProvider, cache QuoteCache) *CachedMarketData {
	return &CachedMarketData{Provider: provider, Cache: cache}
}

func (c *CachedMarketData) GetQuotes(ctx context.Context, productName string, location models.FarmLocation) ([]models.PriceQuote, error) {
	if c.Cache == nil {
		return c.Provider.GetQuotes(ctx, productName, location)
	}
	key := QuoteCacheKey(productName, location)
	quotes, err := c.Cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]models.PriceQuote, error) {
		return c.Provider.GetQuotes(ctx, productName, location)
	})
	if err != nil {
		return nil, fmt.Errorf("quote lookup for %q: %w", productName, err)
	}
	return quotes, nil
}
