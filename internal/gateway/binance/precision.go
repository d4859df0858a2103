package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signalbot/internal/gateway/exchange"

	"golang.org/x/sync/singleflight"
)

type precisionLoader func(ctx context.Context) (map[string]exchange.Precision, error)

// precisionCache holds exchange-info precisions; concurrent misses share one
// load.
type precisionCache struct {
	ttl  time.Duration
	load precisionLoader
	now  func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	data     map[string]exchange.Precision
	loadedAt time.Time
}

func newPrecisionCache(ttl time.Duration, load precisionLoader) *precisionCache {
	return &precisionCache{ttl: ttl, load: load, now: time.Now}
}

func (c *precisionCache) get(ctx context.Context, sym string) (exchange.Precision, error) {
	c.mu.RLock()
	p, ok := c.data[sym]
	fresh := c.data != nil && c.now().Sub(c.loadedAt) < c.ttl
	c.mu.RUnlock()
	if ok && fresh {
		return p, nil
	}

	_, err, _ := c.group.Do("exchange-info", func() (any, error) {
		data, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.data = data
		c.loadedAt = c.now()
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		// a stale entry beats no entry
		if ok {
			return p, nil
		}
		return exchange.Precision{}, err
	}

	c.mu.RLock()
	p, ok = c.data[sym]
	c.mu.RUnlock()
	if !ok {
		return exchange.Precision{}, fmt.Errorf("precision: unknown symbol %s", sym)
	}
	return p, nil
}
