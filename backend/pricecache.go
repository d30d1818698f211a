package backend

import (
	"context"
	"sync"
)

// RefreshFunc fetches a fresh price for an instrument from the venue.
type RefreshFunc func(ctx context.Context, code string) (float64, error)

// PriceCache is the shared current-price cache used by live adapters. Many
// runners may read the same instrument; the first reader triggers a refresh
// while holding that instrument's lock, later readers and the feed's push
// updates hit the cached value. Entries for different instruments never
// block each other.
type PriceCache struct {
	refresh RefreshFunc

	mu      sync.Mutex
	entries map[string]*priceEntry
}

type priceEntry struct {
	mu    sync.Mutex
	set   bool
	price float64
}

func NewPriceCache(refresh RefreshFunc) *PriceCache {
	return &PriceCache{
		refresh: refresh,
		entries: make(map[string]*priceEntry),
	}
}

func (c *PriceCache) entry(code string) *priceEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[code]
	if !ok {
		e = &priceEntry{}
		c.entries[code] = e
	}
	return e
}

// Price returns the cached price for code, refreshing it first if no value
// has been cached yet. Concurrent callers for the same instrument serialize
// on the instrument lock so the venue sees at most one refresh.
func (c *PriceCache) Price(ctx context.Context, code string) (float64, error) {
	e := c.entry(code)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.set {
		return e.price, nil
	}
	if c.refresh == nil {
		return 0, ErrPriceUnavailable
	}

	p, err := c.refresh(ctx, code)
	if err != nil {
		return 0, err
	}
	e.price = p
	e.set = true
	return p, nil
}

// Update stores a pushed price, typically from a real-time feed callback.
func (c *PriceCache) Update(code string, price float64) {
	e := c.entry(code)
	e.mu.Lock()
	e.price = price
	e.set = true
	e.mu.Unlock()
}
