package sensors

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// SweeperConfig configures the TTL sweeper.
type SweeperConfig struct {
	// Interval is how often stale instances are looked for.
	Interval time.Duration
}

// Sweeper periodically removes instances that have stopped updating.
// Expiry runs through the cache lock, so a sweep and an update for the
// same instance serialize; an update that lands after a sweep simply
// recreates the instance.
type Sweeper struct {
	cfg   SweeperConfig
	cache *Cache

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSweeper builds a sweeper over a cache.
func NewSweeper(cache *Cache, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Sweeper{cfg: cfg, cache: cache, stopCh: make(chan struct{})}
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sensors: sweeper not configured")
	}
	if s.cache.ttl <= 0 {
		// Nothing ever expires; no loop to run.
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.cfg.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-t.C:
				removed := s.cache.Expire(time.Now().UTC())
				for _, k := range removed {
					log.Printf("sensors: expired %s after %s without updates", k, s.cache.ttl)
				}
			}
		}
	}()
	return nil
}

// Close stops the sweep loop and waits for it to exit.
func (s *Sweeper) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
