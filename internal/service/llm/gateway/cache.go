package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"margin/internal/domain/repositories"
)

// CacheConfig tunes pool lifetimes.
type CacheConfig struct {
	// BuildTimeout bounds connecting to all of one owner's servers
	BuildTimeout time.Duration
	// CloseGrace delays closing a replaced pool so in-flight calls finish
	CloseGrace time.Duration
	// IdleTTL evicts a pool nobody has asked for in this long. Zero keeps
	// pools until invalidated.
	IdleTTL time.Duration
	// MaxOwners bounds how many owners keep a pool; the least recently
	// used is evicted first. Zero is unbounded.
	MaxOwners int
}

// DefaultCacheConfig returns production defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BuildTimeout: 15 * time.Second,
		CloseGrace:   2 * time.Minute,
		IdleTTL:      30 * time.Minute,
		MaxOwners:    1000,
	}
}

// PoolCache keeps one Pool per owner. Concurrent first lookups share a
// single build. Invalidate drops the owner's pool so the next Get rebuilds
// from current config. Idle and least recently used pools are evicted and
// closed after the grace period.
type PoolCache struct {
	repo      repositories.ToolServerRepository
	connector Connector
	config    CacheConfig
	logger    *slog.Logger

	mu     sync.Mutex
	pools  *expirable.LRU[string, *Pool]
	gens   map[string]uint64
	group  singleflight.Group
	closed atomic.Bool
}

// NewPoolCache creates an empty cache
func NewPoolCache(repo repositories.ToolServerRepository, connector Connector, config CacheConfig, logger *slog.Logger) *PoolCache {
	c := &PoolCache{
		repo:      repo,
		connector: connector,
		config:    config,
		logger:    logger,
		gens:      make(map[string]uint64),
	}
	c.pools = expirable.NewLRU[string, *Pool](config.MaxOwners, c.evicted, config.IdleTTL)
	return c
}

// Get returns the owner's pool, building it on first use.
func (c *PoolCache) Get(ctx context.Context, ownerID string) (*Pool, error) {
	c.mu.Lock()
	if p, ok := c.pools.Get(ownerID); ok {
		// re-adding renews the idle deadline
		c.pools.Add(ownerID, p)
		c.mu.Unlock()
		return p, nil
	}
	gen := c.gens[ownerID]
	c.mu.Unlock()

	key := ownerID + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		if p, ok := c.pools.Get(ownerID); ok && c.gens[ownerID] == gen {
			c.mu.Unlock()
			return p, nil
		}
		c.mu.Unlock()

		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.BuildTimeout)
		defer cancel()

		cfgs, err := c.repo.List(buildCtx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load tool servers: %w", err)
		}
		p := BuildPool(buildCtx, ownerID, cfgs, c.connector, c.logger)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gens[ownerID] != gen {
			// Invalidated mid-build: hand it to current waiters only.
			c.closeLater(p)
			return p, nil
		}
		// an expired entry may linger until the sweeper reaches it
		c.pools.Remove(ownerID)
		c.pools.Add(ownerID, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pool), nil
}

// Invalidate replaces the owner's pool on next Get. The old pool is
// closed after the grace period.
func (c *PoolCache) Invalidate(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[ownerID]++
	c.pools.Remove(ownerID)
	c.logger.Debug("tool pool invalidated", "owner", ownerID)
}

// Close shuts every cached pool immediately
func (c *PoolCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed.Store(true)
	c.pools.Purge()
}

// evicted runs under the LRU's lock, so it must not take c.mu.
func (c *PoolCache) evicted(ownerID string, p *Pool) {
	if c.closed.Load() {
		p.Close()
		return
	}
	c.logger.Debug("tool pool evicted", "owner", ownerID)
	c.closeLater(p)
}

func (c *PoolCache) closeLater(p *Pool) {
	if c.config.CloseGrace <= 0 {
		go p.Close()
		return
	}
	time.AfterFunc(c.config.CloseGrace, p.Close)
}
