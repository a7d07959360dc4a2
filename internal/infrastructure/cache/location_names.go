// Package cache provides caching infrastructure with PostgreSQL LISTEN/NOTIFY support.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/location"
	"stockflow/pkg/logger"
)

// LocationLister loads a tenant's locations.
type LocationLister interface {
	List(ctx context.Context, tenantID string) ([]location.Location, error)
}

// LocationNames caches location display names per tenant. Entries are
// dropped when the location repository announces a change on channel.
type LocationNames struct {
	lister  LocationLister
	pool    *pgxpool.Pool
	channel string

	mu    sync.RWMutex
	names map[string]map[id.ID]string // tenantID -> locationID -> name

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewLocationNames creates a cache over lister. A nil pool disables
// LISTEN; callers then invalidate explicitly.
func NewLocationNames(lister LocationLister, pool *pgxpool.Pool, channel string) *LocationNames {
	return &LocationNames{
		lister:  lister,
		pool:    pool,
		channel: channel,
		names:   make(map[string]map[id.ID]string),
	}
}

// Names returns the tenant's location names, loading them on a miss.
// The returned map must not be modified.
func (c *LocationNames) Names(ctx context.Context, tenantID string) (map[id.ID]string, error) {
	c.mu.RLock()
	names, ok := c.names[tenantID]
	c.mu.RUnlock()
	if ok {
		return names, nil
	}

	locs, err := c.lister.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	names = make(map[id.ID]string, len(locs))
	for _, l := range locs {
		names[l.ID] = l.Name
	}

	c.mu.Lock()
	c.names[tenantID] = names
	c.mu.Unlock()
	return names, nil
}

// Invalidate drops one tenant, or every tenant when tenantID is empty.
func (c *LocationNames) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tenantID == "" {
		c.names = make(map[string]map[id.ID]string)
		return
	}
	delete(c.names, tenantID)
}

// Start begins listening for NOTIFY events.
func (c *LocationNames) Start(ctx context.Context) {
	if c.pool == nil {
		return
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(ctx, "location name cache started", "channel", c.channel)
}

// Stop gracefully stops the cache listener.
func (c *LocationNames) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
}

// listenLoop holds a dedicated connection for LISTEN and reconnects on
// failure. Everything is invalidated after a reconnect since notifications
// may have been missed.
func (c *LocationNames) listenLoop() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			sleep(c.ctx, time.Second)
			continue
		}

		if _, err = conn.Exec(c.ctx, "LISTEN "+c.channel); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "channel", c.channel, "error", err)
			conn.Release()
			sleep(c.ctx, time.Second)
			continue
		}
		c.Invalidate("")

		c.waitForNotifications(conn)
		conn.Release()
	}
}

// waitForNotifications blocks until ctx ends or the connection breaks.
func (c *LocationNames) waitForNotifications(conn *pgxpool.Conn) {
	for {
		notification, err := conn.Conn().WaitForNotification(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				logger.Warn(c.ctx, "LISTEN connection lost", "error", err)
			}
			return
		}
		c.handleNotification(notification.Payload)
	}
}

func (c *LocationNames) handleNotification(payload string) {
	tenantID := strings.TrimSpace(payload)
	logger.Debug(c.ctx, "location names invalidated", "tenant_id", tenantID)
	c.Invalidate(tenantID)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
