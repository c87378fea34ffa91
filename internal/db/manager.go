package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
)

// Manager owns the pgx connection pool. Stores receive a Manager at
// construction instead of reaching for a package-level pool, so the
// connect-once/reuse/reset lifecycle is explicit.
type Manager struct {
	mu      sync.Mutex
	connStr string
	pool    *pgxpool.Pool
}

// NewManager builds a manager for the configured database.url. No
// connection is opened until Acquire is called.
func NewManager() (*Manager, error) {
	connStr := viper.GetString("database.url")
	if connStr == "" {
		return nil, fmt.Errorf("database.url not configured")
	}
	return &Manager{connStr: connStr}, nil
}

// Acquire returns the shared pool, dialing and pinging on first use.
func (m *Manager) Acquire(ctx context.Context) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		return m.pool, nil
	}

	pool, err := pgxpool.New(ctx, m.connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m.pool = pool
	return m.pool, nil
}

// Invalidate discards the current pool so the next Acquire redials.
// Called after errors that indicate the pool is no longer usable.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
}

// Close releases the pool for good.
func (m *Manager) Close() {
	m.Invalidate()
}
