package router

import (
	"fmt"
	"sync"

	"github.com/cmstools-dev/cmstools/internal/db"
	"github.com/cmstools-dev/cmstools/internal/models"
	"gorm.io/gorm"
)

// Pool caches open target database handles keyed by connection ID.
// Handles stay open for the process lifetime; editing a connection in the
// schema-management API calls Evict so the next access reopens it.
type Pool struct {
	mu      sync.Mutex
	handles map[uint64]*gorm.DB
}

// NewPool constructs an empty connection pool.
func NewPool() *Pool {
	return &Pool{handles: make(map[uint64]*gorm.DB)}
}

// Get returns the handle for a connection, opening it on first use.
func (p *Pool) Get(connection *models.Connection) (*gorm.DB, error) {
	if connection == nil {
		return nil, ErrNilConnection
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if handle, ok := p.handles[connection.ID]; ok {
		return handle, nil
	}

	handle, errOpen := db.OpenProvider(connection.Provider, connection.ConnString)
	if errOpen != nil {
		return nil, fmt.Errorf("router: open connection %q: %w", connection.Name, errOpen)
	}
	p.handles[connection.ID] = handle
	return handle, nil
}

// Set installs a pre-opened handle, primarily for tests and migrations.
func (p *Pool) Set(connectionID uint64, handle *gorm.DB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles[connectionID] = handle
}

// Evict drops the cached handle for a connection.
func (p *Pool) Evict(connectionID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if handle, ok := p.handles[connectionID]; ok {
		if sqlDB, errDB := handle.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
		delete(p.handles, connectionID)
	}
}
