package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// LoadFunc performs the actual load of one model category.
type LoadFunc func(ctx context.Context) error

// Manager tracks per-category model readiness and serializes loads. It
// implements the ModelLoader port: categories are registered with their
// load function, reported unready until a load succeeds, and loaded at
// most once regardless of how many callers ask.
type Manager struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	loaders map[ports.Category]LoadFunc
	ready   map[ports.Category]bool
	lastErr map[ports.Category]error

	loadMu sync.Mutex // serializes actual loads across categories
}

// NewManager creates an empty manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		logger:  logger.With().Str("component", "model-manager").Logger(),
		loaders: make(map[ports.Category]LoadFunc),
		ready:   make(map[ports.Category]bool),
		lastErr: make(map[ports.Category]error),
	}
}

// Register binds a category to its load function. Re-registering replaces
// the loader and resets readiness.
func (m *Manager) Register(cat ports.Category, load LoadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[cat] = load
	m.ready[cat] = false
	delete(m.lastErr, cat)
}

// IsReady reports whether the category's model finished loading.
func (m *Manager) IsReady(cat ports.Category) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready[cat]
}

// EnsureLoaded loads the category's model if it is not ready yet. Loads
// are serialized; concurrent callers for a category that just loaded see
// it ready and return immediately.
func (m *Manager) EnsureLoaded(ctx context.Context, cat ports.Category) error {
	m.mu.RLock()
	load, known := m.loaders[cat]
	ready := m.ready[cat]
	m.mu.RUnlock()

	if !known {
		return fmt.Errorf("no loader registered for category %q", cat)
	}
	if ready {
		return nil
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	// A concurrent caller may have finished the load while we waited.
	m.mu.RLock()
	ready = m.ready[cat]
	m.mu.RUnlock()
	if ready {
		return nil
	}

	start := time.Now()
	m.logger.Info().Str("category", string(cat)).Msg("loading model")
	err := load(ctx)

	m.mu.Lock()
	if err != nil {
		m.lastErr[cat] = err
		m.mu.Unlock()
		m.logger.Error().Err(err).Str("category", string(cat)).Msg("model load failed")
		return fmt.Errorf("load %s model: %w", cat, err)
	}
	m.ready[cat] = true
	delete(m.lastErr, cat)
	m.mu.Unlock()

	m.logger.Info().
		Str("category", string(cat)).
		Dur("duration", time.Since(start)).
		Msg("model loaded")
	return nil
}

// LastError returns the most recent load failure for the category, if any.
func (m *Manager) LastError(cat ports.Category) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr[cat]
}

// Ready returns the categories currently loaded, for status displays.
func (m *Manager) Ready() []ports.Category {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ports.Category
	for cat, ok := range m.ready {
		if ok {
			out = append(out, cat)
		}
	}
	return out
}

var _ ports.ModelLoader = (*Manager)(nil)
