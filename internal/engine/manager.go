package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Factory builds a fresh engine instance for a registered mode.
type Factory func() (Engine, error)

// Manager owns the single active engine. Switching cleans up the old engine
// before loading the new one; a failed load leaves the manager in a failed
// state until the next successful Switch or Reload.
type Manager struct {
	log       *slog.Logger
	mu        sync.Mutex
	factories map[string]Factory
	active    Engine
	mode      string
	model     string
	failed    bool
}

func NewManager(log *slog.Logger) *Manager {
	return &Manager{
		log:       log.With(slog.String("component", "engine-manager")),
		factories: make(map[string]Factory),
	}
}

// Register makes a mode available to Switch.
func (m *Manager) Register(mode string, factory Factory) {
	m.mu.Lock()
	m.factories[mode] = factory
	m.mu.Unlock()
}

// Switch replaces the active engine: cleanup old, construct, load new.
func (m *Manager) Switch(ctx context.Context, mode, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	factory, ok := m.factories[mode]
	if !ok {
		return fmt.Errorf("unknown engine mode %q", mode)
	}

	if m.active != nil {
		if err := m.active.Cleanup(); err != nil {
			m.log.Warn("engine cleanup failed", slog.String("mode", m.mode), slog.String("error", err.Error()))
		}
		m.active = nil
	}

	// Record the attempt so Reload can retry after a failed load.
	m.mode = mode
	m.model = identifier

	eng, err := factory()
	if err != nil {
		m.failed = true
		return &Error{Engine: mode, Op: "construct", Err: err}
	}
	if err := eng.Load(ctx, identifier); err != nil {
		m.failed = true
		return &Error{Engine: mode, Op: "load", Err: err}
	}

	m.active = eng
	m.failed = false
	m.log.Info("engine loaded", slog.String("mode", mode), slog.String("model", identifier))
	return nil
}

// Reload retries loading the current mode and model.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	mode, model := m.mode, m.model
	m.mu.Unlock()
	if mode == "" {
		return fmt.Errorf("no engine selected")
	}
	return m.Switch(ctx, mode, model)
}

// Active returns the loaded engine, or an error while failed or unloaded.
func (m *Manager) Active() (Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed {
		return nil, &Error{Engine: m.mode, Op: "active", Err: fmt.Errorf("engine failed, reload required")}
	}
	if m.active == nil || !m.active.Loaded() {
		return nil, ErrNotLoaded
	}
	return m.active, nil
}

// Ready reports whether a healthy engine is loaded.
func (m *Manager) Ready() bool {
	_, err := m.Active()
	return err == nil
}

// Mode returns the active engine mode name.
func (m *Manager) Mode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Close cleans up the active engine.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		if err := m.active.Cleanup(); err != nil {
			m.log.Warn("engine cleanup failed", slog.String("error", err.Error()))
		}
		m.active = nil
	}
}
