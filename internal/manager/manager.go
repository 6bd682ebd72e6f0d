package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/hw"
	"inferd/internal/runtime"
)

// Manager owns the single loaded model for the life of the process.
// State is written exactly once by Load and read-only afterwards; requests
// only ever take the read lock.
type Manager struct {
	mu sync.RWMutex
	// loadStarted reserves the one-shot Load before the runtime call;
	// loaded flips only once the handle is published.
	loadStarted bool
	loaded      bool
	handle      runtime.Handle
	plan        hw.Plan
	padID       int
	eosID       int

	cfg       ManagerConfig
	maxWait   time.Duration
	startTime time.Time

	// Admission primitives: queueCh holds waiting requests, genCh is the
	// single in-flight generation slot.
	genCh   chan struct{}
	queueCh chan struct{}

	log zerolog.Logger
}

// Ready reports whether the model finished loading.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Current returns a read-only snapshot of the lifecycle state.
func (m *Manager) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Loaded:  m.loaded,
		ModelID: m.cfg.ModelID,
		Plan:    m.plan,
	}
}

// Close tears down the runtime handle. Called once at process exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.loaded = false
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}
