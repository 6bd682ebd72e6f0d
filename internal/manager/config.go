package manager

import (
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/hw"
	"inferd/internal/runtime"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// ModelID is the public identifier echoed in responses.
	ModelID string
	// ModelPath is the on-disk model handed to the runtime's load call.
	ModelPath string
	// Caps are the hardware capabilities probed at startup; Load runs the
	// precision/device selector over them.
	Caps hw.Capabilities
	// Runtime performs weight loading, tokenization, and generation.
	Runtime runtime.Runtime

	// MaxQueueDepth bounds waiting requests; MaxWait bounds queue time.
	MaxQueueDepth int
	MaxWait       time.Duration
	// GenTimeout bounds a single generation; zero disables.
	GenTimeout time.Duration

	Logger zerolog.Logger
}

// New constructs a Manager from ManagerConfig, applying defaults for
// unset queue tunables. The model is not loaded until Load is called.
func New(cfg ManagerConfig) *Manager {
	m := &Manager{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "manager").Logger(),
	}
	depth := cfg.MaxQueueDepth
	if depth <= 0 {
		depth = defaultMaxQueueDepth
	}
	m.maxWait = cfg.MaxWait
	if m.maxWait <= 0 {
		m.maxWait = defaultMaxWait
	}
	m.genCh = make(chan struct{}, 1)
	m.queueCh = make(chan struct{}, depth)
	m.startTime = time.Now()
	return m
}
