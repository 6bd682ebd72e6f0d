package manager

import (
	"context"
	"fmt"

	"inferd/internal/hw"
)

// Load materializes the model. It must be called exactly once, before the
// HTTP server accepts traffic; a failure is fatal and never retried.
//
// Load runs the precision/device selector over the probed capabilities,
// hands the plan to the runtime, and normalizes the pad token: when the
// runtime reports no pad token the end-of-sequence token stands in, since
// generation always requests padded batches even for batch size one.
func (m *Manager) Load(ctx context.Context) error {
	// Reserve the one-shot load without holding the lock across the
	// runtime call: a spawn can take the whole start timeout, and
	// Status/Ready must stay responsive while it runs.
	m.mu.Lock()
	if m.loadStarted {
		m.mu.Unlock()
		return fmt.Errorf("model already loaded")
	}
	if m.cfg.Runtime == nil {
		m.mu.Unlock()
		return fmt.Errorf("no runtime configured")
	}
	m.loadStarted = true
	m.mu.Unlock()

	plan := hw.Select(m.cfg.Caps)
	m.log.Info().
		Str("model", m.cfg.ModelID).
		Str("precision", string(plan.Precision)).
		Str("device", string(plan.Device)).
		Msg("loading model")

	handle, err := m.cfg.Runtime.Load(ctx, m.cfg.ModelPath, plan)
	if err != nil {
		return fmt.Errorf("load model %s: %w", m.cfg.ModelID, err)
	}

	ti := handle.Tokens()
	pad := ti.PadID
	if pad < 0 {
		pad = ti.EOSID
	}

	m.mu.Lock()
	m.handle = handle
	m.plan = plan
	m.padID = pad
	m.eosID = ti.EOSID
	m.loaded = true
	m.mu.Unlock()
	m.log.Info().Str("model", m.cfg.ModelID).Msg("model loaded")
	return nil
}
