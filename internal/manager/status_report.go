package manager

import (
	"time"

	"inferd/pkg/types"
)

// Status builds the health payload. It never fails and never blocks beyond
// a read lock; safe to call before, during, and after load.
func (m *Manager) Status() types.HealthResponse {
	snap := m.Current()
	resp := types.HealthResponse{
		Status:        "ok",
		ModelLoaded:   snap.Loaded,
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
	}
	if snap.Loaded {
		resp.Config = &types.ModelConfig{
			ModelID:   snap.ModelID,
			Precision: string(snap.Plan.Precision),
			Device:    string(snap.Plan.Device),
		}
	}
	return resp
}

// Models lists the hosted model for GET /v1/models.
func (m *Manager) Models() types.ModelList {
	return types.ModelList{
		Object: "list",
		Data: []types.ModelInfo{
			{ID: m.cfg.ModelID, Object: "model", OwnedBy: "inferd"},
		},
	}
}
