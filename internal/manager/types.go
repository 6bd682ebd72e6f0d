package manager

import "inferd/internal/hw"

// Snapshot is a read-only projection of the lifecycle state.
type Snapshot struct {
	Loaded  bool
	ModelID string
	Plan    hw.Plan
}
