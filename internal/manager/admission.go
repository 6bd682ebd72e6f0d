package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// The runtime is not assumed safe for concurrent generate calls, so exactly
// one generation runs at a time; excess requests wait in a bounded FIFO and
// time out as too-busy. Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	select {
	case m.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.maxWait):
		return nil, tooBusyError{}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
		}
	}()
	select {
	case m.genCh <- struct{}{}:
		acquired = true
		return func() { <-m.genCh; <-m.queueCh }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.maxWait):
		return nil, tooBusyError{}
	}
}
