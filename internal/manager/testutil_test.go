package manager

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"inferd/internal/hw"
	"inferd/internal/runtime"
)

// stubHandle is a scriptable runtime handle. Encoding is one id per
// whitespace-separated word over a growing vocabulary, so prompt echo and
// slicing are observable.
type stubHandle struct {
	mu    sync.Mutex
	vocab map[string]int
	words []string

	tokens runtime.TokenInfo
	// reply is appended after the echoed prompt by Generate.
	reply string

	lastPrompt []int
	lastParams runtime.GenParams
	genCalls   int
	genErr     error
	encodeErr  error
	decodeErr  error
	closed     bool
}

func newStubHandle(reply string) *stubHandle {
	return &stubHandle{vocab: map[string]int{}, reply: reply, tokens: runtime.TokenInfo{EOSID: 2, PadID: -1}}
}

func (h *stubHandle) ids(text string) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []int
	for _, w := range strings.Fields(text) {
		id, ok := h.vocab[w]
		if !ok {
			id = len(h.words)
			h.vocab[w] = id
			h.words = append(h.words, w)
		}
		out = append(out, id)
	}
	return out
}

func (h *stubHandle) Encode(ctx context.Context, text string) ([]int, error) {
	if h.encodeErr != nil {
		return nil, h.encodeErr
	}
	return h.ids(text), nil
}

func (h *stubHandle) Decode(ctx context.Context, ids []int) (string, error) {
	if h.decodeErr != nil {
		return "", h.decodeErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, id := range ids {
		if id >= 0 && id < len(h.words) {
			out = append(out, h.words[id])
		}
	}
	return strings.Join(out, " "), nil
}

func (h *stubHandle) Generate(ctx context.Context, promptIDs []int, p runtime.GenParams) ([]int, error) {
	h.mu.Lock()
	h.genCalls++
	h.lastPrompt = append([]int(nil), promptIDs...)
	h.lastParams = p
	h.mu.Unlock()
	if h.genErr != nil {
		return nil, h.genErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append(append([]int(nil), promptIDs...), h.ids(h.reply)...), nil
}

func (h *stubHandle) Tokens() runtime.TokenInfo { return h.tokens }

func (h *stubHandle) Close() error {
	h.closed = true
	return nil
}

// stubRuntime hands out a fixed handle and records the load plan.
type stubRuntime struct {
	handle    *stubHandle
	loadErr   error
	loadCalls int
	lastPlan  hw.Plan
	lastPath  string
}

func (r *stubRuntime) Load(ctx context.Context, modelPath string, plan hw.Plan) (runtime.Handle, error) {
	r.loadCalls++
	r.lastPlan = plan
	r.lastPath = modelPath
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.handle, nil
}

func newTestManager(rt runtime.Runtime) *Manager {
	return New(ManagerConfig{
		ModelID:   "test-model",
		ModelPath: "/models/test-model.gguf",
		Caps:      hw.Capabilities{},
		Runtime:   rt,
		Logger:    zerolog.Nop(),
	})
}

func loadedManager(reply string) (*Manager, *stubHandle) {
	h := newStubHandle(reply)
	m := newTestManager(&stubRuntime{handle: h})
	if err := m.Load(context.Background()); err != nil {
		panic(err)
	}
	return m, h
}
