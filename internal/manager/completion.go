package manager

import (
	"context"
	"fmt"
	"time"

	"inferd/internal/runtime"
	"inferd/pkg/types"
)

// Request parameter defaults.
const (
	defaultMaxNewTokens = 512
	defaultTemperature  = 0.7
)

// ChatCompletion runs one chat completion end to end: format the
// conversation, tokenize, generate, slice off the echoed prompt, decode,
// and assemble the response with token accounting.
func (m *Manager) ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error) {
	var resp types.ChatCompletionResponse

	m.mu.RLock()
	loaded := m.loaded
	handle := m.handle
	padID, eosID := m.padID, m.eosID
	m.mu.RUnlock()
	if !loaded {
		return resp, modelNotLoadedError{}
	}

	if len(req.Messages) == 0 {
		return resp, ErrInvalidRequest("messages must not be empty")
	}
	maxNew := defaultMaxNewTokens
	if req.MaxTokens != nil {
		if *req.MaxTokens <= 0 {
			return resp, ErrInvalidRequest("max_tokens must be positive")
		}
		maxNew = *req.MaxTokens
	}
	temp := defaultTemperature
	if req.Temperature != nil {
		if *req.Temperature < 0 {
			return resp, ErrInvalidRequest("temperature must be >= 0")
		}
		temp = *req.Temperature
	}

	prompt := FormatPrompt(req.Messages)

	release, err := m.beginGeneration(ctx)
	if err != nil {
		return resp, err
	}
	defer release()

	if m.cfg.GenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.GenTimeout)
		defer cancel()
	}

	start := time.Now()
	promptIDs, err := handle.Encode(ctx, prompt)
	if err != nil {
		return resp, wrapGeneration(fmt.Errorf("tokenize prompt: %w", err))
	}

	params := runtime.GenParams{
		MaxNewTokens: maxNew,
		Temperature:  temp,
		// Temperature exactly 0 means greedy decoding.
		DoSample:   temp > 0,
		PadTokenID: padID,
		EOSTokenID: eosID,
	}
	out, err := handle.Generate(ctx, promptIDs, params)
	if err != nil {
		return resp, wrapGeneration(err)
	}
	// The runtime echoes the prompt; the completion must never include it.
	if len(out) < len(promptIDs) {
		return resp, wrapGeneration(fmt.Errorf("runtime returned %d tokens for a %d token prompt", len(out), len(promptIDs)))
	}
	completionIDs := out[len(promptIDs):]

	text, err := handle.Decode(ctx, completionIDs)
	if err != nil {
		return resp, wrapGeneration(fmt.Errorf("decode completion: %w", err))
	}

	m.log.Debug().
		Int("prompt_tokens", len(promptIDs)).
		Int("completion_tokens", len(completionIDs)).
		Dur("dur", time.Since(start)).
		Msg("completion generated")
	return m.assemble(len(promptIDs), len(completionIDs), text), nil
}
