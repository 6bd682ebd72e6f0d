package manager

import (
	"time"

	"github.com/google/uuid"

	"inferd/pkg/types"
)

// assemble builds the completion response. Exactly one choice, index 0.
// finish_reason is always "stop": the core does not distinguish max-token
// truncation from natural termination (kept as documented behavior).
// total_tokens is prompt + completion by construction.
func (m *Manager) assemble(promptTokens, completionTokens int, text string) types.ChatCompletionResponse {
	return types.ChatCompletionResponse{
		ID:      newCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   m.cfg.ModelID,
		Choices: []types.ChatCompletionChoice{
			{
				Index:        0,
				Message:      types.ChatMessage{Role: types.RoleAssistant, Content: text},
				FinishReason: "stop",
			},
		},
		Usage: types.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}

// newCompletionID returns a fresh identifier. Random rather than
// content-derived, so identical prompts never collide.
func newCompletionID() string {
	return "chatcmpl-" + uuid.New().String()
}
