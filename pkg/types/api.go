package types

// Chat message roles accepted on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn of a conversation. Order is significant.
type ChatMessage struct {
	// Role of the author: system, user, or assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// Message text.
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Optional model identifier. The server hosts a single model; this is
	// accepted for OpenAI client compatibility and echoed back.
	// example: tinyllama-q4
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
	// Ordered conversation. Must be non-empty.
	Messages []ChatMessage `json:"messages"`
	// Streaming is not supported; true is rejected with 400.
	// example: false
	Stream bool `json:"stream,omitempty" example:"false"`
	// Maximum number of new tokens to generate. Defaults to 512.
	// example: 128
	MaxTokens *int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature; 0 selects greedy decoding. Defaults to 0.7.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
}

// ChatCompletionChoice is one generated alternative. The server always
// produces exactly one, at index 0.
type ChatCompletionChoice struct {
	// Index of the choice within the response.
	// example: 0
	Index int `json:"index" example:"0"`
	// Generated assistant message.
	Message ChatMessage `json:"message"`
	// Why generation ended. Always "stop".
	// example: stop
	FinishReason string `json:"finish_reason" example:"stop"`
}

// Usage is the token accounting for one completion.
// TotalTokens is always PromptTokens + CompletionTokens.
type Usage struct {
	// Tokens in the formatted prompt.
	// example: 42
	PromptTokens int `json:"prompt_tokens" example:"42"`
	// Tokens generated after the prompt.
	// example: 17
	CompletionTokens int `json:"completion_tokens" example:"17"`
	// Sum of prompt and completion tokens.
	// example: 59
	TotalTokens int `json:"total_tokens" example:"59"`
}

// ChatCompletionResponse is the body of a successful completion.
type ChatCompletionResponse struct {
	// Fresh identifier for this response.
	// example: chatcmpl-5f9b2c1e-0b0a-4d7e-9a3e-1c2d3e4f5a6b
	ID string `json:"id" example:"chatcmpl-5f9b2c1e-0b0a-4d7e-9a3e-1c2d3e4f5a6b"`
	// Object type marker.
	// example: chat.completion
	Object string `json:"object" example:"chat.completion"`
	// Creation time in unix seconds.
	// example: 1700000000
	Created int64 `json:"created" example:"1700000000"`
	// Identifier of the model that served the request.
	// example: tinyllama-q4
	Model string `json:"model" example:"tinyllama-q4"`
	// Generated choices (always exactly one).
	Choices []ChatCompletionChoice `json:"choices"`
	// Token accounting.
	Usage Usage `json:"usage"`
}

// ModelConfig describes how the loaded model was materialized.
type ModelConfig struct {
	// Identifier or path the model was loaded from.
	// example: tinyllama-q4
	ModelID string `json:"model_id" example:"tinyllama-q4"`
	// Numeric precision selected at startup (bf16, f16, f32).
	// example: bf16
	Precision string `json:"precision" example:"bf16"`
	// Device selected at startup (cuda, cpu).
	// example: cuda
	Device string `json:"device" example:"cuda"`
}

// HealthResponse is returned by GET /health. It never fails.
type HealthResponse struct {
	// Always "ok".
	// example: ok
	Status string `json:"status" example:"ok"`
	// Whether the model finished loading.
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Seconds since the process started.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Resolved load configuration; nil until the model is loaded.
	Config *ModelConfig `json:"config,omitempty"`
}

// ModelList is returned by GET /v1/models (OpenAI client compatibility).
type ModelList struct {
	// Object type marker.
	// example: list
	Object string `json:"object" example:"list"`
	// Hosted models. This server always lists exactly one.
	Data []ModelInfo `json:"data"`
}

// ModelInfo is one entry of ModelList.
type ModelInfo struct {
	// Model identifier usable in ChatCompletionRequest.Model.
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// Object type marker.
	// example: model
	Object string `json:"object" example:"model"`
	// Owner label.
	// example: inferd
	OwnedBy string `json:"owned_by" example:"inferd"`
}

// ErrorResponse is the consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not loaded
	Error string `json:"error" example:"model not loaded"`
	// HTTP status code.
	// example: 503
	Code int `json:"code" example:"503"`
}
