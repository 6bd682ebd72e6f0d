// Package runtime abstracts the model runtime: tokenization, weight
// loading, and autoregressive generation. The serving core treats it as an
// opaque capability; the production implementation talks to a llama.cpp
// llama-server over HTTP (see llamaserver.go).
package runtime

import (
	"context"

	"inferd/internal/hw"
)

// Runtime loads a model according to a precision/device plan and yields a
// Handle for the lifetime of the process.
type Runtime interface {
	Load(ctx context.Context, modelPath string, plan hw.Plan) (Handle, error)
}

// GenParams are the knobs passed to one Generate call.
type GenParams struct {
	// MaxNewTokens bounds tokens generated after the prompt.
	MaxNewTokens int
	// Temperature in [0, inf); only meaningful when DoSample is true.
	Temperature float64
	// DoSample selects stochastic sampling; false means greedy decoding.
	DoSample bool
	// PadTokenID and EOSTokenID as resolved by the lifecycle manager.
	// -1 means the runtime should use its own default.
	PadTokenID int
	EOSTokenID int
}

// TokenInfo reports special token ids. Ids are -1 when the runtime does not
// expose them.
type TokenInfo struct {
	EOSID int
	PadID int
}

// Handle is a loaded model. Implementations need not be safe for concurrent
// Generate calls; callers serialize (see manager admission).
type Handle interface {
	// Encode tokenizes text into ids.
	Encode(ctx context.Context, text string) ([]int, error)
	// Decode detokenizes ids into text.
	Decode(ctx context.Context, ids []int) (string, error)
	// Generate continues promptIDs and returns the full output sequence,
	// echoed prompt included. Callers slice off len(promptIDs) leading ids.
	Generate(ctx context.Context, promptIDs []int, p GenParams) ([]int, error)
	// Tokens reports special token ids known for this model.
	Tokens() TokenInfo
	// Close tears the handle down. Called once at process exit.
	Close() error
}

// unavailableError signals a missing or unreachable runtime dependency so
// startup can fail fast with a diagnostic.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing/unreachable runtime.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}
