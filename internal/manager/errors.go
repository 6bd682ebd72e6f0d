package manager

// modelNotLoadedError signals that no model is loaded yet (503 mapping).
type modelNotLoadedError struct{}

func (modelNotLoadedError) Error() string { return "model not loaded" }

// ErrModelNotLoaded constructs a modelNotLoadedError.
func ErrModelNotLoaded() error { return modelNotLoadedError{} }

// IsModelNotLoaded reports whether err indicates the model is not loaded.
func IsModelNotLoaded(err error) bool {
	_, ok := err.(modelNotLoadedError)
	return ok
}

// invalidRequestError signals a request the core rejects (400 mapping).
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err indicates a rejected request.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: generation queue is full" }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy() error { return tooBusyError{} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// generationError wraps a model-runtime failure during a request
// (500 mapping). The process keeps serving.
type generationError struct{ cause error }

func (e generationError) Error() string { return "generation failed: " + e.cause.Error() }
func (e generationError) Unwrap() error { return e.cause }

func wrapGeneration(err error) error { return generationError{cause: err} }

// IsGeneration reports whether err is a per-request generation failure.
func IsGeneration(err error) bool {
	_, ok := err.(generationError)
	return ok
}
