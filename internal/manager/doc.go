// Package manager owns the process-wide model lifecycle and the chat
// completion path. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults.
//   - types.go: internal state types (Snapshot).
//   - errors.go: error types and helpers (IsModelNotLoaded, IsGeneration, ...).
//   - load.go: one-shot startup load and pad-token normalization.
//   - prompt.go: conversation -> linear prompt transcript.
//   - admission.go: bounded queue with a single in-flight generation.
//   - completion.go: chat completion orchestration (encode/generate/decode).
//   - response.go: response assembly and id generation.
//   - status_report.go: health/status snapshot.
//
// The Manager is constructed once in main, loaded exactly once before the
// HTTP server binds, and is read-only afterwards. External packages should
// use public methods only (New, Load, ChatCompletion, Status, Ready, Close).
package manager
