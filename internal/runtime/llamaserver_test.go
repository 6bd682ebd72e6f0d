package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/hw"
)

// fakeLlamaServer mimics the llama-server endpoints the adapter uses.
// Tokenization is one id per whitespace-separated word, detokenization the
// reverse, so round trips are inspectable.
type fakeLlamaServer struct {
	mu       sync.Mutex
	vocab    map[string]int
	words    []string
	lastReq  completionRequest
	reply    string
	failGen  bool
	healthOK bool
}

func newFakeLlamaServer(reply string) *fakeLlamaServer {
	return &fakeLlamaServer{vocab: map[string]int{}, reply: reply, healthOK: true}
}

func (f *fakeLlamaServer) encode(text string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int
	for _, w := range strings.Fields(text) {
		id, ok := f.vocab[w]
		if !ok {
			id = len(f.words)
			f.vocab[w] = id
			f.words = append(f.words, w)
		}
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeLlamaServer) decode(ids []int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range ids {
		if id >= 0 && id < len(f.words) {
			out = append(out, f.words[id])
		}
	}
	return strings.Join(out, " ")
}

func (f *fakeLlamaServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !f.healthOK {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/props", func(w http.ResponseWriter, r *http.Request) {
		eos := 2
		_ = json.NewEncoder(w).Encode(map[string]any{"eos_token_id": eos})
	})
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var in tokenizeRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(tokenizeResponse{Tokens: f.encode(in.Content)})
	})
	mux.HandleFunc("/detokenize", func(w http.ResponseWriter, r *http.Request) {
		var in detokenizeRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(detokenizeResponse{Content: f.decode(in.Tokens)})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var in completionRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.lastReq = in
		fail := f.failGen
		f.mu.Unlock()
		if fail {
			http.Error(w, "out of memory", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(completionResponse{
			Content:         f.reply,
			TokensPredicted: len(strings.Fields(f.reply)),
			TokensEvaluated: len(in.Prompt),
		})
	})
	return mux
}

func attach(t *testing.T, f *fakeLlamaServer) (Handle, func()) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	rt := NewLlamaServer(LlamaServerConfig{BaseURL: srv.URL}, zerolog.Nop())
	h, err := rt.Load(context.Background(), "unused.gguf", hw.Plan{Precision: hw.PrecisionF32, Device: hw.DeviceCPU})
	if err != nil {
		srv.Close()
		t.Fatalf("load: %v", err)
	}
	return h, srv.Close
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := newFakeLlamaServer("ignored")
	h, done := attach(t, f)
	defer done()

	ids, err := h.Encode(context.Background(), "User: hi Assistant:")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids=%v", ids)
	}
	text, err := h.Decode(context.Background(), ids)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if text != "User: hi Assistant:" {
		t.Fatalf("text=%q", text)
	}
}

func TestDecodeEmpty(t *testing.T) {
	f := newFakeLlamaServer("x")
	h, done := attach(t, f)
	defer done()
	text, err := h.Decode(context.Background(), nil)
	if err != nil || text != "" {
		t.Fatalf("text=%q err=%v", text, err)
	}
}

func TestGenerateEchoesPrompt(t *testing.T) {
	f := newFakeLlamaServer("hello world")
	h, done := attach(t, f)
	defer done()

	prompt, err := h.Encode(context.Background(), "User: hi Assistant:")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := h.Generate(context.Background(), prompt, GenParams{MaxNewTokens: 16, Temperature: 0.7, DoSample: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(out) != len(prompt)+2 {
		t.Fatalf("len(out)=%d want %d", len(out), len(prompt)+2)
	}
	for i := range prompt {
		if out[i] != prompt[i] {
			t.Fatalf("prompt not echoed at %d: %v vs %v", i, out, prompt)
		}
	}
	text, err := h.Decode(context.Background(), out[len(prompt):])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("completion=%q", text)
	}
}

func TestGenerateTemperatureMapping(t *testing.T) {
	f := newFakeLlamaServer("ok")
	h, done := attach(t, f)
	defer done()

	if _, err := h.Generate(context.Background(), []int{0}, GenParams{MaxNewTokens: 4, Temperature: 0.8, DoSample: true}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if f.lastReq.Temperature != 0.8 {
		t.Fatalf("temperature=%v want 0.8", f.lastReq.Temperature)
	}
	if _, err := h.Generate(context.Background(), []int{0}, GenParams{MaxNewTokens: 4, Temperature: 0.8, DoSample: false}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if f.lastReq.Temperature != 0 {
		t.Fatalf("greedy temperature=%v want 0", f.lastReq.Temperature)
	}
	if f.lastReq.Stream {
		t.Fatalf("stream must be false")
	}
}

func TestGenerateServerError(t *testing.T) {
	f := newFakeLlamaServer("x")
	f.failGen = true
	h, done := attach(t, f)
	defer done()

	_, err := h.Generate(context.Background(), []int{0}, GenParams{MaxNewTokens: 4})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("err=%v", err)
	}
}

func TestTokenInfoFromProps(t *testing.T) {
	f := newFakeLlamaServer("x")
	h, done := attach(t, f)
	defer done()

	ti := h.Tokens()
	if ti.EOSID != 2 {
		t.Fatalf("eos=%d", ti.EOSID)
	}
	if ti.PadID != -1 {
		t.Fatalf("pad=%d, want -1 when unreported", ti.PadID)
	}
}

func TestLoadUnhealthyServer(t *testing.T) {
	f := newFakeLlamaServer("x")
	f.healthOK = false
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	rt := NewLlamaServer(LlamaServerConfig{BaseURL: srv.URL}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := rt.Load(ctx, "m.gguf", hw.Plan{}); err == nil {
		t.Fatalf("expected load failure")
	} else if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestLoadNoRuntimeConfigured(t *testing.T) {
	rt := NewLlamaServer(LlamaServerConfig{}, zerolog.Nop())
	_, err := rt.Load(context.Background(), "m.gguf", hw.Plan{})
	if err == nil || !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestStopProcessDrainsWaitChannel(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("start sleep: %v", err)
	}
	waitErrCh := make(chan error, 1)
	go func() { waitErrCh <- cmd.Wait() }()

	done := make(chan struct{})
	go func() {
		stopProcess(cmd, waitErrCh)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGracePeriod + 5*time.Second):
		t.Fatal("stopProcess did not return")
	}
	// The spawn-time Wait goroutine is the only reaper; its result must
	// have been consumed and the process state recorded.
	if cmd.ProcessState == nil {
		t.Fatal("process not reaped")
	}
}

func TestWaitHealthyPutsBackEarlyExit(t *testing.T) {
	cmd := exec.Command("false")
	if err := cmd.Start(); err != nil {
		t.Skipf("start false: %v", err)
	}
	waitErrCh := make(chan error, 1)
	go func() { waitErrCh <- cmd.Wait() }()

	r := NewLlamaServer(LlamaServerConfig{}, zerolog.Nop())
	err := r.waitHealthy(context.Background(), "http://127.0.0.1:1", 10*time.Second, waitErrCh)
	if err == nil || !strings.Contains(err.Error(), "exited early") {
		t.Fatalf("err=%v, want early-exit", err)
	}
	// The exit result goes back on the channel so stopProcess can drain it
	// without a second Wait.
	select {
	case <-waitErrCh:
	default:
		t.Fatal("wait result not put back on waitErrCh")
	}
}
