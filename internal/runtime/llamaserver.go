package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/internal/hw"
)

// LlamaServerConfig configures the llama-server backed runtime.
type LlamaServerConfig struct {
	// BaseURL of an already-running llama-server. When set, BinPath is
	// ignored and no subprocess is spawned.
	BaseURL string
	// BinPath is the llama-server binary to spawn when BaseURL is empty.
	BinPath string
	// Host to bind the spawned server to. Defaults to 127.0.0.1.
	Host string
	// ContextSize and Threads are passed through to the spawned server.
	ContextSize int
	Threads     int
	// StartTimeout bounds the readiness wait after spawn.
	StartTimeout time.Duration
}

const (
	defaultStartTimeout = 120 * time.Second
	stopGracePeriod     = 2 * time.Second
	// Full offload when the plan selects the accelerator; llama-server
	// clamps this to the model's layer count.
	fullGPULayers = 999
)

// LlamaServer implements Runtime against llama.cpp's llama-server HTTP API
// (/tokenize, /detokenize, /completion, /health). It optionally owns the
// server subprocess for the life of the handle.
type LlamaServer struct {
	cfg LlamaServerConfig
	cli *http.Client
	log zerolog.Logger
}

// NewLlamaServer constructs the runtime. The client carries no global
// timeout; every call goes through http.NewRequestWithContext so deadlines
// come from the caller's context.
func NewLlamaServer(cfg LlamaServerConfig, log zerolog.Logger) *LlamaServer {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	return &LlamaServer{
		cfg: cfg,
		cli: &http.Client{Transport: tr, Timeout: 0},
		log: log.With().Str("component", "runtime").Logger(),
	}
}

// Load brings up (or attaches to) a llama-server for modelPath and waits
// until it reports healthy. Spawn flags are derived from the plan: the
// accelerator device gets full layer offload, the host device none.
func (r *LlamaServer) Load(ctx context.Context, modelPath string, plan hw.Plan) (Handle, error) {
	if base := strings.TrimSpace(r.cfg.BaseURL); base != "" {
		h := &llamaHandle{rt: r, baseURL: strings.TrimRight(base, "/")}
		if err := r.waitHealthy(ctx, h.baseURL, 10*time.Second, nil); err != nil {
			return nil, ErrUnavailable(fmt.Sprintf("llama-server at %s: %v", base, err))
		}
		h.tokens = r.fetchTokenInfo(ctx, h.baseURL)
		r.log.Info().Str("url", h.baseURL).Msg("attached to running llama-server")
		return h, nil
	}
	if r.cfg.BinPath == "" {
		return nil, ErrUnavailable("no runtime configured: set runtime_url or runtime_bin")
	}
	if !fsutil.IsFile(r.cfg.BinPath) {
		return nil, ErrUnavailable("llama-server binary not found: " + r.cfg.BinPath)
	}
	return r.spawn(ctx, modelPath, plan)
}

func (r *LlamaServer) spawn(ctx context.Context, modelPath string, plan hw.Plan) (Handle, error) {
	port, err := pickFreePort(r.cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("pick port: %w", err)
	}
	baseURL := fmt.Sprintf("http://%s:%d", r.cfg.Host, port)

	args := []string{
		"-m", modelPath,
		"--host", r.cfg.Host,
		"--port", strconv.Itoa(port),
	}
	if r.cfg.ContextSize > 0 {
		args = append(args, "-c", strconv.Itoa(r.cfg.ContextSize))
	}
	if r.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(r.cfg.Threads))
	}
	if plan.Device == hw.DeviceCUDA {
		args = append(args, "-ngl", strconv.Itoa(fullGPULayers))
	} else {
		args = append(args, "-ngl", "0")
	}

	cmd := exec.Command(r.cfg.BinPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	r.log.Info().
		Int("pid", cmd.Process.Pid).
		Str("url", baseURL).
		Str("precision", string(plan.Precision)).
		Str("device", string(plan.Device)).
		Msg("llama-server spawned")

	// Surface a non-zero exit before readiness instead of timing out.
	waitErrCh := make(chan error, 1)
	go func() { waitErrCh <- cmd.Wait() }()

	if err := r.waitHealthy(ctx, baseURL, r.cfg.StartTimeout, waitErrCh); err != nil {
		stopProcess(cmd, waitErrCh)
		tail := stderr.String()
		if len(tail) > 4096 {
			tail = tail[len(tail)-4096:]
		}
		if tail != "" {
			err = fmt.Errorf("%w; stderr tail: %s", err, tail)
		}
		return nil, err
	}
	h := &llamaHandle{rt: r, baseURL: baseURL, cmd: cmd, waitErrCh: waitErrCh}
	h.tokens = r.fetchTokenInfo(ctx, baseURL)
	return h, nil
}

// waitHealthy polls GET /health until 200, the deadline passes, the context
// ends, or the subprocess exits early. An exit result peeked off waitErrCh
// is put back so stopProcess can still drain the channel.
func (r *LlamaServer) waitHealthy(ctx context.Context, baseURL string, timeout time.Duration, waitErrCh chan error) error {
	deadline := time.Now().Add(timeout)
	for {
		if waitErrCh != nil {
			select {
			case werr := <-waitErrCh:
				waitErrCh <- werr
				if werr != nil {
					return fmt.Errorf("llama-server exited early: %w", werr)
				}
				return fmt.Errorf("llama-server exited before ready: %s", baseURL)
			default:
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("llama-server not ready in time: %s", baseURL)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		hctx, cancel := context.WithTimeout(ctx, time.Second)
		req, _ := http.NewRequestWithContext(hctx, http.MethodGet, baseURL+"/health", nil)
		resp, err := r.cli.Do(req)
		cancel()
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// fetchTokenInfo best-effort reads special token ids from GET /props.
// Servers that do not expose them leave the ids at -1; the lifecycle
// manager then falls back to its own normalization.
func (r *LlamaServer) fetchTokenInfo(ctx context.Context, baseURL string) TokenInfo {
	info := TokenInfo{EOSID: -1, PadID: -1}
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(hctx, http.MethodGet, baseURL+"/props", nil)
	if err != nil {
		return info
	}
	resp, err := r.cli.Do(req)
	if err != nil {
		return info
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return info
	}
	var props struct {
		EOSTokenID *int `json:"eos_token_id"`
		PadTokenID *int `json:"pad_token_id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&props); err != nil {
		return info
	}
	if props.EOSTokenID != nil {
		info.EOSID = *props.EOSTokenID
	}
	if props.PadTokenID != nil {
		info.PadID = *props.PadTokenID
	}
	return info
}

// llamaHandle is a loaded model behind a llama-server.
type llamaHandle struct {
	rt        *LlamaServer
	baseURL   string
	tokens    TokenInfo
	cmd       *exec.Cmd // nil when attached to an external server
	waitErrCh <-chan error
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

type completionRequest struct {
	Prompt      []int   `json:"prompt"`
	NPredict    int     `json:"n_predict"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type completionResponse struct {
	Content         string `json:"content"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
}

func (h *llamaHandle) Encode(ctx context.Context, text string) ([]int, error) {
	var out tokenizeResponse
	if err := h.post(ctx, "/tokenize", tokenizeRequest{Content: text}, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

func (h *llamaHandle) Decode(ctx context.Context, ids []int) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	var out detokenizeResponse
	if err := h.post(ctx, "/detokenize", detokenizeRequest{Tokens: ids}, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// Generate runs one non-streaming completion. llama-server returns the new
// text only, so the full sequence is rebuilt as prompt ids plus the
// re-encoded continuation to satisfy the echoed-prompt contract.
func (h *llamaHandle) Generate(ctx context.Context, promptIDs []int, p GenParams) ([]int, error) {
	temp := p.Temperature
	if !p.DoSample {
		// llama-server treats temperature 0 as greedy decoding.
		temp = 0
	}
	var out completionResponse
	req := completionRequest{
		Prompt:      promptIDs,
		NPredict:    p.MaxNewTokens,
		Temperature: temp,
		Stream:      false,
	}
	if err := h.post(ctx, "/completion", req, &out); err != nil {
		return nil, err
	}
	newIDs, err := h.Encode(ctx, out.Content)
	if err != nil {
		return nil, fmt.Errorf("re-encode completion: %w", err)
	}
	return append(append([]int(nil), promptIDs...), newIDs...), nil
}

func (h *llamaHandle) Tokens() TokenInfo { return h.tokens }

// Close stops the owned subprocess, if any.
func (h *llamaHandle) Close() error {
	if h.cmd == nil {
		return nil
	}
	stopProcess(h.cmd, h.waitErrCh)
	h.cmd = nil
	return nil
}

func (h *llamaHandle) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.rt.cli.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llama-server %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out)
}

// stopProcess terminates a spawned server, SIGTERM first, then kill.
// waitErrCh is the channel the spawn-time cmd.Wait goroutine reports on;
// draining it is the only reap, a second Wait on the same process is not
// allowed by os/exec.
func stopProcess(cmd *exec.Cmd, waitErrCh <-chan error) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-waitErrCh:
	case <-time.After(stopGracePeriod):
		_ = cmd.Process.Kill()
		<-waitErrCh
	}
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", host+":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr := l.Addr().String()
	lastColon := strings.LastIndex(addr, ":")
	if lastColon < 0 {
		return 0, fmt.Errorf("unexpected addr: %s", addr)
	}
	return strconv.Atoi(addr[lastColon+1:])
}
