package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/hw"
	"inferd/internal/manager"
	"inferd/internal/registry"
	"inferd/internal/runtime"
)

const (
	defaultHost      = "127.0.0.1"
	defaultPort      = 8000
	defaultModelsDir = "~/models/llm"
	shutdownGrace    = 5 * time.Second
)

// newRootCmd builds the inferd command. Precedence for every setting is
// flag > config file > INFERD_* environment default > built-in default;
// env values are baked into the flag defaults so --help shows the
// effective value.
func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "inferd",
		Short: "Serve a local model behind an OpenAI-compatible chat-completion API",
		Long: "inferd loads a single local model through a llama-server runtime and\n" +
			"exposes it as POST /v1/chat/completions plus health and metrics endpoints.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", os.Getenv("INFERD_CONFIG"), "Config file (.yaml/.yml/.json/.toml); flags override it")
	f.String("model", os.Getenv("INFERD_MODEL"), "Model id (looked up in --models-dir) or direct .gguf path (required)")
	f.String("host", envStr("INFERD_HOST", defaultHost), "HTTP bind host")
	f.Int("port", envInt("INFERD_PORT", defaultPort), "HTTP bind port")
	f.String("models-dir", envStr("INFERD_MODELS_DIR", defaultModelsDir), "Directory scanned for *.gguf files when --model is an id")
	f.String("runtime-url", os.Getenv("INFERD_RUNTIME_URL"), "Base URL of an already-running llama-server (skips spawning)")
	f.String("runtime-bin", os.Getenv("INFERD_RUNTIME_BIN"), "Path to a llama-server binary to spawn")
	f.Int("context-size", 0, "Context window passed to the spawned runtime (0=runtime default)")
	f.Int("threads", 0, "CPU threads passed to the spawned runtime (0=runtime default)")
	f.Bool("force-cpu", false, "Skip the accelerator probe and load on the host CPU")
	f.Int("max-queue-depth", 0, "Waiting generation requests before 429 (0=default)")
	f.Int("max-wait-seconds", 0, "Max seconds a request may queue before 429 (0=default)")
	f.Int("gen-timeout-seconds", 0, "Per-generation timeout in seconds (0=off)")
	f.String("cors-origins", "", "Comma-separated allowed CORS origins (empty disables CORS)")
	f.String("log-level", envStr("INFERD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	return cmd
}

// resolveConfig layers the config file (when given) under the flags.
// A flag value wins when the user set it explicitly or when the file left
// the field empty.
func resolveConfig(cmd *cobra.Command, configPath string) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	overlayStr := func(name string, dst *string) {
		v, _ := f.GetString(name)
		if f.Changed(name) || *dst == "" {
			*dst = v
		}
	}
	overlayInt := func(name string, dst *int) {
		v, _ := f.GetInt(name)
		if f.Changed(name) || *dst == 0 {
			*dst = v
		}
	}
	overlayStr("model", &cfg.Model)
	overlayStr("host", &cfg.Host)
	overlayInt("port", &cfg.Port)
	overlayStr("models-dir", &cfg.ModelsDir)
	overlayStr("runtime-url", &cfg.RuntimeURL)
	overlayStr("runtime-bin", &cfg.RuntimeBin)
	overlayInt("context-size", &cfg.ContextSize)
	overlayInt("threads", &cfg.Threads)
	overlayInt("max-queue-depth", &cfg.MaxQueueDepth)
	overlayInt("max-wait-seconds", &cfg.MaxWaitSeconds)
	overlayInt("gen-timeout-seconds", &cfg.GenTimeoutSeconds)
	overlayStr("cors-origins", &cfg.CORSOrigins)
	overlayStr("log-level", &cfg.LogLevel)
	if forceCPU, _ := f.GetBool("force-cpu"); forceCPU {
		cfg.ForceCPU = true
	}
	return cfg, nil
}

// run wires the process together: probe hardware, resolve the model, load
// it through the runtime, then serve until a signal arrives. Any failure
// before the listener binds is returned and becomes a non-zero exit.
func run(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := registry.Resolve(cfg.Model, cfg.ModelsDir)
	if err != nil {
		return err
	}

	caps := hw.Capabilities{}
	if !cfg.ForceCPU {
		caps = hw.Detect(ctx)
	}

	rt := runtime.NewLlamaServer(runtime.LlamaServerConfig{
		BaseURL:     cfg.RuntimeURL,
		BinPath:     cfg.RuntimeBin,
		ContextSize: cfg.ContextSize,
		Threads:     cfg.Threads,
	}, log)

	mgr := manager.New(manager.ManagerConfig{
		ModelID:       model.ID,
		ModelPath:     model.Path,
		Caps:          caps,
		Runtime:       rt,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitSeconds) * time.Second,
		GenTimeout:    time.Duration(cfg.GenTimeoutSeconds) * time.Second,
		Logger:        log,
	})

	// Fatal on failure: serving half-initialized is worse than not serving.
	if err := mgr.Load(ctx); err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("runtime teardown")
		}
	}()

	httpapi.SetLogger(log)
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	httpapi.SetBaseContext(baseCtx)
	if origins := splitCSV(cfg.CORSOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
			[]string{"Content-Type", "Authorization"})
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("model", model.ID).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	cancelRequests()
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return <-errCh
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// splitCSV splits a comma-separated list, trimming spaces and dropping
// empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
