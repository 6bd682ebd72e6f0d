package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	// Model is a model id (resolved against ModelsDir) or a direct .gguf path.
	Model     string `json:"model" yaml:"model" toml:"model"`
	Host      string `json:"host" yaml:"host" toml:"host"`
	Port      int    `json:"port" yaml:"port" toml:"port"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// Model runtime: either a preexisting llama-server base URL, or the
	// path to a llama-server binary to spawn.
	RuntimeURL string `json:"runtime_url" yaml:"runtime_url" toml:"runtime_url"`
	RuntimeBin string `json:"runtime_bin" yaml:"runtime_bin" toml:"runtime_bin"`

	ContextSize int  `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int  `json:"threads" yaml:"threads" toml:"threads"`
	ForceCPU    bool `json:"force_cpu" yaml:"force_cpu" toml:"force_cpu"`

	MaxQueueDepth     int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds    int `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	GenTimeoutSeconds int `json:"gen_timeout_seconds" yaml:"gen_timeout_seconds" toml:"gen_timeout_seconds"`

	// CORSOrigins is a comma-separated allow list; empty disables CORS.
	CORSOrigins string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
