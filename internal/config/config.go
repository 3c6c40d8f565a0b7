// Package config loads gateway settings from an optional config.yaml overlaid
// by environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of gateway environment variables. Nested keys use a
// double underscore: RXGW_SERVER__PORT sets server.port.
const EnvPrefix = "RXGW_"

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Model     ModelConfig     `koanf:"model"`
	Prompt    PromptConfig    `koanf:"prompt"`
	Fallback  FallbackConfig  `koanf:"fallback"`
	Upload    UploadConfig    `koanf:"upload"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port int `koanf:"port"`

	// StreamTimeout bounds one streamed answer.
	StreamTimeout time.Duration `koanf:"stream_timeout"`

	// RequestTimeout bounds validation and unary answers.
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type ModelConfig struct {
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"` // Custom API endpoint
	Name            string        `koanf:"name"`
	Temperature     float32       `koanf:"temperature"`
	MaxOutputTokens int32         `koanf:"max_output_tokens"`
	PreCallDelay    time.Duration `koanf:"pre_call_delay"` // 0 disables
}

type PromptConfig struct {
	SystemInstruction   string `koanf:"system_instruction"`
	AnalysisInstruction string `koanf:"analysis_instruction"`
}

type FallbackConfig struct {
	WordDelay time.Duration `koanf:"word_delay"`
}

type UploadConfig struct {
	MaxBytes int64 `koanf:"max_bytes"`
}

type TelemetryConfig struct {
	Exporter string `koanf:"exporter"` // stdout, none
}

// Configured reports whether a model credential is present.
func (c *Config) Configured() bool {
	return strings.TrimSpace(c.Model.APIKey) != ""
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.stream_timeout":   "5m",
	"server.request_timeout":  "2m",
	"server.shutdown_timeout": "10s",
	"model.name":              "gemini-2.5-flash-lite",
	"model.temperature":       0.7,
	"model.max_output_tokens": 2048,
	"model.pre_call_delay":    "1s",
	"fallback.word_delay":     "50ms",
	"upload.max_bytes":        25 * 1024 * 1024,
	"telemetry.exporter":      "stdout",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultFile if it exists, then the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultFile)
}

// LoadFile reads path if it exists, then the environment. A missing file is
// not an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	// Environment variables override file config
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Model.APIKey = substituteEnvVars(cfg.Model.APIKey)
	applyLegacyEnv(&cfg)

	return &cfg, nil
}

// applyLegacyEnv honours the variable names the service has always used.
func applyLegacyEnv(cfg *Config) {
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if system := os.Getenv("SYSTEM_PROMPT"); system != "" {
		if cfg.Prompt.SystemInstruction == "" {
			cfg.Prompt.SystemInstruction = system
		}
		if cfg.Prompt.AnalysisInstruction == "" {
			cfg.Prompt.AnalysisInstruction = system
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
