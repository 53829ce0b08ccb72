// Package config loads process configuration for the imagestudio server.
//
// Precedence: defaults, then the optional YAML file, then .env files, then
// the process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mhpenta/imagestudio"
)

// Config is the complete process configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Session SessionConfig `yaml:"session"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxUploadBytes bounds multipart parsing; the advertised 10MB hint is
	// not enforced below this.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// GeminiConfig configures the model service. The key is not checked here; a
// missing key fails on the first call.
type GeminiConfig struct {
	APIKey          string                `yaml:"api_key"`
	WaitOnRateLimit bool                  `yaml:"wait_on_rate_limit"`
	MaxWait         time.Duration         `yaml:"max_wait"`
	SafetySettings  []SafetySettingConfig `yaml:"safety_settings"`
}

// SafetySettingConfig is one content filter applied to edit requests, using
// the service's names, e.g. HARM_CATEGORY_HARASSMENT and BLOCK_ONLY_HIGH.
type SafetySettingConfig struct {
	Category  string `yaml:"category"`
	Threshold string `yaml:"threshold"`
}

// Safety converts the configured filters.
func (g GeminiConfig) Safety() []imagestudio.SafetySetting {
	if len(g.SafetySettings) == 0 {
		return nil
	}
	out := make([]imagestudio.SafetySetting, 0, len(g.SafetySettings))
	for _, s := range g.SafetySettings {
		out = append(out, imagestudio.SafetySetting{
			Category:  imagestudio.SafetyCategory(s.Category),
			Threshold: imagestudio.SafetyThreshold(s.Threshold),
		})
	}
	return out
}

// SessionConfig configures session behaviour.
type SessionConfig struct {
	DualImageCompose bool `yaml:"dual_image_compose"`
}

// StorageConfig configures where saved downloads go.
type StorageConfig struct {
	DownloadDir string `yaml:"download_dir"`
}

// Environment variable names.
const (
	EnvAPIKey          = "API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvAddr            = "IMAGESTUDIO_ADDR"
	EnvLogLevel        = "IMAGESTUDIO_LOG_LEVEL"
	EnvLogFormat       = "IMAGESTUDIO_LOG_FORMAT"
	EnvDownloadDir     = "IMAGESTUDIO_DOWNLOAD_DIR"
	EnvDualCompose     = "IMAGESTUDIO_DUAL_IMAGE_COMPOSE"
	EnvWaitOnRateLimit = "IMAGESTUDIO_WAIT_ON_RATE_LIMIT"
	EnvMaxWait         = "IMAGESTUDIO_MAX_WAIT"
)

// DefaultEnvFiles are read when present.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			DownloadDir: "downloads",
		},
	}
}

// Loader assembles a Config from its sources.
type Loader struct {
	path     string
	envFiles []string
	lookup   func(string) (string, bool)
}

// NewLoader returns a loader that reads DefaultEnvFiles and the process
// environment.
func NewLoader() *Loader {
	return &Loader{
		envFiles: DefaultEnvFiles,
		lookup:   os.LookupEnv,
	}
}

// WithConfigPath sets the YAML file to read. An empty path skips the file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvFiles replaces the .env files to read. Missing files are skipped.
func (l *Loader) WithEnvFiles(files ...string) *Loader {
	l.envFiles = files
	return l
}

// WithLookup replaces the environment lookup.
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	l.lookup = lookup
	return l
}

// Load builds the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		if err := loadYAML(l.path, cfg); err != nil {
			return nil, err
		}
	}

	dotenv, err := readEnvFiles(l.envFiles)
	if err != nil {
		return nil, err
	}

	// The process environment wins over .env values.
	lookup := func(key string) (string, bool) {
		if v, ok := l.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(present...)
	if err != nil {
		return nil, fmt.Errorf("read env files: %w", err)
	}
	return values, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(EnvAddr, &cfg.Server.Addr)
	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFormat, &cfg.Log.Format)
	str(EnvDownloadDir, &cfg.Storage.DownloadDir)

	// API_KEY is the primary name; GEMINI_API_KEY is accepted as well.
	str(EnvGeminiAPIKey, &cfg.Gemini.APIKey)
	str(EnvAPIKey, &cfg.Gemini.APIKey)

	if v, ok := lookup(EnvDualCompose); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDualCompose, err)
		}
		cfg.Session.DualImageCompose = b
	}
	if v, ok := lookup(EnvWaitOnRateLimit); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWaitOnRateLimit, err)
		}
		cfg.Gemini.WaitOnRateLimit = b
	}
	if v, ok := lookup(EnvMaxWait); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxWait, err)
		}
		cfg.Gemini.MaxWait = d
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	for _, s := range c.Gemini.Safety() {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("gemini.safety_settings: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
