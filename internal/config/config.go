// Package config loads the settings of the chorus command from a file, a .env file and the
// environment, in that order of precedence from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every chorus specific environment variable.
const EnvPrefix = "CHORUS_"

// Duration reads as a Go duration string ("250ms", "1s") in every file format.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Dispatch struct {
	MaxConcurrent int      `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	RetryCount    int      `json:"retry_count" yaml:"retry_count" toml:"retry_count"`
	RetryDelay    Duration `json:"retry_delay" yaml:"retry_delay" toml:"retry_delay"`
	MaxQueued     int      `json:"max_queued" yaml:"max_queued" toml:"max_queued"`
}

type Render struct {
	ChunkSize             int      `json:"chunk_size" yaml:"chunk_size" toml:"chunk_size"`
	TypingSpeed           Duration `json:"typing_speed" yaml:"typing_speed" toml:"typing_speed"`
	MaxTypingSpeed        Duration `json:"max_typing_speed" yaml:"max_typing_speed" toml:"max_typing_speed"`
	LongResponseThreshold int      `json:"long_response_threshold" yaml:"long_response_threshold" toml:"long_response_threshold"`
}

type OpenAI struct {
	APIKey  string `json:"api_key" yaml:"api_key" toml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url"`
}

// NATS publishing is on when Subject is set.
type NATS struct {
	URL     string `json:"url" yaml:"url" toml:"url"`
	Subject string `json:"subject" yaml:"subject" toml:"subject"`
}

// Config holds everything the chorus command can be told.
type Config struct {
	Models       []string `json:"models" yaml:"models" toml:"models"`
	Instructions string   `json:"instructions" yaml:"instructions" toml:"instructions"`
	Stream       bool     `json:"stream" yaml:"stream" toml:"stream"`
	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`

	Dispatch Dispatch `json:"dispatch" yaml:"dispatch" toml:"dispatch"`
	Render   Render   `json:"render" yaml:"render" toml:"render"`
	OpenAI   OpenAI   `json:"openai" yaml:"openai" toml:"openai"`
	NATS     NATS     `json:"nats" yaml:"nats" toml:"nats"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Models:   []string{"gpt-4o-mini"},
		Stream:   true,
		LogLevel: "info",
		Dispatch: Dispatch{
			MaxConcurrent: 5,
			RetryCount:    2,
			RetryDelay:    Duration(time.Second),
		},
		Render: Render{
			ChunkSize:             100,
			TypingSpeed:           Duration(30 * time.Millisecond),
			MaxTypingSpeed:        Duration(5 * time.Millisecond),
			LongResponseThreshold: 1000,
		},
	}
}

// Load reads a configuration file over the defaults based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv exports the variables of the given .env files, or ./.env without arguments.
// Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with the environment as seen through lookup, usually os.LookupEnv.
// Every malformed value is reported.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok {
			if err := dst.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	if v, ok := lookup(EnvPrefix + "MODELS"); ok {
		cfg.Models = splitList(v)
	}
	str(EnvPrefix+"INSTRUCTIONS", &cfg.Instructions)
	if v, ok := lookup(EnvPrefix + "STREAM"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSTREAM: %w", EnvPrefix, err))
		} else {
			cfg.Stream = b
		}
	}
	str(EnvPrefix+"LOG_LEVEL", &cfg.LogLevel)

	num(EnvPrefix+"MAX_CONCURRENT", &cfg.Dispatch.MaxConcurrent)
	num(EnvPrefix+"RETRY_COUNT", &cfg.Dispatch.RetryCount)
	dur(EnvPrefix+"RETRY_DELAY", &cfg.Dispatch.RetryDelay)
	num(EnvPrefix+"MAX_QUEUED", &cfg.Dispatch.MaxQueued)

	num(EnvPrefix+"CHUNK_SIZE", &cfg.Render.ChunkSize)
	dur(EnvPrefix+"TYPING_SPEED", &cfg.Render.TypingSpeed)
	dur(EnvPrefix+"MAX_TYPING_SPEED", &cfg.Render.MaxTypingSpeed)
	num(EnvPrefix+"LONG_RESPONSE_THRESHOLD", &cfg.Render.LongResponseThreshold)

	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	str("NATS_URL", &cfg.NATS.URL)
	str(EnvPrefix+"NATS_SUBJECT", &cfg.NATS.Subject)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.Models) == 0 {
		errs = append(errs, errors.New("at least one model is required"))
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, errors.New("model names cannot be empty"))
			continue
		}
		if seen[m] {
			errs = append(errs, fmt.Errorf("model %q is listed twice", m))
		}
		seen[m] = true
	}
	if c.Dispatch.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("dispatch.max_concurrent must be at least 1, got %d", c.Dispatch.MaxConcurrent))
	}
	if c.Dispatch.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("dispatch.retry_count cannot be negative, got %d", c.Dispatch.RetryCount))
	}
	if c.Dispatch.RetryDelay < 0 {
		errs = append(errs, errors.New("dispatch.retry_delay cannot be negative"))
	}
	if c.Dispatch.MaxQueued < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_queued cannot be negative, got %d", c.Dispatch.MaxQueued))
	}
	if c.Render.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("render.chunk_size must be at least 1, got %d", c.Render.ChunkSize))
	}
	if c.Render.TypingSpeed < 0 || c.Render.MaxTypingSpeed < 0 {
		errs = append(errs, errors.New("render typing speeds cannot be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
