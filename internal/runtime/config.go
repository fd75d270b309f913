// Package runtime holds the configuration shared across the planforge CLI
// and server entry points.
package runtime

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures every knob shared across the serve and generate entry
// points. Keeping it as a lightweight struct makes it trivial to reuse in
// tests or future headless workflows.
type Config struct {
	ServerAddr string

	OllamaEndpoint string
	OllamaModel    string
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration

	PrimaryTimeout time.Duration
	RetryTimeout   time.Duration
	OverallTimeout time.Duration
	MinResponseLen int

	ProbeRetries int
	ProbeBackoff time.Duration

	ExaAPIKey   string
	ExaEndpoint string

	TelemetryPath string
	DebugLLM      bool
}

// DefaultConfig returns the defaults used when no environment or file
// overrides are present. Turn timeouts are generous on purpose: large local
// models routinely take minutes per reply.
func DefaultConfig() Config {
	return Config{
		ServerAddr:     ":8004",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "llama3",
		Temperature:    0.3,
		RequestTimeout: 15 * time.Minute,
		PrimaryTimeout: 10 * time.Minute,
		RetryTimeout:   2 * time.Minute,
		OverallTimeout: 15 * time.Minute,
		MinResponseLen: 50,
		ProbeRetries:   5,
		ProbeBackoff:   2 * time.Second,
	}
}

// LoadEnv applies environment overrides on top of the current values. A
// .env file in the working directory is honored when present.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()

	setString(&c.ServerAddr, "PLANFORGE_ADDR")
	setString(&c.OllamaEndpoint, "OLLAMA_ENDPOINT", "OLLAMA_HOST")
	setString(&c.OllamaModel, "OLLAMA_MODEL")
	setFloat(&c.Temperature, "PLANFORGE_TEMPERATURE")
	setInt(&c.MaxTokens, "PLANFORGE_MAX_TOKENS")
	setDuration(&c.RequestTimeout, "PLANFORGE_REQUEST_TIMEOUT")
	setDuration(&c.PrimaryTimeout, "PLANFORGE_PRIMARY_TIMEOUT")
	setDuration(&c.RetryTimeout, "PLANFORGE_RETRY_TIMEOUT")
	setDuration(&c.OverallTimeout, "PLANFORGE_OVERALL_TIMEOUT")
	setInt(&c.MinResponseLen, "PLANFORGE_MIN_RESPONSE_LEN")
	setInt(&c.ProbeRetries, "PLANFORGE_PROBE_RETRIES")
	setDuration(&c.ProbeBackoff, "PLANFORGE_PROBE_BACKOFF")
	setString(&c.ExaAPIKey, "EXA_API_KEY")
	setString(&c.ExaEndpoint, "EXA_API_URL")
	setString(&c.TelemetryPath, "PLANFORGE_TELEMETRY_LOG")
	setBool(&c.DebugLLM, "PLANFORGE_DEBUG_LLM")
}

// fileConfig mirrors the YAML override file. Pointers distinguish "absent"
// from zero values so a file only overrides what it names.
type fileConfig struct {
	Addr           string   `yaml:"addr"`
	Endpoint       string   `yaml:"endpoint"`
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      *int     `yaml:"max_tokens"`
	RequestTimeout string   `yaml:"request_timeout"`
	PrimaryTimeout string   `yaml:"primary_timeout"`
	RetryTimeout   string   `yaml:"retry_timeout"`
	OverallTimeout string   `yaml:"overall_timeout"`
	MinResponseLen *int     `yaml:"min_response_len"`
	ProbeRetries   *int     `yaml:"probe_retries"`
	ProbeBackoff   string   `yaml:"probe_backoff"`
	TelemetryPath  string   `yaml:"telemetry_log"`
	DebugLLM       *bool    `yaml:"debug_llm"`
}

// LoadFile applies overrides from a YAML file. A missing file is not an
// error so the flag can point at an optional workspace config.
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if fc.Addr != "" {
		c.ServerAddr = fc.Addr
	}
	if fc.Endpoint != "" {
		c.OllamaEndpoint = fc.Endpoint
	}
	if fc.Model != "" {
		c.OllamaModel = fc.Model
	}
	if fc.Temperature != nil {
		c.Temperature = *fc.Temperature
	}
	if fc.MaxTokens != nil {
		c.MaxTokens = *fc.MaxTokens
	}
	if err := applyDuration(&c.RequestTimeout, "request_timeout", fc.RequestTimeout); err != nil {
		return err
	}
	if err := applyDuration(&c.PrimaryTimeout, "primary_timeout", fc.PrimaryTimeout); err != nil {
		return err
	}
	if err := applyDuration(&c.RetryTimeout, "retry_timeout", fc.RetryTimeout); err != nil {
		return err
	}
	if err := applyDuration(&c.OverallTimeout, "overall_timeout", fc.OverallTimeout); err != nil {
		return err
	}
	if fc.MinResponseLen != nil {
		c.MinResponseLen = *fc.MinResponseLen
	}
	if fc.ProbeRetries != nil {
		c.ProbeRetries = *fc.ProbeRetries
	}
	if err := applyDuration(&c.ProbeBackoff, "probe_backoff", fc.ProbeBackoff); err != nil {
		return err
	}
	if fc.TelemetryPath != "" {
		c.TelemetryPath = fc.TelemetryPath
	}
	if fc.DebugLLM != nil {
		c.DebugLLM = *fc.DebugLLM
	}
	return nil
}

// Normalize fills missing defaults and enforces the invariants the rest of
// the runtime assumes, so initialization never re-checks them.
func (c *Config) Normalize() error {
	defaults := DefaultConfig()
	if c.ServerAddr == "" {
		c.ServerAddr = defaults.ServerAddr
	}
	if c.OllamaEndpoint == "" {
		c.OllamaEndpoint = defaults.OllamaEndpoint
	}
	if c.OllamaModel == "" {
		c.OllamaModel = defaults.OllamaModel
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.PrimaryTimeout <= 0 {
		c.PrimaryTimeout = defaults.PrimaryTimeout
	}
	if c.RetryTimeout <= 0 {
		c.RetryTimeout = defaults.RetryTimeout
	}
	if c.RetryTimeout >= c.PrimaryTimeout {
		return fmt.Errorf("retry timeout (%s) must be smaller than primary timeout (%s)", c.RetryTimeout, c.PrimaryTimeout)
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = defaults.OverallTimeout
	}
	if c.MinResponseLen <= 0 {
		c.MinResponseLen = defaults.MinResponseLen
	}
	if c.ProbeRetries <= 0 {
		c.ProbeRetries = defaults.ProbeRetries
	}
	if c.ProbeBackoff <= 0 {
		c.ProbeBackoff = defaults.ProbeBackoff
	}
	return nil
}

func applyDuration(dst *time.Duration, name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
