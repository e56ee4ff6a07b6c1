package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Audit    AuditConfig    `koanf:"audit"`
	Scan     ScanConfig     `koanf:"scan"`
	Session  SessionConfig  `koanf:"session"`
	Runtime  RuntimeConfig  `koanf:"runtime"`
	Scanners ScannersConfig `koanf:"scanners"`
}

type ServerConfig struct {
	Host               string   `koanf:"host"`
	Port               int      `koanf:"port"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int    `koanf:"max_conns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type AuditConfig struct {
	Enabled         bool `koanf:"enabled"`
	BufferSize      int  `koanf:"buffer_size"`
	BatchSize       int  `koanf:"batch_size"`
	FlushIntervalMS int  `koanf:"flush_interval_ms"`
}

// ScanConfig controls how the HTTP surface runs scanner chains.
type ScanConfig struct {
	FailFast       bool    `koanf:"fail_fast"`
	TimeoutSecs    int     `koanf:"timeout_secs"`
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

type SessionConfig struct {
	TTLSecs           int `koanf:"ttl_secs"`
	SweepIntervalSecs int `koanf:"sweep_interval_secs"`
}

// RuntimeConfig points model-backed scanners at their inference backends.
type RuntimeConfig struct {
	Device      string `koanf:"device"`
	ModelURL    string `koanf:"model_url"`
	NERURL      string `koanf:"ner_url"`
	TimeoutSecs int    `koanf:"timeout_secs"`
}

type ScannersConfig struct {
	Input  []ScannerSpec `koanf:"input"`
	Output []ScannerSpec `koanf:"output"`
}

// ScannerSpec names one scanner in a chain. Params are decoded by the
// scanner factory registered for Type.
type ScannerSpec struct {
	Name   string         `koanf:"name"`
	Type   string         `koanf:"type"`
	Params map[string]any `koanf:"params"`
}

// Load reads configuration from defaults, optional YAML files, then env vars.
// Env vars use prefix LLMGUARD_ and underscore-separated keys.
// Example: LLMGUARD_SERVER_PORT=9090 sets server.port.
func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"server.host":                 "0.0.0.0",
		"server.port":                 8080,
		"database.max_conns":          10,
		"log.level":                   "info",
		"log.format":                  "json",
		"audit.enabled":               false,
		"audit.buffer_size":           4096,
		"audit.batch_size":            100,
		"audit.flush_interval_ms":     500,
		"scan.fail_fast":              false,
		"scan.timeout_secs":           30,
		"scan.rate_limit_rps":         0.0,
		"scan.rate_limit_burst":       20,
		"session.ttl_secs":            3600,
		"session.sweep_interval_secs": 60,
		"runtime.device":              "cpu",
		"runtime.timeout_secs":        10,
		"scanners.input":              DefaultInputScanners(),
		"scanners.output":             DefaultOutputScanners(),
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("LLMGUARD_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// envKey maps LLMGUARD_SCAN_FAIL_FAST to scan.fail_fast. The first
// underscore separates the section; the rest belong to the leaf key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "LLMGUARD_"))
	section, leaf, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + leaf
}

// DefaultInputScanners is the prompt chain used when no config file
// overrides scanners.input.
func DefaultInputScanners() []map[string]any {
	return []map[string]any{
		{"name": "Anonymize", "type": "anonymize"},
		{"name": "PromptInjection", "type": "prompt_injection"},
	}
}

// DefaultOutputScanners is the output chain used when no config file
// overrides scanners.output.
func DefaultOutputScanners() []map[string]any {
	return []map[string]any{
		{"name": "Deanonymize", "type": "deanonymize"},
	}
}
