// Package config resolves kith settings from the config file, the
// environment, and CLI flags, in ascending precedence. Every resolved
// value remembers where it came from so `kith config` can show the user
// which layer won.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath  string
	CLIBackend  string
	CLIDBPath   string
	CLIStrategy string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath   ResolvedValue `json:"db_path"`
	Backend  ResolvedValue `json:"backend"`
	Strategy ResolvedValue `json:"strategy"`

	QuotaPerMinute ResolvedValue `json:"quota_per_minute"`
	QuotaPerHour   ResolvedValue `json:"quota_per_hour"`
	QuotaPerDay    ResolvedValue `json:"quota_per_day"`

	// APIKeys maps provider name to its resolved key. Keys never appear
	// in logs or in `kith config` output; only their source does.
	APIKeys map[string]ResolvedValue `json:"-"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	LLM    struct {
		Backend  string `yaml:"backend"`
		APIKey   string `yaml:"api_key"`
		Strategy string `yaml:"strategy"`
	} `yaml:"llm"`
	Quota struct {
		PerMinute int `yaml:"per_minute"`
		PerHour   int `yaml:"per_hour"`
		PerDay    int `yaml:"per_day"`
	} `yaml:"quota"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kith", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		APIKeys:    map[string]ResolvedValue{},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Backend, cfg.LLM.Backend, SourceConfig, path)
		apply(&out.Strategy, cfg.LLM.Strategy, SourceConfig, path)
		applyInt(&out.QuotaPerMinute, cfg.Quota.PerMinute, SourceConfig, path)
		applyInt(&out.QuotaPerHour, cfg.Quota.PerHour, SourceConfig, path)
		applyInt(&out.QuotaPerDay, cfg.Quota.PerDay, SourceConfig, path)

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			provider := providerOf(cfg.LLM.Backend)
			if provider == "" {
				provider = "default"
			}
			out.APIKeys[provider] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.DBPath, "KITH_DB")
	applyEnv(&out.Backend, "KITH_BACKEND")
	applyEnv(&out.Strategy, "KITH_STRATEGY")
	applyEnv(&out.QuotaPerMinute, "KITH_QUOTA_PER_MINUTE")
	applyEnv(&out.QuotaPerHour, "KITH_QUOTA_PER_HOUR")
	applyEnv(&out.QuotaPerDay, "KITH_QUOTA_PER_DAY")

	for env, provider := range map[string]string{
		"OPENROUTER_API_KEY": "openrouter",
		"GEMINI_API_KEY":     "google",
		"GOOGLE_API_KEY":     "google",
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			out.APIKeys[provider] = ResolvedValue{Value: v, Source: SourceEnv, From: env}
		}
	}

	apply(&out.Backend, opts.CLIBackend, SourceCLI, "--backend")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Strategy, opts.CLIStrategy, SourceCLI, "--strategy")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// APIKeyForProvider returns the key layered for providerOrModel, falling
// back to a key configured without a provider.
func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		provider = "default"
	}
	if v, ok := r.APIKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.APIKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

// QuotaInts returns the resolved quotas as integers. Unset or malformed
// values come back zero, meaning unlimited.
func (r ResolvedConfig) QuotaInts() (perMinute, perHour, perDay int) {
	return atoi0(r.QuotaPerMinute.Value), atoi0(r.QuotaPerHour.Value), atoi0(r.QuotaPerDay.Value)
}

func atoi0(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyInt(dst *ResolvedValue, raw int, source ValueSource, from string) {
	if raw <= 0 {
		return
	}
	*dst = ResolvedValue{Value: strconv.Itoa(raw), Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: env}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
