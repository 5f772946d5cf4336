package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `db_path: ~/.kith/from-config.db
llm:
  backend: openrouter/openai/gpt-4o-mini
  strategy: detailed
quota:
  per_minute: 5
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("KITH_DB", "~/from-env.db")
	t.Setenv("KITH_BACKEND", "google/gemini-2.5-flash")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: cfgPath,
		CLIBackend: "openrouter/google/gemini-2.0-flash-001",
		CLIDBPath:  "~/from-cli.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI {
		t.Fatalf("expected DB path source cli, got %s", resolved.DBPath.Source)
	}
	if resolved.Backend.Source != SourceCLI {
		t.Fatalf("expected backend source cli, got %s", resolved.Backend.Source)
	}
	if resolved.Strategy.Source != SourceConfig {
		t.Fatalf("expected strategy from config, got %s", resolved.Strategy.Source)
	}
	if resolved.QuotaPerMinute.Value != "5" || resolved.QuotaPerMinute.Source != SourceConfig {
		t.Fatalf("expected per-minute quota 5 from config, got %+v", resolved.QuotaPerMinute)
	}
}

func TestResolveConfig_MissingFileIsFine(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if resolved.DBPath.Value != "" {
		t.Fatalf("expected empty db path, got %q", resolved.DBPath.Value)
	}
}

func TestAPIKeyForProvider(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	k := resolved.APIKeyForProvider("google/gemini-2.5-flash")
	if k.Value != "gem-key" || k.Source != SourceEnv {
		t.Fatalf("unexpected google key: %+v", k)
	}
	k = resolved.APIKeyForProvider("openrouter")
	if k.Value != "or-key" {
		t.Fatalf("unexpected openrouter key: %+v", k)
	}
	k = resolved.APIKeyForProvider("mystery")
	if k.Value != "" {
		t.Fatalf("expected no key for unknown provider, got %+v", k)
	}
}

func TestAPIKeyFromConfigFileWithDefaultProvider(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `llm:
  api_key: file-key
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	k := resolved.APIKeyForProvider("google")
	if k.Value != "file-key" || k.Source != SourceConfig {
		t.Fatalf("expected default key to cover google, got %+v", k)
	}
}

func TestQuotaInts(t *testing.T) {
	resolved := ResolvedConfig{
		QuotaPerMinute: ResolvedValue{Value: "10"},
		QuotaPerHour:   ResolvedValue{Value: "not-a-number"},
	}
	m, h, d := resolved.QuotaInts()
	if m != 10 || h != 0 || d != 0 {
		t.Fatalf("unexpected quotas: %d %d %d", m, h, d)
	}
}

func TestExpandUserPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got := expandUserPath("~/.kith/kith.db")
	want := filepath.Join(home, ".kith", "kith.db")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
