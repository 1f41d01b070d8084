package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/sentinel/internal/model"
)

// TestNewConfig verifies the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default chain is ethereum", func(t *testing.T) {
		t.Parallel()
		if cfg.Chain != model.ChainEthereum {
			t.Errorf("expected ethereum, got %q", cfg.Chain)
		}
	})

	t.Run("default Timeout is 15 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 15*time.Second {
			t.Errorf("expected 15s, got %v", cfg.Timeout)
		}
	})

	t.Run("reports are saved under reports", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveReport || cfg.ReportDir != "reports" {
			t.Errorf("expected SaveReport with dir reports, got %v %q", cfg.SaveReport, cfg.ReportDir)
		}
	})

	t.Run("source cache is enabled for a day", func(t *testing.T) {
		t.Parallel()
		if cfg.SourceCacheTTL != 24*time.Hour {
			t.Errorf("expected 24h, got %v", cfg.SourceCacheTTL)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected defaults to validate, got %v", err)
		}
	})
}

// TestConfigValidate tests each validation rule in isolation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"valid config", func(*Config) {}, nil},
		{"unknown chain", func(c *Config) { c.Chain = "fantom" }, ErrInvalidChain},
		{"unknown chain override", func(c *Config) { c.Chains["fantom"] = ChainConfig{} }, ErrInvalidChain},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"negative cache ttl", func(c *Config) { c.SourceCacheTTL = -time.Minute }, ErrInvalidCacheTTL},
		{"zero cache ttl", func(c *Config) { c.SourceCacheTTL = 0 }, nil},
		{"negative explorer rate", func(c *Config) { c.ExplorerRate = -1 }, ErrInvalidExplorerRate},
		{"rule without pattern", func(c *Config) { c.Rules = []RuleConfig{{Title: "x"}} }, ErrInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateScan(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if err := cfg.ValidateScan(); !errors.Is(err, ErrNoTarget) {
		t.Errorf("expected ErrNoTarget, got %v", err)
	}

	cfg.Targets = []string{"0x55d398326f99059fF775485246999027B3197955"}
	if err := cfg.ValidateScan(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateBot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"no token", func(*Config) {}, ErrNoBotToken},
		{"valid", func(c *Config) { c.BotToken = "123:abc" }, nil},
		{"zero workers", func(c *Config) { c.BotToken = "123:abc"; c.BotWorkers = 0 }, ErrInvalidBotWorkers},
		{"zero burst", func(c *Config) { c.BotToken = "123:abc"; c.BotBurst = 0 }, ErrInvalidBotRate},
		{"bad shared setting", func(c *Config) { c.BotToken = "123:abc"; c.Timeout = 0 }, ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)
			if err := cfg.ValidateBot(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile("/nonexistent/path/.sentinel")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cf != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sentinel")
		content := `chain: bsc
timeout: 30s
source_cache_ttl: 1h
explorer_rate: 2
chains:
  eth:
    rpc_url: https://mainnet.example.io/v3/key
  polygon:
    explorer_host: polygon.example.org
rules:
  - pattern: selfdestruct
    title: Contract can self-destruct.
    impact: -30
    severity: high
bot:
  workers: 2
  metrics_addr: ":9090"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		if err := cf.Apply(cfg); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		if cfg.Chain != model.ChainBSC {
			t.Errorf("expected chain bsc, got %q", cfg.Chain)
		}
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected timeout 30s, got %v", cfg.Timeout)
		}
		if cfg.SourceCacheTTL != time.Hour {
			t.Errorf("expected cache ttl 1h, got %v", cfg.SourceCacheTTL)
		}
		if cfg.ExplorerRate != 2 {
			t.Errorf("expected explorer rate 2, got %v", cfg.ExplorerRate)
		}
		if cfg.BotWorkers != 2 || cfg.MetricsAddr != ":9090" {
			t.Errorf("unexpected bot settings: %d %q", cfg.BotWorkers, cfg.MetricsAddr)
		}

		wantChains := map[model.Chain]ChainConfig{
			model.ChainEthereum: {RPCURL: "https://mainnet.example.io/v3/key"},
			model.ChainPolygon:  {ExplorerHost: "polygon.example.org"},
		}
		if diff := cmp.Diff(wantChains, cfg.Chains); diff != "" {
			t.Errorf("chains mismatch (-want +got):\n%s", diff)
		}

		wantRules := []RuleConfig{{Pattern: "selfdestruct", Title: "Contract can self-destruct.", Impact: -30, Severity: "high"}}
		if diff := cmp.Diff(wantRules, cfg.Rules); diff != "" {
			t.Errorf("rules mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sentinel")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Chains map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sentinel")
		if err := os.WriteFile(configPath, []byte("chain: eth\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Chains == nil {
			t.Error("expected Chains map to be initialized")
		}
	})
}

func TestFileApplyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file File
	}{
		{"unknown chain", File{Chain: "solana"}},
		{"unknown chain override", File{Chains: map[string]ChainConfig{"fantom": {}}}},
		{"bad timeout", File{Timeout: "soon"}},
		{"bad cache ttl", File{SourceCacheTTL: "forever"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.file.Apply(NewConfig()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvEthRPCURL:     "https://eth.example.org",
		EnvPolygonRPCURL: "  ",
		EnvBotToken:      " 123456:token ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := NewConfig()
	cfg.Chains[model.ChainEthereum] = ChainConfig{RPCURL: "https://old.example.org", ExplorerHost: "eth.example.org"}
	cfg.ApplyEnv(lookup)

	want := ChainConfig{RPCURL: "https://eth.example.org", ExplorerHost: "eth.example.org"}
	if diff := cmp.Diff(want, cfg.ChainConfig(model.ChainEthereum)); diff != "" {
		t.Errorf("ethereum mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.ChainConfig(model.ChainPolygon).RPCURL; got != "" {
		t.Errorf("blank env value should be ignored, got %q", got)
	}
	if cfg.BotToken != "123456:token" {
		t.Errorf("expected trimmed token, got %q", cfg.BotToken)
	}
}

func TestLoadDotEnv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("BSC_RPC_URL=https://bsc.example.org\n"), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv(EnvBSCRPCURL, "")
	os.Unsetenv(EnvBSCRPCURL)

	if err := LoadDotEnv(envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	cfg := NewConfig()
	cfg.ApplyEnv(os.LookupEnv)
	if got := cfg.ChainConfig(model.ChainBSC).RPCURL; got != "https://bsc.example.org" {
		t.Errorf("expected RPC URL from .env, got %q", got)
	}
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("chain: eth"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("finds config in current directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("chain: eth"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		t.Chdir(dir)

		result := FindConfigFile("")
		if !strings.HasSuffix(result, DefaultConfigFile) {
			t.Errorf("expected %s in %q, got %q", DefaultConfigFile, dir, result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"cache":  XDGCacheDir(),
	} {
		if dir == "" {
			t.Errorf("%s dir is empty", name)
		}
		if filepath.Base(dir) != AppName {
			t.Errorf("%s dir %q should end with %q", name, dir, AppName)
		}
	}
}
