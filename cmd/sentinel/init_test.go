package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/sentinel/internal/config"
	"github.com/nao1215/sentinel/internal/model"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	if cmd.Use != "init" {
		t.Errorf("expected use 'init', got %q", cmd.Use)
	}

	flag := cmd.Flags().Lookup("output")
	if flag == nil {
		t.Fatal("expected output flag")
	}
	if flag.Shorthand != "o" || flag.DefValue != config.DefaultConfigFile {
		t.Errorf("output flag: shorthand %q default %q", flag.Shorthand, flag.DefValue)
	}

	flag = cmd.Flags().Lookup("force")
	if flag == nil {
		t.Fatal("expected force flag")
	}
	if flag.Shorthand != "f" || flag.DefValue != "false" {
		t.Errorf("force flag: shorthand %q default %q", flag.Shorthand, flag.DefValue)
	}
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates config file in nested directory", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "dir", ".sentinel")
		stdout, _, err := executeCmd(t, "init", "-o", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Created configuration file") {
			t.Errorf("unexpected output %q", stdout)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			t.Errorf("config file is readable by others: %v", perm)
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".sentinel")
		if err := os.WriteFile(path, []byte("existing"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, _, err := executeCmd(t, "init", "-o", path); err == nil {
			t.Error("expected error for existing file")
		}
		content, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != "existing" {
			t.Error("existing file was modified")
		}

		if _, _, err := executeCmd(t, "init", "-o", path, "-f"); err != nil {
			t.Fatalf("unexpected error with force: %v", err)
		}
		content, err = os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatal(err)
		}
		if string(content) == "existing" {
			t.Error("file was not overwritten with force")
		}
	})
}

// TestConfigTemplateIsValid checks the generated file loads with defaults intact.
func TestConfigTemplateIsValid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".sentinel")
	if _, _, err := executeCmd(t, "init", "-o", path); err != nil {
		t.Fatalf("init: %v", err)
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}

	cfg := config.NewConfig()
	if err := file.Apply(cfg); err != nil {
		t.Fatalf("template does not apply: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("template config is invalid: %v", err)
	}

	if cfg.Chain != model.ChainEthereum {
		t.Errorf("chain = %q", cfg.Chain)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
	if cfg.SourceCacheTTL != config.DefaultSourceCacheTTL {
		t.Errorf("source cache ttl = %v", cfg.SourceCacheTTL)
	}
	if cfg.BotWorkers != config.DefaultBotWorkers {
		t.Errorf("bot workers = %d", cfg.BotWorkers)
	}
	if len(cfg.Rules) != 0 || len(cfg.Chains) != 0 {
		t.Errorf("template should only carry commented examples, got rules=%v chains=%v", cfg.Rules, cfg.Chains)
	}
}

func TestInitDefaultChain(t *testing.T) {
	t.Parallel()

	t.Run("writes the selected chain", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".sentinel")
		stdout, _, err := executeCmd(t, "init", "-o", path, "--chain", "bnb")
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		if !strings.Contains(stdout, "default chain: Bsc") {
			t.Errorf("unexpected output %q", stdout)
		}

		file, err := config.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("generated file does not parse: %v", err)
		}
		cfg := config.NewConfig()
		if err := file.Apply(cfg); err != nil {
			t.Fatalf("generated file does not apply: %v", err)
		}
		if cfg.Chain != model.ChainBSC {
			t.Errorf("chain = %q, expected bsc", cfg.Chain)
		}
	})

	t.Run("rejects unknown chain", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".sentinel")
		_, _, err := executeCmd(t, "init", "-o", path, "--chain", "fantom")
		if !errors.Is(err, model.ErrUnsupportedChain) {
			t.Fatalf("expected ErrUnsupportedChain, got %v", err)
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("file written for an unknown chain: %v", err)
		}
	})
}
