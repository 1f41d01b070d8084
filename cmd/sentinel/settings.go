package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/sentinel/internal/config"
	logging "github.com/nao1215/sentinel/internal/log"
	"github.com/nao1215/sentinel/internal/model"
)

// loadConfig builds a Config from defaults, the configuration file, .env
// and the environment, and the global flags, in increasing priority.
// Command-specific flags are applied by the caller.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg.ConfigFilePath = getGlobalString(cmd, "config")

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, run with defaults when no file is found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.ApplyEnv(os.LookupEnv)

	if proxy := getGlobalString(cmd, "proxy"); proxy != "" {
		cfg.ProxyAddress = proxy
	}

	cfg.DBDir = getGlobalString(cmd, "db-dir")
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getGlobalString reads a root persistent flag. Commands built without the
// root command (as in tests) read it as empty.
func getGlobalString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// applyChainFlag sets cfg.Chain from --chain when it was given.
func applyChainFlag(cmd *cobra.Command, cfg *config.Config) error {
	if !cmd.Flags().Changed("chain") {
		return nil
	}
	name, err := cmd.Flags().GetString("chain")
	if err != nil {
		return err
	}
	chain, err := model.ParseChain(name)
	if err != nil {
		return fmt.Errorf("%w: %q (use eth, bsc or polygon)", config.ErrInvalidChain, name)
	}
	cfg.Chain = chain
	return nil
}

// setupLogger creates a structured logger that redacts API keys and tokens.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return logging.NewSecureLogger(w, verbose)
}
