package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/sentinel/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sentinel"

// Environment variables read by ApplyEnv.
const (
	EnvEthRPCURL     = "ETH_RPC_URL"
	EnvBSCRPCURL     = "BSC_RPC_URL"
	EnvPolygonRPCURL = "POLYGON_RPC_URL"
	EnvBotToken      = "TELEGRAM_BOT_TOKEN" //nolint:gosec // variable name, not a credential
)

// rpcEnvVars maps each chain to the environment variable overriding its RPC URL.
var rpcEnvVars = map[model.Chain]string{
	model.ChainEthereum: EnvEthRPCURL,
	model.ChainBSC:      EnvBSCRPCURL,
	model.ChainPolygon:  EnvPolygonRPCURL,
}

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .sentinel configuration file.
type File struct {
	// Chain is the default chain name or alias.
	Chain string `yaml:"chain,omitempty"`

	// Chains maps chain names or aliases to endpoint overrides.
	Chains map[string]ChainConfig `yaml:"chains,omitempty"`

	// Rules are additional static analysis rules.
	Rules []RuleConfig `yaml:"rules,omitempty"`

	// Timeout is a Go duration string such as "20s".
	Timeout string `yaml:"timeout,omitempty"`

	// ReportDir overrides the saved report directory.
	ReportDir string `yaml:"report_dir,omitempty"`

	// SourceCacheTTL is a Go duration string; "0s" disables the cache.
	SourceCacheTTL string `yaml:"source_cache_ttl,omitempty"`

	// ExplorerRate is the explorer request budget per second.
	ExplorerRate *float64 `yaml:"explorer_rate,omitempty"`

	// Proxy is a SOCKS5 proxy address.
	Proxy string `yaml:"proxy,omitempty"`

	// Bot holds Telegram bot settings.
	Bot BotFileConfig `yaml:"bot,omitempty"`
}

// BotFileConfig holds the bot section of the configuration file.
type BotFileConfig struct {
	// Token is the Telegram bot token. Prefer TELEGRAM_BOT_TOKEN.
	Token string `yaml:"token,omitempty"`

	// Workers bounds concurrently handled updates.
	Workers int `yaml:"workers,omitempty"`

	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Chains == nil {
		cf.Chains = make(map[string]ChainConfig)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .sentinel in the current directory
// 3. Look for .sentinel in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply merges the file's settings into cfg. Chain names accept the same
// aliases as the command line.
func (cf *File) Apply(cfg *Config) error {
	if cf.Chain != "" {
		chain, err := model.ParseChain(cf.Chain)
		if err != nil {
			return fmt.Errorf("chain %q: %w", cf.Chain, err)
		}
		cfg.Chain = chain
	}

	for name, cc := range cf.Chains {
		chain, err := model.ParseChain(name)
		if err != nil {
			return fmt.Errorf("chains.%s: %w", name, err)
		}
		if cfg.Chains == nil {
			cfg.Chains = make(map[model.Chain]ChainConfig)
		}
		cfg.Chains[chain] = cc
	}

	cfg.Rules = append(cfg.Rules, cf.Rules...)

	if cf.Timeout != "" {
		d, err := time.ParseDuration(cf.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if cf.SourceCacheTTL != "" {
		d, err := time.ParseDuration(cf.SourceCacheTTL)
		if err != nil {
			return fmt.Errorf("source_cache_ttl: %w", err)
		}
		cfg.SourceCacheTTL = d
	}
	if cf.ReportDir != "" {
		cfg.ReportDir = cf.ReportDir
	}
	if cf.ExplorerRate != nil {
		cfg.ExplorerRate = *cf.ExplorerRate
	}
	if cf.Proxy != "" {
		cfg.ProxyAddress = cf.Proxy
	}
	if cf.Bot.Token != "" {
		cfg.BotToken = cf.Bot.Token
	}
	if cf.Bot.Workers > 0 {
		cfg.BotWorkers = cf.Bot.Workers
	}
	if cf.Bot.MetricsAddr != "" {
		cfg.MetricsAddr = cf.Bot.MetricsAddr
	}
	return nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Variables that are already set are not overwritten. Missing files are
// ignored; with no paths, ".env" in the current directory is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv applies RPC URL and bot token overrides from the environment.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for chain, key := range rpcEnvVars {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			c.SetRPCURL(chain, strings.TrimSpace(v))
		}
	}
	if v, ok := lookup(EnvBotToken); ok && strings.TrimSpace(v) != "" {
		c.BotToken = strings.TrimSpace(v)
	}
}
