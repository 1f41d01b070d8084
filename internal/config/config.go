package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sentinel/internal/model"
)

// Default configuration values.
const (
	// DefaultChain is used when no chain is given, as in the bot commands.
	DefaultChain = model.ChainEthereum

	// DefaultTimeout bounds a single HTTP request to an explorer or RPC node.
	// Public endpoints are occasionally slow, so this is generous.
	DefaultTimeout = 15 * time.Second

	// DefaultBatchSize is the number of contracts scanned concurrently.
	// Public explorers throttle aggressively, so it is kept small.
	DefaultBatchSize = 4

	// DefaultReportDir is where JSON reports are saved after a scan.
	DefaultReportDir = "reports"

	// DefaultSourceCacheTTL is how long a fetched contract source is reused.
	// Verified source never changes, but verification status can.
	DefaultSourceCacheTTL = 24 * time.Hour

	// DefaultExplorerRate is the explorer request budget per second per chain.
	DefaultExplorerRate = 4.0

	// DefaultBotWorkers bounds concurrently handled bot updates.
	DefaultBotWorkers = 8

	// DefaultBotRate is the per-user command budget per second.
	// One command every five seconds with a burst of three.
	DefaultBotRate  = 0.2
	DefaultBotBurst = 3

	// AppName is the application name used for XDG directory paths.
	AppName = "sentinel"

	// DefaultUserAgent identifies Sentinel in HTTP requests.
	DefaultUserAgent = "Sentinel/1.0 (+https://github.com/nao1215/sentinel)"
)

// Config holds all configuration options for Sentinel.
// It is populated from CLI flags, the config file and the environment, then
// passed through the application rather than kept in global state.
type Config struct {
	// Chain is the chain used for targets given without one.
	Chain model.Chain

	// Targets is the list of contract addresses to scan.
	Targets []string

	// Chains holds per-chain endpoint overrides keyed by canonical chain.
	Chains map[model.Chain]ChainConfig

	// Rules are additional static analysis rules.
	Rules []RuleConfig

	// Timeout is the timeout for each HTTP request.
	Timeout time.Duration

	// BatchSize is the number of concurrent scans for multiple targets.
	BatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .sentinel is searched in the current and home directories.
	ConfigFilePath string

	// JSONReport prints the report as JSON. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the report as Markdown. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// NoColor disables ANSI colours in the terminal report.
	NoColor bool

	// ReportFile writes the printed report to a file instead of stdout.
	ReportFile string

	// SaveReport saves a JSON report under ReportDir after every full scan.
	SaveReport bool

	// ReportDir is the directory for saved JSON reports.
	ReportDir string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/sentinel on Linux).
	DBDir string

	// SaveToDB stores scan results and caches contract sources.
	SaveToDB bool

	// SourceCacheTTL is how long cached explorer results are reused.
	// Zero disables the cache.
	SourceCacheTTL time.Duration

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for all
	// outbound requests.
	ProxyAddress string

	// ExplorerRate is the explorer request budget per second. Zero disables
	// throttling.
	ExplorerRate float64

	// UserAgent is the User-Agent header sent to explorers and RPC nodes.
	UserAgent string

	// BotToken is the Telegram bot token.
	BotToken string

	// BotWorkers bounds concurrently handled bot updates.
	BotWorkers int

	// BotRate and BotBurst define the per-user command budget.
	BotRate  float64
	BotBurst int

	// MetricsAddr serves Prometheus metrics when set (e.g. ":9090").
	MetricsAddr string
}

// ChainConfig overrides the endpoints used for one chain.
type ChainConfig struct {
	// RPCURL is the JSON-RPC endpoint. Hosted providers usually embed an
	// API key in it; it is redacted in logs.
	RPCURL string `yaml:"rpc_url,omitempty"`

	// ExplorerHost is the Blockscout host (e.g. "eth.blockscout.com").
	ExplorerHost string `yaml:"explorer_host,omitempty"`
}

// RuleConfig declares an additional static analysis rule.
type RuleConfig struct {
	// Pattern is matched case-insensitively against the contract source.
	Pattern string `yaml:"pattern"`

	// Title is the message shown when the pattern is found.
	Title string `yaml:"title,omitempty"`

	// Impact is added to the risk score. Negative values count as issues.
	Impact int `yaml:"impact"`

	// Severity is one of low, medium, high, critical or info.
	Severity string `yaml:"severity,omitempty"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Chain:          DefaultChain,
		Chains:         make(map[model.Chain]ChainConfig),
		Timeout:        DefaultTimeout,
		BatchSize:      DefaultBatchSize,
		SaveReport:     true,
		ReportDir:      DefaultReportDir,
		SaveToDB:       true,
		SourceCacheTTL: DefaultSourceCacheTTL,
		ExplorerRate:   DefaultExplorerRate,
		UserAgent:      DefaultUserAgent,
		BotWorkers:     DefaultBotWorkers,
		BotRate:        DefaultBotRate,
		BotBurst:       DefaultBotBurst,
	}
}

// ChainConfig returns the endpoint overrides for chain.
// The zero value means the public defaults are used.
func (c *Config) ChainConfig(chain model.Chain) ChainConfig {
	if c.Chains == nil {
		return ChainConfig{}
	}
	return c.Chains[chain]
}

// SetRPCURL overrides the RPC endpoint for chain.
func (c *Config) SetRPCURL(chain model.Chain, rpcURL string) {
	if c.Chains == nil {
		c.Chains = make(map[model.Chain]ChainConfig)
	}
	cc := c.Chains[chain]
	cc.RPCURL = rpcURL
	c.Chains[chain] = cc
}

// XDGDataDir returns the XDG data directory for Sentinel.
// On Linux: ~/.local/share/sentinel
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for Sentinel.
// On Linux: ~/.config/sentinel
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for Sentinel.
// On Linux: ~/.cache/sentinel
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the settings shared by every command.
// Target and bot token checks are done by ValidateScan and ValidateBot.
func (c *Config) Validate() error {
	if !c.Chain.IsValid() {
		return ErrInvalidChain
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.SourceCacheTTL < 0 {
		return ErrInvalidCacheTTL
	}
	if c.ExplorerRate < 0 {
		return ErrInvalidExplorerRate
	}
	for chain := range c.Chains {
		if !chain.IsValid() {
			return ErrInvalidChain
		}
	}
	for _, r := range c.Rules {
		if r.Pattern == "" {
			return ErrInvalidRule
		}
	}
	return nil
}

// ValidateScan validates the configuration for the scan and score commands.
func (c *Config) ValidateScan() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.Validate()
}

// ValidateBot validates the configuration for the bot command.
func (c *Config) ValidateBot() error {
	if c.BotToken == "" {
		return ErrNoBotToken
	}
	if c.BotWorkers <= 0 {
		return ErrInvalidBotWorkers
	}
	if c.BotRate < 0 || c.BotBurst <= 0 {
		return ErrInvalidBotRate
	}
	return c.Validate()
}
