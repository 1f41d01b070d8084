package config

import "errors"

// Configuration validation errors returned by the Validate methods.
var (
	// ErrNoTarget is returned when no contract address is given.
	ErrNoTarget = errors.New("no target specified: provide a contract address")

	// ErrInvalidChain is returned for a chain outside ethereum, bsc and polygon.
	ErrInvalidChain = errors.New("unsupported chain: use 'eth', 'bsc' or 'polygon'")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCacheTTL is returned when the source cache TTL is negative.
	ErrInvalidCacheTTL = errors.New("invalid source cache TTL: must be non-negative")

	// ErrInvalidExplorerRate is returned when the explorer rate is negative.
	ErrInvalidExplorerRate = errors.New("invalid explorer rate: must be non-negative")

	// ErrInvalidRule is returned when a configured rule has no pattern.
	ErrInvalidRule = errors.New("invalid rule: pattern must not be empty")

	// ErrNoBotToken is returned when the bot is started without a token.
	ErrNoBotToken = errors.New("no bot token: set TELEGRAM_BOT_TOKEN or use --token")

	// ErrInvalidBotWorkers is returned when the worker count is not positive.
	ErrInvalidBotWorkers = errors.New("invalid bot workers: must be positive")

	// ErrInvalidBotRate is returned when the per-user rate limit is invalid.
	ErrInvalidBotRate = errors.New("invalid bot rate limit: rate must be non-negative and burst positive")
)
