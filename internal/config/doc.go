// Package config provides the configuration structures for Sentinel.
// It covers scan targets and chains, RPC and explorer endpoints, report
// output, persistence and the Telegram bot.
package config
