// Package bot implements the Sentinel Telegram bot.
//
// Commands:
//   - /start, /help: welcome text with examples
//   - /about: project description
//   - /scan <address> [chain]: full static and on-chain analysis
//   - /score <address> [chain]: static risk score only
//   - /last: the caller's most recent /scan
//
// Updates are handled concurrently by a bounded worker group, and every
// user has a token bucket so one chat cannot exhaust the explorer and RPC
// budgets.
package bot
