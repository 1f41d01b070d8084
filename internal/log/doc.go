// Package log provides secure logging built on top of the standard slog
// package.
//
// SecureHandler wraps any slog.Handler and masks sensitive values before they
// reach the output:
//   - credential-like keys (token, password, api_key, authorization, ...)
//   - credential-like values (JWTs, Telegram bot tokens, raw private keys,
//     long provider API keys)
//   - API keys embedded in URLs, including URLs inside error messages, such
//     as hosted RPC endpoints ("https://mainnet.example.io/v3/<key>") or the
//     Telegram Bot API ("https://api.telegram.org/bot<token>/getUpdates")
//
// Contract and wallet addresses are public and are never masked.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("calling RPC", "url", rpcURL) // key segment is redacted
//	slog.SetDefault(logger)
package log
