package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys that should always be sanitized.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,

	// Authentication
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"api-key":       true,
	"access_token":  true,
	"refresh_token": true,
	"bot_token":     true,
	"private_key":   true,
	"privatekey":    true,

	// Wallets
	"seed":       true,
	"mnemonic":   true,
	"wallet_key": true,
}

// sensitiveKeywords mark a key as sensitive when contained anywhere in it.
// The bare word "key" is excluded because it matches too much
// ("primary_key", "cache_key").
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth",
	"credential", "private", "seed", "mnemonic",
}

// sensitivePatterns contains regex patterns that indicate sensitive values.
// Values matching these patterns are masked regardless of key name.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Telegram bot tokens (<bot id>:<secret>)
	regexp.MustCompile(`^\d{6,12}:[A-Za-z0-9_-]{30,}$`),

	// Raw secp256k1 private keys
	regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`),

	// Long alphanumeric strings (provider API keys)
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),

	// PEM private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// publicValuePatterns are never masked even if a sensitive pattern matches.
var publicValuePatterns = []*regexp.Regexp{
	// EVM addresses
	regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`),
}

// urlPattern finds http(s) URLs embedded in free text such as error messages.
var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// telegramBotPath matches the token segment of Telegram Bot API paths.
var telegramBotPath = regexp.MustCompile(`/bot\d{6,12}:[A-Za-z0-9_-]+`)

// keyLikeSegment matches URL path segments that look like API keys
// (e.g. "/v3/<key>" on hosted RPC providers).
var keyLikeSegment = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)

// sensitiveQueryParams are query parameters redacted from URLs.
var sensitiveQueryParams = []string{"apikey", "api_key", "key", "token", "access_token", "secret"}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// urlMaskValue replaces secrets inside URLs. It avoids characters that
// would be percent-encoded.
const urlMaskValue = "REDACTED"

// SecureHandler wraps an slog.Handler to sanitize sensitive information.
// Attribute values are masked when their key is sensitive or their value
// looks like a credential. URLs keep their host and path but lose embedded
// API keys, so RPC errors stay debuggable.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's message and attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, RedactURLs(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if isSensitiveValue(strVal) {
			return slog.String(a.Key, MaskValue)
		}
		if redacted := RedactURLs(strVal); redacted != strVal {
			return slog.String(a.Key, redacted)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			msg := err.Error()
			if redacted := RedactURLs(msg); redacted != msg {
				return slog.String(a.Key, redacted)
			}
		}
	}

	return a
}

// containsSensitiveKeyword checks if the key contains sensitive keywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	if isPublicValue(value) {
		return false
	}
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

func isPublicValue(value string) bool {
	for _, pattern := range publicValuePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURLs masks credentials in every http(s) URL found in s: userinfo
// passwords, sensitive query parameters, key-like path segments and
// Telegram bot tokens. Text without URLs is returned unchanged.
func RedactURLs(s string) string {
	if !strings.Contains(s, "://") {
		return s
	}
	return urlPattern.ReplaceAllStringFunc(s, redactURL)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	changed := false

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), urlMaskValue)
			changed = true
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for param := range q {
			for _, s := range sensitiveQueryParams {
				if strings.EqualFold(param, s) {
					q.Set(param, urlMaskValue)
					changed = true
				}
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	if telegramBotPath.MatchString(u.Path) {
		u.Path = telegramBotPath.ReplaceAllString(u.Path, "/bot"+urlMaskValue)
		u.RawPath = ""
		changed = true
	} else if u.Path != "" {
		segments := strings.Split(u.Path, "/")
		pathChanged := false
		for i, seg := range segments {
			if keyLikeSegment.MatchString(seg) && !isPublicValue(seg) {
				segments[i] = urlMaskValue
				pathChanged = true
			}
		}
		if pathChanged {
			u.Path = strings.Join(segments, "/")
			u.RawPath = ""
			changed = true
		}
	}

	if !changed {
		return raw
	}
	return u.String()
}

// RedactError returns err with credentials in embedded URLs masked, for
// errors printed outside of slog. errors.Is and errors.As still see err.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	redacted := RedactURLs(msg)
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }

// NewSecureLogger creates a new slog.Logger with secure handling.
// verbose selects Debug level; otherwise only warnings and errors are logged.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level(verbose)})
	return slog.New(NewSecureHandler(textHandler))
}

// NewSecureJSONLogger is like NewSecureLogger but emits JSON, for the
// long-running bot where logs are shipped to an aggregator.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level(verbose)})
	return slog.New(NewSecureHandler(jsonHandler))
}

func level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
