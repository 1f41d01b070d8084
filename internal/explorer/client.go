package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/sentinel/internal/metrics"
	"github.com/nao1215/sentinel/internal/model"
)

// DefaultTimeout is the request timeout used when no HTTP client is supplied.
const DefaultTimeout = 15 * time.Second

// Default request budget per client. Public Blockscout instances allow
// roughly five requests per second without an API key.
const (
	DefaultRate  = rate.Limit(4)
	DefaultBurst = 2
)

// maxResponseBytes caps the size of a decoded explorer response.
const maxResponseBytes = 32 << 20

// defaultHosts maps each chain to its public Blockscout instance.
var defaultHosts = map[model.Chain]string{
	model.ChainEthereum: "eth.blockscout.com",
	model.ChainBSC:      "bsc.blockscout.com",
	model.ChainPolygon:  "polygon.blockscout.com",
}

// DefaultHost returns the public Blockscout host for chain.
func DefaultHost(chain model.Chain) (string, bool) {
	host, ok := defaultHosts[chain]
	return host, ok
}

// SourceInfo is the normalized result of a source lookup.
type SourceInfo struct {
	// Verified is true when the explorer returned source code.
	Verified bool `json:"verified"`

	// SourceCode is the flattened Solidity source.
	SourceCode string `json:"source_code"`

	// ContractName is the verified contract name.
	ContractName string `json:"contract_name,omitempty"`

	// CompilerVersion is the solc version used for verification.
	CompilerVersion string `json:"compiler_version,omitempty"`

	// IsProxy is true when the explorer flags the contract as a proxy.
	IsProxy bool `json:"is_proxy"`

	// Implementation is the implementation address of a proxy.
	Implementation string `json:"implementation,omitempty"`

	// Message is the explorer's message when no source was returned.
	Message string `json:"message,omitempty"`
}

// Client queries one Blockscout instance.
type Client struct {
	chain   model.Chain
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHost sets the explorer host (e.g. "eth.blockscout.com"). A value
// with a scheme is used as the base URL unchanged.
func WithHost(host string) Option {
	return func(c *Client) {
		switch {
		case host == "":
		case strings.Contains(host, "://"):
			c.baseURL = strings.TrimSuffix(host, "/")
		default:
			c.baseURL = "https://" + strings.TrimSuffix(host, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit sets the request budget. A zero limit disables throttling.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for chain. The public Blockscout host for the
// chain is used unless WithHost overrides it.
func NewClient(chain model.Chain, opts ...Option) (*Client, error) {
	c := &Client{
		chain:   chain,
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(DefaultRate, DefaultBurst),
		logger:  slog.New(slog.DiscardHandler),
	}
	if host, ok := defaultHosts[chain]; ok {
		c.baseURL = "https://" + host
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoExplorer, chain)
	}
	return c, nil
}

// apiResponse is the Etherscan-compatible envelope.
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// rawSource is one entry of the getsourcecode result.
type rawSource struct {
	SourceCode            string             `json:"SourceCode"`
	ContractName          string             `json:"ContractName"`
	CompilerVersion       string             `json:"CompilerVersion"`
	Proxy                 flexBool           `json:"Proxy"`
	IsProxy               flexBool           `json:"IsProxy"`
	Implementation        string             `json:"Implementation"`
	ImplementationAddress string             `json:"ImplementationAddress"`
	AdditionalSources     []additionalSource `json:"AdditionalSources"`
}

type additionalSource struct {
	Filename   string `json:"Filename"`
	SourceCode string `json:"SourceCode"`
}

// GetSourceCode fetches the verified source of address.
func (c *Client) GetSourceCode(ctx context.Context, address model.Address) (info *SourceInfo, err error) {
	defer func() {
		metrics.RecordExplorerRequest(c.chain.String(), err)
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", address.String())
	endpoint := c.baseURL + "/api?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build explorer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("fetching contract source", "chain", c.chain, "address", address.String(), "explorer", c.baseURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to explorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	info, err = parseResult(envelope)
	if err != nil {
		return nil, err
	}

	if info.Verified {
		c.logger.Debug("contract source fetched", "chain", c.chain, "contract", info.ContractName)
	} else {
		c.logger.Debug("contract not verified", "chain", c.chain, "message", info.Message)
	}
	return info, nil
}

// parseResult normalizes the list, string and object result shapes.
func parseResult(envelope apiResponse) (*SourceInfo, error) {
	raw := strings.TrimSpace(string(envelope.Result))
	if raw == "" || raw == "null" {
		return nil, fmt.Errorf("%w: missing result (%s)", ErrUnexpectedResponse, envelope.Message)
	}

	var entry rawSource
	switch raw[0] {
	case '[':
		var list []rawSource
		if err := json.Unmarshal(envelope.Result, &list); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}
		if len(list) == 0 {
			return &SourceInfo{Message: envelope.Message}, nil
		}
		entry = list[0]
	case '"':
		var msg string
		if err := json.Unmarshal(envelope.Result, &msg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}
		return &SourceInfo{Message: msg}, nil
	case '{':
		if err := json.Unmarshal(envelope.Result, &entry); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}
	default:
		return nil, fmt.Errorf("%w: result has unexpected type", ErrUnexpectedResponse)
	}

	info := &SourceInfo{
		ContractName:    entry.ContractName,
		CompilerVersion: entry.CompilerVersion,
		IsProxy:         bool(entry.Proxy) || bool(entry.IsProxy),
		Implementation:  entry.ImplementationAddress,
	}
	if info.Implementation == "" {
		info.Implementation = entry.Implementation
	}

	source := FlattenSource(entry.SourceCode)
	for _, extra := range entry.AdditionalSources {
		if strings.TrimSpace(extra.SourceCode) == "" {
			continue
		}
		source += "\n// File: " + extra.Filename + "\n" + extra.SourceCode
	}
	info.SourceCode = source
	info.Verified = strings.TrimSpace(source) != ""
	if !info.Verified {
		info.SourceCode = ""
		info.Message = "contract found but not verified"
	}
	return info, nil
}

// flexBool decodes booleans sent as true, "true", "1" or 1.
type flexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}
