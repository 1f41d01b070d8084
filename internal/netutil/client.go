package netutil

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout is applied when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// proxyCheckTimeout bounds the SOCKS5 handshake in CheckProxy.
const proxyCheckTimeout = 2 * time.Second

// SOCKS5 greeting bytes.
const (
	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// Client creates HTTP clients that share one dialer and header set.
type Client struct {
	proxyAddress string
	dialer       proxy.Dialer
	timeout      time.Duration
	userAgent    string
	headers      map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithProxy routes every connection through the SOCKS5 proxy at address.
// An empty address means direct connections.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithTimeout sets the per-request timeout of created HTTP clients.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// NewClient creates a Client. The proxy address is validated but not
// contacted; call CheckProxy to verify it is reachable.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout: DefaultTimeout,
		dialer:  proxy.Direct,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.proxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}

	return c, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address, or "" for direct connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// NewHTTPClient returns an HTTP client using the configured dialer and headers.
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               nil,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if c.proxyAddress != "" {
		transport.DialContext = c.dialContext
	} else {
		dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
		transport.DialContext = dialer.DialContext
	}

	var rt http.RoundTripper = transport
	if c.userAgent != "" || len(c.headers) > 0 {
		rt = &headerInjectingTransport{
			base:      transport,
			userAgent: c.userAgent,
			headers:   c.headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
	}
}

// dialContext dials through the SOCKS5 dialer while honouring ctx.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CheckProxy verifies that the configured proxy accepts an unauthenticated
// SOCKS5 greeting. It returns nil when no proxy is configured.
func (c *Client) CheckProxy(ctx context.Context) error {
	if c.proxyAddress == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, proxyCheckTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProxyCannotConnect, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(proxyCheckTimeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrProxyCannotConnect, err)
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return fmt.Errorf("%w: %w", ErrProxyCannotConnect, err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return ErrProxyNotSOCKS5
	}
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return ErrProxyNotSOCKS5
	}
	return nil
}

// headerInjectingTransport sets fixed headers on every outgoing request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
