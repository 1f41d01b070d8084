package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("direct client by default", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.ProxyAddress() != "" {
			t.Errorf("expected no proxy, got %q", c.ProxyAddress())
		}
		if c.Timeout() != DefaultTimeout {
			t.Errorf("timeout = %v, expected %v", c.Timeout(), DefaultTimeout)
		}
	})

	t.Run("non-positive timeout keeps default", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient(WithTimeout(0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Timeout() != DefaultTimeout {
			t.Errorf("timeout = %v", c.Timeout())
		}
	})

	t.Run("valid proxy address", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient(WithProxy("127.0.0.1:9050"), WithTimeout(5*time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q", c.ProxyAddress())
		}
		if got := c.NewHTTPClient().Timeout; got != 5*time.Second {
			t.Errorf("http timeout = %v", got)
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		address string
		valid   bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:1080", true},
		{"[::1]:9050", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tc.address); got != tc.valid {
				t.Errorf("isValidProxyAddress(%q) = %v, expected %v", tc.address, got, tc.valid)
			}
			_, err := NewClient(WithProxy(tc.address))
			if tc.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.valid && tc.address != "" && !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
			}
		})
	}
}

func TestNewHTTPClientHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "sentinel-test/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("X-Api-Key = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := NewClient(WithUserAgent("sentinel-test/1.0"), WithHeader("X-Api-Key", "secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.NewHTTPClient().Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

// fakeProxy accepts one connection and replies to the greeting with reply.
func fakeProxy(t *testing.T, reply []byte) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		greeting := make([]byte, 3)
		if _, err := io.ReadFull(conn, greeting); err != nil {
			return
		}
		_, _ = conn.Write(reply)
	}()

	return ln.Addr().String()
}

func TestCheckProxy(t *testing.T) {
	t.Parallel()

	t.Run("no proxy configured", func(t *testing.T) {
		t.Parallel()
		c, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.CheckProxy(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("socks5 proxy", func(t *testing.T) {
		t.Parallel()
		addr := fakeProxy(t, []byte{socks5Version, socks5AuthNone})
		c, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.CheckProxy(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("proxy requiring auth", func(t *testing.T) {
		t.Parallel()
		addr := fakeProxy(t, []byte{socks5Version, 0xFF})
		c, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.CheckProxy(context.Background()); !errors.Is(err, ErrProxyNotSOCKS5) {
			t.Errorf("expected ErrProxyNotSOCKS5, got %v", err)
		}
	})

	t.Run("not a socks proxy", func(t *testing.T) {
		t.Parallel()
		addr := fakeProxy(t, []byte("HTTP/1.1 400 Bad Request\r\n"))
		c, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.CheckProxy(context.Background()); !errors.Is(err, ErrProxyNotSOCKS5) {
			t.Errorf("expected ErrProxyNotSOCKS5, got %v", err)
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := ln.Addr().String()
		ln.Close()

		c, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.CheckProxy(context.Background()); !errors.Is(err, ErrProxyCannotConnect) {
			t.Errorf("expected ErrProxyCannotConnect, got %v", err)
		}
	})
}
