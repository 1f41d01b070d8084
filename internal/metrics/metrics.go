// Package metrics exposes Prometheus instrumentation for scans, upstream
// requests and bot commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// ScansTotal counts completed scans by chain and risk level.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "Completed contract scans by chain and risk level",
	}, []string{"chain", "risk_level"})

	// ScanFailuresTotal counts scans that ended with an error.
	ScanFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scan_failures_total",
		Help:      "Contract scans that recorded an error, by chain and step",
	}, []string{"chain", "step"})

	// ScanDuration observes wall time per scan.
	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Duration of contract scans",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"chain", "mode"}) // mode=full|score

	// ExplorerRequestsTotal counts explorer API calls by outcome.
	ExplorerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "explorer_requests_total",
		Help:      "Block explorer requests by chain and outcome",
	}, []string{"chain", "outcome"})

	// SourceCacheTotal counts source cache lookups.
	SourceCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_cache_total",
		Help:      "Contract source cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	// RPCRequestsTotal counts JSON-RPC calls by method and outcome.
	RPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "JSON-RPC requests by chain, method and outcome",
	}, []string{"chain", "method", "outcome"})

	// BotCommandsTotal counts Telegram commands handled.
	BotCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bot_commands_total",
		Help:      "Telegram bot commands by command and outcome",
	}, []string{"command", "outcome"}) // outcome=success|error|rate_limited|usage

	// BotRateLimitedTotal counts commands rejected by the per-user limiter.
	BotRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bot_rate_limited_total",
		Help:      "Telegram commands rejected by per-user rate limiting",
	})
)

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// RecordScan records a finished scan.
func RecordScan(chain, mode, riskLevel string, d time.Duration) {
	ScanDuration.WithLabelValues(chain, mode).Observe(d.Seconds())
	if riskLevel == "" {
		riskLevel = "none"
	}
	ScansTotal.WithLabelValues(chain, riskLevel).Inc()
}

// RecordScanFailure records a scan step error.
func RecordScanFailure(chain, step string) {
	ScanFailuresTotal.WithLabelValues(chain, step).Inc()
}

// RecordExplorerRequest records one explorer API call.
func RecordExplorerRequest(chain string, err error) {
	ExplorerRequestsTotal.WithLabelValues(chain, outcome(err)).Inc()
}

// RecordSourceCache records a cache hit or miss.
func RecordSourceCache(hit bool) {
	if hit {
		SourceCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	SourceCacheTotal.WithLabelValues("miss").Inc()
}

// RecordRPCRequest records one JSON-RPC call.
func RecordRPCRequest(chain, method string, err error) {
	RPCRequestsTotal.WithLabelValues(chain, method, outcome(err)).Inc()
}

// RecordBotCommand records a handled bot command.
func RecordBotCommand(command, result string) {
	BotCommandsTotal.WithLabelValues(command, result).Inc()
	if result == "rate_limited" {
		BotRateLimitedTotal.Inc()
	}
}

// Handler returns a mux serving /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewServer returns an HTTP server exposing Handler on addr.
func NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
