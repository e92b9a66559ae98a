// Package metrics exposes Prometheus collectors for ingestion, the order store
// and transactions.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "dexscope"

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "events_total",
		Help:      "Decoded exchange events by kind.",
	}, []string{"kind"})

	ChunkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "chunk_failures_total",
		Help:      "Block chunks skipped after exhausting retries.",
	})

	ChunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "chunk_duration_seconds",
		Help:      "Time spent fetching one block chunk.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	RPCRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "retries_total",
		Help:      "Retried RPC calls by operation.",
	}, []string{"op"})

	OpenOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "book",
		Name:      "open_orders",
		Help:      "Open orders in the active pair by side.",
	}, []string{"side"})

	LastPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "book",
		Name:      "last_price",
		Help:      "Price of the most recent fill in the active pair.",
	})

	Transactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tx",
		Name:      "total",
		Help:      "User-initiated transactions by type and result.",
	}, []string{"type", "result"})
)

// ObserveChunk records the duration of a chunk fetch.
func ObserveChunk(start time.Time) {
	ChunkDuration.Observe(time.Since(start).Seconds())
}

// UpdateBook sets the book gauges.
func UpdateBook(buys, sells int, lastPrice float64) {
	OpenOrders.WithLabelValues("buy").Set(float64(buys))
	OpenOrders.WithLabelValues("sell").Set(float64(sells))
	LastPrice.Set(lastPrice)
}

// Serve exposes /metrics on addr. Shut the returned server down to stop it.
func Serve(addr string, logger *zap.Logger) *http.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}
