// Package metrics exposes Prometheus metrics and a health endpoint for the
// signal bot's ops server.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal bot.
type Metrics struct {
	ChecksTotal       prometheus.Counter
	ForcedChecksTotal prometheus.Counter
	TickersEvaluated  prometheus.Counter

	SignalsDelivered  *prometheus.CounterVec // labels: reason
	SignalsSuppressed *prometheus.CounterVec // labels: reason

	FetchErrors       prometheus.Counter
	InsufficientData  prometheus.Counter
	NotifyFailures    prometheus.Counter
	HistoryWriteFails prometheus.Counter

	CheckDuration prometheus.Histogram
	WatchlistSize prometheus.Gauge

	FetchBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	FetchBreakerTrips prometheus.Counter

	WSClients prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ChecksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_checks_total",
			Help: "Total evaluation passes over the watchlist",
		}),
		ForcedChecksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_forced_checks_total",
			Help: "Evaluation passes run with the dedup bypass",
		}),
		TickersEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_tickers_evaluated_total",
			Help: "Tickers evaluated across all passes",
		}),
		SignalsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signals_delivered_total",
			Help: "Signals delivered, by dedup reason",
		}, []string{"reason"}),
		SignalsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signals_suppressed_total",
			Help: "Signal candidates suppressed, by dedup reason",
		}, []string{"reason"}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_fetch_errors_total",
			Help: "Price history fetches that failed (ticker skipped)",
		}),
		InsufficientData: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_insufficient_data_total",
			Help: "Tickers skipped for too little price history",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_notify_failures_total",
			Help: "Notification sends that failed after the record was persisted",
		}),
		HistoryWriteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_history_write_failures_total",
			Help: "Signal record writes that failed (delivery aborted)",
		}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_check_duration_seconds",
			Help:    "Wall time of one evaluation pass",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		WatchlistSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_watchlist_size",
			Help: "Tickers currently on the watchlist",
		}),
		FetchBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_fetch_breaker_state",
			Help: "Market data circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		FetchBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_fetch_breaker_trips_total",
			Help: "Times the market data circuit breaker tripped open",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_ws_clients",
			Help: "Connected signal feed WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.ChecksTotal,
		m.ForcedChecksTotal,
		m.TickersEvaluated,
		m.SignalsDelivered,
		m.SignalsSuppressed,
		m.FetchErrors,
		m.InsufficientData,
		m.NotifyFailures,
		m.HistoryWriteFails,
		m.CheckDuration,
		m.WatchlistSize,
		m.FetchBreakerState,
		m.FetchBreakerTrips,
		m.WSClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastPassAt     time.Time `json:"last_pass_at"`
	LastPassOK     bool      `json:"last_pass_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// SetLastPass records the outcome of the most recent evaluation pass.
func (h *HealthStatus) SetLastPass(at time.Time, ok bool) {
	h.mu.Lock()
	h.LastPassAt = at
	h.LastPassOK = ok
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. rdb may be nil when
// the bot runs without a price cache.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// SQLite is the source of truth; redis is an optional cache.
	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if !h.RedisConnected {
		overallStatus = "degraded"
	}

	lastPass := ""
	if !h.LastPassAt.IsZero() {
		lastPass = h.LastPassAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		LastPassAt      string  `json:"last_pass_at"`
		LastPassOK      bool    `json:"last_pass_ok"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		LastPassAt:      lastPass,
		LastPassOK:      h.LastPassOK,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics, /healthz, and the signal
// feed WebSocket endpoint.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates the ops server. wsHandler may be nil when the signal
// feed is disabled.
func NewServer(addr string, health *HealthStatus, wsHandler http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)
	if wsHandler != nil {
		mux.Handle("/ws/signals", wsHandler)
	}

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the ops server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
