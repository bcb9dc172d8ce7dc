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

// Pinger is anything with a connectivity check (the market data source).
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	DataSourceOK   bool      `json:"data_source_ok"`
	LastTickTime   time.Time `json:"last_tick_time"`
	LastTickID     string    `json:"last_tick_id"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteEnabled  bool      `json:"sqlite_enabled"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	// Liveness probe results
	DataSourceLatencyMs float64   `json:"data_source_latency_ms"`
	RedisLatencyMs      float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs     float64   `json:"sqlite_latency_ms"`
	LastCheckAt         time.Time `json:"last_check_at"`
	StartedAt           time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// SetLastTick records the most recent completed tick.
func (h *HealthStatus) SetLastTick(t time.Time, id string) {
	h.mu.Lock()
	h.LastTickTime = t
	h.LastTickID = id
	h.mu.Unlock()
}

func (h *HealthStatus) SetDataSourceOK(v bool) {
	h.mu.Lock()
	h.DataSourceOK = v
	h.mu.Unlock()
}

// CheckDataSource pings the market data source and records latency.
func (h *HealthStatus) CheckDataSource(ctx context.Context, src Pinger) {
	start := time.Now()
	err := src.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.DataSourceOK = err == nil
	h.DataSourceLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
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
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// Dependencies groups what the liveness checker probes. Nil members are skipped.
type Dependencies struct {
	DataSource Pinger
	Redis      *goredis.Client
	SQLite     *sql.DB
}

// RunChecks probes every configured dependency once.
func (h *HealthStatus) RunChecks(ctx context.Context, deps Dependencies) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if deps.DataSource != nil {
		h.CheckDataSource(probeCtx, deps.DataSource)
	}
	if deps.Redis != nil {
		h.CheckRedis(probeCtx, deps.Redis)
	}
	if deps.SQLite != nil {
		h.CheckSQLite(probeCtx, deps.SQLite)
	}
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, deps Dependencies, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.RunChecks(ctx, deps)
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.RedisEnabled && !h.RedisConnected
	sqliteDown := h.SQLiteEnabled && !h.SQLiteOK
	if redisDown || sqliteDown {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.DataSourceOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	lastTick := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Second).String()
		lastTick = h.LastTickTime.Format(time.RFC3339)
	}

	status := struct {
		Status              string  `json:"status"`
		Uptime              string  `json:"uptime"`
		DataSourceOK        bool    `json:"data_source_ok"`
		DataSourceLatencyMs float64 `json:"data_source_latency_ms"`
		LastTickTime        string  `json:"last_tick_time"`
		LastTickID          string  `json:"last_tick_id"`
		TickAge             string  `json:"tick_age"`
		RedisEnabled        bool    `json:"redis_enabled"`
		RedisConnected      bool    `json:"redis_connected"`
		RedisLatencyMs      float64 `json:"redis_latency_ms"`
		SQLiteEnabled       bool    `json:"sqlite_enabled"`
		SQLiteOK            bool    `json:"sqlite_ok"`
		SQLiteLatencyMs     float64 `json:"sqlite_latency_ms"`
		LastCheckAt         string  `json:"last_check_at"`
	}{
		Status:              overallStatus,
		Uptime:              time.Since(h.StartedAt).Round(time.Second).String(),
		DataSourceOK:        h.DataSourceOK,
		DataSourceLatencyMs: h.DataSourceLatencyMs,
		LastTickTime:        lastTick,
		LastTickID:          h.LastTickID,
		TickAge:             tickAge,
		RedisEnabled:        h.RedisEnabled,
		RedisConnected:      h.RedisConnected,
		RedisLatencyMs:      h.RedisLatencyMs,
		SQLiteEnabled:       h.SQLiteEnabled,
		SQLiteOK:            h.SQLiteOK,
		SQLiteLatencyMs:     h.SQLiteLatencyMs,
		LastCheckAt:         h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. A nil gatherer serves the
// default registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
