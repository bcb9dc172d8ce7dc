package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestNewMetrics_RegistersOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.JobsTotal.WithLabelValues(ResultSignal).Inc()
	m.JobsTotal.WithLabelValues(ResultSignal).Inc()
	m.BreakerChanged("BTCUSDT|5m", 1)
	m.BreakerChanged("BTCUSDT|5m", 2)

	if got := testutil.ToFloat64(m.JobsTotal.WithLabelValues(ResultSignal)); got != 2 {
		t.Errorf("jobs{signal}=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BreakerTrips); got != 1 {
		t.Errorf("breaker trips=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("BTCUSDT|5m")); got != 2 {
		t.Errorf("breaker state=%v, want 2", got)
	}

	// Registering twice on the same registry must panic.
	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration panic")
		}
	}()
	NewMetrics(reg)
}

func decodeHealth(t *testing.T, h *HealthStatus) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	return rec.Code, body
}

func TestHealth_DataSourceDrivesStatus(t *testing.T) {
	h := NewHealthStatus()

	code, body := decodeHealth(t, h)
	if code != http.StatusServiceUnavailable || body["status"] != "unhealthy" {
		t.Errorf("before any check: code=%d status=%v", code, body["status"])
	}

	h.CheckDataSource(context.Background(), fakePinger{})
	h.SetLastTick(time.Now(), "tick-1")
	code, body = decodeHealth(t, h)
	if code != http.StatusOK || body["status"] != "healthy" || body["last_tick_id"] != "tick-1" {
		t.Errorf("healthy: code=%d body=%v", code, body)
	}

	h.CheckDataSource(context.Background(), fakePinger{err: errors.New("down")})
	if code, _ := decodeHealth(t, h); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with data source down, got %d", code)
	}
}

func TestHealth_RedisDegraded(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := NewHealthStatus()
	h.RunChecks(context.Background(), Dependencies{DataSource: fakePinger{}, Redis: rdb})
	if code, body := decodeHealth(t, h); code != http.StatusOK || body["redis_connected"] != true {
		t.Fatalf("expected healthy with redis up, code=%d body=%v", code, body)
	}

	mr.Close()
	h.RunChecks(context.Background(), Dependencies{DataSource: fakePinger{}, Redis: rdb})
	code, body := decodeHealth(t, h)
	if code != http.StatusServiceUnavailable || body["status"] != "degraded" {
		t.Errorf("expected degraded with redis down, code=%d body=%v", code, body)
	}
}

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.TicksTotal.Inc()

	h := NewHealthStatus()
	h.SetDataSourceOK(true)
	srv := httptest.NewServer(NewServer(":0", h, reg).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "fisherbot_ticks_total 1") {
		t.Errorf("metrics output missing tick counter:\n%s", buf.String())
	}

	hr, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	hr.Body.Close()
	if hr.StatusCode != http.StatusOK {
		t.Errorf("healthz status %d", hr.StatusCode)
	}
}
