package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun(OutcomeOK, 20*time.Millisecond, 5, 40)
	m.ObserveRun(OutcomeReplayed, time.Millisecond, 5, 40)
	m.RunRejected(OutcomeInvalid)

	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues(OutcomeOK)); got != 1 {
		t.Errorf("ok runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues(OutcomeInvalid)); got != 1 {
		t.Errorf("invalid runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.candidates); got != 80 {
		t.Errorf("candidates = %v, want 80", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRun(OutcomeOK, time.Second, 1, 1)
	m.RunRejected(OutcomeError)
	m.StoreAppend("file", "ok")
	m.Explanation("ok")
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.StoreAppend("file", "ok")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `beamsim_store_appends_total{backend="file",status="ok"} 1`) {
		t.Errorf("metrics output missing store append counter:\n%s", body)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", health.StatusCode)
	}
}
