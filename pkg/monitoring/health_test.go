package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthChecker_Basic(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	status := hc.CheckHealth()
	if status.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", status.Status)
	}
}

func TestHealthChecker_DegradedAndUnhealthy(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	hc.AddCheck("cache", DegradedPingHealthCheck("redis", PingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))
	if got := hc.CheckHealth().Status; got != StatusDegraded {
		t.Fatalf("expected degraded, got %s", got)
	}

	hc.AddCheck("db", PingHealthCheck("postgres", nil))
	if got := hc.CheckHealth().Status; got != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", got)
	}
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("db", PingHealthCheck("postgres", PingerFunc(func(context.Context) error { return errors.New("down") })))

	r := gin.New()
	r.GET("/health", hc.Handler())
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "postgres ping failed") {
		t.Fatalf("expected failure message in body, got %s", w.Body.String())
	}
}

func TestHTTPServiceHealthCheck(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer s.Close()
	if res := HTTPServiceHealthCheck("searxng", s.URL+"/healthz")(); res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", res.Status)
	}
	res := HTTPServiceHealthCheck("searxng", s.URL+"/missing")()
	if res.Status != StatusDegraded || !strings.Contains(res.Message, "404") {
		t.Fatalf("expected degraded with status code, got %+v", res)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]string{"LLM_MODEL": "", "LLM_PROVIDER": "openai"})()
	if res.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", res.Status)
	}
	if !strings.Contains(res.Message, "LLM_MODEL") {
		t.Fatalf("expected missing key in message, got %q", res.Message)
	}
}

func TestMetricsCollectorServiceInfo(t *testing.T) {
	mc := NewMetricsCollector("lookout-test", "v1", "abc")

	families, err := mc.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "lookout_test_service_info" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected sanitized service info gauge in registry")
	}

	// A second collector with the same service name must not panic.
	_ = NewMetricsCollector("lookout-test", "v1", "abc")
}
