package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"frameworks/pkg/logging"
	"frameworks/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func TestSetupServiceRouter(t *testing.T) {
	logger := logging.NewLogger()
	hc := monitoring.NewHealthChecker("svc", "v1")
	mc := monitoring.NewMetricsCollector("svc", "v1", "abc")
	r := SetupServiceRouter(logger, "svc", hc, mc)
	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/ping", nil)
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSetupServiceRouterHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logging.NewLogger()
	hc := monitoring.NewHealthChecker("lookout", "v1")
	hc.AddCheck("ok", func() monitoring.CheckResult { return monitoring.CheckResult{Status: monitoring.StatusHealthy} })
	mc := monitoring.NewMetricsCollector("lookout_router_test", "v1", "abc")
	r := SetupServiceRouter(logger, "lookout", hc, mc)

	for _, path := range []string{"/health", "/metrics", "/version"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestDefaultConfigReadsPort(t *testing.T) {
	t.Setenv("PORT", "19999")
	cfg := DefaultConfig("lookout", "18030")
	if cfg.Port != "19999" {
		t.Fatalf("expected env port, got %s", cfg.Port)
	}
}
