package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-license-orderflow/internal/config"
	"github.com/imrishuroy/go-license-orderflow/internal/handlers"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/metrics"
	"github.com/imrishuroy/go-license-orderflow/internal/notify"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSetupRouter_HealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := setupRouter(discard(), handlers.HandlerConfig{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Fatalf("unexpected health body %s", w.Body.String())
	}
	if w.Header().Get(logging.RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics endpoint should expose request counters")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("admin routes must not be mounted without an operator, got %d", w.Code)
	}
}

func TestNewNotifier_Selection(t *testing.T) {
	cfg := config.Default()
	if _, ok := newNotifier(cfg, nil, discard()).(*notify.LogNotifier); !ok {
		t.Fatalf("expected log notifier without a provider")
	}
	cfg.Notify.ResendAPIKey = "re_test"
	if _, ok := newNotifier(cfg, nil, discard()).(*notify.ResendMailer); !ok {
		t.Fatalf("expected resend mailer")
	}
}

func TestNewRecorder_PrometheusOnlyByDefault(t *testing.T) {
	rec := newRecorder(config.Default(), nil, discard())
	multi, ok := rec.(metrics.Multi)
	if !ok || len(multi) != 1 {
		t.Fatalf("expected a single prometheus recorder, got %#v", rec)
	}
}
