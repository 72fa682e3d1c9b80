package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCloudWatch_Count(t *testing.T) {
	mock := &mockCloudWatch{}
	r := NewCloudWatch(mock, "LicenseOrders", discard())
	r.Count(context.Background(), OrderCompleted)

	if len(mock.inputs) != 1 {
		t.Fatalf("expected 1 put, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.Namespace != "LicenseOrders" || *in.MetricData[0].MetricName != OrderCompleted {
		t.Fatalf("unexpected input %+v", in)
	}
	if *in.MetricData[0].Value != 1 {
		t.Fatalf("expected value 1")
	}
}

func TestCloudWatch_ErrorIsSwallowed(t *testing.T) {
	mock := &mockCloudWatch{err: errors.New("throttled")}
	NewCloudWatch(mock, "ns", discard()).Count(context.Background(), OrderCompleted)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &mockCloudWatch{}, &mockCloudWatch{}
	m := Multi{NewCloudWatch(a, "ns", discard()), NewCloudWatch(b, "ns", discard()), Nop{}}
	m.Count(context.Background(), DownloadServed)
	if len(a.inputs) != 1 || len(b.inputs) != 1 {
		t.Fatalf("expected both recorders to be called")
	}
}

func TestPrometheus_Count(t *testing.T) {
	before := testutil.ToFloat64(businessEvents.WithLabelValues(WebhookRejected))
	Prometheus{}.Count(context.Background(), WebhookRejected)
	if got := testutil.ToFloat64(businessEvents.WithLabelValues(WebhookRejected)); got != before+1 {
		t.Fatalf("expected counter to grow by 1, got %v -> %v", before, got)
	}
}

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/download/:token", func(c *gin.Context) { c.Status(http.StatusGone) })
	r.GET("/metrics", Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/download/secret-token", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	if !strings.Contains(body, `path="/download/:token"`) {
		t.Fatalf("expected templated path in metrics")
	}
	if strings.Contains(body, "secret-token") {
		t.Fatalf("raw token leaked into metrics")
	}
}
