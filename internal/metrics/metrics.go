package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/imrishuroy/go-license-orderflow/internal/aws"
)

// Business events counted by the pipeline.
const (
	CheckoutStarted      = "CheckoutStarted"
	CheckoutOrphaned     = "CheckoutOrphaned"
	OrderCompleted       = "OrderCompleted"
	DuplicateDelivery    = "DuplicateDelivery"
	WebhookRejected      = "WebhookRejected"
	NotificationFailed   = "NotificationFailed"
	DownloadServed       = "DownloadServed"
	DownloadTokenExpired = "DownloadTokenExpired"
)

// Recorder counts business events. Implementations must not fail the caller.
type Recorder interface {
	Count(ctx context.Context, event string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Count(context.Context, string) {}

// Multi fans out to several recorders.
type Multi []Recorder

func (m Multi) Count(ctx context.Context, event string) {
	for _, r := range m {
		r.Count(ctx, event)
	}
}

// CloudWatch publishes each event as a Count metric in namespace.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *slog.Logger
	nowFunc   func() time.Time
}

func NewCloudWatch(client aws.CloudWatchAPI, namespace string, log *slog.Logger) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, log: log, nowFunc: time.Now}
}

func (c *CloudWatch) Count(ctx context.Context, event string) {
	ts := c.nowFunc()
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &c.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &event,
				Timestamp:  &ts,
				Unit:       cwtypes.StandardUnitCount,
				Value:      float64Ptr(1),
			},
		},
	})
	if err != nil {
		c.log.Warn("put metric data failed", "metric", event, "err", err)
	}
}

var businessEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "license_events_total",
		Help: "Business events of the license order pipeline",
	},
	[]string{"event"},
)

// Prometheus increments license_events_total{event=...}.
type Prometheus struct{}

func (Prometheus) Count(_ context.Context, event string) {
	businessEvents.WithLabelValues(event).Inc()
}

func float64Ptr(v float64) *float64 { return &v }
