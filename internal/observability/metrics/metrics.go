package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	checkouts        metric.Int64Counter
	paymentCallbacks metric.Int64Counter
	enrollments      metric.Int64Counter
	notifications    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "kelaspay"
	}
	meter := provider.Meter(name)

	checkouts, err := meter.Int64Counter("kelaspay_checkouts_total")
	if err != nil {
		return nil, err
	}
	paymentCallbacks, err := meter.Int64Counter("kelaspay_payment_callbacks_total")
	if err != nil {
		return nil, err
	}
	enrollments, err := meter.Int64Counter("kelaspay_enrollments_total")
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("kelaspay_notifications_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checkouts:        checkouts,
		paymentCallbacks: paymentCallbacks,
		enrollments:      enrollments,
		notifications:    notifications,
	}, nil
}

// RecordCheckout increments checkout attempt counts.
func (m *Metrics) RecordCheckout(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("payment_method", strings.TrimSpace(method)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentCallback increments gateway callback counts.
func (m *Metrics) RecordPaymentCallback(ctx context.Context, status, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("callback_status", strings.TrimSpace(status)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.paymentCallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEnrollment increments enrollment activation counts.
func (m *Metrics) RecordEnrollment(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.enrollments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotification increments notification dispatch counts.
func (m *Metrics) RecordNotification(ctx context.Context, notificationType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("notification_type", strings.TrimSpace(notificationType)))
	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"payment_method":    {},
	"payment_channel":   {},
	"callback_status":   {},
	"outcome":           {},
	"source":            {},
	"notification_type": {},
	"endpoint":          {},
	"status_code":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
