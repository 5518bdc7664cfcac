package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"ecomfp/internal/config"
)

const (
	ServiceName    = "ecommerce-feature-pipeline"
	ServiceVersion = "v1.0.0"
	MeterName      = "ecomfp"
)

// OTelProviders holds the OpenTelemetry providers for one process.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel initializes tracing and metrics according to configuration.
// With everything disabled it still returns usable no-op tracer and meter.
func InitializeOTel(cfg config.ObservabilityConfig, logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		attribute.String("service.instance.id", instanceID()),
	)

	providers := &OTelProviders{
		Logger: logger,
		Tracer: otel.Tracer(MeterName),
		Meter:  otel.Meter(MeterName),
	}

	if cfg.EnableTracing {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		)
		otel.SetTracerProvider(tp)

		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(ServiceVersion))
	}

	if cfg.EnableMetrics {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(mp)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))
		providers.PrometheusHTTP = promhttp.Handler()
	}

	logger.InfoContext(ctx, "observability initialized",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	return nil
}

// PipelineMetrics holds the instrument set recorded across a run.
type PipelineMetrics struct {
	RowsExtracted      metric.Int64Counter
	RowsFiltered       metric.Int64Counter
	OutliersRemoved    metric.Int64Counter
	DaysInterpolated   metric.Int64Counter
	ValidationFailures metric.Int64Counter
	RowsPublished      metric.Int64Counter
	StageDuration      metric.Float64Histogram
}

// CreatePipelineMetrics creates the pipeline-specific metrics.
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	rowsExtracted, err := meter.Int64Counter(
		"pipeline_rows_extracted_total",
		metric.WithDescription("Raw transaction rows read from the dataset source"),
	)
	if err != nil {
		return nil, err
	}

	rowsFiltered, err := meter.Int64Counter(
		"pipeline_rows_filtered_total",
		metric.WithDescription("Rows dropped by the country allow-list"),
	)
	if err != nil {
		return nil, err
	}

	outliersRemoved, err := meter.Int64Counter(
		"pipeline_outliers_removed_total",
		metric.WithDescription("Per-day totals removed by the IQR outlier filter"),
	)
	if err != nil {
		return nil, err
	}

	daysInterpolated, err := meter.Int64Counter(
		"pipeline_days_interpolated_total",
		metric.WithDescription("Calendar days filled by interpolation during resampling"),
	)
	if err != nil {
		return nil, err
	}

	validationFailures, err := meter.Int64Counter(
		"pipeline_validation_failures_total",
		metric.WithDescription("Expectation suite rules failed by candidate tables"),
	)
	if err != nil {
		return nil, err
	}

	rowsPublished, err := meter.Int64Counter(
		"pipeline_rows_published_total",
		metric.WithDescription("Daily feature rows inserted into the feature store"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Stage execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RowsExtracted:      rowsExtracted,
		RowsFiltered:       rowsFiltered,
		OutliersRemoved:    outliersRemoved,
		DaysInterpolated:   daysInterpolated,
		ValidationFailures: validationFailures,
		RowsPublished:      rowsPublished,
		StageDuration:      stageDuration,
	}, nil
}

// RecordStageDuration records how long a pipeline stage ran.
func RecordStageDuration(ctx context.Context, m *PipelineMetrics, stage string, d time.Duration, success bool) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// instanceID generates a unique instance identifier
func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
