package observability

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kenton-research/kenton/internal/logger"
)

// DefaultServiceName is the service name attached to traces
const DefaultServiceName = "kenton"

var (
	tracerMu       sync.RWMutex
	tracerProvider *sdktrace.TracerProvider
)

// TracingConfig holds tracing configuration
type TracingConfig struct {
	// ServiceName is the name of the service (defaults to "kenton")
	ServiceName string

	// ExporterType specifies the exporter: "otlp", "stdout", or "none"
	ExporterType string

	// OTLPEndpoint is the OTLP collector host:port or URL
	OTLPEndpoint string

	// OTLPHeaders are additional headers for OTLP requests (e.g., authorization)
	OTLPHeaders map[string]string
}

// TracingConfigFromEnv reads standard OpenTelemetry environment variables:
// - OTEL_SERVICE_NAME: Service name (default: "kenton")
// - OTEL_TRACES_EXPORTER: "otlp", "stdout", or "none" (default: "none")
// - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint
// - OTEL_EXPORTER_OTLP_HEADERS: Headers in format "key1=value1,key2=value2"
func TracingConfigFromEnv() TracingConfig {
	return TracingConfig{
		ServiceName:  getEnv("OTEL_SERVICE_NAME", DefaultServiceName),
		ExporterType: getEnv("OTEL_TRACES_EXPORTER", "none"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:  parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
	}
}

// InitTracing installs a global tracer provider
func InitTracing(ctx context.Context, cfg TracingConfig) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.ExporterType == "" || cfg.ExporterType == "none" {
		logger.Debug("tracing disabled")
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.ExporterType {
	case "otlp":
		opts := []otlptracehttp.Option{}
		if cfg.OTLPEndpoint != "" {
			if strings.Contains(cfg.OTLPEndpoint, "://") {
				opts = append(opts, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
			} else {
				opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
			}
		}
		if len(cfg.OTLPHeaders) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("create OTLP exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
	default:
		return fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	tracerMu.Lock()
	tracerProvider = tp
	tracerMu.Unlock()

	logger.Info("tracing initialized", zap.String("exporter", cfg.ExporterType))
	return nil
}

// ShutdownTracing flushes and stops the tracer provider, if one was installed
func ShutdownTracing(ctx context.Context) error {
	tracerMu.Lock()
	tp := tracerProvider
	tracerProvider = nil
	tracerMu.Unlock()

	if tp == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span on the global tracer provider.
// Without InitTracing this is a no-op span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(DefaultServiceName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseHeaders parses "key1=value1,key2=value2".
func parseHeaders(s string) map[string]string {
	if s == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
}
