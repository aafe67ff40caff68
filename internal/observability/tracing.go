package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracingShutdownTimeout = 5 * time.Second

// TracingConfig governs how control-server tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	SampleRatio float64

	// Endpoint, Headers and Insecure apply to the otlp exporter.
	Endpoint string
	Headers  map[string]string
	Insecure bool

	// Output receives stdout-exporter spans; nil means os.Stdout.
	Output io.Writer

	// Attributes are added to the trace resource, e.g. the clock mode the
	// engine runs under.
	Attributes []attribute.KeyValue
}

// LoadTracingConfig reads NETLAB_TRACING_* and NETLAB_OTLP_* variables
// through getenv, which defaults to os.Getenv. Malformed values fall back
// to defaults.
func LoadTracingConfig(getenv func(string) string) TracingConfig {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(getenv("NETLAB_TRACING_ENABLED"), "true"),
		ServiceName: getenv("NETLAB_TRACING_SERVICE_NAME"),
		Exporter:    strings.ToLower(getenv("NETLAB_TRACING_EXPORTER")),
		SampleRatio: 1,
		Endpoint:    getenv("NETLAB_OTLP_ENDPOINT"),
		Headers:     parseHeaders(getenv("NETLAB_OTLP_HEADERS")),
		Insecure:    true,
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "netlab-server"
	}
	if cfg.Exporter == "" {
		cfg.Exporter = "stdout"
	}
	if raw := getenv("NETLAB_TRACING_SAMPLE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	if raw := getenv("NETLAB_OTLP_INSECURE"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			cfg.Insecure = b
		}
	}
	return cfg
}

// parseHeaders reads "k1=v1,k2=v2". Pairs without '=' are skipped.
func parseHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if k = strings.TrimSpace(k); !ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// Tracing owns the installed tracer provider.
type Tracing struct {
	shutdown func(context.Context) error
	log      logging.Logger
}

// StartTracing installs the global tracer provider and propagators. With
// tracing disabled a noop provider is installed and Shutdown does nothing.
func StartTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (*Tracing, error) {
	if log == nil {
		log = logging.Noop()
	}
	t := &Tracing{log: log, shutdown: func(context.Context) error { return nil }}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Info(ctx, "tracing disabled")
		return t, nil
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "netlab"),
	}, cfg.Attributes...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.shutdown = tp.Shutdown

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.String("sample_ratio", strconv.FormatFloat(cfg.SampleRatio, 'f', -1, 64)),
	)
	return t, nil
}

// Shutdown flushes buffered spans, giving up after a few seconds. Failures
// are logged, not returned.
func (t *Tracing) Shutdown(ctx context.Context) {
	if t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, tracingShutdownTimeout)
	defer cancel()
	if err := t.shutdown(ctx); err != nil {
		t.log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}
