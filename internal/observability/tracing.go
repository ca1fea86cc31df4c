package observability

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cxd309/tms-rail/internal/logging"
)

const (
	defaultServiceName  = "railsim"
	defaultOTLPEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
)

// TracingConfig selects where simulator spans go and the resource they are
// reported under.
type TracingConfig struct {
	Enabled     bool
	Exporter    string // stdout, otlp
	Endpoint    string
	SampleRatio float64
	ServiceName string
	// Version defaults to the main module version from the build info.
	Version string
	// Scenario is attached to the resource as sim.scenario.
	Scenario string
	// Writer receives stdout exporter output. Nil means os.Stdout.
	Writer io.Writer
}

// TracingConfigFromEnv reads the RAILSIM_TRACING_* variables.
func TracingConfigFromEnv() TracingConfig {
	return TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("RAILSIM_TRACING_ENABLED"), "true"),
		Exporter:    strings.ToLower(envOr("RAILSIM_TRACING_EXPORTER", "stdout")),
		Endpoint:    os.Getenv("RAILSIM_OTLP_ENDPOINT"),
		SampleRatio: envRatio("RAILSIM_TRACING_SAMPLE_RATIO", 1),
		ServiceName: envOr("RAILSIM_TRACING_SERVICE_NAME", defaultServiceName),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envRatio ignores values outside [0, 1].
func envRatio(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 || v > 1 {
		return fallback
	}
	return v
}

type exporterFunc func(context.Context, TracingConfig) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFunc{
	"":         stdoutExporter,
	"stdout":   stdoutExporter,
	"otlp":     otlpExporter,
	"otlpgrpc": otlpExporter,
}

func stdoutExporter(_ context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

func otlpExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	))
}

// simResource describes one simulator process.
func simResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{
		attribute.String("service.name", name),
		attribute.String("service.namespace", defaultServiceName),
		attribute.String("service.version", buildVersion(cfg.Version)),
	}
	if cfg.Scenario != "" {
		attrs = append(attrs, attribute.String("sim.scenario", cfg.Scenario))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

func buildVersion(v string) string {
	if v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "devel"
}

// InitTracing installs the global tracer provider and propagators. With
// tracing disabled a noop provider is installed.
// The returned function flushes and stops the exporter.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	log = logging.OrNoop(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "span export off")
		return func(context.Context) error { return nil }, nil
	}

	newExporter, ok := exporters[strings.ToLower(cfg.Exporter)]
	if !ok {
		return nil, errors.Errorf("unknown span exporter %q", cfg.Exporter)
	}
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "%s exporter", cfg.Exporter)
	}
	res, err := simResource(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "tracing resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "exporting spans",
		logging.String("exporter", cfg.Exporter),
		logging.String("scenario", cfg.Scenario),
		logging.Float("sample_ratio", cfg.SampleRatio))
	return tp.Shutdown, nil
}

// ShutdownWithTimeout flushes spans, giving up after a few seconds. Failures
// are logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logging.OrNoop(log).Warn(ctx, "span flush failed", logging.Err(err))
	}
}
