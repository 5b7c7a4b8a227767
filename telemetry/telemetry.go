// Package telemetry sets up the OpenTelemetry SDK of the process.
//
// nolint: ireturn
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the SDK.
type Option func(*options)

type options struct {
	stdout          bool
	serviceName     string
	serviceVersion  string
	traceExporters  []trace.SpanExporter
	metricExporters []metric.Exporter
	metricReaders   []metric.Reader
}

// WithStdout pretty prints spans and metrics on stdout.
func WithStdout() Option {
	return func(o *options) {
		o.stdout = true
	}
}

// WithService names the service in the resource of every span and metric.
func WithService(name, version string) Option {
	return func(o *options) {
		o.serviceName = name
		o.serviceVersion = version
	}
}

// WithTraceExporter adds a batched span exporter.
func WithTraceExporter(exporter trace.SpanExporter) Option {
	return func(o *options) {
		o.traceExporters = append(o.traceExporters, exporter)
	}
}

// WithMetricExporter adds a periodically read metric exporter.
func WithMetricExporter(exporter metric.Exporter) Option {
	return func(o *options) {
		o.metricExporters = append(o.metricExporters, exporter)
	}
}

// WithMetricReader adds a metric reader, like the Prometheus exporter.
func WithMetricReader(reader metric.Reader) Option {
	return func(o *options) {
		o.metricReaders = append(o.metricReaders, reader)
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		serviceName: "go-remux",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetupOTELSDK installs the global propagator, tracer provider and meter
// provider. The returned shutdown flushes and stops them.
func SetupOTELSDK(
	ctx context.Context,
	opts ...Option,
) (
	shutdown func(context.Context) error,
	err error,
) {
	o := applyOptions(opts)
	var shutdownFuncs []func(context.Context) error

	// Every registered cleanup is invoked once.
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res, err := newResource(ctx, o)
	if err != nil {
		handleErr(err)
		return
	}

	tracerProvider, err := newTraceProvider(o, res)
	if err != nil {
		handleErr(err)
		return
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	meterProvider, err := newMeterProvider(o, res)
	if err != nil {
		handleErr(err)
		return
	}
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	return
}

func newResource(ctx context.Context, o *options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{attribute.String("service.name", o.serviceName)}
	if o.serviceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", o.serviceVersion))
	}
	return resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
}

func newTraceProvider(o *options, res *resource.Resource) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{trace.WithResource(res)}
	if o.stdout {
		traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(traceExporter))
	}
	for _, exporter := range o.traceExporters {
		opts = append(opts, trace.WithBatcher(exporter))
	}
	return trace.NewTracerProvider(opts...), nil
}

func newMeterProvider(o *options, res *resource.Resource) (*metric.MeterProvider, error) {
	opts := []metric.Option{metric.WithResource(res)}
	if o.stdout {
		metricExporter, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(metricExporter)))
	}
	for _, exporter := range o.metricExporters {
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter)))
	}
	for _, reader := range o.metricReaders {
		opts = append(opts, metric.WithReader(reader))
	}
	return metric.NewMeterProvider(opts...), nil
}
