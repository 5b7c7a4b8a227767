// Package metrics provides a way to record metrics.
package metrics

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/Darkness4/go-remux"

var (
	// Remux metrics
	Remux struct {
		// CompletionTime is the time taken to complete a remux.
		CompletionTime metric.Float64Histogram
		// Errors is the number of failed remuxes, by phase.
		Errors metric.Int64Counter
		// Runs is the number of remuxes.
		Runs metric.Int64Counter
		// PacketsWritten is the number of packets written to destinations.
		PacketsWritten metric.Int64Counter
		// PacketsDropped is the number of packets of filtered streams.
		PacketsDropped metric.Int64Counter
		// BytesWritten is the number of bytes forwarded to sinks.
		BytesWritten metric.Int64Counter
	}

	// Concat metrics
	Concat struct {
		// CompletionTime is the time taken to complete a concat.
		CompletionTime metric.Float64Histogram
		// Errors is the accumulated failed runs of concats.
		Errors metric.Int64Counter
		// Runs is the number of concats.
		Runs metric.Int64Counter
	}

	// Watcher metrics
	Watcher struct {
		// Jobs is the number of jobs, by state.
		Jobs metric.Int64UpDownCounter
		// Pending is the number of files waiting to be remuxed.
		Pending metric.Int64UpDownCounter
		// Events is the number of file system events received.
		Events metric.Int64Counter
		// Latency is the time between the detection of a file and the end of
		// its job.
		Latency metric.Float64Histogram
	}

	// Cleaner metrics
	Cleaner struct {
		// FilesRemoved is the number of files removed.
		FilesRemoved metric.Int64Counter
		// Scans is the number of scans.
		Scans metric.Int64Counter
		// Errors is the number of errors during cleaning.
		Errors metric.Int64Counter
		// Runs is the number of cleaning runs.
		Runs metric.Int64Counter
		// CleanTime is the time taken to clean.
		CleanTime metric.Float64Histogram
	}
)

func init() {
	// Instruments are usable before the SDK is set up.
	InitMetrics(noop.NewMeterProvider())
}

// InitMetrics initializes the metrics. Must be called as soon as possible.
func InitMetrics(provider metric.MeterProvider) {
	meter := provider.Meter(meterName)

	var err error

	// Remux
	Remux.CompletionTime, err = meter.Float64Histogram(
		"remux.completion.time",
		metric.WithDescription("Time taken to complete a remux"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
	Remux.Errors, err = meter.Int64Counter(
		"remux.errors",
		metric.WithDescription("Number of failed remuxes"),
	)
	if err != nil {
		panic(err)
	}
	Remux.Runs, err = meter.Int64Counter(
		"remux.runs",
		metric.WithDescription("Number of remuxes"),
	)
	if err != nil {
		panic(err)
	}
	Remux.PacketsWritten, err = meter.Int64Counter(
		"remux.packets.written",
		metric.WithDescription("Number of packets written"),
	)
	if err != nil {
		panic(err)
	}
	Remux.PacketsDropped, err = meter.Int64Counter(
		"remux.packets.dropped",
		metric.WithDescription("Number of packets of filtered streams"),
	)
	if err != nil {
		panic(err)
	}
	Remux.BytesWritten, err = meter.Int64Counter(
		"remux.bytes.written",
		metric.WithDescription("Number of bytes written to sinks"),
		metric.WithUnit("By"),
	)
	if err != nil {
		panic(err)
	}

	// Concat
	Concat.CompletionTime, err = meter.Float64Histogram(
		"concat.completion.time",
		metric.WithDescription("Time taken to complete a concat"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
	Concat.Errors, err = meter.Int64Counter(
		"concat.errors",
		metric.WithDescription("Accumulated failed runs of concats"),
	)
	if err != nil {
		panic(err)
	}
	Concat.Runs, err = meter.Int64Counter(
		"concat.runs",
		metric.WithDescription("Number of concats"),
	)
	if err != nil {
		panic(err)
	}

	// Watcher
	Watcher.Jobs, err = meter.Int64UpDownCounter(
		"watcher.jobs",
		metric.WithDescription("Number of jobs, by state"),
	)
	if err != nil {
		panic(err)
	}
	Watcher.Pending, err = meter.Int64UpDownCounter(
		"watcher.pending",
		metric.WithDescription("Number of files waiting to be remuxed"),
	)
	if err != nil {
		panic(err)
	}

	Watcher.Events, err = meter.Int64Counter(
		"watcher.events",
		metric.WithDescription("Number of file system events received"),
	)
	if err != nil {
		panic(err)
	}
	Watcher.Latency, err = meter.Float64Histogram(
		"watcher.latency",
		metric.WithDescription("Time between the detection of a file and the end of its job"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}

	// Cleaner
	Cleaner.FilesRemoved, err = meter.Int64Counter(
		"cleaner.files_removed",
		metric.WithDescription("Number of files removed"),
	)
	if err != nil {
		panic(err)
	}
	Cleaner.Errors, err = meter.Int64Counter(
		"cleaner.errors",
		metric.WithDescription("Number of errors during cleaning"),
	)
	if err != nil {
		panic(err)
	}
	Cleaner.Runs, err = meter.Int64Counter(
		"cleaner.runs",
		metric.WithDescription("Number of cleaning runs"),
	)
	if err != nil {
		panic(err)
	}
	Cleaner.Scans, err = meter.Int64Counter(
		"cleaner.scans",
		metric.WithDescription("Number of scans"),
	)
	if err != nil {
		panic(err)
	}
	Cleaner.CleanTime, err = meter.Float64Histogram(
		"cleaner.clean.time",
		metric.WithDescription("Time taken to clean"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
}
