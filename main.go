package main

import (
	"context"
	"os"
	"time"

	"github.com/Darkness4/go-remux/cmd/clean"
	"github.com/Darkness4/go-remux/cmd/concat"
	"github.com/Darkness4/go-remux/cmd/decode"
	"github.com/Darkness4/go-remux/cmd/probe"
	"github.com/Darkness4/go-remux/cmd/remux"
	"github.com/Darkness4/go-remux/cmd/watch"
	"github.com/Darkness4/go-remux/logger"
	"github.com/Darkness4/go-remux/telemetry"
	"github.com/Darkness4/go-remux/telemetry/metrics"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
)

var version = "dev"

var (
	logLevel   string
	logJSON    bool
	otelStdout bool
	shutdown   func(context.Context) error
)

var app = &cli.App{
	Name:    "go-remux",
	Usage:   "Remux, concat and watch media streams without transcoding.",
	Version: version,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			Usage:       "Log level (trace, debug, info, warn, error).",
			EnvVars:     []string{"LOG_LEVEL"},
			Destination: &logLevel,
		},
		&cli.BoolFlag{
			Name:        "log-json",
			Usage:       "Log in JSON.",
			EnvVars:     []string{"LOG_JSON"},
			Destination: &logJSON,
		},
		&cli.BoolFlag{
			Name:        "otel.stdout",
			Usage:       "Print traces and metrics on stdout.",
			EnvVars:     []string{"OTEL_STDOUT"},
			Destination: &otelStdout,
		},
	},
	Before: func(cCtx *cli.Context) error {
		logger.Setup(logLevel, logJSON)

		var err error
		shutdown, err = setupTelemetry(cCtx.Context)
		if err != nil {
			log.Err(err).Msg("failed to setup telemetry, continuing without it")
		}
		metrics.InitMetrics(otel.GetMeterProvider())
		return nil
	},
	After: func(_ *cli.Context) error {
		if shutdown == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	},
	Commands: []*cli.Command{
		remux.Command,
		concat.Command,
		probe.Command,
		clean.Command,
		decode.Command,
		watch.Command,
	},
}

func setupTelemetry(ctx context.Context) (func(context.Context) error, error) {
	opts := []telemetry.Option{telemetry.WithService("go-remux", version)}
	if otelStdout {
		opts = append(opts, telemetry.WithStdout())
	}

	// Served by the watch command on /metrics.
	prom, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	opts = append(opts, telemetry.WithMetricReader(prom))

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		traceExporter, err := otlptracegrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		metricExporter, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(
			opts,
			telemetry.WithTraceExporter(traceExporter),
			telemetry.WithMetricExporter(metricExporter),
		)
	}
	return telemetry.SetupOTELSDK(ctx, opts...)
}

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("app crashed")
	}
}
