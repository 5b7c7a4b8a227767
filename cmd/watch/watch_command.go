// Package watch provides the command watching directories and remuxing new
// files.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	_ "github.com/grafana/pyroscope-go/godeltaprof/http/pprof"

	"github.com/Darkness4/go-remux/logger"
	"github.com/Darkness4/go-remux/notify"
	"github.com/Darkness4/go-remux/notify/notifier"
	"github.com/Darkness4/go-remux/state"
	"github.com/Darkness4/go-remux/watcher"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	configPath     string
	listenAddress  string
	reloadInterval time.Duration
)

// Command is the command watching directories.
var Command = &cli.Command{
	Name:  "watch",
	Usage: "Watch directories and remux the media files appearing in them.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Required:    true,
			Usage:       `Config file path. (required)`,
			EnvVars:     []string{"WATCH_CONFIG"},
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "http.listen-address",
			Aliases:     []string{"pprof.listen-address"},
			Value:       ":3000",
			Usage:       "Address of the state, metrics and profiling endpoints.",
			EnvVars:     []string{"HTTP_LISTEN_ADDRESS"},
			Destination: &listenAddress,
		},
		&cli.DurationFlag{
			Name:        "config.reload-interval",
			Value:       time.Second,
			Usage:       "Interval between checks of the config file.",
			Destination: &reloadInterval,
		},
	},
	Action: func(cCtx *cli.Context) error {
		ctx, cancel := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		configChan := make(chan *watcher.Config)
		go WatchConfig(ctx, configPath, configChan, reloadInterval)

		srv := &http.Server{
			Addr:              listenAddress,
			Handler:           otelhttp.NewHandler(Handler(), "watch"),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("listenAddress", listenAddress).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("fail to serve http")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		err := ConfigReloader(ctx, configChan, handleConfig)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// Handler serves the job state on "/", the Prometheus metrics on "/metrics"
// and the profiles on "/debug/pprof/".
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		s := state.DefaultState.ReadState()
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})
	mux.Handle("/metrics", promhttp.Handler())
	// net/http/pprof and godeltaprof register on the default mux.
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return mux
}

func newNotifier(config watcher.NotifierConfig) (notify.BaseNotifier, error) {
	if !config.Enabled {
		log.Info().Msg("no notifier configured")
		return notify.NewDummyNotifier(), nil
	}
	switch {
	case config.Gotify.Endpoint != "":
		log.Info().Msg("using gotify")
		client := &http.Client{
			Transport: otelhttp.NewTransport(&logger.Transport{Transport: http.DefaultTransport}),
			Timeout:   time.Minute,
		}
		return notify.NewGotifyNotifier(client, config.Gotify.Endpoint, config.Gotify.Token), nil
	case len(config.URLs) > 0:
		log.Info().Msg("using shoutrrr")
		return notify.NewShoutrrrNotifier(config.URLs...)
	default:
		log.Warn().Msg("notifier enabled but neither gotify nor urls are set")
		return notify.NewDummyNotifier(), nil
	}
}

func handleConfig(ctx context.Context, config *watcher.Config) {
	base, err := newNotifier(config.Notifier)
	if err != nil {
		log.Err(err).Msg("failed to create notifier, notifications disabled")
		base = notify.NewDummyNotifier()
	}
	n, err := notify.NewFormatedNotifier(base, config.Notifier.NotificationFormats)
	if err != nil {
		log.Err(err).Msg("invalid notification formats, using defaults")
		n, _ = notify.NewFormatedNotifier(base, notify.DefaultNotificationFormats)
	}
	notifier.Set(n)

	if err := notifier.NotifyConfigReloaded(ctx); err != nil {
		log.Err(err).Msg("notify failed")
	}
	defer func() {
		if err := recover(); err != nil {
			fmt.Println(err)
			if err := notifier.NotifyPanicked(context.Background(), err); err != nil {
				log.Err(err).Msg("notify failed")
			}
			os.Exit(1)
		}
	}()

	w, err := watcher.New(config)
	if err != nil {
		log.Err(err).Msg("failed to create watcher")
		return
	}
	log.Info().Int("directories", len(config.Directories)).Msg("watching")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Err(err).Msg("watcher stopped")
		n := notify.Job{Error: err}
		if err := notifier.NotifyError(context.Background(), n); err != nil {
			log.Err(err).Msg("notify failed")
		}
	}
}
