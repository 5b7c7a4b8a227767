package watch

import (
	"context"
	"os"
	"time"

	"github.com/Darkness4/go-remux/watcher"
	"github.com/rs/zerolog/log"
)

func loadConfig(filename string) (*watcher.Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return watcher.LoadConfig(file)
}

// WatchConfig polls filename and sends the config each time the file is
// modified.
func WatchConfig(
	ctx context.Context,
	filename string,
	configChan chan<- *watcher.Config,
	interval time.Duration,
) {
	var lastModTime time.Time
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fileinfo, err := os.Stat(filename)
			if err != nil {
				log.Err(err).Str("file", filename).Msg("failed to stat file")
				continue
			}

			modTime := fileinfo.ModTime()
			if !modTime.After(lastModTime) {
				continue
			}
			log.Info().Str("file", filename).Msg("new config detected")
			lastModTime = modTime

			config, err := loadConfig(filename)
			if err != nil {
				log.Err(err).Str("file", filename).Msg("failed to load config")
				continue
			}

			select {
			case configChan <- config:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ConfigReloader runs handleConfig with the latest config. A new config
// cancels the running handleConfig and waits for it before starting again.
func ConfigReloader(
	ctx context.Context,
	configChan <-chan *watcher.Config,
	handleConfig func(ctx context.Context, config *watcher.Config),
) error {
	var configCancel context.CancelFunc
	// Only one handleConfig runs at a time.
	doneChan := make(chan struct{})

	for {
		select {
		case newConfig := <-configChan:
			if configCancel != nil {
				configCancel()
				select {
				case <-doneChan:
					log.Info().Msg("loading new config")
				case <-time.After(30 * time.Second):
					log.Fatal().Msg("couldn't load a new config because of a deadlock")
				}
			}
			var configCtx context.Context
			configCtx, configCancel = context.WithCancel(ctx)
			go func() {
				log.Info().Msg("loaded new config")
				handleConfig(configCtx, newConfig)
				doneChan <- struct{}{}
			}()
		case <-ctx.Done():
			if configCancel != nil {
				configCancel()
				select {
				case <-doneChan:
					log.Info().Msg("config reloader graceful exit")
				case <-time.After(30 * time.Second):
					log.Fatal().Msg("config reloader force fatal exit")
				}
			}
			return ctx.Err()
		}
	}
}
