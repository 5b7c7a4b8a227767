// Package clean provides the command deleting sources that were already
// remuxed.
package clean

import (
	"errors"
	"time"

	"github.com/Darkness4/go-remux/cleaner"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var (
	dryRun           bool
	noProbe          bool
	minAge           time.Duration
	sourceExtensions cli.StringSlice
	outputExtensions cli.StringSlice
)

// Command is the command cleaning a directory.
var Command = &cli.Command{
	Name:      "clean",
	Usage:     "Delete the sources that have a remuxed sibling.",
	ArgsUsage: "path",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Value:       false,
			Usage:       "Only log what would be deleted.",
			Destination: &dryRun,
		},
		&cli.BoolFlag{
			Name:        "no-probe",
			Value:       false,
			Usage:       "Do not check that the remuxed sibling is readable.",
			Destination: &noProbe,
		},
		&cli.DurationFlag{
			Name:        "min-age",
			Value:       48 * time.Hour,
			Usage:       "Minimum age of a source before deletion.",
			Destination: &minAge,
		},
		&cli.StringSliceFlag{
			Name:        "source-ext",
			Value:       cli.NewStringSlice(".ts"),
			Usage:       "Extensions of the sources.",
			Destination: &sourceExtensions,
		},
		&cli.StringSliceFlag{
			Name:        "output-ext",
			Value:       cli.NewStringSlice(".mp4", ".mkv", ".webm"),
			Usage:       "Extensions of the remuxed files.",
			Destination: &outputExtensions,
		},
	},
	Action: func(cCtx *cli.Context) error {
		path := cCtx.Args().First()
		if path == "" {
			log.Error().Msg("arg[0] is empty")
			return errors.New("missing file path")
		}

		opts := []cleaner.Option{
			cleaner.WithMinAge(minAge),
			cleaner.WithSourceExtensions(sourceExtensions.Value()...),
			cleaner.WithOutputExtensions(outputExtensions.Value()...),
		}
		if dryRun {
			opts = append(opts, cleaner.WithDryRun())
		}
		if noProbe {
			opts = append(opts, cleaner.WithoutProbe())
		}

		n, err := cleaner.Clean(cCtx.Context, path, opts...)
		log.Info().Int("deleted", n).Bool("dryRun", dryRun).Msg("cleaned")
		return err
	},
}
