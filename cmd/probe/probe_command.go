// Package probe provides the command checking that files are readable.
package probe

import (
	"errors"

	"github.com/Darkness4/go-remux/video/probe"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var quiet bool

// Command is the command probing files.
var Command = &cli.Command{
	Name:      "probe",
	Usage:     "Probe files and print their streams.",
	ArgsUsage: "...files",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:        "quiet",
			Value:       false,
			Usage:       "Do not print the streams.",
			Aliases:     []string{"q"},
			Destination: &quiet,
		},
	},
	Action: func(cCtx *cli.Context) error {
		files := cCtx.Args().Slice()
		if len(files) == 0 {
			log.Error().Msg("arg[0] is empty")
			return errors.New("missing file path")
		}

		var opts []probe.Option
		if quiet {
			opts = append(opts, probe.WithQuiet())
		}
		for _, file := range files {
			name, err := probe.FormatName(file)
			if err != nil {
				log.Err(err).Str("input", file).Msg("unknown format")
				return err
			}
			log.Info().Str("input", file).Str("format", name).Msg("probing")
		}
		if err := probe.Do(files, opts...); err != nil {
			return err
		}
		log.Info().Strs("input", files).Msg("probe ok")
		return nil
	},
}
