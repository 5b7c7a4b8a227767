// Package remux provides the command remuxing a file into another container.
package remux

import (
	"errors"
	"os"

	"github.com/Darkness4/go-remux/utils"
	"github.com/Darkness4/go-remux/video/remux"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var (
	extractAudio bool
	outputFormat string
	output       string
)

// Command is the command for remuxing a file to another container.
var Command = &cli.Command{
	Name:      "remux",
	Usage:     "Remux a file to another container without transcoding.",
	ArgsUsage: "file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "output-format",
			Value:       "mp4",
			Usage:       "Output format of the container.",
			Aliases:     []string{"format", "f"},
			Destination: &outputFormat,
		},
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Output path. Defaults to the input path with the extension of the format.",
			Aliases:     []string{"o"},
			Destination: &output,
		},
		&cli.BoolFlag{
			Name:        "extract-audio",
			Value:       false,
			Usage:       "Generate an audio-only copy of the stream.",
			Aliases:     []string{"x"},
			Destination: &extractAudio,
		},
	},
	Action: func(cCtx *cli.Context) error {
		ctx := cCtx.Context
		file := cCtx.Args().First()
		if file == "" {
			log.Error().Msg("arg[0] is empty")
			return errors.New("missing file path")
		}

		if _, err := os.Stat(file); err != nil {
			return err
		}

		fnameMuxed := output
		if fnameMuxed == "" {
			var err error
			if fnameMuxed, err = utils.UniqueFilename(file, outputFormat); err != nil {
				return err
			}
		}

		log.Info().Str("output", fnameMuxed).Str("input", file).Msg("remuxing stream...")
		if err := remux.Do(ctx, file, fnameMuxed, remux.WithFormat(outputFormat)); err != nil {
			log.Error().Str("output", fnameMuxed).Str("input", file).Err(err).Msg("remux finished with error")
			return err
		}

		if extractAudio {
			fnameAudio, err := utils.UniqueFilename(file, "m4a")
			if err != nil {
				return err
			}
			log.Info().Str("output", fnameAudio).Str("input", file).Msg("extracting audio...")
			if err := remux.Do(ctx, file, fnameAudio, remux.WithAudioOnly()); err != nil {
				log.Error().Str("output", fnameAudio).Str("input", file).Err(err).Msg("audio extract finished with error")
				return err
			}
		}
		return nil
	},
}
