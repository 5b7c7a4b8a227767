// Package concat provides the command concatenating files into one container.
package concat

import (
	"errors"
	"os"
	"strings"

	"github.com/Darkness4/go-remux/utils"
	"github.com/Darkness4/go-remux/video/concat"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var (
	extractAudio bool
	outputFormat string
	prefix       bool
)

// Command is the command for concatenating multiple files to another container.
var Command = &cli.Command{
	Name:      "concat",
	Usage:     "Concat multiple files to another container. Order is important.",
	ArgsUsage: "...files",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "output-format",
			Value:       "mp4",
			Usage:       "Output format of the container.",
			Aliases:     []string{"format", "f"},
			Destination: &outputFormat,
		},
		&cli.BoolFlag{
			Name:        "extract-audio",
			Value:       false,
			Usage:       "Generate an audio-only copy of the stream.",
			Aliases:     []string{"x"},
			Destination: &extractAudio,
		},
		&cli.BoolFlag{
			Name:        "prefix",
			Value:       false,
			Usage:       "Treat the argument as a path prefix and concat every part starting with it.",
			Destination: &prefix,
		},
	},
	Action: func(cCtx *cli.Context) error {
		ctx := cCtx.Context
		files := cCtx.Args().Slice()
		if len(files) == 0 {
			log.Error().Msg("arg[0] is empty")
			return errors.New("missing file path")
		}
		format := strings.ToLower(outputFormat)

		if prefix {
			log.Info().Str("prefix", files[0]).Msg("concat by prefix...")
			if err := concat.WithPrefix(ctx, format, files[0]); err != nil {
				return err
			}
			if extractAudio {
				return concat.WithPrefix(ctx, "m4a", files[0], concat.WithAudioOnly())
			}
			return nil
		}

		for _, file := range files {
			if _, err := os.Stat(file); err != nil {
				return err
			}
		}

		fnameMuxed, err := utils.UniqueFilename(files[0], format)
		if err != nil {
			return err
		}
		log.Info().
			Str("output", fnameMuxed).
			Strs("input", files).
			Msg("concat and remuxing streams...")
		if err := concat.Do(ctx, fnameMuxed, files); err != nil {
			log.Error().
				Str("output", fnameMuxed).
				Strs("input", files).
				Err(err).
				Msg("concat finished with error")
			return err
		}

		if extractAudio {
			fnameAudio, err := utils.UniqueFilename(files[0], "m4a")
			if err != nil {
				return err
			}
			log.Info().Str("output", fnameAudio).Strs("input", files).Msg("extracting audio...")
			if err := concat.Do(ctx, fnameAudio, files, concat.WithAudioOnly()); err != nil {
				log.Error().
					Str("output", fnameAudio).
					Strs("input", files).
					Err(err).
					Msg("audio extract finished with error")
				return err
			}
		}
		return nil
	},
}
