// Package decode provides the command dumping the pictures of an elementary
// stream.
package decode

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Darkness4/go-remux/video/decode"
	"github.com/Darkness4/go-remux/video/format"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var (
	codec  string
	prefix string
)

// Command is the command decoding an elementary stream into PGM pictures.
var Command = &cli.Command{
	Name:      "decode",
	Usage:     "Decode an elementary video stream and save the luma of every frame as PGM.",
	ArgsUsage: "file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "codec",
			Value:       "h264",
			Usage:       "Codec of the elementary stream.",
			Aliases:     []string{"c"},
			Destination: &codec,
		},
		&cli.StringFlag{
			Name:        "output-prefix",
			Usage:       "Prefix of the pictures. Defaults to the input path without extension.",
			Aliases:     []string{"o"},
			Destination: &prefix,
		},
	},
	Action: func(cCtx *cli.Context) error {
		file := cCtx.Args().First()
		if file == "" {
			log.Error().Msg("arg[0] is empty")
			return errors.New("missing file path")
		}
		if prefix == "" {
			prefix = strings.TrimSuffix(file, filepath.Ext(file))
		}

		// Decoders are registered with the container libraries.
		_ = format.Default()

		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		p, err := decode.NewParser(codec)
		if err != nil {
			log.Err(err).Strs("available", decode.Codecs()).Msg("no parser")
			return err
		}
		if c, ok := p.(io.Closer); ok {
			defer c.Close()
		}
		d, err := decode.NewDecoder(codec)
		if err != nil {
			log.Err(err).Strs("available", decode.Codecs()).Msg("no decoder")
			return err
		}
		defer d.Close()

		n, err := decode.Loop(cCtx.Context, f, p, d, decode.PGMSaver(prefix))
		log.Info().Str("input", file).Int("frames", n).Msg("decoded")
		return err
	},
}
