package remux

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/Darkness4/go-remux/video/format"
	"github.com/Darkness4/go-remux/video/sink"
)

// Do remuxes the file at input into the file at output.
//
// The output format is guessed from the output extension unless WithFormat is
// given.
func Do(ctx context.Context, input string, output string, opts ...Option) error {
	o := applyOptions(opts)
	registry := o.registry
	if registry == nil {
		registry = format.Default()
	}

	name := o.format
	if name == "" {
		var err error
		if name, err = registry.GuessFormat(output); err != nil {
			return setupError("guess format", err)
		}
	}

	r := New(registry, opts...)
	logger := r.logger()
	dst, err := sink.Create(output, sink.WithBufferSize(o.bufferSize), sink.WithLogger(logger))
	if err != nil {
		return setupError("create output", err)
	}
	logger.Info().Str("input", input).Str("output", output).Str("format", name).Msg("remuxing")
	_, err = r.Run(ctx, input, name, dst)
	// Nothing usable was written when the run failed before streaming.
	if phase, ok := PhaseOf(err); ok && phase == PhaseSetup {
		if rerr := os.Remove(output); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			logger.Warn().Err(rerr).Str("output", output).Msg("failed to remove output")
		}
	}
	return err
}

// DoWithWriter remuxes the file at input into w using the muxer named format.
//
// w is closed on return when it is an io.Closer. Formats that patch their
// header back (mp4) need w to be an io.Seeker.
func DoWithWriter(
	ctx context.Context,
	input string,
	w io.Writer,
	format string,
	opts ...Option,
) (Stats, error) {
	o := applyOptions(opts)
	if o.format != "" {
		format = o.format
	}
	r := New(nil, opts...)
	dst := sink.New(w, sink.WithBufferSize(o.bufferSize), sink.WithLogger(r.logger()))
	return r.Run(ctx, input, format, dst)
}
