package remux

import (
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/rs/zerolog"
)

// Option configures a remux.
type Option func(*Options)

// Options of a remux.
type Options struct {
	filter     Filter
	format     string
	registry   *container.Registry
	bufferSize int
	frameRate  timebase.Rational
	log        *zerolog.Logger
}

// WithAudioOnly only keeps the audio streams.
func WithAudioOnly() Option {
	return func(o *Options) {
		o.filter = MediaTypeFilter(container.MediaTypeAudio)
	}
}

// WithVideoOnly only keeps the video streams.
func WithVideoOnly() Option {
	return func(o *Options) {
		o.filter = MediaTypeFilter(container.MediaTypeVideo)
	}
}

// WithFilter selects the propagated streams.
func WithFilter(filter Filter) Option {
	return func(o *Options) {
		o.filter = filter
	}
}

// WithFormat forces the output format instead of guessing it from the output
// extension.
func WithFormat(format string) Option {
	return func(o *Options) {
		o.format = format
	}
}

// WithRegistry sets the container libraries used to open and create files.
func WithRegistry(registry *container.Registry) Option {
	return func(o *Options) {
		o.registry = registry
	}
}

// WithBufferSize sets the staging buffer size of the sinks created by Do and
// DoWithWriter.
func WithBufferSize(n int) Option {
	return func(o *Options) {
		o.bufferSize = n
	}
}

// WithFrameRate sets the frame rate used to timestamp untimed packets.
func WithFrameRate(rate timebase.Rational) Option {
	return func(o *Options) {
		o.frameRate = rate
	}
}

// WithLogger sets the logger of the run.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Options) {
		o.log = &log
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{
		filter:     DefaultFilter,
		bufferSize: sink.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
