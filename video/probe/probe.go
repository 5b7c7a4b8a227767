// Package probe inspects media files.
package probe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/format"
	"github.com/rs/zerolog/log"
)

// ErrNoPacket is returned when an input has streams but no packet.
var ErrNoPacket = errors.New("input has no packet")

// Option configures a probe.
type Option func(*Options)

// Options of a probe.
type Options struct {
	quiet    bool
	registry *container.Registry
}

// WithQuiet disables the logging of the streams.
func WithQuiet() Option {
	return func(o *Options) {
		o.quiet = true
	}
}

// WithRegistry sets the container libraries used to open files.
func WithRegistry(registry *container.Registry) Option {
	return func(o *Options) {
		o.registry = registry
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = format.Default()
	}
	return o
}

// Do probe multiple video streams.
//
// Every input must open, describe its streams and yield a first packet.
func Do(inputs []string, opts ...Option) error {
	o := applyOptions(opts)
	for _, input := range inputs {
		if err := probe(o, input); err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
	}
	return nil
}

func probe(o *Options, input string) error {
	in, err := o.registry.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := in.Probe(); err != nil {
		return err
	}
	if !o.quiet {
		for _, st := range in.Streams() {
			ev := log.Info().
				Str("input", input).
				Int("index", st.Index).
				Stringer("type", st.MediaType).
				Stringer("time_base", st.TimeBase)
			if st.Codec != nil {
				ev = ev.Str("codec", st.Codec.CodecName)
				if st.Codec.Width > 0 {
					ev = ev.Int("width", st.Codec.Width).Int("height", st.Codec.Height)
				}
				if st.Codec.SampleRate > 0 {
					ev = ev.Int("sample_rate", st.Codec.SampleRate).Int("channels", st.Codec.Channels)
				}
			}
			if st.FrameRate.IsValid() {
				ev = ev.Stringer("frame_rate", st.FrameRate)
			}
			ev.Msg("stream")
		}
	}

	var pkt container.Packet
	pkt.Reset()
	if err := in.ReadPacket(&pkt); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrNoPacket
		}
		return err
	}
	return nil
}

// Streams returns the streams of input.
func Streams(input string, opts ...Option) ([]*container.StreamDescriptor, error) {
	o := applyOptions(opts)
	in, err := o.registry.Open(input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	if err := in.Probe(); err != nil {
		return nil, err
	}
	return in.Streams(), nil
}

func containsType(input string, opts []Option, types ...container.MediaType) (bool, error) {
	streams, err := Streams(input, opts...)
	if err != nil {
		return false, err
	}
	for _, st := range streams {
		for _, typ := range types {
			if st.MediaType == typ {
				return true, nil
			}
		}
	}
	return false, nil
}

// ContainsVideoOrAudio reports whether input has a video or an audio stream.
func ContainsVideoOrAudio(input string, opts ...Option) (bool, error) {
	return containsType(input, opts, container.MediaTypeVideo, container.MediaTypeAudio)
}

// IsVideo reports whether input has a video stream.
func IsVideo(input string, opts ...Option) (bool, error) {
	return containsType(input, opts, container.MediaTypeVideo)
}

// FormatName returns the name of the demuxer that reads input.
func FormatName(input string, opts ...Option) (string, error) {
	o := applyOptions(opts)
	f, err := os.Open(input)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d, err := o.registry.Detect(f, filepath.Ext(input))
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

// IsMPEGTSOrAAC reports whether input is a MPEG-TS or an ADTS file.
func IsMPEGTSOrAAC(input string, opts ...Option) (bool, error) {
	name, err := FormatName(input, opts...)
	if err != nil {
		return false, err
	}
	return name == "mpegts" || name == "adts", nil
}
