package joy

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/nareix/joy4/av"
)

// ErrMissingTimestamp is returned when a packet reaches a muxer without pts
// nor dts.
var ErrMissingTimestamp = errors.New("packet has no timestamp")

type muxerFunc func(w io.WriteSeeker) av.Muxer

// Output adapts a joy4 muxer.
//
// joy4 muxers write packets in call order. The sources read by this package
// are already interleaved, so packets are forwarded as they come.
type Output struct {
	format     string
	newMuxer   muxerFunc
	timeBase   timeBaseFunc
	seekable   bool
	maxStreams int

	sink    *sink.Sink
	muxer   av.Muxer
	streams []*container.StreamDescriptor
	header  bool
	freed   bool
}

// SetIO implements container.Output.
func (o *Output) SetIO(s *sink.Sink) error {
	if o.freed {
		return container.ErrClosed
	}
	if o.seekable && !s.Seekable() {
		return fmt.Errorf("%s: %w", o.format, sink.ErrNotSeekable)
	}
	o.sink = s
	o.muxer = o.newMuxer(s)
	return nil
}

// NewStream implements container.Output.
func (o *Output) NewStream() (*container.StreamDescriptor, error) {
	if o.freed {
		return nil, container.ErrClosed
	}
	if o.header {
		return nil, fmt.Errorf("%s: header already written", o.format)
	}
	if o.maxStreams > 0 && len(o.streams) >= o.maxStreams {
		return nil, fmt.Errorf("%s: at most %d stream(s)", o.format, o.maxStreams)
	}
	if len(o.streams) > math.MaxInt8 {
		return nil, fmt.Errorf("%s: too many streams", o.format)
	}
	st := &container.StreamDescriptor{Index: len(o.streams)}
	o.streams = append(o.streams, st)
	return st, nil
}

// CopyCodecParameters implements container.Output.
func (o *Output) CopyCodecParameters(dst, src *container.StreamDescriptor) error {
	if _, err := codecData(src.Codec); err != nil {
		return fmt.Errorf("%s: stream %d: %w", o.format, src.Index, err)
	}
	dst.MediaType = src.MediaType
	dst.FrameRate = src.FrameRate
	dst.Codec = src.Codec.Copy()
	return nil
}

// Streams implements container.Output.
func (o *Output) Streams() []*container.StreamDescriptor {
	return o.streams
}

// WriteHeader implements container.Output.
func (o *Output) WriteHeader() error {
	if o.muxer == nil {
		return container.ErrNoIO
	}
	codecs := make([]av.CodecData, 0, len(o.streams))
	for _, st := range o.streams {
		codec, err := codecData(st.Codec)
		if err != nil {
			return fmt.Errorf("%s: stream %d: %w", o.format, st.Index, err)
		}
		codecs = append(codecs, codec)
		st.TimeBase = o.timeBase(codec)
	}
	if err := o.muxer.WriteHeader(codecs); err != nil {
		return fmt.Errorf("%s: write header: %w", o.format, err)
	}
	o.header = true
	return nil
}

// WriteInterleaved implements container.Output.
func (o *Output) WriteInterleaved(pkt *container.Packet) error {
	if o.muxer == nil {
		return container.ErrNoIO
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(o.streams) {
		return fmt.Errorf("%s: packet for unknown stream %d", o.format, pkt.StreamIndex)
	}
	tb := o.streams[pkt.StreamIndex].TimeBase

	dts, pts := pkt.DTS, pkt.PTS
	switch {
	case dts == timebase.NoPTS && pts == timebase.NoPTS:
		return fmt.Errorf("%s: stream %d: %w", o.format, pkt.StreamIndex, ErrMissingTimestamp)
	case dts == timebase.NoPTS:
		dts = pts
	case pts == timebase.NoPTS:
		pts = dts
	}

	p := av.Packet{
		IsKeyFrame:      pkt.KeyFrame,
		Idx:             int8(pkt.StreamIndex),
		Time:            ticksToDuration(dts, tb),
		CompositionTime: ticksToDuration(pts-dts, tb),
		Data:            pkt.Data,
	}
	if err := o.muxer.WritePacket(p); err != nil {
		return fmt.Errorf("%s: write packet: %w", o.format, err)
	}
	return nil
}

// WriteTrailer implements container.Output.
func (o *Output) WriteTrailer() error {
	if o.muxer == nil {
		return container.ErrNoIO
	}
	if err := o.muxer.WriteTrailer(); err != nil {
		return fmt.Errorf("%s: write trailer: %w", o.format, err)
	}
	return nil
}

// NoFile implements container.Output.
func (o *Output) NoFile() bool {
	return false
}

// CloseIO drains the sink and detaches it from the muxer.
func (o *Output) CloseIO() error {
	if o.sink == nil {
		return nil
	}
	err := o.sink.Flush()
	o.sink = nil
	o.muxer = nil
	return err
}

// Free implements container.Output.
func (o *Output) Free() error {
	o.freed = true
	o.sink = nil
	o.muxer = nil
	o.streams = nil
	return nil
}

var _ container.Output = (*Output)(nil)
