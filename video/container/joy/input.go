package joy

import (
	"errors"
	"fmt"
	"io"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/nareix/joy4/av"
)

// Input adapts a joy4 demuxer.
type Input struct {
	format   string
	demuxer  av.Demuxer
	r        io.Reader
	timeBase timeBaseFunc
	streams  []*container.StreamDescriptor
	codecs   []av.CodecData
	closed   bool
}

func newInput(
	format string,
	r io.Reader,
	demuxer av.Demuxer,
	tb timeBaseFunc,
) *Input {
	return &Input{
		format:   format,
		demuxer:  demuxer,
		r:        r,
		timeBase: tb,
	}
}

// Format returns the name of the source format.
func (in *Input) Format() string {
	return in.format
}

// Probe implements container.Input.
func (in *Input) Probe() error {
	if in.closed {
		return container.ErrClosed
	}
	codecs, err := in.demuxer.Streams()
	if err != nil {
		return fmt.Errorf("%s: read streams: %w", in.format, err)
	}
	in.codecs = codecs
	in.streams = make([]*container.StreamDescriptor, 0, len(codecs))
	for i, codec := range codecs {
		in.streams = append(in.streams, &container.StreamDescriptor{
			Index:     i,
			MediaType: mediaTypeOf(codec),
			TimeBase:  in.timeBase(codec),
			Codec:     codecParameters(codec),
		})
	}
	return nil
}

// Streams implements container.Input.
func (in *Input) Streams() []*container.StreamDescriptor {
	return in.streams
}

// ReadPacket implements container.Input.
func (in *Input) ReadPacket(pkt *container.Packet) error {
	if in.closed {
		return container.ErrClosed
	}
	if in.streams == nil {
		if err := in.Probe(); err != nil {
			return err
		}
	}

	p, err := in.demuxer.ReadPacket()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return fmt.Errorf("%s: read packet: %w", in.format, err)
	}
	idx := int(p.Idx)
	if idx < 0 || idx >= len(in.streams) {
		return fmt.Errorf("%s: packet for unknown stream %d", in.format, idx)
	}
	tb := in.streams[idx].TimeBase

	pkt.Reset()
	pkt.Data = p.Data
	pkt.StreamIndex = idx
	pkt.KeyFrame = p.IsKeyFrame
	pkt.DTS = durationToTicks(p.Time, tb)
	pkt.PTS = durationToTicks(p.Time+p.CompositionTime, tb)
	if d, ok := in.codecs[idx].(packetDurationer); ok {
		if dur, err := d.PacketDuration(p.Data); err == nil {
			pkt.Duration = durationToTicks(dur, tb)
		}
	}
	return nil
}

// Close implements container.Input.
func (in *Input) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	in.demuxer = nil
	if c, ok := in.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ container.Input = (*Input)(nil)
