package joy

import (
	"errors"
	"fmt"
	"io"

	"github.com/Darkness4/go-remux/video/annexb"
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/nareix/joy4/codec/h264parser"
)

// RawH264TimeBase is the time base of raw H.264 streams.
var RawH264TimeBase = timebase.New(1, 1200000)

const readChunkSize = 4096

// ErrNoParameterSets is returned when a raw H.264 stream has no SPS/PPS
// before its first picture.
var ErrNoParameterSets = errors.New("h264: no SPS/PPS before the first picture")

// H264Input reads an H.264 Annex-B elementary stream.
//
// Elementary streams carry no timestamps: packets are returned with
// timebase.NoPTS and the frame rate of the SPS, if any.
type H264Input struct {
	r        io.Reader
	splitter annexb.Splitter
	chunk    []byte
	queue    []annexb.AccessUnit
	eof      bool
	streams  []*container.StreamDescriptor
	closed   bool
}

// NewH264Input wraps r.
func NewH264Input(r io.Reader) *H264Input {
	return &H264Input{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// readChunk reads one chunk and queues the access units it completes.
func (in *H264Input) readChunk() error {
	if in.eof {
		return io.EOF
	}
	n, err := in.r.Read(in.chunk)
	if n > 0 {
		aus, perr := in.splitter.Push(in.chunk[:n])
		in.queue = append(in.queue, aus...)
		if perr != nil {
			return perr
		}
	}
	if errors.Is(err, io.EOF) {
		in.eof = true
		aus, perr := in.splitter.Flush()
		in.queue = append(in.queue, aus...)
		return perr
	}
	return err
}

// Probe reads access units until the parameter sets are known.
func (in *H264Input) Probe() error {
	if in.closed {
		return container.ErrClosed
	}
	var sps, pps []byte
	for i := 0; sps == nil || pps == nil; i++ {
		for i >= len(in.queue) {
			if in.eof {
				return ErrNoParameterSets
			}
			if err := in.readChunk(); err != nil {
				return err
			}
		}
		au := in.queue[i]
		if sps == nil {
			sps = au.Find(h264.NALUTypeSPS)
		}
		if pps == nil {
			pps = au.Find(h264.NALUTypePPS)
		}
	}

	codec, err := h264parser.NewCodecDataFromSPSAndPPS(sps, pps)
	if err != nil {
		return fmt.Errorf("h264: %w", err)
	}
	st := &container.StreamDescriptor{
		Index:     0,
		MediaType: container.MediaTypeVideo,
		TimeBase:  RawH264TimeBase,
		Codec:     codecParameters(codec),
	}
	if rate, ok := annexb.FrameRate(sps); ok {
		st.FrameRate = rate
	}
	if w, h, ok := annexb.Dimensions(sps); ok && st.Codec.Width == 0 {
		st.Codec.Width, st.Codec.Height = w, h
	}
	in.streams = []*container.StreamDescriptor{st}
	return nil
}

// Streams implements container.Input.
func (in *H264Input) Streams() []*container.StreamDescriptor {
	return in.streams
}

// ReadPacket implements container.Input.
func (in *H264Input) ReadPacket(pkt *container.Packet) error {
	if in.closed {
		return container.ErrClosed
	}
	if in.streams == nil {
		if err := in.Probe(); err != nil {
			return err
		}
	}
	for len(in.queue) == 0 {
		if in.eof {
			return io.EOF
		}
		if err := in.readChunk(); err != nil {
			return err
		}
	}
	au := in.queue[0]
	in.queue = in.queue[1:]

	data, err := au.Strip(h264.NALUTypeAccessUnitDelimiter).AVCC()
	if err != nil {
		return fmt.Errorf("h264: %w", err)
	}
	pkt.Reset()
	pkt.Data = data
	pkt.StreamIndex = 0
	pkt.KeyFrame = au.IsRandomAccess()
	return nil
}

// Close implements container.Input.
func (in *H264Input) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	in.queue = nil
	if c, ok := in.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ container.Input = (*H264Input)(nil)
