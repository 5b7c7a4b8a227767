// Package container defines the boundary between the remux engine and the
// container libraries that read and write media formats.
package container

import (
	"errors"
	"io"

	"github.com/Darkness4/go-remux/video/sink"
	"github.com/Darkness4/go-remux/video/timebase"
)

// PosUnknown marks an unknown byte position.
const PosUnknown int64 = -1

var (
	// ErrUnknownFormat is returned when no demuxer or muxer matches.
	ErrUnknownFormat = errors.New("unknown container format")
	// ErrUnsupportedCodec is returned when a muxer cannot carry a codec.
	ErrUnsupportedCodec = errors.New("codec not supported by container")
	// ErrNoIO is returned when an output is used before SetIO.
	ErrNoIO = errors.New("output has no I/O context")
	// ErrClosed is returned when a handle is used after Close or Free.
	ErrClosed = errors.New("container handle is closed")
)

// MediaType is the kind of an elementary stream.
type MediaType int

const (
	// MediaTypeUnknown is a stream of unknown kind.
	MediaTypeUnknown MediaType = iota
	// MediaTypeVideo is a video stream.
	MediaTypeVideo
	// MediaTypeAudio is an audio stream.
	MediaTypeAudio
	// MediaTypeSubtitle is a subtitle stream.
	MediaTypeSubtitle
	// MediaTypeData is an opaque data stream (timed metadata, SCTE-35, ...).
	MediaTypeData
	// MediaTypeAttachment is an attachment (fonts, cover art files, ...).
	MediaTypeAttachment
)

// String returns a string representation of a MediaType.
func (m MediaType) String() string {
	switch m {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeSubtitle:
		return "subtitle"
	case MediaTypeData:
		return "data"
	case MediaTypeAttachment:
		return "attachment"
	}
	return "unknown"
}

// CodecParameters describes how a stream is encoded.
type CodecParameters struct {
	CodecName  string
	CodecTag   uint32
	Extradata  []byte
	Width      int
	Height     int
	SampleRate int
	Channels   int
	BitRate    int64

	// Private is owned by the container library that produced the
	// parameters (e.g. a joy4 av.CodecData).
	Private any
}

// Copy returns a deep copy of the parameters. Private is shared.
func (c *CodecParameters) Copy() *CodecParameters {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Extradata != nil {
		cp.Extradata = append([]byte(nil), c.Extradata...)
	}
	return &cp
}

// StreamDescriptor is one stream of a container.
type StreamDescriptor struct {
	Index     int
	MediaType MediaType
	TimeBase  timebase.Rational
	// FrameRate is the nominal frame rate, zero when unknown.
	FrameRate timebase.Rational
	Codec     *CodecParameters
}

// Packet is one encoded access unit.
type Packet struct {
	Data        []byte
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Pos         int64
	KeyFrame    bool
}

// Reset clears the packet and marks its timestamps unset.
func (p *Packet) Reset() {
	*p = Packet{PTS: timebase.NoPTS, DTS: timebase.NoPTS, Pos: PosUnknown}
}

// Unref releases the payload.
func (p *Packet) Unref() {
	p.Data = nil
}

// Input is an open source container.
type Input interface {
	// Probe reads enough of the source to describe its streams.
	Probe() error
	// Streams returns the streams found by Probe.
	Streams() []*StreamDescriptor
	// ReadPacket reads the next packet into pkt. It returns io.EOF at the end
	// of the input.
	ReadPacket(pkt *Packet) error
	// Close releases the input. Close is idempotent.
	Close() error
}

// Output is an open destination container.
type Output interface {
	// SetIO installs the sink as the only I/O path of the output.
	SetIO(s *sink.Sink) error
	// NewStream appends a stream to the output.
	NewStream() (*StreamDescriptor, error)
	// CopyCodecParameters copies the codec parameters of src into dst.
	CopyCodecParameters(dst, src *StreamDescriptor) error
	// Streams returns the output streams.
	Streams() []*StreamDescriptor
	// WriteHeader writes the container header. Stream time bases are final
	// once it returns.
	WriteHeader() error
	// WriteInterleaved writes a packet whose timestamps are in the output
	// stream's time base.
	WriteInterleaved(pkt *Packet) error
	// WriteTrailer finalizes the container.
	WriteTrailer() error
	// NoFile reports whether the format writes no bytes and needs no I/O context.
	NoFile() bool
	// CloseIO releases the I/O context installed by SetIO. The sink itself
	// stays open.
	CloseIO() error
	// Free releases the output. Free is idempotent.
	Free() error
}

// Opener opens a source container from a byte stream. The returned Input owns
// r and closes it when r is an io.Closer.
type Opener func(r io.ReadSeeker) (Input, error)

// Creator allocates an output for a format.
type Creator func() (Output, error)
