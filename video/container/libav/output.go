//go:build libav

package libav

/*
#include <libavformat/avformat.h>
#include <stdlib.h>
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/sink"
)

// Output is a libavformat muxer.
type Output struct {
	ctx     *C.AVFormatContext
	pkt     *C.AVPacket
	io      *sinkIO
	streams []*container.StreamDescriptor
	avs     []*C.AVStream
}

// NewOutput allocates a muxer for the format name.
func NewOutput(format string) (*Output, error) {
	name := C.CString(format)
	defer C.free(unsafe.Pointer(name))

	var ctx *C.AVFormatContext
	if err := avError(C.avformat_alloc_output_context2(&ctx, nil, name, nil)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", container.ErrUnknownFormat, format, err)
	}
	pkt := C.av_packet_alloc()
	if pkt == nil {
		C.avformat_free_context(ctx)
		return nil, Error(-C.ENOMEM)
	}
	return &Output{ctx: ctx, pkt: pkt}, nil
}

// SetIO binds s as the I/O context of the muxer.
func (o *Output) SetIO(s *sink.Sink) error {
	if o.ctx == nil {
		return container.ErrClosed
	}
	if o.io != nil {
		return errors.New("libav: I/O context already set")
	}
	sio, err := newSinkIO(s)
	if err != nil {
		return err
	}
	o.io = sio
	o.ctx.pb = sio.pb
	o.ctx.flags |= C.AVFMT_FLAG_CUSTOM_IO
	return nil
}

// NewStream appends a stream.
func (o *Output) NewStream() (*container.StreamDescriptor, error) {
	if o.ctx == nil {
		return nil, container.ErrClosed
	}
	st := C.avformat_new_stream(o.ctx, nil)
	if st == nil {
		return nil, Error(-C.ENOMEM)
	}
	desc := &container.StreamDescriptor{Index: int(st.index)}
	o.streams = append(o.streams, desc)
	o.avs = append(o.avs, st)
	return desc, nil
}

// CopyCodecParameters copies the codec parameters of src into dst.
func (o *Output) CopyCodecParameters(dst, src *container.StreamDescriptor) error {
	if dst.Index < 0 || dst.Index >= len(o.avs) || src.Codec == nil {
		return container.ErrUnsupportedCodec
	}
	st := o.avs[dst.Index]
	if err := fillParameters(st.codecpar, src.Codec); err != nil {
		return err
	}
	if src.TimeBase.IsValid() {
		st.time_base = avRational(src.TimeBase)
	}
	dst.MediaType = src.MediaType
	dst.TimeBase = src.TimeBase
	dst.FrameRate = src.FrameRate
	dst.Codec = src.Codec.Copy()
	dst.Codec.CodecTag = 0
	dst.Codec.Private = nil
	return nil
}

// Streams returns the streams.
func (o *Output) Streams() []*container.StreamDescriptor {
	return o.streams
}

// WriteHeader writes the header. libavformat may change the stream time bases.
func (o *Output) WriteHeader() error {
	if o.ctx == nil {
		return container.ErrClosed
	}
	if o.io == nil && !o.NoFile() {
		return container.ErrNoIO
	}
	if err := avError(C.avformat_write_header(o.ctx, nil)); err != nil {
		return err
	}
	for i, st := range o.avs {
		o.streams[i].TimeBase = rational(st.time_base)
	}
	return nil
}

// WriteInterleaved writes pkt.
func (o *Output) WriteInterleaved(pkt *container.Packet) error {
	if o.ctx == nil {
		return container.ErrClosed
	}
	if err := avError(C.av_new_packet(o.pkt, C.int(len(pkt.Data)))); err != nil {
		return err
	}
	if len(pkt.Data) > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(o.pkt.data)), len(pkt.Data)), pkt.Data)
	}
	o.pkt.stream_index = C.int(pkt.StreamIndex)
	o.pkt.pts = C.int64_t(pkt.PTS)
	o.pkt.dts = C.int64_t(pkt.DTS)
	o.pkt.duration = C.int64_t(pkt.Duration)
	o.pkt.pos = C.int64_t(pkt.Pos)
	if pkt.KeyFrame {
		o.pkt.flags |= C.AV_PKT_FLAG_KEY
	}
	// The packet is unreferenced by the muxer.
	return avError(C.av_interleaved_write_frame(o.ctx, o.pkt))
}

// WriteTrailer finalizes the file.
func (o *Output) WriteTrailer() error {
	if o.ctx == nil {
		return container.ErrClosed
	}
	return avError(C.av_write_trailer(o.ctx))
}

// NoFile reports whether the format writes no bytes.
func (o *Output) NoFile() bool {
	return o.ctx != nil && o.ctx.oformat.flags&C.AVFMT_NOFILE != 0
}

// CloseIO releases the I/O context. The sink stays open.
func (o *Output) CloseIO() error {
	if o.io == nil {
		return nil
	}
	err := o.io.Close()
	o.io = nil
	if o.ctx != nil {
		o.ctx.pb = nil
	}
	return err
}

// Free releases the muxer. Free is idempotent.
func (o *Output) Free() error {
	if o.ctx == nil {
		return nil
	}
	err := o.CloseIO()
	C.av_packet_free(&o.pkt)
	C.avformat_free_context(o.ctx)
	o.ctx = nil
	o.avs = nil
	return err
}
