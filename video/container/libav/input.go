//go:build libav

package libav

/*
#include <libavformat/avformat.h>
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"io"
	"unsafe"

	"github.com/Darkness4/go-remux/video/container"
)

// Input is a libavformat demuxer.
type Input struct {
	url     string
	ctx     *C.AVFormatContext
	pkt     *C.AVPacket
	streams []*container.StreamDescriptor
}

// NewInput opens the source at url.
func NewInput(url string) (*Input, error) {
	curl := C.CString(url)
	defer C.free(unsafe.Pointer(curl))

	var ctx *C.AVFormatContext
	if err := avError(C.avformat_open_input(&ctx, curl, nil, nil)); err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	pkt := C.av_packet_alloc()
	if pkt == nil {
		C.avformat_close_input(&ctx)
		return nil, Error(-C.ENOMEM)
	}
	return &Input{url: url, ctx: ctx, pkt: pkt}, nil
}

// Probe reads the stream information.
func (in *Input) Probe() error {
	if in.ctx == nil {
		return container.ErrClosed
	}
	if in.streams != nil {
		return nil
	}
	if err := avError(C.avformat_find_stream_info(in.ctx, nil)); err != nil {
		return fmt.Errorf("%s: %w", in.url, err)
	}
	avs := unsafe.Slice(in.ctx.streams, int(in.ctx.nb_streams))
	in.streams = make([]*container.StreamDescriptor, 0, len(avs))
	for i, st := range avs {
		desc := &container.StreamDescriptor{
			Index:     i,
			MediaType: mediaType(st.codecpar.codec_type),
			TimeBase:  rational(st.time_base),
			Codec:     codecParameters(st.codecpar),
		}
		if st.r_frame_rate.num > 0 && st.r_frame_rate.den > 0 {
			desc.FrameRate = rational(st.r_frame_rate)
		}
		in.streams = append(in.streams, desc)
	}
	return nil
}

// Streams returns the streams found by Probe.
func (in *Input) Streams() []*container.StreamDescriptor {
	return in.streams
}

// ReadPacket reads the next packet.
func (in *Input) ReadPacket(pkt *container.Packet) error {
	if in.ctx == nil {
		return container.ErrClosed
	}
	ret := C.av_read_frame(in.ctx, in.pkt)
	if Error(ret) == errEOF {
		return io.EOF
	}
	if err := avError(ret); err != nil {
		return err
	}
	defer C.av_packet_unref(in.pkt)

	pkt.Data = C.GoBytes(unsafe.Pointer(in.pkt.data), in.pkt.size)
	pkt.StreamIndex = int(in.pkt.stream_index)
	pkt.PTS = int64(in.pkt.pts)
	pkt.DTS = int64(in.pkt.dts)
	pkt.Duration = int64(in.pkt.duration)
	pkt.Pos = int64(in.pkt.pos)
	pkt.KeyFrame = in.pkt.flags&C.AV_PKT_FLAG_KEY != 0
	return nil
}

// Close closes the source. Close is idempotent.
func (in *Input) Close() error {
	if in.ctx == nil {
		return nil
	}
	C.av_packet_free(&in.pkt)
	C.avformat_close_input(&in.ctx)
	in.ctx = nil
	return nil
}
