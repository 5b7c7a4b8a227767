//go:build libav

package libav

/*
#include <libavcodec/avcodec.h>
#include <libavutil/frame.h>
#include <libavutil/mem.h>
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"io"
	"math"
	"unsafe"

	"github.com/Darkness4/go-remux/video/decode"
)

func findDecoder(codec string) (*C.AVCodec, error) {
	name := C.CString(codec)
	defer C.free(unsafe.Pointer(name))
	c := C.avcodec_find_decoder_by_name(name)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", decode.ErrNoDecoder, codec)
	}
	return c, nil
}

// Decoder is a libavcodec video decoder.
type Decoder struct {
	ctx    *C.AVCodecContext
	frame  *C.AVFrame
	pkt    *C.AVPacket
	frames int
}

// NewDecoder opens a decoder for the codec name.
func NewDecoder(codec string) (*Decoder, error) {
	c, err := findDecoder(codec)
	if err != nil {
		return nil, err
	}
	d := &Decoder{
		ctx:   C.avcodec_alloc_context3(c),
		frame: C.av_frame_alloc(),
		pkt:   C.av_packet_alloc(),
	}
	if d.ctx == nil || d.frame == nil || d.pkt == nil {
		_ = d.Close()
		return nil, Error(-C.ENOMEM)
	}
	if err := avError(C.avcodec_open2(d.ctx, c, nil)); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// SendUnit feeds an access unit.
func (d *Decoder) SendUnit(unit []byte) error {
	if err := avError(C.av_new_packet(d.pkt, C.int(len(unit)))); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(d.pkt.data)), len(unit)), unit)
	ret := C.avcodec_send_packet(d.ctx, d.pkt)
	C.av_packet_unref(d.pkt)
	if Error(ret) == errAgain {
		return decode.ErrAgain
	}
	return avError(ret)
}

// ReceiveFrame returns the next decoded frame.
func (d *Decoder) ReceiveFrame() (*decode.Frame, error) {
	ret := C.avcodec_receive_frame(d.ctx, d.frame)
	switch Error(ret) {
	case errAgain:
		return nil, decode.ErrAgain
	case errEOF:
		return nil, io.EOF
	}
	if err := avError(ret); err != nil {
		return nil, err
	}
	defer C.av_frame_unref(d.frame)

	d.frames++
	stride := int(d.frame.linesize[0])
	height := int(d.frame.height)
	if stride <= 0 || stride > math.MaxInt32/max(height, 1) {
		return nil, fmt.Errorf("%w: stride %d", decode.ErrInvalidFrame, stride)
	}
	return &decode.Frame{
		Number: d.frames,
		Width:  int(d.frame.width),
		Height: height,
		Stride: stride,
		Luma:   C.GoBytes(unsafe.Pointer(d.frame.data[0]), C.int(stride*height)),
	}, nil
}

// Flush enters draining mode.
func (d *Decoder) Flush() error {
	return avError(C.avcodec_send_packet(d.ctx, nil))
}

// Close releases the decoder.
func (d *Decoder) Close() error {
	if d.ctx != nil {
		C.avcodec_free_context(&d.ctx)
	}
	if d.frame != nil {
		C.av_frame_free(&d.frame)
	}
	if d.pkt != nil {
		C.av_packet_free(&d.pkt)
	}
	return nil
}
