//go:build libav

package libav

/*
#include <libavcodec/avcodec.h>
#include <libavutil/channel_layout.h>
#include <libavutil/mem.h>
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/timebase"
)

func rational(r C.AVRational) timebase.Rational {
	return timebase.New(int64(r.num), int64(r.den))
}

func avRational(r timebase.Rational) C.AVRational {
	return C.AVRational{num: C.int(r.Num), den: C.int(r.Den)}
}

func mediaType(t C.enum_AVMediaType) container.MediaType {
	switch t {
	case C.AVMEDIA_TYPE_VIDEO:
		return container.MediaTypeVideo
	case C.AVMEDIA_TYPE_AUDIO:
		return container.MediaTypeAudio
	case C.AVMEDIA_TYPE_SUBTITLE:
		return container.MediaTypeSubtitle
	case C.AVMEDIA_TYPE_DATA:
		return container.MediaTypeData
	case C.AVMEDIA_TYPE_ATTACHMENT:
		return container.MediaTypeAttachment
	}
	return container.MediaTypeUnknown
}

// codecParameters describes par. par stays owned by libav.
func codecParameters(par *C.AVCodecParameters) *container.CodecParameters {
	p := &container.CodecParameters{
		CodecName:  C.GoString(C.avcodec_get_name(par.codec_id)),
		CodecTag:   uint32(par.codec_tag),
		Width:      int(par.width),
		Height:     int(par.height),
		SampleRate: int(par.sample_rate),
		Channels:   int(par.ch_layout.nb_channels),
		BitRate:    int64(par.bit_rate),
		Private:    par,
	}
	if par.extradata_size > 0 {
		p.Extradata = C.GoBytes(unsafe.Pointer(par.extradata), par.extradata_size)
	}
	return p
}

// fillParameters writes the parameters of src into par.
func fillParameters(par *C.AVCodecParameters, src *container.CodecParameters) error {
	if p, ok := src.Private.(*C.AVCodecParameters); ok {
		if err := avError(C.avcodec_parameters_copy(par, p)); err != nil {
			return err
		}
		par.codec_tag = 0
		return nil
	}

	name := C.CString(src.CodecName)
	defer C.free(unsafe.Pointer(name))
	desc := C.avcodec_descriptor_get_by_name(name)
	if desc == nil {
		return fmt.Errorf("%w: %s", container.ErrUnsupportedCodec, src.CodecName)
	}
	par.codec_id = desc.id
	par.codec_type = desc._type
	par.codec_tag = 0
	par.width = C.int(src.Width)
	par.height = C.int(src.Height)
	par.sample_rate = C.int(src.SampleRate)
	par.bit_rate = C.int64_t(src.BitRate)
	if src.Channels > 0 {
		C.av_channel_layout_default(&par.ch_layout, C.int(src.Channels))
	}
	if len(src.Extradata) > 0 {
		size := len(src.Extradata)
		par.extradata = (*C.uint8_t)(C.av_mallocz(C.size_t(size + C.AV_INPUT_BUFFER_PADDING_SIZE)))
		if par.extradata == nil {
			return Error(-C.ENOMEM)
		}
		copy(unsafe.Slice((*byte)(unsafe.Pointer(par.extradata)), size), src.Extradata)
		par.extradata_size = C.int(size)
	}
	return nil
}
