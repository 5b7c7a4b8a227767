//go:build libav

package libav

/*
#include <errno.h>
#include <stdint.h>
#include <libavformat/avio.h>
#include <libavutil/error.h>
*/
import "C"
import (
	"errors"
	"unsafe"

	"github.com/Darkness4/go-remux/video/sink"
	pointer "github.com/mattn/go-pointer"
	"github.com/rs/zerolog/log"
)

func restoreSink(opaque unsafe.Pointer) *sink.Sink {
	s, _ := pointer.Restore(opaque).(*sink.Sink)
	return s
}

//export goWritePacket
func goWritePacket(opaque unsafe.Pointer, buf *C.uint8_t, size C.int) C.int {
	s := restoreSink(opaque)
	if s == nil {
		return C.int(-C.EINVAL)
	}
	res := s.WriteBuffer(unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(size)))
	switch res.Status {
	case sink.StatusOK:
		return C.int(res.N)
	case sink.StatusEndOfStream:
		return C.int(C.AVERROR_EOF)
	default:
		log.Err(res.Err).Msg("sink write failed")
		return C.int(-C.EIO)
	}
}

//export goSeek
func goSeek(opaque unsafe.Pointer, offset C.int64_t, whence C.int) C.int64_t {
	s := restoreSink(opaque)
	if s == nil {
		return C.int64_t(-C.EINVAL)
	}
	if whence&C.AVSEEK_SIZE != 0 {
		return C.int64_t(s.Size())
	}
	pos, err := s.Seek(int64(offset), int(whence&^C.AVSEEK_FORCE))
	if err != nil {
		if errors.Is(err, sink.ErrNotSeekable) {
			return C.int64_t(-C.ESPIPE)
		}
		log.Err(err).Msg("sink seek failed")
		return C.int64_t(-C.EIO)
	}
	return C.int64_t(pos)
}
