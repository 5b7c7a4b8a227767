//go:build libav

package libav

/*
#cgo pkg-config: libavformat libavcodec libavutil
#include <errno.h>
#include <libavutil/error.h>
*/
import "C"
import (
	"io"
	"unsafe"
)

// Error is a negative libav return code.
type Error int

const (
	errEOF   = Error(C.AVERROR_EOF)
	errAgain = Error(-C.EAGAIN)
)

func (e Error) Error() string {
	buf := make([]byte, C.AV_ERROR_MAX_STRING_SIZE)
	C.av_make_error_string((*C.char)(unsafe.Pointer(&buf[0])), C.AV_ERROR_MAX_STRING_SIZE, C.int(e))
	return "libav: " + C.GoString((*C.char)(unsafe.Pointer(&buf[0])))
}

// Is matches io.EOF for AVERROR_EOF.
func (e Error) Is(target error) bool {
	return e == errEOF && target == io.EOF
}

func avError(ret C.int) error {
	if ret >= 0 {
		return nil
	}
	return Error(ret)
}
