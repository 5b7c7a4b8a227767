//go:build libav

package libav

/*
#include <libavformat/avformat.h>
#include <libavutil/mem.h>

extern int goWritePacket(void *opaque, uint8_t *buf, int buf_size);
extern int64_t goSeek(void *opaque, int64_t offset, int whence);

#if LIBAVFORMAT_VERSION_MAJOR >= 61
static int write_packet(void *opaque, const uint8_t *buf, int buf_size)
{
	return goWritePacket(opaque, (uint8_t *)buf, buf_size);
}
#else
static int write_packet(void *opaque, uint8_t *buf, int buf_size)
{
	return goWritePacket(opaque, buf, buf_size);
}
#endif

static AVIOContext *new_sink_avio(void *opaque, int size, int seekable)
{
	unsigned char *buf = av_malloc(size);
	if (!buf)
		return NULL;
	AVIOContext *pb = avio_alloc_context(buf, size, 1, opaque, NULL, write_packet, goSeek);
	if (!pb) {
		av_free(buf);
		return NULL;
	}
	if (!seekable)
		pb->seekable = 0;
	return pb;
}

static void free_sink_avio(AVIOContext **pb)
{
	if (!*pb)
		return;
	avio_flush(*pb);
	av_freep(&(*pb)->buffer);
	avio_context_free(pb);
}
*/
import "C"
import (
	"errors"
	"unsafe"

	"github.com/Darkness4/go-remux/video/sink"
	pointer "github.com/mattn/go-pointer"
)

// sinkIO is an AVIOContext writing to a sink.Sink.
type sinkIO struct {
	pb     *C.AVIOContext
	handle unsafe.Pointer
}

func newSinkIO(s *sink.Sink) (*sinkIO, error) {
	size := len(s.Buffer())
	if size == 0 {
		return nil, sink.ErrEndOfStream
	}
	seekable := C.int(0)
	if s.Seekable() {
		seekable = 1
	}
	handle := pointer.Save(s)
	pb := C.new_sink_avio(handle, C.int(size), seekable)
	if pb == nil {
		pointer.Unref(handle)
		return nil, errors.New("libav: failed to allocate I/O context")
	}
	return &sinkIO{pb: pb, handle: handle}, nil
}

// Close flushes and frees the context.
func (sio *sinkIO) Close() error {
	if sio.pb == nil {
		return nil
	}
	var err error
	C.avio_flush(sio.pb)
	if sio.pb.error < 0 {
		err = Error(sio.pb.error)
	}
	C.free_sink_avio(&sio.pb)
	pointer.Unref(sio.handle)
	sio.handle = nil
	return err
}
