//go:build libav

package libav

/*
#include <libavutil/log.h>
*/
import "C"
import (
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/decode"
)

var muxers = []container.Muxer{
	{Name: "mp4", Extensions: []string{".mp4", ".m4v"}},
	{Name: "ipod", Extensions: []string{".m4a"}},
	{Name: "mov", Extensions: []string{".mov"}},
	{Name: "mpegts", Extensions: []string{".ts", ".m2ts"}},
	{Name: "matroska", Extensions: []string{".mkv", ".mka"}},
	{Name: "webm", Extensions: []string{".webm"}},
	{Name: "flv", Extensions: []string{".flv"}},
	{Name: "adts", Extensions: []string{".aac"}},
	{Name: "h264", Extensions: []string{".h264", ".264"}},
	{Name: "null"},
}

// Register routes every source through libavformat and registers its muxers
// and decoders.
func Register(reg *container.Registry) {
	C.av_log_set_level(C.AV_LOG_ERROR)

	reg.SetURLOpener(func(url string) (container.Input, error) {
		in, err := NewInput(url)
		if err != nil {
			return nil, err
		}
		return in, nil
	})
	for _, m := range muxers {
		name := m.Name
		m.Create = func() (container.Output, error) {
			out, err := NewOutput(name)
			if err != nil {
				return nil, err
			}
			return out, nil
		}
		reg.RegisterMuxer(m)
	}
	for _, codec := range []string{"h264", "hevc"} {
		decode.Register(codec, func() (decode.Decoder, error) {
			d, err := NewDecoder(codec)
			if err != nil {
				return nil, err
			}
			return d, nil
		})
	}
	decode.RegisterParser("hevc", func() (decode.Parser, error) {
		p, err := NewParser("hevc")
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
