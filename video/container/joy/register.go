package joy

import (
	"io"

	"github.com/Darkness4/go-remux/video/annexb"
	"github.com/Darkness4/go-remux/video/container"
	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/format/aac"
	"github.com/nareix/joy4/format/flv"
	"github.com/nareix/joy4/format/mp4"
	"github.com/nareix/joy4/format/ts"
)

// Register adds the joy4 formats to reg.
func Register(reg *container.Registry) {
	reg.RegisterDemuxer(container.Demuxer{
		Name:       "mp4",
		Extensions: []string{".mp4", ".m4a", ".m4v", ".mov"},
		MIMETypes:  []string{"video/mp4", "audio/mp4", "video/quicktime"},
		Open: func(r io.ReadSeeker) (container.Input, error) {
			return newInput("mp4", r, mp4.NewDemuxer(r), mp4TimeBase), nil
		},
	})
	reg.RegisterDemuxer(container.Demuxer{
		Name:       "mpegts",
		Extensions: []string{".ts", ".m2ts", ".mts"},
		MIMETypes:  []string{"video/mp2t"},
		Open: func(r io.ReadSeeker) (container.Input, error) {
			return newInput("mpegts", r, ts.NewDemuxer(r), mpegtsTimeBase), nil
		},
	})
	reg.RegisterDemuxer(container.Demuxer{
		Name:       "flv",
		Extensions: []string{".flv"},
		MIMETypes:  []string{"video/x-flv"},
		Open: func(r io.ReadSeeker) (container.Input, error) {
			return newInput("flv", r, flv.NewDemuxer(r), flvTimeBase), nil
		},
	})
	reg.RegisterDemuxer(container.Demuxer{
		Name:       "adts",
		Extensions: []string{".aac"},
		MIMETypes:  []string{"audio/aac"},
		Probe:      isADTS,
		Open: func(r io.ReadSeeker) (container.Input, error) {
			return newInput("adts", r, aac.NewDemuxer(r), adtsTimeBase), nil
		},
	})
	reg.RegisterDemuxer(container.Demuxer{
		Name:       "h264",
		Extensions: []string{".h264", ".264", ".avc"},
		Probe:      annexb.IsAnnexB,
		Open: func(r io.ReadSeeker) (container.Input, error) {
			return NewH264Input(r), nil
		},
	})

	reg.RegisterMuxer(container.Muxer{
		Name:       "mp4",
		Extensions: []string{".mp4", ".m4a", ".m4v", ".mov"},
		Create: func() (container.Output, error) {
			return &Output{
				format: "mp4",
				newMuxer: func(w io.WriteSeeker) av.Muxer {
					return mp4.NewMuxer(w)
				},
				timeBase: mp4TimeBase,
				seekable: true,
			}, nil
		},
	})
	reg.RegisterMuxer(container.Muxer{
		Name:       "mpegts",
		Extensions: []string{".ts", ".m2ts"},
		Create: func() (container.Output, error) {
			return &Output{
				format: "mpegts",
				newMuxer: func(w io.WriteSeeker) av.Muxer {
					return ts.NewMuxer(w)
				},
				timeBase: mpegtsTimeBase,
			}, nil
		},
	})
	reg.RegisterMuxer(container.Muxer{
		Name:       "flv",
		Extensions: []string{".flv"},
		Create: func() (container.Output, error) {
			return &Output{
				format: "flv",
				newMuxer: func(w io.WriteSeeker) av.Muxer {
					return flv.NewMuxer(w)
				},
				timeBase: flvTimeBase,
			}, nil
		},
	})
	reg.RegisterMuxer(container.Muxer{
		Name:       "adts",
		Extensions: []string{".aac"},
		Create: func() (container.Output, error) {
			return &Output{
				format: "adts",
				newMuxer: func(w io.WriteSeeker) av.Muxer {
					return aac.NewMuxer(w)
				},
				timeBase:   adtsTimeBase,
				maxStreams: 1,
			}, nil
		},
	})
}

// isADTS checks the 12-bit ADTS syncword and the zero layer bits.
func isADTS(head []byte) bool {
	return len(head) >= 7 && head[0] == 0xff && head[1]&0xf6 == 0xf0
}
