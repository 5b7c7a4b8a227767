package mkv_test

import (
	"bytes"
	"testing"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/container/mkv"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/stretchr/testify/require"
)

type closeCounter struct {
	bytes.Buffer
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

var ebmlMagic = []byte{0x1a, 0x45, 0xdf, 0xa3}

func TestMuxer(t *testing.T) {
	reg := container.NewRegistry()
	mkv.Register(reg)

	format, err := reg.GuessFormat("out.mkv")
	require.NoError(t, err)
	require.Equal(t, "matroska", format)

	out, err := reg.Create(format)
	require.NoError(t, err)

	dst := &closeCounter{}
	s := sink.New(dst)
	require.NoError(t, out.SetIO(s))

	video, err := out.NewStream()
	require.NoError(t, err)
	require.NoError(t, out.CopyCodecParameters(video, &container.StreamDescriptor{
		MediaType: container.MediaTypeVideo,
		FrameRate: timebase.New(25, 1),
		Codec: &container.CodecParameters{
			CodecName: "h264",
			Extradata: []byte{0x01, 0x42, 0xc0, 0x28, 0xff, 0xe0, 0x00},
			Width:     1920,
			Height:    1080,
		},
	}))
	audio, err := out.NewStream()
	require.NoError(t, err)
	require.NoError(t, out.CopyCodecParameters(audio, &container.StreamDescriptor{
		Index:     1,
		MediaType: container.MediaTypeAudio,
		Codec: &container.CodecParameters{
			CodecName:  "aac",
			Extradata:  []byte{0x12, 0x10},
			SampleRate: 44100,
			Channels:   2,
		},
	}))

	require.NoError(t, out.WriteHeader())
	require.Equal(t, mkv.TimeBase, video.TimeBase)
	require.Equal(t, mkv.TimeBase, audio.TimeBase)

	for i := range 4 {
		require.NoError(t, out.WriteInterleaved(&container.Packet{
			Data:        []byte{0, 0, 0, 1, 0x65},
			StreamIndex: 0,
			PTS:         int64(i) * 40,
			DTS:         int64(i) * 40,
			KeyFrame:    i == 0,
		}))
		require.NoError(t, out.WriteInterleaved(&container.Packet{
			Data:        []byte{0x21, 0x10},
			StreamIndex: 1,
			PTS:         int64(i) * 23,
			DTS:         timebase.NoPTS,
			KeyFrame:    true,
		}))
	}
	require.NoError(t, out.WriteTrailer())
	require.NoError(t, out.CloseIO())
	require.NoError(t, out.Free())
	require.Equal(t, 0, dst.closed, "the sink outlives the muxer")

	require.NoError(t, s.Close())
	require.Equal(t, 1, dst.closed)

	data := dst.Bytes()
	require.True(t, bytes.HasPrefix(data, ebmlMagic))
	require.True(t, bytes.Contains(data, []byte("V_MPEG4/ISO/AVC")))
	require.True(t, bytes.Contains(data, []byte("A_AAC")))
}

func TestUnsupportedCodec(t *testing.T) {
	out := &mkv.Output{}
	st, err := out.NewStream()
	require.NoError(t, err)
	err = out.CopyCodecParameters(st, &container.StreamDescriptor{
		Codec: &container.CodecParameters{CodecName: "mpeg2video"},
	})
	require.ErrorIs(t, err, container.ErrUnsupportedCodec)
}

func TestWithoutIO(t *testing.T) {
	out := &mkv.Output{}
	require.ErrorIs(t, out.WriteHeader(), container.ErrNoIO)
	require.ErrorIs(t, out.WriteTrailer(), container.ErrNoIO)
}
