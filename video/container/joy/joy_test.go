package joy_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/Darkness4/go-remux/testutils/media"
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/container/joy"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/stretchr/testify/require"
)

var (
	testSPS    = media.SPS
	testPPS    = media.PPS
	testIDR    = media.IDR
	testPFrame = media.PFrame
)

func annexB(nalus ...[]byte) []byte {
	return media.AnnexB(nalus...)
}

func rawStream() []byte {
	return media.RawH264(2)
}

func readAll(t *testing.T, in container.Input) []container.Packet {
	var pkts []container.Packet
	for {
		var pkt container.Packet
		err := in.ReadPacket(&pkt)
		if errors.Is(err, io.EOF) {
			return pkts
		}
		require.NoError(t, err)
		pkts = append(pkts, pkt)
	}
}

func TestH264Input(t *testing.T) {
	in := joy.NewH264Input(bytes.NewReader(rawStream()))
	require.NoError(t, in.Probe())

	streams := in.Streams()
	require.Len(t, streams, 1)
	require.Equal(t, container.MediaTypeVideo, streams[0].MediaType)
	require.Equal(t, joy.RawH264TimeBase, streams[0].TimeBase)
	require.Equal(t, "h264", streams[0].Codec.CodecName)
	require.NotEmpty(t, streams[0].Codec.Extradata)

	pkts := readAll(t, in)
	require.Len(t, pkts, 3)
	for i, pkt := range pkts {
		require.Equal(t, timebase.NoPTS, pkt.PTS, "packet %d", i)
		require.Equal(t, timebase.NoPTS, pkt.DTS, "packet %d", i)
		require.Equal(t, container.PosUnknown, pkt.Pos, "packet %d", i)
		require.Equal(t, i == 0, pkt.KeyFrame, "packet %d", i)
	}
	// The access unit delimiter is dropped and NAL units are length-prefixed.
	require.Equal(t, append([]byte{0, 0, 0, 5}, testPFrame...), pkts[1].Data)

	require.NoError(t, in.Close())
	require.NoError(t, in.Close())
	require.ErrorIs(t, in.ReadPacket(&container.Packet{}), container.ErrClosed)
}

func TestH264InputWithoutParameterSets(t *testing.T) {
	in := joy.NewH264Input(bytes.NewReader(annexB(testIDR, testPFrame)))
	require.ErrorIs(t, in.Probe(), joy.ErrNoParameterSets)
}

func TestRegistryDetectsRawH264(t *testing.T) {
	reg := container.NewRegistry()
	joy.Register(reg)

	d, err := reg.Detect(bytes.NewReader(rawStream()), "")
	require.NoError(t, err)
	require.Equal(t, "h264", d.Name)
}

func TestMP4RoundTrip(t *testing.T) {
	reg := container.NewRegistry()
	joy.Register(reg)

	src := joy.NewH264Input(bytes.NewReader(rawStream()))
	require.NoError(t, src.Probe())
	pkts := readAll(t, src)

	out, err := reg.Create("mp4")
	require.NoError(t, err)
	dst := sink.NewMemoryBuffer()
	s := sink.New(dst)
	require.NoError(t, out.SetIO(s))

	st, err := out.NewStream()
	require.NoError(t, err)
	require.NoError(t, out.CopyCodecParameters(st, src.Streams()[0]))
	require.NoError(t, out.WriteHeader())
	require.Equal(t, timebase.New(1, 90000), st.TimeBase)

	for i, pkt := range pkts {
		pkt.PTS = int64(i) * 3600
		pkt.DTS = pkt.PTS
		require.NoError(t, out.WriteInterleaved(&pkt))
	}
	require.NoError(t, out.WriteTrailer())
	require.NoError(t, out.CloseIO())
	require.NoError(t, out.Free())
	require.NoError(t, s.Close())

	in, err := reg.OpenReader(bytes.NewReader(dst.Bytes()), ".mp4")
	require.NoError(t, err)
	defer in.Close()
	require.NoError(t, in.Probe())
	require.Len(t, in.Streams(), 1)
	require.Equal(t, container.MediaTypeVideo, in.Streams()[0].MediaType)

	got := readAll(t, in)
	require.Len(t, got, 3)
	for i, pkt := range got {
		require.Equal(t, int64(i)*3600, pkt.DTS, "packet %d", i)
		require.Equal(t, pkts[i].Data, pkt.Data, "packet %d", i)
	}
	require.True(t, got[0].KeyFrame)
}

func TestMP4NeedsSeekableSink(t *testing.T) {
	reg := container.NewRegistry()
	joy.Register(reg)

	out, err := reg.Create("mp4")
	require.NoError(t, err)
	err = out.SetIO(sink.New(&bytes.Buffer{}))
	require.ErrorIs(t, err, sink.ErrNotSeekable)
}

func TestOutputRejectsUntimedPackets(t *testing.T) {
	reg := container.NewRegistry()
	joy.Register(reg)

	src := joy.NewH264Input(bytes.NewReader(rawStream()))
	require.NoError(t, src.Probe())

	out, err := reg.Create("mpegts")
	require.NoError(t, err)
	require.NoError(t, out.SetIO(sink.New(&bytes.Buffer{})))
	st, err := out.NewStream()
	require.NoError(t, err)
	require.NoError(t, out.CopyCodecParameters(st, src.Streams()[0]))
	require.NoError(t, out.WriteHeader())

	pkt := container.Packet{}
	pkt.Reset()
	require.ErrorIs(t, out.WriteInterleaved(&pkt), joy.ErrMissingTimestamp)
}

func TestADTSAcceptsOneStream(t *testing.T) {
	reg := container.NewRegistry()
	joy.Register(reg)

	out, err := reg.Create("adts")
	require.NoError(t, err)
	_, err = out.NewStream()
	require.NoError(t, err)
	_, err = out.NewStream()
	require.Error(t, err)
}

func TestCopyRejectsUnknownCodec(t *testing.T) {
	reg := container.NewRegistry()
	joy.Register(reg)

	out, err := reg.Create("flv")
	require.NoError(t, err)
	st, err := out.NewStream()
	require.NoError(t, err)
	err = out.CopyCodecParameters(st, &container.StreamDescriptor{
		Codec: &container.CodecParameters{CodecName: "vp9"},
	})
	require.ErrorIs(t, err, container.ErrUnsupportedCodec)
}
