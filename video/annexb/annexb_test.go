package annexb_test

import (
	"testing"

	"github.com/Darkness4/go-remux/video/annexb"
	"github.com/stretchr/testify/require"
)

var (
	sps    = []byte{0x67, 0x42, 0x00, 0x1e, 0x96}
	pps    = []byte{0x68, 0xce, 0x38, 0x80}
	idr    = []byte{0x65, 0x88, 0x84, 0x21}
	p1     = []byte{0x41, 0x9a, 0x02, 0x03}
	p2a    = []byte{0x41, 0x9a, 0x04, 0x05}
	p2b    = []byte{0x41, 0x40, 0x06, 0x07} // second slice of the same picture
	stream = concat(
		[]byte{0x00, 0x00, 0x00, 0x01}, sps,
		[]byte{0x00, 0x00, 0x00, 0x01}, pps,
		[]byte{0x00, 0x00, 0x01}, idr,
		[]byte{0x00, 0x00, 0x00, 0x01}, p1,
		[]byte{0x00, 0x00, 0x01}, p2a,
		[]byte{0x00, 0x00, 0x01}, p2b,
	)
	expected = []annexb.AccessUnit{
		{sps, pps, idr},
		{p1},
		{p2a, p2b},
	}
)

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func split(t *testing.T, data []byte, chunk int) []annexb.AccessUnit {
	var s annexb.Splitter
	var aus []annexb.AccessUnit
	for len(data) > 0 {
		n := min(chunk, len(data))
		got, err := s.Push(data[:n])
		require.NoError(t, err)
		aus = append(aus, got...)
		data = data[n:]
	}
	got, err := s.Flush()
	require.NoError(t, err)
	return append(aus, got...)
}

func TestSplitter(t *testing.T) {
	tests := []struct {
		title string
		chunk int
	}{
		{title: "whole stream", chunk: len(stream)},
		{title: "byte by byte", chunk: 1},
		{title: "odd chunks", chunk: 5},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			require.Equal(t, expected, split(t, stream, tt.chunk))
		})
	}
}

func TestSplitterSkipsLeadingGarbage(t *testing.T) {
	data := append([]byte{0xde, 0xad, 0xbe, 0xef, 0x00}, stream...)
	require.Equal(t, expected, split(t, data, 3))
}

func TestSplitterEmpty(t *testing.T) {
	var s annexb.Splitter
	aus, err := s.Push([]byte{0x12, 0x34})
	require.NoError(t, err)
	require.Empty(t, aus)

	aus, err = s.Flush()
	require.NoError(t, err)
	require.Empty(t, aus)
}

func TestAccessUnit(t *testing.T) {
	au := expected[0]
	require.True(t, au.IsRandomAccess())
	require.False(t, expected[1].IsRandomAccess())
	require.Equal(t, sps, au.Find(7))
	require.Nil(t, expected[1].Find(7))
	require.Equal(t, annexb.AccessUnit{idr}, au.Strip(7, 8))

	avcc, err := expected[1].AVCC()
	require.NoError(t, err)
	require.Equal(t, concat([]byte{0, 0, 0, 4}, p1), avcc)
}

func TestIsAnnexB(t *testing.T) {
	require.True(t, annexb.IsAnnexB(stream))
	require.True(t, annexb.IsAnnexB([]byte{0, 0, 1, 0x09, 0xf0}))
	require.False(t, annexb.IsAnnexB([]byte{0, 0, 1, 0xe7}), "forbidden bit")
	require.False(t, annexb.IsAnnexB([]byte("ftypisom")))
	require.False(t, annexb.IsAnnexB(nil))
}

func TestFrameRateInvalidSPS(t *testing.T) {
	_, ok := annexb.FrameRate([]byte{0x67})
	require.False(t, ok)
}
