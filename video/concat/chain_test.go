package concat_test

import (
	"errors"
	"io"
	"testing"

	"github.com/Darkness4/go-remux/video/concat"
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInput struct {
	streams []*container.StreamDescriptor
	packets []container.Packet
	closed  bool
}

func (in *fakeInput) Probe() error                           { return nil }
func (in *fakeInput) Streams() []*container.StreamDescriptor { return in.streams }
func (in *fakeInput) Close() error {
	in.closed = true
	return nil
}

func (in *fakeInput) ReadPacket(pkt *container.Packet) error {
	if len(in.packets) == 0 {
		return io.EOF
	}
	*pkt = in.packets[0]
	in.packets = in.packets[1:]
	return nil
}

func av(videoTB, audioTB timebase.Rational) []*container.StreamDescriptor {
	return []*container.StreamDescriptor{
		{
			Index:     0,
			MediaType: container.MediaTypeVideo,
			TimeBase:  videoTB,
			Codec:     &container.CodecParameters{CodecName: "h264"},
		},
		{
			Index:     1,
			MediaType: container.MediaTypeAudio,
			TimeBase:  audioTB,
			Codec:     &container.CodecParameters{CodecName: "aac"},
		},
	}
}

func pkt(stream int, ts, duration int64) container.Packet {
	return container.Packet{StreamIndex: stream, PTS: ts, DTS: ts, Duration: duration}
}

func opener(inputs map[string]*fakeInput) func(string) (container.Input, error) {
	return func(name string) (container.Input, error) {
		in, ok := inputs[name]
		if !ok {
			return nil, errors.New("not found")
		}
		return in, nil
	}
}

func readAll(t *testing.T, c *concat.Chain) []container.Packet {
	var out []container.Packet
	for {
		var p container.Packet
		err := c.ReadPacket(&p)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, p)
	}
}

func TestChain(t *testing.T) {
	ms := timebase.New(1, 1000)
	first := &fakeInput{
		streams: av(ms, ms),
		packets: []container.Packet{pkt(0, 0, 40), pkt(1, 0, 20), pkt(0, 40, 40), pkt(1, 20, 20)},
	}
	// Second input uses other time bases and does not start at zero.
	second := &fakeInput{
		streams: av(timebase.New(1, 90000), timebase.New(1, 48000)),
		packets: []container.Packet{pkt(0, 90000, 3600), pkt(1, 48000, 960)},
	}

	c := concat.NewChain(opener(map[string]*fakeInput{"a": first, "b": second}), []string{"a", "b"})
	require.NoError(t, c.Probe())
	require.Len(t, c.Streams(), 2)

	got := readAll(t, c)
	require.Len(t, got, 6)

	// First input is unchanged.
	assert.Equal(t, int64(0), got[0].PTS)
	assert.Equal(t, int64(40), got[2].PTS)
	// The second input continues at the end of the first one (80 ms), in the
	// time bases of the first input.
	assert.Equal(t, int64(80), got[4].PTS)
	assert.Equal(t, int64(80), got[4].DTS)
	assert.Equal(t, int64(40), got[4].Duration)
	assert.Equal(t, int64(80), got[5].PTS)
	assert.Equal(t, int64(20), got[5].Duration)

	assert.True(t, first.closed)
	require.NoError(t, c.Close())
	assert.True(t, second.closed)
	require.NoError(t, c.Close())
}

func TestChainIncompatibleInputs(t *testing.T) {
	ms := timebase.New(1, 1000)
	first := &fakeInput{streams: av(ms, ms), packets: []container.Packet{pkt(0, 0, 40)}}
	second := &fakeInput{streams: av(ms, ms)[:1]}

	c := concat.NewChain(opener(map[string]*fakeInput{"a": first, "b": second}), []string{"a", "b"})
	var p container.Packet
	require.NoError(t, c.ReadPacket(&p))
	err := c.ReadPacket(&p)
	require.ErrorIs(t, err, concat.ErrIncompatibleInputs)
	assert.True(t, second.closed)
}

func TestChainUntimedPackets(t *testing.T) {
	raw := timebase.New(1, 1200000)
	first := &fakeInput{
		streams: av(raw, raw)[:1],
		packets: []container.Packet{pkt(0, timebase.NoPTS, 0)},
	}
	second := &fakeInput{
		streams: av(raw, raw)[:1],
		packets: []container.Packet{pkt(0, timebase.NoPTS, 0)},
	}

	c := concat.NewChain(opener(map[string]*fakeInput{"a": first, "b": second}), []string{"a", "b"})
	got := readAll(t, c)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.Equal(t, timebase.NoPTS, p.PTS)
		assert.Equal(t, timebase.NoPTS, p.DTS)
	}
}

func TestChainOpenFailure(t *testing.T) {
	c := concat.NewChain(opener(nil), []string{"missing"})
	require.Error(t, c.Probe())
}
