package decode_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Darkness4/go-remux/testutils/media"
	"github.com/Darkness4/go-remux/video/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder outputs a 4x2 frame per unit, delay units late.
type fakeDecoder struct {
	delay   int
	again   int
	units   [][]byte
	pending []*decode.Frame
	flushed bool
	closed  bool
}

func (d *fakeDecoder) SendUnit(unit []byte) error {
	if d.flushed {
		return errors.New("send after flush")
	}
	if d.again > 0 {
		d.again--
		return decode.ErrAgain
	}
	d.units = append(d.units, unit)
	n := len(d.units)
	d.pending = append(d.pending, &decode.Frame{
		Number: n,
		Width:  4,
		Height: 2,
		Stride: 8,
		Luma:   bytes.Repeat([]byte{byte(n)}, 16),
	})
	return nil
}

func (d *fakeDecoder) ReceiveFrame() (*decode.Frame, error) {
	if len(d.pending) > d.delay || (d.flushed && len(d.pending) > 0) {
		f := d.pending[0]
		d.pending = d.pending[1:]
		return f, nil
	}
	if d.flushed {
		return nil, io.EOF
	}
	return nil, decode.ErrAgain
}

func (d *fakeDecoder) Flush() error {
	d.flushed = true
	return nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

func TestLoop(t *testing.T) {
	tests := []struct {
		title string
		delay int
		again int
	}{
		{title: "no delay"},
		{title: "delayed frames are flushed", delay: 2},
		{title: "full decoder", again: 1},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			d := &fakeDecoder{delay: tt.delay, again: tt.again}
			var numbers []int
			n, err := decode.Loop(
				context.Background(),
				bytes.NewReader(media.RawH264(3)),
				decode.NewAnnexBParser(),
				d,
				func(f *decode.Frame) error {
					numbers = append(numbers, f.Number)
					return nil
				},
			)
			require.NoError(t, err)
			assert.Equal(t, 4, n)
			assert.Equal(t, []int{1, 2, 3, 4}, numbers)
			require.Len(t, d.units, 4)
			assert.Equal(t, media.AnnexB(media.AUD, media.SPS, media.PPS, media.IDR), d.units[0])
			assert.Equal(t, media.AnnexB(media.AUD, media.PFrame), d.units[3])
		})
	}
}

func TestLoopLargeInput(t *testing.T) {
	// Several chunks of input.
	d := &fakeDecoder{}
	n, err := decode.Loop(
		context.Background(),
		bytes.NewReader(media.RawH264(2000)),
		decode.NewAnnexBParser(),
		d,
		func(*decode.Frame) error { return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 2001, n)
}

func TestLoopHandlerError(t *testing.T) {
	errStop := errors.New("stop")
	_, err := decode.Loop(
		context.Background(),
		bytes.NewReader(media.RawH264(3)),
		decode.NewAnnexBParser(),
		&fakeDecoder{},
		func(f *decode.Frame) error {
			if f.Number == 2 {
				return errStop
			}
			return nil
		},
	)
	require.ErrorIs(t, err, errStop)
}

type stuckParser struct{}

func (stuckParser) Parse([]byte) ([][]byte, int, error) { return nil, 0, nil }
func (stuckParser) Flush() ([][]byte, error)            { return nil, nil }

func TestLoopParserWithoutProgress(t *testing.T) {
	_, err := decode.Loop(
		context.Background(),
		bytes.NewReader([]byte{1, 2, 3}),
		stuckParser{},
		&fakeDecoder{},
		func(*decode.Frame) error { return nil },
	)
	require.ErrorIs(t, err, decode.ErrNoProgress)
}

func TestLoopCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := decode.Loop(
		ctx,
		bytes.NewReader(media.RawH264(3)),
		decode.NewAnnexBParser(),
		&fakeDecoder{},
		func(*decode.Frame) error { return nil },
	)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWritePGM(t *testing.T) {
	f := &decode.Frame{
		Width:  2,
		Height: 2,
		Stride: 3,
		Luma:   []byte{1, 2, 99, 3, 4, 99},
	}
	var buf bytes.Buffer
	require.NoError(t, decode.WritePGM(&buf, f))
	assert.Equal(t, append([]byte("P5\n2 2\n255\n"), 1, 2, 3, 4), buf.Bytes())

	f.Luma = f.Luma[:4]
	require.ErrorIs(t, decode.WritePGM(&buf, f), decode.ErrInvalidFrame)
}

func TestPGMSaver(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "dst")
	save := decode.PGMSaver(prefix)
	require.NoError(t, save(&decode.Frame{Number: 7, Width: 1, Height: 1, Stride: 1, Luma: []byte{42}}))

	b, err := os.ReadFile(prefix + "-7")
	require.NoError(t, err)
	assert.Equal(t, append([]byte("P5\n1 1\n255\n"), 42), b)
}

func TestNewDecoder(t *testing.T) {
	decode.Register("fake", func() (decode.Decoder, error) {
		return &fakeDecoder{}, nil
	})
	d, err := decode.NewDecoder("fake")
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.Contains(t, decode.Codecs(), "fake")

	_, err = decode.NewDecoder("nope")
	require.ErrorIs(t, err, decode.ErrNoDecoder)
}

func TestNewParser(t *testing.T) {
	p, err := decode.NewParser("h264")
	require.NoError(t, err)
	assert.IsType(t, &decode.AnnexBParser{}, p)

	_, err = decode.NewParser("nope")
	require.ErrorIs(t, err, decode.ErrNoDecoder)
}
