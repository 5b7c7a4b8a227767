package sink_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/Darkness4/go-remux/video/sink"
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

type eofWriter struct {
	accept int
	got    []byte
}

func (w *eofWriter) Write(p []byte) (int, error) {
	if len(w.got)+len(p) > w.accept {
		return 0, io.EOF
	}
	w.got = append(w.got, p...)
	return len(p), nil
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken")
}

func TestWriteIsStagedUntilFlush(t *testing.T) {
	dst := sink.NewMemoryBuffer()
	s := sink.New(dst, sink.WithBufferSize(8))

	n, err := s.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 0, dst.Len())
	require.Equal(t, int64(3), s.Position())

	n, err = s.Write([]byte("defghijk"))
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, 8, dst.Len(), "a full staging buffer is forwarded")

	require.NoError(t, s.Flush())
	require.Equal(t, []byte("abcdefghijk"), dst.Bytes())
	require.Equal(t, int64(11), s.Written())
	require.Equal(t, int64(11), s.Size())
}

func TestSeekEndBeforeAnyWrite(t *testing.T) {
	t.Run("seekable", func(t *testing.T) {
		s := sink.New(sink.NewMemoryBuffer())
		pos, err := s.Seek(0, io.SeekEnd)
		require.NoError(t, err)
		require.Equal(t, int64(0), pos)
	})

	t.Run("not seekable", func(t *testing.T) {
		s := sink.New(&bytes.Buffer{})
		pos, err := s.Seek(0, io.SeekEnd)
		require.NoError(t, err)
		require.Equal(t, int64(0), pos)
	})
}

func TestSeekEndAfterPatchBack(t *testing.T) {
	dst := sink.NewMemoryBuffer()
	s := sink.New(dst, sink.WithBufferSize(4))

	_, err := s.Write([]byte("0123456789"))
	require.NoError(t, err)

	pos, err := s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(0), pos)

	_, err = s.Write([]byte("AB"))
	require.NoError(t, err)

	// The cursor is at 2 but the stream ends at 10.
	pos, err = s.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(10), pos)

	_, err = s.Write([]byte("!"))
	require.NoError(t, err)
	require.NoError(t, s.Flush())
	require.Equal(t, []byte("AB23456789!"), dst.Bytes())
}

// boundedBuffer refuses to move its cursor past limit.
type boundedBuffer struct {
	*sink.MemoryBuffer
	limit int64
}

var errOutOfBounds = errors.New("out of bounds")

func (b *boundedBuffer) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekStart && offset > b.limit {
		return 0, errOutOfBounds
	}
	return b.MemoryBuffer.Seek(offset, whence)
}

func TestFailedSeekKeepsCursor(t *testing.T) {
	tests := []struct {
		title  string
		offset int64
		whence int
		err    error
	}{
		{
			title:  "negative end-relative target",
			offset: -100,
			whence: io.SeekEnd,
			err:    sink.ErrNegativeOffset,
		},
		{
			title:  "destination refuses the target",
			offset: 5,
			whence: io.SeekEnd,
			err:    errOutOfBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			mem := sink.NewMemoryBuffer()
			s := sink.New(&boundedBuffer{MemoryBuffer: mem, limit: 10})

			_, err := s.Write([]byte("0123456789"))
			require.NoError(t, err)
			_, err = s.Seek(2, io.SeekStart)
			require.NoError(t, err)

			_, err = s.Seek(tt.offset, tt.whence)
			require.ErrorIs(t, err, tt.err)
			require.Equal(t, int64(2), s.Position())

			_, err = s.Write([]byte("X"))
			require.NoError(t, err)
			require.NoError(t, s.Flush())
			require.Equal(t, int64(3), s.Position())
			require.Equal(t, []byte("01X3456789"), mem.Bytes())
		})
	}
}

func TestSeekCurrent(t *testing.T) {
	dst := sink.NewMemoryBuffer()
	s := sink.New(dst)

	_, err := s.Write([]byte("hello"))
	require.NoError(t, err)

	pos, err := s.Seek(-2, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(3), pos)

	_, err = s.Seek(-10, io.SeekCurrent)
	require.ErrorIs(t, err, sink.ErrNegativeOffset)

	_, err = s.Seek(0, 42)
	require.ErrorIs(t, err, sink.ErrInvalidWhence)
}

func TestSeekOnLinearDestination(t *testing.T) {
	s := sink.New(&bytes.Buffer{})
	require.False(t, s.Seekable())

	_, err := s.Write([]byte("hello"))
	require.NoError(t, err)

	pos, err := s.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(5), pos)

	pos, err = s.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(5), pos)

	_, err = s.Seek(0, io.SeekStart)
	require.ErrorIs(t, err, sink.ErrNotSeekable)
}

func TestWriteBufferEndOfStream(t *testing.T) {
	dst := &eofWriter{accept: 4}
	s := sink.New(dst)

	res := s.WriteBuffer([]byte("abcd"))
	require.Equal(t, sink.StatusOK, res.Status)
	require.Equal(t, 4, res.N)

	res = s.WriteBuffer([]byte("e"))
	require.Equal(t, sink.StatusEndOfStream, res.Status)
	require.ErrorIs(t, res.Err, sink.ErrEndOfStream)

	_, err := s.Write([]byte("f"))
	require.ErrorIs(t, err, sink.ErrEndOfStream)
	require.NoError(t, s.Close())
}

func TestWriteBufferError(t *testing.T) {
	s := sink.New(brokenWriter{})

	res := s.WriteBuffer([]byte("abcd"))
	require.Equal(t, sink.StatusError, res.Status)
	require.EqualError(t, res.Err, "broken")

	_, err := s.Write([]byte("abcd"))
	require.NoError(t, err, "staged writes are only forwarded on flush")
	require.Error(t, s.Flush())
}

func TestCloseIsIdempotent(t *testing.T) {
	dst := &closeCounter{}
	s := sink.New(dst)

	_, err := s.Write([]byte("payload"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, 1, dst.closed)
	require.Equal(t, "payload", dst.String())
	require.Nil(t, s.Buffer())

	res := s.WriteBuffer([]byte("late"))
	require.Equal(t, sink.StatusEndOfStream, res.Status)
}

func TestNewStartsAtDestinationCursor(t *testing.T) {
	dst := sink.NewMemoryBuffer()
	_, err := dst.Write([]byte("existing"))
	require.NoError(t, err)
	_, err = dst.Seek(2, io.SeekStart)
	require.NoError(t, err)

	s := sink.New(dst)
	require.Equal(t, int64(2), s.Position())
	require.Equal(t, int64(8), s.Size())
}
