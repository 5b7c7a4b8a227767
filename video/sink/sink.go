// Package sink bridges container I/O onto an arbitrary byte destination.
//
// A Sink is the only path between a container muxer and the destination: the
// muxer writes through the staging buffer and repositions with Seek. The sink
// tracks the cursor and the highest offset ever written so that end-relative
// seeks resolve to the true end of the stream, even on destinations that
// cannot seek.
//
// A Sink is not safe for concurrent use. Give every remux run its own Sink.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DefaultBufferSize is the size of the staging buffer.
const DefaultBufferSize = 32768

var (
	// ErrNotSeekable is returned when repositioning a destination that cannot seek.
	ErrNotSeekable = errors.New("sink: destination is not seekable")
	// ErrNegativeOffset is returned when a seek would move before the start.
	ErrNegativeOffset = errors.New("sink: negative position")
	// ErrInvalidWhence is returned for an unknown seek origin.
	ErrInvalidWhence = errors.New("sink: invalid whence")
	// ErrEndOfStream is returned by Write once the destination reached a
	// terminal state.
	ErrEndOfStream = errors.New("sink: end of stream")
)

// Destination is the byte-addressable resource behind a Sink. It may
// additionally implement io.Seeker and io.Closer.
type Destination interface {
	io.Writer
}

// Status classifies the outcome of WriteBuffer.
type Status int

const (
	// StatusOK means the bytes were handed to the destination.
	StatusOK Status = iota
	// StatusEndOfStream means the destination will not accept more bytes.
	StatusEndOfStream
	// StatusError means the destination failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusEndOfStream:
		return "END_OF_STREAM"
	case StatusError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Result is the outcome of a raw write.
type Result struct {
	N      int
	Status Status
	Err    error
}

// Option configures a Sink.
type Option func(*Options)

// Options of a Sink.
type Options struct {
	bufferSize int
	log        zerolog.Logger
}

// WithBufferSize sets the staging buffer size.
func WithBufferSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithLogger sets the logger used for sink diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Options) {
		o.log = log
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{
		bufferSize: DefaultBufferSize,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sink is the adapter between a container muxer and a Destination.
type Sink struct {
	dst    Destination
	seeker io.Seeker
	log    zerolog.Logger

	buf      []byte
	buffered int

	// pos is the destination cursor, excluding buffered bytes.
	pos int64
	// end is the highest offset ever written to the destination.
	end     int64
	written int64

	terminal bool
	closed   bool
}

// New wraps dst in a Sink.
func New(dst Destination, opts ...Option) *Sink {
	o := applyOptions(opts)
	s := &Sink{
		dst: dst,
		log: o.log,
		buf: make([]byte, o.bufferSize),
	}
	// Pipes and sockets wrapped in *os.File implement io.Seeker but fail to
	// seek.
	if seeker, ok := dst.(io.Seeker); ok {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return s
		}
		// Start from the destination's actual cursor (e.g. a file opened in
		// append mode or a pre-filled buffer).
		s.seeker = seeker
		s.pos = pos
		if end, err := seeker.Seek(0, io.SeekEnd); err == nil {
			s.end = end
			if _, err := seeker.Seek(s.pos, io.SeekStart); err != nil {
				s.log.Warn().Err(err).Msg("failed to restore destination cursor")
			}
		}
	}
	return s
}

// Create opens a file destination.
func Create(path string, opts ...Option) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return New(f, opts...), nil
}

// Seekable reports whether the destination supports repositioning.
func (s *Sink) Seekable() bool {
	return s.seeker != nil
}

// Buffer returns the staging buffer. It is nil after Close.
func (s *Sink) Buffer() []byte {
	return s.buf
}

// Position returns the logical write position, buffered bytes included.
func (s *Sink) Position() int64 {
	return s.pos + int64(s.buffered)
}

// Size returns the highest offset written so far, buffered bytes included.
func (s *Sink) Size() int64 {
	return max(s.end, s.Position())
}

// Written returns the number of bytes forwarded to the destination.
func (s *Sink) Written() int64 {
	return s.written
}

// WriteBuffer forwards p to the destination without staging.
//
// Pending staged bytes are flushed first so that the destination observes
// writes in order.
func (s *Sink) WriteBuffer(p []byte) Result {
	if s.closed || s.terminal {
		return Result{Status: StatusEndOfStream, Err: ErrEndOfStream}
	}
	if s.buffered > 0 {
		if res := s.flush(); res.Status != StatusOK {
			return res
		}
	}
	return s.forward(p)
}

func (s *Sink) forward(p []byte) Result {
	n, err := s.dst.Write(p)
	if n > 0 {
		s.pos += int64(n)
		s.written += int64(n)
		s.end = max(s.end, s.pos)
	}
	if err != nil {
		if isTerminal(err) {
			s.terminal = true
			return Result{N: n, Status: StatusEndOfStream, Err: fmt.Errorf("%w: %w", ErrEndOfStream, err)}
		}
		return Result{N: n, Status: StatusError, Err: err}
	}
	if n < len(p) {
		return Result{N: n, Status: StatusError, Err: io.ErrShortWrite}
	}
	return Result{N: n, Status: StatusOK}
}

func (s *Sink) flush() Result {
	if s.buffered == 0 {
		return Result{Status: StatusOK}
	}
	res := s.forward(s.buf[:s.buffered])
	if res.N > 0 && res.N < s.buffered {
		copy(s.buf, s.buf[res.N:s.buffered])
	}
	s.buffered -= res.N
	return res
}

// Write stages p and forwards the staging buffer whenever it fills up.
func (s *Sink) Write(p []byte) (int, error) {
	if s.closed || s.terminal {
		return 0, ErrEndOfStream
	}
	total := 0
	for len(p) > 0 {
		if s.buffered == len(s.buf) {
			if res := s.flush(); res.Status != StatusOK {
				return total, res.Err
			}
		}
		n := copy(s.buf[s.buffered:], p)
		s.buffered += n
		total += n
		p = p[n:]
	}
	return total, nil
}

// Flush forwards the staged bytes to the destination.
func (s *Sink) Flush() error {
	if s.closed {
		return nil
	}
	if res := s.flush(); res.Status != StatusOK {
		return res.Err
	}
	return nil
}

// Seek repositions the write cursor.
//
// io.SeekEnd resolves against the destination's end when it can seek and
// against the highest offset written otherwise, never against the cursor.
func (s *Sink) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrEndOfStream
	}
	if err := s.Flush(); err != nil {
		return 0, err
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		end, err := s.destinationEnd()
		if err != nil {
			return 0, err
		}
		target = end + offset
	default:
		return 0, ErrInvalidWhence
	}

	if target < 0 {
		return 0, ErrNegativeOffset
	}

	if s.seeker == nil {
		if target != s.pos {
			return 0, ErrNotSeekable
		}
		return s.pos, nil
	}

	pos, err := s.seeker.Seek(target, io.SeekStart)
	if err != nil {
		return 0, errors.Join(err, s.restore())
	}
	s.pos = pos
	return pos, nil
}

// destinationEnd returns the end of the stream. The destination cursor is
// left at s.pos.
func (s *Sink) destinationEnd() (int64, error) {
	if s.seeker == nil {
		return s.end, nil
	}
	e, err := s.seeker.Seek(0, io.SeekEnd)
	if err != nil {
		s.log.Debug().Err(err).Msg("destination end unavailable, using highest written offset")
		return s.end, s.restore()
	}
	if err := s.restore(); err != nil {
		return 0, err
	}
	return max(e, s.end), nil
}

// restore moves the destination cursor back to s.pos.
func (s *Sink) restore() error {
	if _, err := s.seeker.Seek(s.pos, io.SeekStart); err != nil {
		s.log.Warn().Err(err).Int64("position", s.pos).Msg("failed to restore destination cursor")
		return fmt.Errorf("restore cursor: %w", err)
	}
	return nil
}

// Close flushes the staging buffer, releases it and closes the destination
// when it is an io.Closer. Close is idempotent.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	var errs []error
	if !s.terminal {
		if res := s.flush(); res.Status != StatusOK {
			errs = append(errs, res.Err)
		}
	}
	s.closed = true
	s.buf = nil
	s.buffered = 0
	if c, ok := s.dst.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isTerminal(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}
