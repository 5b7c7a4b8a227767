// Package decode turns an elementary stream into pictures.
//
// A Parser cuts the byte stream into access units and a Decoder turns the
// access units into frames. Loop drives both until the end of the input.
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// ChunkSize is the number of bytes read from the input at once.
const ChunkSize = 4096

var (
	// ErrAgain is returned by a Decoder that needs more input before it can
	// output a frame, or that must output frames before taking more input.
	ErrAgain = errors.New("decode: resource temporarily unavailable")
	// ErrNoDecoder is returned when no decoder is registered for a codec.
	ErrNoDecoder = errors.New("decode: no decoder for codec")
	// ErrNoProgress is returned when a parser consumes nothing.
	ErrNoProgress = errors.New("decode: parser consumed no input")
)

// Frame is a decoded picture.
type Frame struct {
	// Number is the 1-based index of the frame in output order.
	Number int
	Width  int
	Height int
	// Stride is the length of a row of Luma, padding included.
	Stride int
	// Luma is the first plane of the picture.
	Luma []byte
}

// Parser splits a byte stream into access units.
type Parser interface {
	// Parse consumes a prefix of data and returns the access units completed
	// by it.
	Parse(data []byte) (units [][]byte, consumed int, err error)
	// Flush returns the access units still pending at the end of the input.
	Flush() ([][]byte, error)
}

// Decoder turns access units into frames.
type Decoder interface {
	// SendUnit feeds an access unit.
	SendUnit(unit []byte) error
	// ReceiveFrame returns the next frame, ErrAgain when more input is needed
	// or io.EOF once flushed and drained.
	ReceiveFrame() (*Frame, error)
	// Flush signals the end of the input.
	Flush() error
	// Close releases the decoder.
	Close() error
}

// FrameHandler consumes a frame. The frame is only valid during the call.
type FrameHandler func(*Frame) error

// Loop reads r in chunks of ChunkSize bytes, feeds the parsed access units to
// d and calls fn for every decoded frame. It flushes d at the end of the input
// and returns the number of frames handled.
func Loop(ctx context.Context, r io.Reader, p Parser, d Decoder, fn FrameHandler) (int, error) {
	l := &loop{d: d, fn: fn}
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return l.frames, err
		}
		n, rerr := r.Read(buf)
		data := buf[:n]
		for len(data) > 0 {
			units, consumed, err := p.Parse(data)
			if err != nil {
				return l.frames, fmt.Errorf("parse: %w", err)
			}
			if consumed <= 0 && len(units) == 0 {
				return l.frames, ErrNoProgress
			}
			data = data[consumed:]
			if err := l.send(units); err != nil {
				return l.frames, err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return l.frames, fmt.Errorf("read: %w", rerr)
		}
	}

	units, err := p.Flush()
	if err != nil {
		return l.frames, fmt.Errorf("parse: %w", err)
	}
	if err := l.send(units); err != nil {
		return l.frames, err
	}
	if err := d.Flush(); err != nil {
		return l.frames, fmt.Errorf("flush: %w", err)
	}
	return l.frames, l.drain()
}

type loop struct {
	d      Decoder
	fn     FrameHandler
	frames int
}

func (l *loop) send(units [][]byte) error {
	for _, unit := range units {
		if len(unit) == 0 {
			continue
		}
		err := l.d.SendUnit(unit)
		if errors.Is(err, ErrAgain) {
			// The decoder is full: drain it and retry once.
			if err := l.drain(); err != nil {
				return err
			}
			err = l.d.SendUnit(unit)
		}
		if err != nil {
			return fmt.Errorf("send unit: %w", err)
		}
		if err := l.drain(); err != nil {
			return err
		}
	}
	return nil
}

func (l *loop) drain() error {
	for {
		frame, err := l.d.ReceiveFrame()
		if errors.Is(err, ErrAgain) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive frame: %w", err)
		}
		l.frames++
		log.Debug().Int("frame", frame.Number).Msg("frame decoded")
		if err := l.fn(frame); err != nil {
			return fmt.Errorf("frame %d: %w", frame.Number, err)
		}
	}
}

var (
	decodersMu sync.RWMutex
	decoders   = make(map[string]func() (Decoder, error))
)

// Register makes a decoder available for a codec name.
func Register(codec string, fn func() (Decoder, error)) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[codec] = fn
}

// NewDecoder returns a decoder for the codec name.
func NewDecoder(codec string) (Decoder, error) {
	decodersMu.RLock()
	fn, ok := decoders[codec]
	decodersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDecoder, codec)
	}
	return fn()
}

// Codecs returns the codec names with a registered decoder.
func Codecs() []string {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	codecs := make([]string, 0, len(decoders))
	for codec := range decoders {
		codecs = append(codecs, codec)
	}
	sort.Strings(codecs)
	return codecs
}

var (
	parsersMu sync.RWMutex
	parsers   = map[string]func() (Parser, error){
		"h264": func() (Parser, error) { return NewAnnexBParser(), nil },
	}
)

// RegisterParser makes a parser available for a codec name. Parsers holding
// resources should implement io.Closer.
func RegisterParser(codec string, fn func() (Parser, error)) {
	parsersMu.Lock()
	defer parsersMu.Unlock()
	parsers[codec] = fn
}

// NewParser returns a parser for the codec name.
func NewParser(codec string) (Parser, error) {
	parsersMu.RLock()
	fn, ok := parsers[codec]
	parsersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %s", ErrNoDecoder, codec)
	}
	return fn()
}
