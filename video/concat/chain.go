package concat

import (
	"errors"
	"fmt"
	"io"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/rs/zerolog/log"
)

// ErrIncompatibleInputs is returned when an input does not have the stream
// layout of the first input.
var ErrIncompatibleInputs = errors.New("inputs have different stream layouts")

// Chain reads several inputs one after the other as a single input.
//
// Streams are the streams of the first input. Packets of the following
// inputs are rescaled into those streams and shifted so that each input
// starts where the previous one ended.
type Chain struct {
	open   func(string) (container.Input, error)
	inputs []string
	next   int

	cur        container.Input
	curStreams []*container.StreamDescriptor
	streams    []*container.StreamDescriptor

	// offset is the shift of the current input, in microseconds.
	offset int64
	// start is the first timestamp of the current input, in microseconds.
	start int64
	// end is the highest end timestamp of the chain, in microseconds.
	end int64

	closed bool
}

// NewChain returns a Chain over inputs. Each input is opened with open when
// reached.
func NewChain(open func(string) (container.Input, error), inputs []string) *Chain {
	return &Chain{
		open:   open,
		inputs: inputs,
		start:  timebase.NoPTS,
	}
}

func (c *Chain) advance() error {
	if c.cur != nil {
		if err := c.cur.Close(); err != nil {
			log.Warn().Err(err).Str("input", c.inputs[c.next-1]).Msg("failed to close input")
		}
		c.cur = nil
	}
	if c.next >= len(c.inputs) {
		return io.EOF
	}

	name := c.inputs[c.next]
	c.next++
	in, err := c.open(name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := in.Probe(); err != nil {
		_ = in.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	if c.streams != nil {
		if err := compatible(c.streams, in.Streams()); err != nil {
			_ = in.Close()
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	c.cur = in
	c.curStreams = in.Streams()
	if c.next > 1 {
		c.offset = c.end
		c.start = timebase.NoPTS
	}
	log.Debug().Str("input", name).Int64("offset_us", c.offset).Msg("concat input opened")
	return nil
}

func compatible(want, got []*container.StreamDescriptor) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: %d streams, expected %d", ErrIncompatibleInputs, len(got), len(want))
	}
	for i := range want {
		if want[i].MediaType != got[i].MediaType {
			return fmt.Errorf(
				"%w: stream %d is %s, expected %s",
				ErrIncompatibleInputs, i, got[i].MediaType, want[i].MediaType,
			)
		}
		if want[i].Codec != nil && got[i].Codec != nil &&
			want[i].Codec.CodecName != got[i].Codec.CodecName {
			return fmt.Errorf(
				"%w: stream %d is %s, expected %s",
				ErrIncompatibleInputs, i, got[i].Codec.CodecName, want[i].Codec.CodecName,
			)
		}
	}
	return nil
}

// Probe opens and probes the first input.
func (c *Chain) Probe() error {
	if c.closed {
		return container.ErrClosed
	}
	if c.streams != nil {
		return nil
	}
	if len(c.inputs) == 0 {
		return errors.New("no input")
	}
	if err := c.advance(); err != nil {
		return err
	}
	c.streams = c.curStreams
	return nil
}

// Streams returns the streams of the first input.
func (c *Chain) Streams() []*container.StreamDescriptor {
	return c.streams
}

// ReadPacket reads the next packet of the chain.
func (c *Chain) ReadPacket(pkt *container.Packet) error {
	if c.closed {
		return container.ErrClosed
	}
	if c.streams == nil {
		if err := c.Probe(); err != nil {
			return err
		}
	}
	for {
		if c.cur == nil {
			return io.EOF
		}
		err := c.cur.ReadPacket(pkt)
		if errors.Is(err, io.EOF) {
			if err := c.advance(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		c.shift(pkt)
		return nil
	}
}

// shift moves pkt from the current input onto the chain timeline.
func (c *Chain) shift(pkt *container.Packet) {
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(c.streams) {
		return
	}
	src := c.curStreams[pkt.StreamIndex].TimeBase
	dst := c.streams[pkt.StreamIndex].TimeBase

	ts := pkt.DTS
	if ts == timebase.NoPTS {
		ts = pkt.PTS
	}
	if ts == timebase.NoPTS {
		// Untimed packets are timestamped downstream.
		return
	}
	if c.start == timebase.NoPTS {
		if c.next > 1 {
			c.start = timebase.RescaleQ(ts, src, timebase.Microseconds)
		} else {
			c.start = 0
		}
	}
	shift := timebase.RescaleQ(c.offset-c.start, timebase.Microseconds, dst)

	move := func(v int64) int64 {
		if v == timebase.NoPTS {
			return v
		}
		return timebase.RescaleQ(v, src, dst) + shift
	}
	pkt.PTS = move(pkt.PTS)
	pkt.DTS = move(pkt.DTS)
	pkt.Duration = timebase.RescaleQ(pkt.Duration, src, dst)

	last := max(pkt.PTS, pkt.DTS)
	end := timebase.RescaleQ(last+max(pkt.Duration, 1), dst, timebase.Microseconds)
	c.end = max(c.end, end)
}

// Close closes the current input. Close is idempotent.
func (c *Chain) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cur == nil {
		return nil
	}
	err := c.cur.Close()
	c.cur = nil
	return err
}
