package remux

import (
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/timebase"
)

// DefaultFrameRate is assumed for untimed streams that declare no frame rate.
var DefaultFrameRate = timebase.New(25, 1)

// Normalizer rescales packet timestamps into the destination time base and
// synthesizes them for untimed packets.
//
// A Normalizer belongs to a single run.
type Normalizer struct {
	frameIndex int64
	frameRate  timebase.Rational
}

// NewNormalizer returns a Normalizer. A valid frameRate overrides the frame
// rate declared by the source streams.
func NewNormalizer(frameRate timebase.Rational) *Normalizer {
	return &Normalizer{frameRate: frameRate}
}

func (n *Normalizer) rate(in *container.StreamDescriptor) timebase.Rational {
	if n.frameRate.IsValid() && n.frameRate.Num > 0 {
		return n.frameRate
	}
	if in.FrameRate.IsValid() && in.FrameRate.Num > 0 {
		return in.FrameRate
	}
	return DefaultFrameRate
}

// Normalize rewrites the timestamps of pkt from the time base of in to the
// time base of out.
func (n *Normalizer) Normalize(pkt *container.Packet, in, out *container.StreamDescriptor) {
	if pkt.PTS == timebase.NoPTS {
		rate := n.rate(in)
		// Nominal frame duration in microseconds.
		d := timebase.Rescale(timebase.TimeUnit, rate.Den, rate.Num)
		pkt.PTS = timebase.RescaleQ(n.frameIndex*d, timebase.Microseconds, in.TimeBase)
		pkt.DTS = pkt.PTS
		pkt.Duration = timebase.RescaleQ(d, timebase.Microseconds, in.TimeBase)
	}

	const rnd = timebase.RoundNearInf | timebase.RoundPassMinMax
	pkt.PTS = timebase.RescaleQRnd(pkt.PTS, in.TimeBase, out.TimeBase, rnd)
	pkt.DTS = timebase.RescaleQRnd(pkt.DTS, in.TimeBase, out.TimeBase, rnd)
	pkt.Duration = timebase.RescaleQ(pkt.Duration, in.TimeBase, out.TimeBase)
	pkt.Pos = container.PosUnknown
}

// Commit counts a packet as written.
func (n *Normalizer) Commit() {
	n.frameIndex++
}

// FrameIndex returns the number of committed packets.
func (n *Normalizer) FrameIndex() int64 {
	return n.frameIndex
}

// Reset restarts the frame index.
func (n *Normalizer) Reset() {
	n.frameIndex = 0
}
