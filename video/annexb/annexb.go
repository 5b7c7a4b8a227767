// Package annexb splits H.264 Annex-B byte streams into access units.
package annexb

import (
	"bytes"
	"fmt"
	"math"

	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

var startCode = []byte{0, 0, 1}

// AccessUnit is the list of NAL units of one coded picture, without start
// codes.
type AccessUnit [][]byte

// IsRandomAccess reports whether the unit carries an IDR slice.
func (au AccessUnit) IsRandomAccess() bool {
	for _, nalu := range au {
		if typeOf(nalu) == h264.NALUTypeIDR {
			return true
		}
	}
	return false
}

// Find returns the first NAL unit of type typ.
func (au AccessUnit) Find(typ h264.NALUType) []byte {
	for _, nalu := range au {
		if typeOf(nalu) == typ {
			return nalu
		}
	}
	return nil
}

// Strip returns the unit without the NAL units of the given types.
func (au AccessUnit) Strip(types ...h264.NALUType) AccessUnit {
	out := make(AccessUnit, 0, len(au))
	for _, nalu := range au {
		skip := false
		for _, typ := range types {
			if typeOf(nalu) == typ {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, nalu)
		}
	}
	return out
}

// AVCC encodes the unit with 4-byte length prefixes.
func (au AccessUnit) AVCC() ([]byte, error) {
	return h264.AVCC(au).Marshal()
}

// AnnexB encodes the unit with start codes.
func (au AccessUnit) AnnexB() ([]byte, error) {
	return h264.AnnexB(au).Marshal()
}

func typeOf(nalu []byte) h264.NALUType {
	if len(nalu) == 0 {
		return 0
	}
	return h264.NALUType(nalu[0] & 0x1f)
}

func isVCL(typ h264.NALUType) bool {
	return typ >= h264.NALUTypeNonIDR && typ <= h264.NALUTypeIDR
}

// startsAccessUnit reports whether a NAL unit of type typ opens a new access
// unit once a picture was seen (H.264 7.4.1.2.3).
func startsAccessUnit(nalu []byte) bool {
	typ := typeOf(nalu)
	switch {
	case typ == h264.NALUTypeAccessUnitDelimiter,
		typ == h264.NALUTypeSPS,
		typ == h264.NALUTypePPS,
		typ == h264.NALUTypeSEI,
		typ >= 14 && typ <= 18:
		return true
	case isVCL(typ):
		// first_mb_in_slice is ue(v): a leading 1 bit encodes 0.
		return len(nalu) > 1 && nalu[1]&0x80 != 0
	}
	return false
}

// Splitter turns a chunked Annex-B byte stream into access units.
type Splitter struct {
	buf    []byte
	synced bool
	au     AccessUnit
	hasVCL bool
}

// Push appends data and returns the access units completed by it.
func (s *Splitter) Push(data []byte) ([]AccessUnit, error) {
	s.buf = append(s.buf, data...)
	if !s.synced {
		i := findStartCode(s.buf, 0)
		if i < 0 {
			// Keep the tail that may be the beginning of a start code.
			if len(s.buf) > 3 {
				s.buf = append(s.buf[:0], s.buf[len(s.buf)-3:]...)
			}
			return nil, nil
		}
		s.buf = s.buf[i:]
		s.synced = true
	}

	var aus []AccessUnit
	for {
		next := findStartCode(s.buf, 3)
		if next < 0 {
			break
		}
		au, err := s.push(s.buf[:next])
		if err != nil {
			return aus, err
		}
		if au != nil {
			aus = append(aus, au)
		}
		s.buf = s.buf[next:]
	}
	return aus, nil
}

// Flush returns the access units still buffered and resets the splitter.
func (s *Splitter) Flush() ([]AccessUnit, error) {
	var aus []AccessUnit
	var err error
	if s.synced && len(s.buf) > 0 {
		var au AccessUnit
		if au, err = s.push(s.buf); au != nil {
			aus = append(aus, au)
		}
	}
	if len(s.au) > 0 {
		aus = append(aus, s.au)
	}
	*s = Splitter{}
	return aus, err
}

// push parses one start-code-prefixed NAL unit.
func (s *Splitter) push(segment []byte) (AccessUnit, error) {
	segment = bytes.TrimRight(segment, "\x00")
	if bytes.HasSuffix(segment, startCode) {
		return nil, nil
	}
	var nalus h264.AnnexB
	if err := nalus.Unmarshal(segment); err != nil {
		return nil, fmt.Errorf("annexb: %w", err)
	}

	var done AccessUnit
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		if s.hasVCL && startsAccessUnit(nalu) {
			done = s.au
			s.au = nil
			s.hasVCL = false
		}
		// The NAL unit must outlive the internal buffer.
		s.au = append(s.au, bytes.Clone(nalu))
		if isVCL(typeOf(nalu)) {
			s.hasVCL = true
		}
	}
	return done, nil
}

// findStartCode returns the offset of the first start code at or after from,
// including the leading zero of a 4-byte start code.
func findStartCode(b []byte, from int) int {
	if from >= len(b) {
		return -1
	}
	i := bytes.Index(b[from:], startCode)
	if i < 0 {
		return -1
	}
	i += from
	if i > from && b[i-1] == 0 {
		i--
	}
	return i
}

// IsAnnexB reports whether head starts like an H.264 Annex-B stream.
func IsAnnexB(head []byte) bool {
	i := 0
	for i < len(head) && i < 4 && head[i] == 0 {
		i++
	}
	if i < 2 || i >= len(head) || head[i] != 1 || i+1 >= len(head) {
		return false
	}
	header := head[i+1]
	if header&0x80 != 0 {
		return false
	}
	switch h264.NALUType(header & 0x1f) {
	case h264.NALUTypeAccessUnitDelimiter, h264.NALUTypeSPS, h264.NALUTypeSEI, h264.NALUTypeIDR:
		return true
	}
	return false
}

// FrameRate returns the frame rate declared by the VUI timing of an SPS.
func FrameRate(sps []byte) (timebase.Rational, bool) {
	var s h264.SPS
	if err := s.Unmarshal(sps); err != nil {
		return timebase.Rational{}, false
	}
	return rateFromFPS(s.FPS())
}

func rateFromFPS(fps float64) (timebase.Rational, bool) {
	if fps <= 0 || math.IsInf(fps, 0) || math.IsNaN(fps) {
		return timebase.Rational{}, false
	}
	// NTSC rates are declared as n*1000/1001.
	if ntsc := fps * 1001 / 1000; math.Abs(ntsc-math.Round(ntsc)) < 1e-3 {
		return timebase.New(int64(math.Round(ntsc))*1000, 1001).Reduce(), true
	}
	return timebase.New(int64(math.Round(fps*1000)), 1000).Reduce(), true
}

// Dimensions returns the picture size declared by an SPS.
func Dimensions(sps []byte) (width int, height int, ok bool) {
	var s h264.SPS
	if err := s.Unmarshal(sps); err != nil {
		return 0, 0, false
	}
	return s.Width(), s.Height(), true
}
