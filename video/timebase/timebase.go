// Package timebase implements rational time bases and timestamp rescaling.
package timebase

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// NoPTS marks a timestamp that was not supplied by the source.
const NoPTS int64 = math.MinInt64

// TimeUnit is the number of ticks per second of the global time unit.
const TimeUnit = 1_000_000

// ErrInvalidRational is returned when a rational cannot be parsed.
var ErrInvalidRational = errors.New("invalid rational")

// Rational is a fraction of seconds per tick.
type Rational struct {
	Num int64
	Den int64
}

// New returns num/den.
func New(num, den int64) Rational {
	return Rational{Num: num, Den: den}
}

// Microseconds is the time base of TimeUnit.
var Microseconds = Rational{Num: 1, Den: TimeUnit}

// Nanoseconds is the time base of time.Duration.
var Nanoseconds = Rational{Num: 1, Den: 1_000_000_000}

// IsValid reports whether the rational has a positive numerator and denominator.
func (r Rational) IsValid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float64 returns the value of the rational. An invalid rational returns 0.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns den/num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// Reduce returns the irreducible form of r.
func (r Rational) Reduce() Rational {
	g := gcd(abs(r.Num), abs(r.Den))
	if g <= 1 {
		return r
	}
	return Rational{Num: r.Num / g, Den: r.Den / g}
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Parse reads "num/den", "num:den" or a plain integer.
func Parse(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "/:")
	if sep < 0 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("%w %q: %w", ErrInvalidRational, s, err)
		}
		return Rational{Num: n, Den: 1}, nil
	}
	num, err := strconv.ParseInt(s[:sep], 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("%w %q: %w", ErrInvalidRational, s, err)
	}
	den, err := strconv.ParseInt(s[sep+1:], 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("%w %q: %w", ErrInvalidRational, s, err)
	}
	if den == 0 {
		return Rational{}, fmt.Errorf("%w %q: zero denominator", ErrInvalidRational, s)
	}
	return Rational{Num: num, Den: den}, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rational) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Rounding selects how RescaleRnd rounds.
type Rounding int

const (
	// RoundZero rounds toward zero.
	RoundZero Rounding = 0
	// RoundInf rounds away from zero.
	RoundInf Rounding = 1
	// RoundDown rounds toward -infinity.
	RoundDown Rounding = 2
	// RoundUp rounds toward +infinity.
	RoundUp Rounding = 3
	// RoundNearInf rounds to nearest, halfway cases away from zero.
	RoundNearInf Rounding = 5
	// RoundPassMinMax passes NoPTS and math.MaxInt64 through unchanged.
	// It is a flag and must be or'ed with another mode.
	RoundPassMinMax Rounding = 8192
)

// RescaleRnd returns a*b/c rounded with rnd.
//
// Results that do not fit in an int64 are clamped to math.MaxInt64 or
// -math.MaxInt64. Invalid arguments (c <= 0, b < 0, unknown mode) return
// NoPTS.
func RescaleRnd(a, b, c int64, rnd Rounding) int64 {
	mode := rnd &^ RoundPassMinMax
	if c <= 0 || b < 0 || mode < 0 || mode > RoundNearInf || mode == 4 {
		return NoPTS
	}
	if rnd&RoundPassMinMax != 0 && (a == math.MinInt64 || a == math.MaxInt64) {
		return a
	}

	if a < 0 {
		if a == math.MinInt64 {
			a = -math.MaxInt64
		}
		// Mirror the rounding direction: down <-> up, zero and inf stay.
		mirrored := mode ^ ((mode >> 1) & 1)
		return -RescaleRnd(-a, b, c, mirrored)
	}

	var r uint64
	switch {
	case mode == RoundNearInf:
		r = uint64(c / 2)
	case mode&1 != 0:
		r = uint64(c - 1)
	}

	hi, lo := bits.Mul64(uint64(a), uint64(b))
	var carry uint64
	lo, carry = bits.Add64(lo, r, 0)
	hi += carry
	if hi >= uint64(c) {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uint64(c))
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// Rescale returns a*b/c rounded to nearest.
func Rescale(a, b, c int64) int64 {
	return RescaleRnd(a, b, c, RoundNearInf)
}

// RescaleQ converts a from time base bq to time base cq, rounding to nearest.
func RescaleQ(a int64, bq, cq Rational) int64 {
	return RescaleQRnd(a, bq, cq, RoundNearInf)
}

// RescaleQRnd converts a from time base bq to time base cq with rnd.
func RescaleQRnd(a int64, bq, cq Rational, rnd Rounding) int64 {
	return RescaleRnd(a, bq.Num*cq.Den, cq.Num*bq.Den, rnd)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
