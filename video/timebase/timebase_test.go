package timebase_test

import (
	"math"
	"testing"

	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/stretchr/testify/require"
)

func TestRescaleQRnd(t *testing.T) {
	tests := []struct {
		title    string
		a        int64
		from, to timebase.Rational
		rnd      timebase.Rounding
		expected int64
	}{
		{
			title:    "90kHz to milliseconds",
			a:        900,
			from:     timebase.New(1, 90000),
			to:       timebase.New(1, 1000),
			rnd:      timebase.RoundNearInf | timebase.RoundPassMinMax,
			expected: 10,
		},
		{
			title:    "round half away from zero",
			a:        45,
			from:     timebase.New(1, 90000),
			to:       timebase.New(1, 1000),
			rnd:      timebase.RoundNearInf,
			expected: 1,
		},
		{
			title:    "negative round half away from zero",
			a:        -45,
			from:     timebase.New(1, 90000),
			to:       timebase.New(1, 1000),
			rnd:      timebase.RoundNearInf,
			expected: -1,
		},
		{
			title:    "round down on negative",
			a:        -1,
			from:     timebase.New(1, 90000),
			to:       timebase.New(1, 1000),
			rnd:      timebase.RoundDown,
			expected: -1,
		},
		{
			title:    "round up on negative",
			a:        -1,
			from:     timebase.New(1, 90000),
			to:       timebase.New(1, 1000),
			rnd:      timebase.RoundUp,
			expected: 0,
		},
		{
			title:    "NoPTS passes through",
			a:        timebase.NoPTS,
			from:     timebase.New(1, 90000),
			to:       timebase.New(1, 1000),
			rnd:      timebase.RoundNearInf | timebase.RoundPassMinMax,
			expected: timebase.NoPTS,
		},
		{
			title:    "MaxInt64 passes through",
			a:        math.MaxInt64,
			from:     timebase.New(1, 1000),
			to:       timebase.New(1, 90000),
			rnd:      timebase.RoundNearInf | timebase.RoundPassMinMax,
			expected: math.MaxInt64,
		},
		{
			title:    "overflow clamps",
			a:        math.MaxInt64 / 2,
			from:     timebase.New(1, 1000),
			to:       timebase.New(1, 90000),
			rnd:      timebase.RoundNearInf,
			expected: math.MaxInt64,
		},
		{
			title:    "negative overflow clamps",
			a:        -(math.MaxInt64 / 2),
			from:     timebase.New(1, 1000),
			to:       timebase.New(1, 90000),
			rnd:      timebase.RoundNearInf,
			expected: -math.MaxInt64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			actual := timebase.RescaleQRnd(tt.a, tt.from, tt.to, tt.rnd)
			require.Equal(t, tt.expected, actual)
		})
	}
}

func TestRescaleRndInvalid(t *testing.T) {
	require.Equal(t, timebase.NoPTS, timebase.RescaleRnd(1, 1, 0, timebase.RoundNearInf))
	require.Equal(t, timebase.NoPTS, timebase.RescaleRnd(1, -1, 1, timebase.RoundNearInf))
	require.Equal(t, timebase.NoPTS, timebase.RescaleRnd(1, 1, 1, timebase.Rounding(4)))
}

func TestRescaleRoundTrip(t *testing.T) {
	bases := []timebase.Rational{
		timebase.New(1, 1000),
		timebase.New(1, 44100),
		timebase.New(1, 48000),
		timebase.New(1, 90000),
		timebase.New(1, 1200000),
		timebase.New(1001, 30000),
	}

	values := []int64{0, 1, 7, 1000, 12345, 987654321, -1, -4242}

	for _, a := range bases {
		for _, b := range bases {
			// Converting into a coarser base loses precision by design of the
			// coarser base; the bound is one tick of the coarser side.
			coarse := a
			if b.Float64() > a.Float64() {
				coarse = b
			}
			tolerance := timebase.RescaleRnd(1, coarse.Num*a.Den, a.Num*coarse.Den, timebase.RoundUp)
			for _, v := range values {
				there := timebase.RescaleQ(v, a, b)
				back := timebase.RescaleQ(there, b, a)
				diff := back - v
				if diff < 0 {
					diff = -diff
				}
				require.LessOrEqualf(t, diff, tolerance, "%d %s -> %s -> %s", v, a, b, a)
				if b.Float64() <= a.Float64() {
					require.LessOrEqualf(t, diff, int64(1), "%d %s -> %s -> %s", v, a, b, a)
				}
			}
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected timebase.Rational
		isError  bool
	}{
		{input: "25", expected: timebase.New(25, 1)},
		{input: "30000/1001", expected: timebase.New(30000, 1001)},
		{input: "1:90000", expected: timebase.New(1, 90000)},
		{input: "1/0", isError: true},
		{input: "abc", isError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			actual, err := timebase.Parse(tt.input)
			if tt.isError {
				require.ErrorIs(t, err, timebase.ErrInvalidRational)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, actual)
		})
	}
}

func TestRationalHelpers(t *testing.T) {
	require.Equal(t, timebase.New(1, 25), timebase.New(4, 100).Reduce())
	require.Equal(t, timebase.New(25, 1), timebase.New(1, 25).Invert())
	require.True(t, timebase.New(1, 25).IsValid())
	require.False(t, timebase.New(0, 1).IsValid())
	require.InDelta(t, 0.04, timebase.New(1, 25).Float64(), 1e-12)
	require.Equal(t, "1/90000", timebase.New(1, 90000).String())
}
