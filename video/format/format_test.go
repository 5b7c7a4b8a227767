//go:build !libav

package format_test

import (
	"testing"

	"github.com/Darkness4/go-remux/video/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg := format.Default()
	require.Same(t, reg, format.Default())

	demuxers, muxers := reg.Formats()
	assert.Subset(t, demuxers, []string{"mp4", "mpegts", "flv", "adts", "h264"})
	assert.Subset(t, muxers, []string{"mp4", "mpegts", "flv", "adts", "matroska", "webm"})
}

func TestGuessFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{filename: "out.mp4", expected: "mp4"},
		{filename: "out.m4a", expected: "mp4"},
		{filename: "out.ts", expected: "mpegts"},
		{filename: "out.mkv", expected: "matroska"},
		{filename: "out.webm", expected: "webm"},
		{filename: "out.aac", expected: "adts"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := format.Default().GuessFormat(tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
