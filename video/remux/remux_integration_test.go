//go:build integration

package remux_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Darkness4/go-remux/video/probe"
	"github.com/Darkness4/go-remux/video/remux"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

// REMUX_INPUT is a MPEG-TS recording with audio and video.
func TestDoRecording(t *testing.T) {
	_ = godotenv.Load(".env.test")
	input := os.Getenv("REMUX_INPUT")
	if input == "" {
		t.Skip("REMUX_INPUT is not set")
	}
	dir := t.TempDir()

	for _, tt := range []struct {
		output string
		opts   []remux.Option
	}{
		{output: "output.mp4"},
		{output: "output.m4a", opts: []remux.Option{remux.WithAudioOnly()}},
		{output: "output.mkv"},
	} {
		t.Run(tt.output, func(t *testing.T) {
			output := filepath.Join(dir, tt.output)
			require.NoError(t, remux.Do(context.Background(), input, output, tt.opts...))
			require.NoError(t, probe.Do([]string{output}, probe.WithQuiet()))
		})
	}
}
