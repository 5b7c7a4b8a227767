package probe_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Darkness4/go-remux/testutils/media"
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/probe"
	"github.com/Darkness4/go-remux/video/remux"
	"github.com/stretchr/testify/require"
)

func fixtures(t *testing.T) (h264 string, ts string) {
	h264 = media.WriteFile(t, "input.h264", media.RawH264(5))
	ts = filepath.Join(t.TempDir(), "input.ts")
	require.NoError(t, remux.Do(context.Background(), h264, ts))
	return h264, ts
}

func TestDo(t *testing.T) {
	h264, ts := fixtures(t)

	err := probe.Do([]string{h264, ts}, probe.WithQuiet())
	require.NoError(t, err)
}

func TestDoEmpty(t *testing.T) {
	empty := media.WriteFile(t, "empty.h264", nil)

	err := probe.Do([]string{empty}, probe.WithQuiet())
	require.Error(t, err)
}

func TestStreams(t *testing.T) {
	h264, _ := fixtures(t)

	streams, err := probe.Streams(h264)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	require.Equal(t, container.MediaTypeVideo, streams[0].MediaType)
	require.Equal(t, "h264", streams[0].Codec.CodecName)
	require.Equal(t, 1920, streams[0].Codec.Width)
}

func TestContainsVideoOrAudio(t *testing.T) {
	h264, ts := fixtures(t)

	tests := []struct {
		input string
		want  bool
	}{
		{h264, true},
		{ts, true},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.input), func(t *testing.T) {
			ret, err := probe.ContainsVideoOrAudio(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, ret)

			ret, err = probe.IsVideo(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, ret)
		})
	}
}

func TestIsMPEGTSOrAAC(t *testing.T) {
	h264, ts := fixtures(t)

	tests := []struct {
		input string
		want  bool
	}{
		{ts, true},
		{h264, false},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.input), func(t *testing.T) {
			ret, err := probe.IsMPEGTSOrAAC(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, ret)
		})
	}
}
