package remux_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/remux"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDoRemovesOutputOnSetupFailure(t *testing.T) {
	tests := []struct {
		title   string
		input   func(dir string) string
		streams []*container.StreamDescriptor
		phase   remux.Phase
		exists  bool
		content string
	}{
		{
			title: "missing input",
			input: func(dir string) string { return filepath.Join(dir, "missing.src") },
			phase: remux.PhaseSetup,
		},
		{
			title: "no stream to propagate",
			streams: []*container.StreamDescriptor{
				{Index: 0, MediaType: container.MediaTypeData, TimeBase: timebase.New(1, 1000)},
			},
			phase: remux.PhaseSetup,
		},
		{
			title:   "success keeps the output",
			streams: []*container.StreamDescriptor{videoStream(0, timebase.New(1, 1000))},
			exists:  true,
			content: "HDRframe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			dir := t.TempDir()
			j := &journal{}
			out := &fakeOutput{j: j, timeBase: timebase.New(1, 1000)}
			reg := newRegistry(out)
			reg.RegisterDemuxer(container.Demuxer{
				Name:       "src",
				Extensions: []string{".src"},
				Probe:      func([]byte) bool { return true },
				Open: func(rs io.ReadSeeker) (container.Input, error) {
					in := &fakeInput{
						j:       j,
						streams: tt.streams,
						packets: []container.Packet{packet(0, 0, "frame")},
					}
					if c, ok := rs.(io.Closer); ok {
						in.src = c
					}
					return in, nil
				},
			})

			input := filepath.Join(dir, "input.src")
			if tt.input != nil {
				input = tt.input(dir)
			} else {
				require.NoError(t, os.WriteFile(input, []byte("source"), 0o644))
			}
			output := filepath.Join(dir, "output.fake")

			err := remux.Do(
				context.Background(),
				input,
				output,
				remux.WithRegistry(reg),
				remux.WithLogger(zerolog.Nop()),
			)

			if !tt.exists {
				require.Error(t, err)
				phase, ok := remux.PhaseOf(err)
				require.True(t, ok)
				require.Equal(t, tt.phase, phase)
				require.NoFileExists(t, output)
				return
			}
			require.NoError(t, err)
			b, err := os.ReadFile(output)
			require.NoError(t, err)
			require.Equal(t, tt.content, string(b))
		})
	}
}
