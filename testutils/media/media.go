// Package media provides small media fixtures for tests.
package media

import (
	"os"
	"path/filepath"
	"testing"
)

// H.264 Baseline NAL units of a 1920x1080 stream.
var (
	SPS    = []byte{0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02, 0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04, 0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9, 0x20}
	PPS    = []byte{0x68, 0xce, 0x38, 0x80}
	IDR    = []byte{0x65, 0x88, 0x84, 0x00, 0x10}
	PFrame = []byte{0x41, 0x9a, 0x24, 0x8c, 0x09}
	AUD    = []byte{0x09, 0xf0}
)

// AnnexB joins NAL units with 4-byte start codes.
func AnnexB(nalus ...[]byte) []byte {
	var out []byte
	for _, nalu := range nalus {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, nalu...)
	}
	return out
}

// RawH264 returns an elementary stream of one key frame followed by frames
// P-frames, each access unit starting with a delimiter.
func RawH264(frames int) []byte {
	out := AnnexB(AUD, SPS, PPS, IDR)
	for range frames {
		out = append(out, AnnexB(AUD, PFrame)...)
	}
	return out
}

// WriteFile writes data to name in a temporary directory and returns its
// path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
