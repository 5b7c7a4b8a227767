//go:build libav

package format

import "github.com/Darkness4/go-remux/video/container/libav"

func init() {
	backends = append(backends, libav.Register)
}
