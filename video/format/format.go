// Package format wires the container libraries into a registry.
package format

import (
	"sync"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/container/joy"
	"github.com/Darkness4/go-remux/video/container/mkv"
)

// backends are registered after the pure-Go libraries so that they take
// precedence.
var backends []func(*container.Registry)

// RegisterAll registers every available container library into reg.
func RegisterAll(reg *container.Registry) {
	joy.Register(reg)
	mkv.Register(reg)
	for _, register := range backends {
		register(reg)
	}
}

// Default returns the process-wide registry.
var Default = sync.OnceValue(func() *container.Registry {
	reg := container.NewRegistry()
	RegisterAll(reg)
	return reg
})
