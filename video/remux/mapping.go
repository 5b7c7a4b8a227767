package remux

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Darkness4/go-remux/video/container"
)

// Dropped marks a source stream that is not propagated.
const Dropped = -1

// Filter reports whether a source stream is propagated.
type Filter func(st *container.StreamDescriptor) bool

// MediaTypeFilter propagates the streams of the given media types.
func MediaTypeFilter(types ...container.MediaType) Filter {
	return func(st *container.StreamDescriptor) bool {
		return slices.Contains(types, st.MediaType)
	}
}

// DefaultFilter propagates video, audio and subtitle streams.
var DefaultFilter = MediaTypeFilter(
	container.MediaTypeVideo,
	container.MediaTypeAudio,
	container.MediaTypeSubtitle,
)

// StreamMapping maps each source stream index to a destination stream index
// or Dropped. Destination indices are 0..k-1 in source order.
type StreamMapping []int

// MapStreams creates one destination stream per propagated source stream and
// copies its codec parameters. The codec tag is cleared since it is only
// meaningful in the source container.
func MapStreams(
	src []*container.StreamDescriptor,
	out container.Output,
	filter Filter,
) (StreamMapping, error) {
	if filter == nil {
		filter = DefaultFilter
	}
	mapping := make(StreamMapping, len(src))
	next := 0
	for i, in := range src {
		if !filter(in) {
			mapping[i] = Dropped
			continue
		}
		mapping[i] = next
		next++

		st, err := out.NewStream()
		if err != nil {
			return nil, fmt.Errorf("stream %d: new stream: %w", i, err)
		}
		if err := out.CopyCodecParameters(st, in); err != nil {
			return nil, fmt.Errorf("stream %d: copy codec parameters: %w", i, err)
		}
		if st.Codec != nil {
			st.Codec.CodecTag = 0
		}
		if !st.FrameRate.IsValid() {
			st.FrameRate = in.FrameRate
		}
	}
	return mapping, nil
}

// Lookup returns the destination index of a source stream. Unknown streams
// are dropped.
func (m StreamMapping) Lookup(src int) (int, bool) {
	if src < 0 || src >= len(m) || m[src] == Dropped {
		return Dropped, false
	}
	return m[src], true
}

// Propagated returns the number of destination streams.
func (m StreamMapping) Propagated() int {
	n := 0
	for _, dst := range m {
		if dst != Dropped {
			n++
		}
	}
	return n
}

func (m StreamMapping) String() string {
	var b strings.Builder
	for i, dst := range m {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(i))
		b.WriteString("->")
		if dst == Dropped {
			b.WriteByte('x')
		} else {
			b.WriteString(strconv.Itoa(dst))
		}
	}
	return b.String()
}
