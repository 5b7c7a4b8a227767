// Package mkv writes Matroska/WebM files with ebml-go.
package mkv

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
)

// TimeBase is the block timestamp unit (default TimecodeScale of 1ms).
var TimeBase = timebase.New(1, 1000)

const (
	trackTypeVideo    = 1
	trackTypeAudio    = 2
	trackTypeSubtitle = 0x11
)

var codecIDs = map[string]string{
	"h264":   "V_MPEG4/ISO/AVC",
	"hevc":   "V_MPEGH/ISO/HEVC",
	"vp8":    "V_VP8",
	"vp9":    "V_VP9",
	"av1":    "V_AV1",
	"aac":    "A_AAC",
	"opus":   "A_OPUS",
	"vorbis": "A_VORBIS",
	"mp3":    "A_MPEG/L3",
	"flac":   "A_FLAC",
	"subrip": "S_TEXT/UTF8",
	"ass":    "S_TEXT/ASS",
	"webvtt": "S_TEXT/WEBVTT",
}

// Register adds the matroska and webm muxers to reg.
func Register(reg *container.Registry) {
	reg.RegisterMuxer(container.Muxer{
		Name:       "matroska",
		Extensions: []string{".mkv", ".mka"},
		Create: func() (container.Output, error) {
			return &Output{}, nil
		},
	})
	reg.RegisterMuxer(container.Muxer{
		Name:       "webm",
		Extensions: []string{".webm"},
		Create: func() (container.Output, error) {
			return &Output{}, nil
		},
	})
}

// sinkCloser keeps the sink open when ebml-go closes its writer and reports
// when the writer goroutine is done.
type sinkCloser struct {
	*sink.Sink
	once sync.Once
	done chan struct{}
}

func (s *sinkCloser) Close() error {
	err := s.Flush()
	s.once.Do(func() { close(s.done) })
	return err
}

// Output is a Matroska muxer. Blocks are written in call order.
type Output struct {
	sink    *sink.Sink
	streams []*container.StreamDescriptor
	writers []webm.BlockWriteCloser

	closer *sinkCloser
	failed chan struct{}
	mu     sync.Mutex
	fatal  error

	freed bool
}

// SetIO implements container.Output.
func (o *Output) SetIO(s *sink.Sink) error {
	if o.freed {
		return container.ErrClosed
	}
	o.sink = s
	return nil
}

// NewStream implements container.Output.
func (o *Output) NewStream() (*container.StreamDescriptor, error) {
	if o.freed {
		return nil, container.ErrClosed
	}
	if o.writers != nil {
		return nil, errors.New("mkv: header already written")
	}
	st := &container.StreamDescriptor{Index: len(o.streams)}
	o.streams = append(o.streams, st)
	return st, nil
}

// CopyCodecParameters implements container.Output.
func (o *Output) CopyCodecParameters(dst, src *container.StreamDescriptor) error {
	if src.Codec == nil {
		return fmt.Errorf("mkv: stream %d: %w", src.Index, container.ErrUnsupportedCodec)
	}
	if _, ok := codecIDs[src.Codec.CodecName]; !ok {
		return fmt.Errorf("mkv: stream %d: %w: %s", src.Index, container.ErrUnsupportedCodec, src.Codec.CodecName)
	}
	dst.MediaType = src.MediaType
	dst.FrameRate = src.FrameRate
	dst.Codec = src.Codec.Copy()
	return nil
}

// Streams implements container.Output.
func (o *Output) Streams() []*container.StreamDescriptor {
	return o.streams
}

func trackEntry(st *container.StreamDescriptor) webm.TrackEntry {
	n := uint64(st.Index + 1)
	entry := webm.TrackEntry{
		Name:         st.MediaType.String(),
		TrackNumber:  n,
		TrackUID:     n,
		CodecID:      codecIDs[st.Codec.CodecName],
		CodecPrivate: st.Codec.Extradata,
	}
	switch st.MediaType {
	case container.MediaTypeVideo:
		entry.TrackType = trackTypeVideo
		entry.Video = &webm.Video{
			PixelWidth:  uint64(st.Codec.Width),
			PixelHeight: uint64(st.Codec.Height),
		}
		if st.FrameRate.IsValid() && st.FrameRate.Num > 0 {
			entry.DefaultDuration = uint64(timebase.RescaleQ(1, st.FrameRate.Invert(), timebase.Nanoseconds))
		}
	case container.MediaTypeAudio:
		entry.TrackType = trackTypeAudio
		entry.Audio = &webm.Audio{
			SamplingFrequency: float64(st.Codec.SampleRate),
			Channels:          uint64(st.Codec.Channels),
		}
	case container.MediaTypeSubtitle:
		entry.TrackType = trackTypeSubtitle
	}
	return entry
}

// WriteHeader implements container.Output.
func (o *Output) WriteHeader() error {
	if o.sink == nil {
		return container.ErrNoIO
	}
	tracks := make([]webm.TrackEntry, 0, len(o.streams))
	for _, st := range o.streams {
		st.TimeBase = TimeBase
		tracks = append(tracks, trackEntry(st))
	}
	o.closer = &sinkCloser{Sink: o.sink, done: make(chan struct{})}
	o.failed = make(chan struct{})
	writers, err := webm.NewSimpleBlockWriter(
		o.closer,
		tracks,
		mkvcore.WithOnFatalHandler(func(err error) {
			o.mu.Lock()
			defer o.mu.Unlock()
			if o.fatal == nil {
				o.fatal = err
				close(o.failed)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("mkv: write header: %w", err)
	}
	o.writers = writers
	return nil
}

func (o *Output) fatalErr() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fatal
}

// WriteInterleaved implements container.Output.
func (o *Output) WriteInterleaved(pkt *container.Packet) error {
	if o.writers == nil {
		return container.ErrNoIO
	}
	if err := o.fatalErr(); err != nil {
		return fmt.Errorf("mkv: %w", err)
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(o.writers) {
		return fmt.Errorf("mkv: packet for unknown stream %d", pkt.StreamIndex)
	}
	ts := pkt.PTS
	if ts == timebase.NoPTS {
		ts = pkt.DTS
	}
	if ts == timebase.NoPTS {
		return fmt.Errorf("mkv: stream %d: packet has no timestamp", pkt.StreamIndex)
	}
	if _, err := o.writers[pkt.StreamIndex].Write(pkt.KeyFrame, ts, pkt.Data); err != nil {
		return fmt.Errorf("mkv: write block: %w", err)
	}
	return nil
}

// WriteTrailer closes every track and waits for the last cluster to be
// written.
func (o *Output) WriteTrailer() error {
	if o.writers == nil {
		return container.ErrNoIO
	}
	var errs []error
	for _, w := range o.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	select {
	case <-o.closer.done:
	case <-o.failed:
	}
	if err := o.fatalErr(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("mkv: write trailer: %w", err)
	}
	return nil
}

// NoFile implements container.Output.
func (o *Output) NoFile() bool {
	return false
}

// CloseIO implements container.Output.
func (o *Output) CloseIO() error {
	if o.sink == nil {
		return nil
	}
	err := o.sink.Flush()
	o.sink = nil
	return err
}

// Free implements container.Output.
func (o *Output) Free() error {
	o.freed = true
	o.sink = nil
	o.writers = nil
	o.streams = nil
	return nil
}

var _ container.Output = (*Output)(nil)
