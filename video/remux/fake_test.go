package remux_test

import (
	"errors"
	"io"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/Darkness4/go-remux/video/timebase"
)

// journal records the calls made on the fakes, in order.
type journal struct {
	calls []string
}

func (j *journal) add(call string) {
	j.calls = append(j.calls, call)
}

type fakeInput struct {
	j        *journal
	streams  []*container.StreamDescriptor
	packets  []container.Packet
	probeErr error
	readErr  error
	src      io.Closer
	closed   int
}

func (in *fakeInput) Probe() error {
	in.j.add("input.probe")
	return in.probeErr
}

func (in *fakeInput) Streams() []*container.StreamDescriptor {
	return in.streams
}

func (in *fakeInput) ReadPacket(pkt *container.Packet) error {
	if len(in.packets) == 0 {
		if in.readErr != nil {
			return in.readErr
		}
		return io.EOF
	}
	*pkt = in.packets[0]
	in.packets = in.packets[1:]
	return nil
}

func (in *fakeInput) Close() error {
	in.closed++
	in.j.add("input.close")
	if in.src != nil {
		return in.src.Close()
	}
	return nil
}

type fakeOutput struct {
	j        *journal
	timeBase timebase.Rational
	noFile   bool

	sink       *sink.Sink
	streams    []*container.StreamDescriptor
	written    []container.Packet
	headerErr  error
	trailerErr error
	// failAt fails the n-th write (1-based), 0 never fails.
	failAt  int
	seekEnd int64
	freed   int
}

var errWrite = errors.New("write failed")

func (o *fakeOutput) SetIO(s *sink.Sink) error {
	o.j.add("output.setio")
	o.sink = s
	return nil
}

func (o *fakeOutput) NewStream() (*container.StreamDescriptor, error) {
	st := &container.StreamDescriptor{Index: len(o.streams)}
	o.streams = append(o.streams, st)
	return st, nil
}

func (o *fakeOutput) CopyCodecParameters(dst, src *container.StreamDescriptor) error {
	dst.MediaType = src.MediaType
	dst.Codec = src.Codec.Copy()
	return nil
}

func (o *fakeOutput) Streams() []*container.StreamDescriptor {
	return o.streams
}

func (o *fakeOutput) WriteHeader() error {
	o.j.add("output.header")
	if o.headerErr != nil {
		return o.headerErr
	}
	for _, st := range o.streams {
		st.TimeBase = o.timeBase
	}
	if o.sink != nil {
		end, err := o.sink.Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}
		o.seekEnd = end
		if _, err := o.sink.Write([]byte("HDR")); err != nil {
			return err
		}
	}
	return nil
}

func (o *fakeOutput) WriteInterleaved(pkt *container.Packet) error {
	if o.failAt > 0 && len(o.written)+1 == o.failAt {
		return errWrite
	}
	cp := *pkt
	cp.Data = append([]byte(nil), pkt.Data...)
	o.written = append(o.written, cp)
	if o.sink != nil {
		if _, err := o.sink.Write(pkt.Data); err != nil {
			return err
		}
	}
	return nil
}

func (o *fakeOutput) WriteTrailer() error {
	o.j.add("output.trailer")
	return o.trailerErr
}

func (o *fakeOutput) NoFile() bool {
	return o.noFile
}

func (o *fakeOutput) CloseIO() error {
	o.j.add("output.closeio")
	if o.sink == nil {
		return nil
	}
	err := o.sink.Flush()
	o.sink = nil
	return err
}

func (o *fakeOutput) Free() error {
	o.freed++
	o.j.add("output.free")
	return nil
}

// closingBuffer is a memory destination that records its close.
type closingBuffer struct {
	*sink.MemoryBuffer
	j *journal
}

func (b *closingBuffer) Close() error {
	b.j.add("sink.close")
	return nil
}

func newRegistry(out *fakeOutput) *container.Registry {
	reg := container.NewRegistry()
	reg.RegisterMuxer(container.Muxer{
		Name:       "fake",
		Extensions: []string{".fake"},
		Create: func() (container.Output, error) {
			return out, nil
		},
	})
	return reg
}

func videoStream(index int, tb timebase.Rational) *container.StreamDescriptor {
	return &container.StreamDescriptor{
		Index:     index,
		MediaType: container.MediaTypeVideo,
		TimeBase:  tb,
		Codec:     &container.CodecParameters{CodecName: "h264", CodecTag: 0x31637661},
	}
}

func packet(stream int, pts int64, data string) container.Packet {
	return container.Packet{
		Data:        []byte(data),
		StreamIndex: stream,
		PTS:         pts,
		DTS:         pts,
		Pos:         1234,
	}
}

var errDestination = errors.New("destination failed")

// failingDestination accepts limit bytes and fails every write after that.
type failingDestination struct {
	j      *journal
	limit  int
	got    []byte
	closed int
}

func (d *failingDestination) Write(p []byte) (int, error) {
	if len(d.got)+len(p) > d.limit {
		return 0, errDestination
	}
	d.got = append(d.got, p...)
	return len(p), nil
}

func (d *failingDestination) Close() error {
	d.closed++
	d.j.add("sink.close")
	return nil
}
