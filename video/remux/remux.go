// Package remux copies the encoded streams of a source container into another
// container without re-encoding them.
package remux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Darkness4/go-remux/telemetry/metrics"
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/format"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "video/remux"

// State is the step a Remuxer is at.
type State int32

const (
	// StateUnopened is the state before the source is opened.
	StateUnopened State = iota
	// StateInputOpened is the state once the source is open.
	StateInputOpened
	// StateStreamsMapped is the state once the destination streams exist.
	StateStreamsMapped
	// StateHeaderWritten is the state once the destination header is written.
	StateHeaderWritten
	// StateStreaming is the state while packets are copied.
	StateStreaming
	// StateTrailerWritten is the state once the destination is finalized.
	StateTrailerWritten
	// StateClosed is the state after a successful run.
	StateClosed
	// StateFailed is the state after a failed run.
	StateFailed
)

// String returns a string representation of a State.
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "UNOPENED"
	case StateInputOpened:
		return "INPUT_OPENED"
	case StateStreamsMapped:
		return "STREAMS_MAPPED"
	case StateHeaderWritten:
		return "HEADER_WRITTEN"
	case StateStreaming:
		return "STREAMING"
	case StateTrailerWritten:
		return "TRAILER_WRITTEN"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Stats describes a run.
type Stats struct {
	Streams           int           `json:"streams"`
	PacketsRead       int64         `json:"packetsRead"`
	PacketsWritten    int64         `json:"packetsWritten"`
	PacketsDropped    int64         `json:"packetsDropped"`
	BytesWritten      int64         `json:"bytesWritten"`
	FrameIndex        int64         `json:"frameIndex"`
	SetupDuration     time.Duration `json:"setupDuration"`
	StreamingDuration time.Duration `json:"streamingDuration"`
	TeardownDuration  time.Duration `json:"teardownDuration"`
}

// Remuxer runs remuxes. Runs of one Remuxer must not overlap; use one
// Remuxer per concurrent run.
type Remuxer struct {
	registry *container.Registry
	opts     *Options
	state    atomic.Int32
}

// New returns a Remuxer. A nil registry selects the registry of the options,
// or the default one.
func New(registry *container.Registry, opts ...Option) *Remuxer {
	o := applyOptions(opts)
	if registry == nil {
		registry = o.registry
	}
	if registry == nil {
		registry = format.Default()
	}
	return &Remuxer{
		registry: registry,
		opts:     o,
	}
}

// State returns the current state of the run.
func (r *Remuxer) State() State {
	return State(r.state.Load())
}

func (r *Remuxer) setState(s State) {
	r.state.Store(int32(s))
}

func (r *Remuxer) logger() zerolog.Logger {
	if r.opts.log != nil {
		return *r.opts.log
	}
	return log.Logger
}

// Run remuxes the source at input into dst using the muxer named format.
//
// dst is owned by the run and closed on return.
func (r *Remuxer) Run(
	ctx context.Context,
	input string,
	format string,
	dst *sink.Sink,
) (Stats, error) {
	logger := r.logger().With().Str("input", input).Str("format", format).Logger()
	return r.execute(ctx, func() (container.Input, error) {
		return r.registry.Open(input)
	}, format, dst, logger)
}

// RunInput is Run on an already opened source. in must not be probed yet and
// is closed on return.
func (r *Remuxer) RunInput(
	ctx context.Context,
	in container.Input,
	format string,
	dst *sink.Sink,
) (Stats, error) {
	logger := r.logger().With().Str("format", format).Logger()
	return r.execute(ctx, func() (container.Input, error) {
		return in, nil
	}, format, dst, logger)
}

func (r *Remuxer) execute(
	ctx context.Context,
	open func() (container.Input, error),
	format string,
	dst *sink.Sink,
	logger zerolog.Logger,
) (Stats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "remux.Run", trace.WithAttributes(
		attribute.String("format", format),
	))
	defer span.End()
	attrs := metric.WithAttributes(attribute.String("format", format))
	metrics.Remux.Runs.Add(ctx, 1, attrs)
	end := metrics.TimeStartRecording(ctx, metrics.Remux.CompletionTime, time.Second, attrs)
	defer end()

	r.setState(StateUnopened)
	p := &pipeline{
		r:          r,
		sink:       dst,
		log:        logger,
		normalizer: NewNormalizer(r.opts.frameRate),
	}
	err := p.run(ctx, open, format)

	metrics.Remux.PacketsWritten.Add(ctx, p.stats.PacketsWritten, attrs)
	metrics.Remux.PacketsDropped.Add(ctx, p.stats.PacketsDropped, attrs)
	metrics.Remux.BytesWritten.Add(ctx, p.stats.BytesWritten, attrs)
	span.SetAttributes(
		attribute.Int64("packets_written", p.stats.PacketsWritten),
		attribute.Int64("bytes_written", p.stats.BytesWritten),
	)
	if err != nil {
		phase, _ := PhaseOf(err)
		metrics.Remux.Errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("format", format),
			attribute.String("phase", phase.String()),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Any("stats", p.stats).Msg("remux failed")
		return p.stats, err
	}
	logger.Info().Any("stats", p.stats).Msg("remux done")
	return p.stats, nil
}

// pipeline holds the handles of one run.
type pipeline struct {
	r          *Remuxer
	log        zerolog.Logger
	in         container.Input
	out        container.Output
	mapping    StreamMapping
	sink       *sink.Sink
	normalizer *Normalizer
	stats      Stats
	released   bool
}

func (p *pipeline) run(
	ctx context.Context,
	open func() (container.Input, error),
	format string,
) (err error) {
	defer func() {
		start := time.Now()
		if terr := p.teardown(); terr != nil {
			if err == nil {
				err = teardownError("release", terr)
			} else {
				p.log.Warn().Err(terr).Msg("teardown failed")
			}
		}
		p.stats.TeardownDuration = time.Since(start)
		if err != nil {
			p.r.setState(StateFailed)
		} else {
			p.r.setState(StateClosed)
		}
	}()

	start := time.Now()
	if err := p.setup(open, format); err != nil {
		return err
	}
	p.stats.SetupDuration = time.Since(start)

	start = time.Now()
	err = p.stream(ctx)
	p.stats.StreamingDuration = time.Since(start)
	p.stats.FrameIndex = p.normalizer.FrameIndex()

	// The trailer is written even after a failed write so that the output
	// stays readable up to the failure.
	if terr := p.out.WriteTrailer(); terr != nil {
		if err == nil {
			return teardownError("write trailer", terr)
		}
		p.log.Warn().Err(terr).Msg("failed to write trailer after error")
		return err
	}
	if err == nil {
		p.r.setState(StateTrailerWritten)
	}
	return err
}

func (p *pipeline) setup(open func() (container.Input, error), format string) error {
	in, err := open()
	if err != nil {
		return setupError("open input", err)
	}
	p.in = in
	p.r.setState(StateInputOpened)

	if err := in.Probe(); err != nil {
		return setupError("probe input", err)
	}

	out, err := p.r.registry.Create(format)
	if err != nil {
		return setupError("create output", err)
	}
	p.out = out
	if !out.NoFile() {
		if err := out.SetIO(p.sink); err != nil {
			return setupError("set output io", err)
		}
	}

	mapping, err := MapStreams(in.Streams(), out, p.r.opts.filter)
	if err != nil {
		return setupError("map streams", err)
	}
	p.mapping = mapping
	p.stats.Streams = mapping.Propagated()
	if p.stats.Streams == 0 {
		return setupError("map streams", ErrNoStreams)
	}
	p.r.setState(StateStreamsMapped)
	p.log.Debug().Stringer("mapping", mapping).Msg("streams mapped")

	if err := out.WriteHeader(); err != nil {
		return setupError("write header", err)
	}
	p.r.setState(StateHeaderWritten)
	return nil
}

func (p *pipeline) stream(ctx context.Context) error {
	p.r.setState(StateStreaming)
	src := p.in.Streams()
	dst := p.out.Streams()

	var pkt container.Packet
	for {
		if err := ctx.Err(); err != nil {
			return streamingError("read packet", err)
		}

		pkt.Reset()
		if err := p.in.ReadPacket(&pkt); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return streamingError("read packet", err)
		}
		p.stats.PacketsRead++

		idx, ok := p.mapping.Lookup(pkt.StreamIndex)
		if !ok {
			pkt.Unref()
			p.stats.PacketsDropped++
			continue
		}
		if idx >= len(dst) {
			pkt.Unref()
			return streamingError("write packet", fmt.Errorf("no output stream %d", idx))
		}

		p.normalizer.Normalize(&pkt, src[pkt.StreamIndex], dst[idx])
		pkt.StreamIndex = idx
		err := p.out.WriteInterleaved(&pkt)
		pkt.Unref()
		if err != nil {
			return streamingError("write packet", err)
		}
		p.normalizer.Commit()
		p.stats.PacketsWritten++
	}
}

// teardown releases every handle once, in order.
func (p *pipeline) teardown() error {
	if p.released {
		return nil
	}
	p.released = true

	var errs []error
	if p.in != nil {
		if err := p.in.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input: %w", err))
		}
	}
	if p.out != nil {
		if !p.out.NoFile() {
			if err := p.out.CloseIO(); err != nil {
				errs = append(errs, fmt.Errorf("close output io: %w", err))
			}
		}
		if err := p.out.Free(); err != nil {
			errs = append(errs, fmt.Errorf("free output: %w", err))
		}
	}
	p.mapping = nil
	if p.sink != nil {
		if err := p.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
		p.stats.BytesWritten = p.sink.Written()
	}
	return errors.Join(errs...)
}
