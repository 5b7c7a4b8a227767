// Package concat joins several inputs into a single output without
// re-encoding.
package concat

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Darkness4/go-remux/telemetry/metrics"
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/format"
	"github.com/Darkness4/go-remux/video/remux"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "video/concat"

var formatPriorities = map[string]int{
	".ts":   100,
	".mkv":  50,
	".mp4":  20,
	".flv":  15,
	".h264": 12,
	".avi":  10,
	".aac":  5,
	".m4a":  1,
	".mp3":  0,
}

func getFormatPriority(ext string) int {
	priority, ok := formatPriorities[ext]
	if !ok {
		return -1
	}
	return priority
}

// Option configures a concat.
type Option func(*Options)

// Options of a concat.
type Options struct {
	audioOnly    bool
	numbered     bool
	ignoreSingle bool
	registry     *container.Registry
	remuxOpts    []remux.Option
}

// WithAudioOnly only keeps the audio streams.
func WithAudioOnly() Option {
	return func(o *Options) {
		o.audioOnly = true
	}
}

// IgnoreExtension forces the concatenation on files without taking account of the extension.
//
// TS files are prioritized.
//
// Example: 1.ts, 1.mp4, 2.ts -> 1.mp4 will be skipped.
func IgnoreExtension() Option {
	return func(o *Options) {
		o.numbered = true
	}
}

// IgnoreSingle file. This is useful when the file has already been remux.
func IgnoreSingle() Option {
	return func(o *Options) {
		o.ignoreSingle = true
	}
}

// WithRegistry sets the container libraries used to read and write files.
func WithRegistry(registry *container.Registry) Option {
	return func(o *Options) {
		o.registry = registry
	}
}

// WithRemuxOptions forwards options to the underlying remux.
func WithRemuxOptions(opts ...remux.Option) Option {
	return func(o *Options) {
		o.remuxOpts = append(o.remuxOpts, opts...)
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = format.Default()
	}
	return o
}

// Do concat multiple video streams.
func Do(ctx context.Context, output string, inputs []string, opts ...Option) (err error) {
	o := applyOptions(opts)

	if o.ignoreSingle && len(inputs) <= 1 {
		return nil
	}
	if len(inputs) == 0 {
		return errors.New("no input")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "concat.Do", trace.WithAttributes(
		attribute.String("output", output),
		attribute.StringSlice("inputs", inputs),
	))
	defer span.End()
	metrics.Concat.Runs.Add(ctx, 1)
	end := metrics.TimeStartRecording(ctx, metrics.Concat.CompletionTime, time.Second)
	defer end()
	defer func() {
		if err != nil {
			metrics.Concat.Errors.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	name, err := o.registry.GuessFormat(output)
	if err != nil {
		return err
	}

	remuxOpts := append([]remux.Option{remux.WithRegistry(o.registry)}, o.remuxOpts...)
	if o.audioOnly {
		remuxOpts = append(remuxOpts, remux.WithAudioOnly())
	}

	dst, err := sink.Create(output)
	if err != nil {
		return err
	}
	log.Info().Str("output", output).Strs("inputs", inputs).Msg("concat")
	chain := NewChain(o.registry.Open, inputs)
	_, err = remux.New(o.registry, remuxOpts...).RunInput(ctx, chain, name, dst)
	if phase, ok := remux.PhaseOf(err); ok && phase == remux.PhaseSetup {
		if rerr := os.Remove(output); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			log.Warn().Err(rerr).Str("output", output).Msg("failed to remove output")
		}
	}
	return err
}

// part is a file of a split recording: "<base>.<ext>" is part 0 and
// "<base>.<n>.<ext>" is part n.
type part struct {
	path   string
	number int
	ext    string
}

func parsePart(name, base string) (part, bool) {
	rest, ok := strings.CutPrefix(name, base)
	if !ok {
		return part{}, false
	}
	ext := filepath.Ext(rest)
	rest = strings.TrimSuffix(rest, ext)
	if rest == "" {
		return part{number: 0, ext: strings.ToLower(ext)}, true
	}
	digits, ok := strings.CutPrefix(rest, ".")
	if !ok {
		return part{}, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		// Also excludes the ".combined." outputs.
		return part{}, false
	}
	return part{number: n, ext: strings.ToLower(ext)}, true
}

// filterFiles selects the parts of base among names, in part order.
//
// With IgnoreExtension, a part present in several formats is only taken once,
// in the format with the highest priority.
func filterFiles(names []string, base string, path string, o *Options) ([]string, error) {
	selected := make(map[string]part)
	for _, name := range names {
		p, ok := parsePart(name, base)
		if !ok {
			continue
		}
		p.path = filepath.Join(path, name)

		key := name
		if o.numbered {
			key = strconv.Itoa(p.number)
		}
		prev, exists := selected[key]
		if !exists || getFormatPriority(p.ext) > getFormatPriority(prev.ext) {
			selected[key] = p
		}
	}

	parts := slices.Collect(maps.Values(selected))
	slices.SortFunc(parts, func(a, b part) int {
		if c := cmp.Compare(a.number, b.number); c != 0 {
			return c
		}
		return strings.Compare(a.path, b.path)
	})

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.path)
	}
	return out, nil
}

// WithPrefix concatenates the parts of the recording at prefix into
// "<prefix>.combined.<remuxFormat>".
func WithPrefix(ctx context.Context, remuxFormat string, prefix string, opts ...Option) error {
	o := applyOptions(opts)
	path := filepath.Dir(prefix)
	base := filepath.Base(prefix)
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, de := range entries {
		names = append(names, de.Name())
	}

	selected, err := filterFiles(names, base, path, o)
	if err != nil {
		return err
	}

	return Do(ctx, prefix+".combined."+remuxFormat, selected, opts...)
}
