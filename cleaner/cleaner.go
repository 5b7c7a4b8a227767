// Package cleaner removes source files that were already remuxed.
package cleaner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Darkness4/go-remux/telemetry/metrics"
	"github.com/Darkness4/go-remux/video/probe"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "cleaner"

// Option configures the cleaner.
type Option func(*Options)

// Options of the cleaner.
type Options struct {
	dryRun  bool
	probe   bool
	minAge  time.Duration
	sources []string
	outputs []string
}

// WithDryRun only logs the files that would be removed.
func WithDryRun() Option {
	return func(o *Options) {
		o.dryRun = true
	}
}

// WithoutProbe skips the probe of the remuxed sibling.
func WithoutProbe() Option {
	return func(o *Options) {
		o.probe = false
	}
}

// WithMinAge sets the age under which a source is kept. Defaults to 48h.
func WithMinAge(age time.Duration) Option {
	return func(o *Options) {
		o.minAge = age
	}
}

// WithSourceExtensions sets the extensions of the removable sources. Defaults
// to ".ts".
func WithSourceExtensions(exts ...string) Option {
	return func(o *Options) {
		o.sources = normalizeExtensions(exts)
	}
}

// WithOutputExtensions sets the extensions of the remuxed siblings. Defaults
// to ".mp4", ".mkv" and ".webm".
func WithOutputExtensions(exts ...string) Option {
	return func(o *Options) {
		o.outputs = normalizeExtensions(exts)
	}
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func applyOptions(opts []Option) *Options {
	o := &Options{
		probe:   true,
		minAge:  48 * time.Hour,
		sources: []string{".ts"},
		outputs: []string{".mp4", ".mkv", ".webm"},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// remuxedSibling returns the path of a file next to path with the same stem
// and an output extension.
func remuxedSibling(path string, o *Options) (string, bool) {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range o.outputs {
		sibling := stem + ext
		if sibling == path {
			continue
		}
		if fi, err := os.Stat(sibling); err == nil && fi.Mode().IsRegular() && fi.Size() > 0 {
			return sibling, true
		}
	}
	return "", false
}

// Scan returns the sources under scanDirectory that have a remuxed sibling
// and are older than the minimum age.
func Scan(scanDirectory string, opts ...Option) ([]string, error) {
	o := applyOptions(opts)
	return scan(scanDirectory, o)
}

func scan(scanDirectory string, o *Options) ([]string, error) {
	metrics.Cleaner.Scans.Add(context.Background(), 1)

	var queue []string
	err := filepath.WalkDir(scanDirectory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(o.sources, strings.ToLower(filepath.Ext(path))) {
			return nil
		}

		finfo, err := d.Info()
		if err != nil {
			return err
		}
		if time.Since(finfo.ModTime()) <= o.minAge {
			return nil
		}

		sibling, ok := remuxedSibling(path, o)
		if !ok {
			return nil
		}
		if o.probe {
			if err := probe.Do([]string{sibling}, probe.WithQuiet()); err != nil {
				log.Err(err).
					Str("path", path).
					Str("remuxed", sibling).
					Msg("deletion skipped due to error")
				return nil
			}
		}
		queue = append(queue, path)
		return nil
	})
	return queue, err
}

// Clean removes the files returned by Scan and returns how many were
// removed.
func Clean(ctx context.Context, scanDirectory string, opts ...Option) (n int, err error) {
	o := applyOptions(opts)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "cleaner.Clean")
	defer span.End()
	metrics.Cleaner.Runs.Add(ctx, 1)
	end := metrics.TimeStartRecording(
		ctx,
		metrics.Cleaner.CleanTime,
		time.Second,
		metric.WithAttributes(attribute.Bool("dry_run", o.dryRun)),
	)
	defer end()
	defer func() {
		if err != nil {
			span.RecordError(err)
			metrics.Cleaner.Errors.Add(ctx, 1)
		}
	}()

	queue, err := scan(scanDirectory, o)
	if err != nil {
		return 0, err
	}

	for _, path := range queue {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		log.Info().Str("path", path).Bool("dry_run", o.dryRun).Msg("deleting remuxed source")
		if o.dryRun {
			continue
		}
		if err := os.Remove(path); err != nil {
			return n, err
		}
		n++
		metrics.Cleaner.FilesRemoved.Add(ctx, 1)
	}

	return n, nil
}
