// Package watcher remuxes the media files appearing in watched directories.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Darkness4/go-remux/cleaner"
	"github.com/Darkness4/go-remux/notify/notifier"
	"github.com/Darkness4/go-remux/state"
	"github.com/Darkness4/go-remux/telemetry/metrics"
	"github.com/Darkness4/go-remux/utils"
	"github.com/Darkness4/go-remux/utils/blockingheap"
	"github.com/Darkness4/go-remux/utils/channel"
	"github.com/Darkness4/go-remux/utils/queue"
	"github.com/Darkness4/go-remux/utils/try"
	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/format"
	"github.com/Darkness4/go-remux/video/remux"
	"github.com/Darkness4/go-remux/video/sink"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Option configures a Watcher.
type Option func(*Options)

// Options of a Watcher.
type Options struct {
	registry *container.Registry
	state    *state.State
}

// WithRegistry sets the container registry. Defaults to format.Default().
func WithRegistry(registry *container.Registry) Option {
	return func(o *Options) {
		o.registry = registry
	}
}

// WithState sets the job state. Defaults to state.DefaultState.
func WithState(s *state.State) Option {
	return func(o *Options) {
		o.state = s
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
	if o.state == nil {
		o.state = state.DefaultState
	}
	return o
}

// Watcher watches directories and remuxes the files appearing in them.
type Watcher struct {
	config *Config
	ledger *Ledger
	opts   *Options

	queue   *blockingheap.BlockingHeap[*queue.Item[*Job]]
	latency *metrics.Timers

	mu      sync.Mutex
	pending map[string]struct{}
}

// New returns a Watcher for config.
func New(config *Config, opts ...Option) (*Watcher, error) {
	ledger, err := OpenLedger(config.Ledger)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		config:  config,
		ledger:  ledger,
		opts:    applyOptions(opts),
		queue:   blockingheap.New[*queue.Item[*Job]](queue.NewPriorityQueue[*Job](64)),
		latency: metrics.NewTimers(),
		pending: make(map[string]struct{}),
	}, nil
}

// Ledger returns the ledger of the finished jobs.
func (w *Watcher) Ledger() *Ledger {
	return w.ledger
}

// Run watches the directories until ctx is done. Running jobs are canceled
// and awaited before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, d := range w.config.Directories {
		if err := os.MkdirAll(d.Path, 0o755); err != nil {
			return err
		}
		if err := w.addDirectory(fsw, d.Path, d.Recursive); err != nil {
			return err
		}
	}
	if n, err := w.ledger.Prune(); err != nil {
		log.Err(err).Msg("failed to prune ledger")
	} else if n > 0 {
		log.Info().Int("entries", n).Msg("pruned ledger")
	}

	g, gctx := errgroup.WithContext(ctx)
	files := make(chan string)

	g.Go(func() error {
		defer close(files)
		for _, d := range w.config.Directories {
			if err := w.scan(gctx, d.Path, files); err != nil {
				return err
			}
		}
		return w.watch(gctx, fsw, files)
	})
	g.Go(func() error {
		for path := range channel.DebounceKeyed(gctx, files, w.config.Debounce) {
			w.enqueue(gctx, path)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		w.queue.Close()
		return nil
	})
	g.Go(func() error {
		return w.dispatch(gctx)
	})
	if w.config.Clean.Enabled {
		g.Go(func() error {
			w.cleanPeriodically(gctx)
			return nil
		})
	}

	err = g.Wait()
	w.discardPending()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// discardPending cancels the jobs left in the closed queue.
func (w *Watcher) discardPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key := range w.pending {
		metrics.Watcher.Pending.Add(context.Background(), -1)
		w.latency.Cancel(key)
		w.opts.state.SetJobStatus(key, state.JobStatusCanceled)
		delete(w.pending, key)
	}
}

func (w *Watcher) addDirectory(fsw *fsnotify.Watcher, root string, recursive bool) error {
	if !recursive {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			log.Debug().Str("dir", path).Msg("watching")
			return fsw.Add(path)
		}
		return nil
	})
}

// scan sends the matching files already present under root.
func (w *Watcher) scan(ctx context.Context, root string, files chan<- string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if _, ok := w.config.match(path); !ok {
			return nil
		}
		select {
		case files <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (w *Watcher) watch(ctx context.Context, fsw *fsnotify.Watcher, files chan<- string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Err(err).Msg("watch error")
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			metrics.Watcher.Events.Add(ctx, 1)

			fi, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if fi.IsDir() {
				if d, ok := w.directoryOf(event.Name); ok && d.Recursive && event.Has(fsnotify.Create) {
					if err := w.addDirectory(fsw, event.Name, true); err != nil {
						log.Err(err).Str("dir", event.Name).Msg("failed to watch directory")
					}
					if err := w.scan(ctx, event.Name, files); err != nil {
						return err
					}
				}
				continue
			}
			if _, ok := w.config.match(event.Name); !ok {
				continue
			}
			select {
			case files <- event.Name:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *Watcher) directoryOf(path string) (*Directory, bool) {
	for i := range w.config.Directories {
		d := &w.config.Directories[i]
		rel, err := filepath.Rel(d.Path, path)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return d, true
		}
	}
	return nil, false
}

// enqueue queues the jobs of path that are neither pending nor done.
func (w *Watcher) enqueue(ctx context.Context, path string) {
	d, ok := w.config.match(path)
	if !ok {
		return
	}
	fi, err := os.Stat(path)
	if err != nil {
		return
	}

	for _, job := range jobsFor(path, d) {
		key := job.key()
		if w.ledger.Done(key, fi) {
			w.opts.state.SetJobStatus(
				key,
				state.JobStatusSkipped,
				state.WithInput(job.Input),
				state.WithLabels(job.Labels),
			)
			continue
		}
		w.mu.Lock()
		_, busy := w.pending[key]
		if !busy {
			w.pending[key] = struct{}{}
		}
		w.mu.Unlock()
		if busy {
			continue
		}

		if err := w.queue.Push(&queue.Item[*Job]{
			Value:    job,
			Priority: fi.ModTime().UnixNano(),
		}); err != nil {
			w.done(key)
			return
		}
		metrics.Watcher.Pending.Add(ctx, 1)
		w.latency.Start(key)
		w.opts.state.SetJobStatus(
			key,
			state.JobStatusPending,
			state.WithInput(job.Input),
			state.WithLabels(job.Labels),
		)
		log.Info().Str("input", job.Input).Str("output", job.Output).Msg("queued")
		if err := notifier.NotifyPending(ctx, job.notification()); err != nil {
			log.Err(err).Msg("notify failed")
		}
	}
}

func (w *Watcher) done(key string) {
	w.mu.Lock()
	delete(w.pending, key)
	w.mu.Unlock()
}

// dispatch pops jobs and runs them, at most Concurrency at a time.
func (w *Watcher) dispatch(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(w.config.Concurrency))
	var jobs errgroup.Group
	defer func() {
		_ = jobs.Wait()
	}()

	for {
		item, err := w.queue.Pop()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		job := item.Value
		metrics.Watcher.Pending.Add(ctx, -1)
		if err := sem.Acquire(ctx, 1); err != nil {
			w.cancel(job)
			return nil
		}
		jobs.Go(func() error {
			defer sem.Release(1)
			w.process(ctx, job)
			return nil
		})
	}
}

func (w *Watcher) cancel(job *Job) {
	key := job.key()
	w.done(key)
	w.opts.state.SetJobStatus(key, state.JobStatusCanceled)
	if err := notifier.NotifyCanceled(context.Background(), job.notification()); err != nil {
		log.Err(err).Msg("notify failed")
	}
}

func (w *Watcher) process(ctx context.Context, job *Job) {
	key := job.key()
	log := log.With().Str("input", job.Input).Str("output", job.Output).Logger()
	defer w.done(key)
	defer w.latency.Stop(
		ctx,
		metrics.Watcher.Latency,
		key,
		metric.WithAttributes(attribute.String("format", job.Extension)),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("job panicked")
			w.opts.state.SetJobStatus(key, state.JobStatusFailed)
			w.opts.state.SetJobError(key, fmt.Errorf("panic: %v", r))
			if err := notifier.NotifyPanicked(context.Background(), r); err != nil {
				log.Err(err).Msg("notify failed")
			}
		}
	}()

	fi, err := os.Stat(job.Input)
	if err != nil {
		log.Warn().Err(err).Msg("input disappeared")
		w.opts.state.SetJobStatus(key, state.JobStatusCanceled)
		return
	}

	w.opts.state.SetJobStatus(key, state.JobStatusRemuxing)
	if err := notifier.NotifyRemuxing(ctx, job.notification()); err != nil {
		log.Err(err).Msg("notify failed")
	}

	stats, err := try.DoWithResult(
		ctx,
		w.config.Retries,
		w.config.RetryDelay,
		func(ctx context.Context, _ int) (remux.Stats, error) {
			stats, err := w.remux(ctx, job)
			if err != nil {
				w.opts.state.SetJobError(key, err)
				if errors.Is(err, container.ErrUnknownFormat) ||
					errors.Is(err, container.ErrUnsupportedCodec) ||
					errors.Is(err, remux.ErrNoStreams) {
					return stats, try.Permanent(err)
				}
			}
			return stats, err
		},
	)

	n := job.notification()
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("remux canceled")
		w.opts.state.SetJobStatus(key, state.JobStatusCanceled)
		if err := notifier.NotifyCanceled(context.Background(), n); err != nil {
			log.Err(err).Msg("notify failed")
		}
	case err != nil:
		log.Err(err).Msg("remux failed")
		w.opts.state.SetJobStatus(key, state.JobStatusFailed)
		n.Error = err
		if err := notifier.NotifyError(context.Background(), n); err != nil {
			log.Err(err).Msg("notify failed")
		}
	default:
		if err := w.ledger.Record(Entry{
			Input:      job.Input,
			Output:     job.Output,
			Size:       fi.Size(),
			ModTime:    fi.ModTime(),
			FinishedAt: time.Now(),
			Packets:    stats.PacketsWritten,
			Bytes:      stats.BytesWritten,
		}); err != nil {
			log.Err(err).Msg("failed to record job in ledger")
		}
		w.opts.state.SetJobStatus(key, state.JobStatusFinished, state.WithExtra(map[string]any{
			"stats": stats,
		}))
		log.Info().
			Int64("packets", stats.PacketsWritten).
			Int64("bytes", stats.BytesWritten).
			Msg("remux finished")
		n.Stats = stats
		if err := notifier.NotifyFinished(ctx, n); err != nil {
			log.Err(err).Msg("notify failed")
		}
	}
}

// remux writes the output into a temporary file renamed on success.
func (w *Watcher) remux(ctx context.Context, job *Job) (remux.Stats, error) {
	reg := w.opts.registry
	name, err := reg.GuessFormat(job.Output)
	if err != nil {
		return remux.Stats{}, err
	}
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return remux.Stats{}, err
	}

	tmp := fmt.Sprintf("%s.%s.part", job.Output, utils.GenerateRandomString(8))
	dst, err := sink.Create(tmp)
	if err != nil {
		return remux.Stats{}, err
	}

	opts := []remux.Option{
		remux.WithLogger(log.With().Str("input", job.Input).Logger()),
	}
	if job.AudioOnly {
		opts = append(opts, remux.WithAudioOnly())
	}
	stats, err := remux.New(reg, opts...).Run(ctx, job.Input, name, dst)
	if err != nil {
		_ = os.Remove(tmp)
		return stats, err
	}
	if err := os.Rename(tmp, job.Output); err != nil {
		_ = os.Remove(tmp)
		return stats, err
	}
	return stats, nil
}

func (w *Watcher) cleanPeriodically(ctx context.Context) {
	ticker := time.NewTicker(w.config.Clean.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		w.clean(ctx)
	}
}

func (w *Watcher) clean(ctx context.Context) {
	opts := []cleaner.Option{cleaner.WithMinAge(w.config.Clean.MinAge)}
	if w.config.Clean.DryRun {
		opts = append(opts, cleaner.WithDryRun())
	}
	total := 0
	for _, d := range w.config.Directories {
		if d.Output != "" {
			// Outputs are not siblings of their sources.
			continue
		}
		dir := d.Path
		n, err := cleaner.Clean(ctx, dir, slices.Concat(opts, []cleaner.Option{
			cleaner.WithSourceExtensions(d.Extensions...),
			cleaner.WithOutputExtensions(d.Format),
		})...)
		if err != nil {
			log.Err(err).Str("dir", dir).Msg("clean failed")
		}
		total += n
	}
	if total > 0 {
		if err := notifier.NotifyCleaned(ctx, total); err != nil {
			log.Err(err).Msg("notify failed")
		}
	}
}
