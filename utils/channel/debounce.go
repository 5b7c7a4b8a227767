// Package channel provides channel combinators.
package channel

import (
	"context"
	"time"
)

// Debounce emits the last value received from events once no value has been
// received for duration. The output is closed when events is closed or ctx is
// done.
func Debounce[T any](ctx context.Context, events <-chan T, duration time.Duration) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		timer := time.NewTimer(duration)
		timer.Stop()
		var last T
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				last = event
				timer.Reset(duration)
			case <-timer.C:
				select {
				case out <- last:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// DebounceKeyed is Debounce applied per key: each key is emitted once it has
// not been received for duration.
func DebounceKeyed[K comparable](ctx context.Context, events <-chan K, duration time.Duration) <-chan K {
	out := make(chan K)
	go func() {
		defer close(out)
		fired := make(chan K)
		timers := make(map[K]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case key, ok := <-events:
				if !ok {
					return
				}
				if t, ok := timers[key]; ok {
					t.Reset(duration)
					continue
				}
				timers[key] = time.AfterFunc(duration, func() {
					select {
					case fired <- key:
					case <-ctx.Done():
					}
				})
			case key := <-fired:
				delete(timers, key)
				select {
				case out <- key:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
