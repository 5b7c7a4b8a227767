// Package notifier holds the notifier used by the watcher.
package notifier

import (
	"context"
	"sync/atomic"

	"github.com/Darkness4/go-remux/notify"
)

var current atomic.Pointer[notify.FormatedNotifier]

func init() {
	n, err := notify.NewFormatedNotifier(
		notify.NewDummyNotifier(),
		notify.DefaultNotificationFormats,
	)
	if err != nil {
		panic(err)
	}
	current.Store(n)
}

// Set replaces the notifier.
func Set(n *notify.FormatedNotifier) {
	current.Store(n)
}

// Get returns the notifier.
func Get() *notify.FormatedNotifier {
	return current.Load()
}

// NotifyConfigReloaded notifies the user that the configuration has been reloaded.
func NotifyConfigReloaded(ctx context.Context) error {
	return Get().NotifyConfigReloaded(ctx)
}

// NotifyPanicked notifies the user that the program has panicked.
func NotifyPanicked(ctx context.Context, capture any) error {
	return Get().NotifyPanicked(ctx, capture)
}

// NotifyPending notifies the user that a file was queued.
func NotifyPending(ctx context.Context, job notify.Job) error {
	return Get().NotifyPending(ctx, job)
}

// NotifyRemuxing notifies the user that a remux started.
func NotifyRemuxing(ctx context.Context, job notify.Job) error {
	return Get().NotifyRemuxing(ctx, job)
}

// NotifyFinished notifies the user that a remux finished.
func NotifyFinished(ctx context.Context, job notify.Job) error {
	return Get().NotifyFinished(ctx, job)
}

// NotifyError notifies the user that a remux failed.
func NotifyError(ctx context.Context, job notify.Job) error {
	return Get().NotifyError(ctx, job)
}

// NotifyCanceled notifies the user that a remux was canceled.
func NotifyCanceled(ctx context.Context, job notify.Job) error {
	return Get().NotifyCanceled(ctx, job)
}

// NotifyCleaned notifies the user that source files were removed.
func NotifyCleaned(ctx context.Context, count int) error {
	return Get().NotifyCleaned(ctx, count)
}
