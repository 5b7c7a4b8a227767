package notify

import (
	"context"
	"strings"
	"text/template"

	"github.com/Darkness4/go-remux/utils/ptr"
)

// NotificationFormats is a collection of formats for notifications.
type NotificationFormats struct {
	ConfigReloaded NotificationFormat `yaml:"configReloaded,omitempty"`
	Panicked       NotificationFormat `yaml:"panicked,omitempty"`
	Pending        NotificationFormat `yaml:"pending,omitempty"`
	Remuxing       NotificationFormat `yaml:"remuxing,omitempty"`
	Finished       NotificationFormat `yaml:"finished,omitempty"`
	Error          NotificationFormat `yaml:"error,omitempty"`
	Canceled       NotificationFormat `yaml:"canceled,omitempty"`
	Cleaned        NotificationFormat `yaml:"cleaned,omitempty"`
}

// NotificationFormat is a format for a notification.
//
// Title and Message are text/template templates executed on a Job.
type NotificationFormat struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Title    string `yaml:"title,omitempty"`
	Message  string `yaml:"message,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
}

// Job is the data available to the templates.
type Job struct {
	Input   string
	Output  string
	Format  string
	Labels  map[string]string
	Stats   any
	Error   error
	Capture any
	Count   int
}

// DefaultNotificationFormats is the default notification formats.
var DefaultNotificationFormats = NotificationFormats{
	ConfigReloaded: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "config reloaded",
		Priority: 10,
	},
	Panicked: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "panicked",
		Message:  "{{ .Capture }}",
		Priority: 10,
	},
	Pending: NotificationFormat{
		Enabled: ptr.Ref(false),
		Title:   "{{ .Input }} queued",
	},
	Remuxing: NotificationFormat{
		Enabled: ptr.Ref(false),
		Title:   "remuxing {{ .Input }}",
		Message: "to {{ .Output }} ({{ .Format }})",
	},
	Finished: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "{{ .Output }} is ready",
		Message:  "{{ .Input }} was remuxed to {{ .Format }}",
		Priority: 7,
	},
	Error: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "remux of {{ .Input }} failed",
		Message:  "{{ .Error }}",
		Priority: 10,
	},
	Canceled: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "remux of {{ .Input }} canceled",
		Priority: 10,
	},
	Cleaned: NotificationFormat{
		Enabled: ptr.Ref(false),
		Title:   "{{ .Count }} source files removed",
	},
}

func (old *NotificationFormat) applyNotificationFormatDefault(
	newFormat NotificationFormat,
) {
	if newFormat.Enabled != nil {
		old.Enabled = newFormat.Enabled
	}
	if newFormat.Title != "" {
		old.Title = newFormat.Title
	}
	if newFormat.Message != "" {
		old.Message = newFormat.Message
	}
	if newFormat.Priority != 0 {
		old.Priority = newFormat.Priority
	}
}

func applyNotificationFormatsDefault(newFormat NotificationFormats) NotificationFormats {
	formats := DefaultNotificationFormats
	formats.ConfigReloaded.applyNotificationFormatDefault(newFormat.ConfigReloaded)
	formats.Panicked.applyNotificationFormatDefault(newFormat.Panicked)
	formats.Pending.applyNotificationFormatDefault(newFormat.Pending)
	formats.Remuxing.applyNotificationFormatDefault(newFormat.Remuxing)
	formats.Finished.applyNotificationFormatDefault(newFormat.Finished)
	formats.Error.applyNotificationFormatDefault(newFormat.Error)
	formats.Canceled.applyNotificationFormatDefault(newFormat.Canceled)
	formats.Cleaned.applyNotificationFormatDefault(newFormat.Cleaned)
	return formats
}

// NotificationTemplate is a parsed NotificationFormat.
type NotificationTemplate struct {
	enabled  bool
	priority int
	title    *template.Template
	message  *template.Template
}

func newTemplate(name string, format NotificationFormat) (NotificationTemplate, error) {
	title, err := template.New(name + ".title").Parse(format.Title)
	if err != nil {
		return NotificationTemplate{}, err
	}
	message, err := template.New(name + ".message").Parse(format.Message)
	if err != nil {
		return NotificationTemplate{}, err
	}
	return NotificationTemplate{
		enabled:  format.Enabled != nil && *format.Enabled,
		priority: format.Priority,
		title:    title,
		message:  message,
	}, nil
}

// FormatedNotifier is a notifier that formats the notifications.
type FormatedNotifier struct {
	BaseNotifier

	configReloaded NotificationTemplate
	panicked       NotificationTemplate
	pending        NotificationTemplate
	remuxing       NotificationTemplate
	finished       NotificationTemplate
	error          NotificationTemplate
	canceled       NotificationTemplate
	cleaned        NotificationTemplate
}

// NewFormatedNotifier creates a new FormatedNotifier. Formats missing fields
// are taken from DefaultNotificationFormats.
func NewFormatedNotifier(
	notifier BaseNotifier,
	formats NotificationFormats,
) (*FormatedNotifier, error) {
	formats = applyNotificationFormatsDefault(formats)
	n := &FormatedNotifier{BaseNotifier: notifier}
	for _, t := range []struct {
		name   string
		format NotificationFormat
		dst    *NotificationTemplate
	}{
		{"configReloaded", formats.ConfigReloaded, &n.configReloaded},
		{"panicked", formats.Panicked, &n.panicked},
		{"pending", formats.Pending, &n.pending},
		{"remuxing", formats.Remuxing, &n.remuxing},
		{"finished", formats.Finished, &n.finished},
		{"error", formats.Error, &n.error},
		{"canceled", formats.Canceled, &n.canceled},
		{"cleaned", formats.Cleaned, &n.cleaned},
	} {
		tmpl, err := newTemplate(t.name, t.format)
		if err != nil {
			return nil, err
		}
		*t.dst = tmpl
	}
	return n, nil
}

func (n *FormatedNotifier) send(ctx context.Context, t NotificationTemplate, data Job) error {
	if !t.enabled {
		return nil
	}
	var titleSB strings.Builder
	var messageSB strings.Builder
	if err := t.title.Execute(&titleSB, data); err != nil {
		return err
	}
	if err := t.message.Execute(&messageSB, data); err != nil {
		return err
	}
	return n.Notify(ctx, titleSB.String(), messageSB.String(), t.priority)
}

// NotifyConfigReloaded sends a notification that the config was reloaded.
func (n *FormatedNotifier) NotifyConfigReloaded(ctx context.Context) error {
	return n.send(ctx, n.configReloaded, Job{})
}

// NotifyPanicked sends a notification that the program panicked.
func (n *FormatedNotifier) NotifyPanicked(ctx context.Context, capture any) error {
	return n.send(ctx, n.panicked, Job{Capture: capture})
}

// NotifyPending sends a notification that a file was queued.
func (n *FormatedNotifier) NotifyPending(ctx context.Context, job Job) error {
	return n.send(ctx, n.pending, job)
}

// NotifyRemuxing sends a notification that a remux started.
func (n *FormatedNotifier) NotifyRemuxing(ctx context.Context, job Job) error {
	return n.send(ctx, n.remuxing, job)
}

// NotifyFinished sends a notification that a remux finished.
func (n *FormatedNotifier) NotifyFinished(ctx context.Context, job Job) error {
	return n.send(ctx, n.finished, job)
}

// NotifyError sends a notification that a remux failed.
func (n *FormatedNotifier) NotifyError(ctx context.Context, job Job) error {
	return n.send(ctx, n.error, job)
}

// NotifyCanceled sends a notification that a remux was canceled.
func (n *FormatedNotifier) NotifyCanceled(ctx context.Context, job Job) error {
	return n.send(ctx, n.canceled, job)
}

// NotifyCleaned sends a notification that source files were removed.
func (n *FormatedNotifier) NotifyCleaned(ctx context.Context, count int) error {
	return n.send(ctx, n.cleaned, Job{Count: count})
}
