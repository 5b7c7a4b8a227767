// Package state keeps the state of the remux jobs for debugging.
package state

import (
	"context"
	"encoding/json"
	"maps"
	"sync"
	"time"
)

// maxErrors is the number of errors kept per job.
const maxErrors = 20

// State represents the state of the program.
type State struct {
	Jobs map[string]*JobState `json:"jobs"`

	mu sync.RWMutex
}

// JobState represents the state of a job, keyed by its output path.
type JobState struct {
	State     JobStatus         `json:"state"`
	Input     string            `json:"input,omitempty"`
	Extra     map[string]any    `json:"extra,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	Errors    []JobError        `json:"errors_log"`
}

// JobError represents an error during a job.
type JobError struct {
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

// JobStatus is the lifecycle status of a job.
type JobStatus int

const (
	// JobStatusUnspecified is used when the job status is unspecified.
	JobStatusUnspecified JobStatus = iota
	// JobStatusPending is used when the input waits for a worker.
	JobStatusPending
	// JobStatusRemuxing is used when the input is being remuxed.
	JobStatusRemuxing
	// JobStatusFinished is used when the output was written.
	JobStatusFinished
	// JobStatusFailed is used when every try failed.
	JobStatusFailed
	// JobStatusCanceled is used when the job was interrupted.
	JobStatusCanceled
	// JobStatusSkipped is used when the input was already remuxed.
	JobStatusSkipped
)

// String returns a string representation of a JobStatus.
func (s JobStatus) String() string {
	switch s {
	case JobStatusUnspecified:
		return "UNSPECIFIED"
	case JobStatusPending:
		return "PENDING"
	case JobStatusRemuxing:
		return "REMUXING"
	case JobStatusFinished:
		return "FINISHED"
	case JobStatusFailed:
		return "FAILED"
	case JobStatusCanceled:
		return "CANCELED"
	case JobStatusSkipped:
		return "SKIPPED"
	}
	return "UNSPECIFIED"
}

// JobStatusFromString returns a JobStatus from a string.
func JobStatusFromString(s string) JobStatus {
	switch s {
	default:
		return JobStatusUnspecified
	case "PENDING":
		return JobStatusPending
	case "REMUXING":
		return JobStatusRemuxing
	case "FINISHED":
		return JobStatusFinished
	case "FAILED":
		return JobStatusFailed
	case "CANCELED":
		return JobStatusCanceled
	case "SKIPPED":
		return JobStatusSkipped
	}
}

// MarshalJSON marshals a JobStatus into a string.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON unmarshals a string into a JobStatus.
func (s *JobStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = JobStatusFromString(str)
	return nil
}

// DefaultState is the state shared by the watcher and the debug server.
var DefaultState = New()

// New returns an empty State.
func New() *State {
	return &State{
		Jobs: make(map[string]*JobState),
	}
}

// GetJobStatus returns the status of a job.
func (s *State) GetJobStatus(output string) JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if j, ok := s.Jobs[output]; ok {
		return j.State
	}
	return JobStatusUnspecified
}

type setJobStatusOptions struct {
	input  string
	labels map[string]string
	extra  map[string]any
}

// SetJobStatusOption represents options for SetJobStatus.
type SetJobStatusOption func(*setJobStatusOptions)

// WithInput sets the input path of a job.
func WithInput(input string) SetJobStatusOption {
	return func(o *setJobStatusOptions) {
		o.input = input
	}
}

// WithLabels sets labels for a job.
func WithLabels(labels map[string]string) SetJobStatusOption {
	return func(o *setJobStatusOptions) {
		o.labels = labels
	}
}

// WithExtra sets extra data for a job.
func WithExtra(extra map[string]any) SetJobStatusOption {
	return func(o *setJobStatusOptions) {
		o.extra = extra
	}
}

func (s *State) job(output string) *JobState {
	j, ok := s.Jobs[output]
	if !ok {
		j = &JobState{Errors: make([]JobError, 0)}
		s.Jobs[output] = j
	}
	return j
}

// SetJobStatus sets the status of a job. Input and labels are kept from the
// previous call when not given.
func (s *State) SetJobStatus(output string, status JobStatus, opts ...SetJobStatusOption) {
	o := &setJobStatusOptions{}
	for _, opt := range opts {
		opt(o)
	}
	s.mu.Lock()
	j := s.job(output)
	prev := j.State
	j.State = status
	j.UpdatedAt = time.Now().UTC()
	j.Extra = o.extra
	if o.input != "" {
		j.Input = o.input
	}
	if o.labels != nil {
		j.Labels = o.labels
	}
	labels := j.Labels
	s.mu.Unlock()

	setStateMetrics(context.Background(), prev, status, labels)
}

// SetJobError records an error for a job.
func (s *State) SetJobError(output string, err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.job(output)
	j.Errors = append(j.Errors, JobError{
		Timestamp: time.Now().UTC().String(),
		Error:     err.Error(),
	})
	if len(j.Errors) > maxErrors {
		j.Errors = j.Errors[len(j.Errors)-maxErrors:]
	}
}

// Forget removes the finished, skipped and failed jobs older than age.
func (s *State) Forget(age time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for output, j := range s.Jobs {
		switch j.State {
		case JobStatusPending, JobStatusRemuxing:
			continue
		}
		if time.Since(j.UpdatedAt) > age {
			delete(s.Jobs, output)
			n++
		}
	}
	return n
}

// ReadState returns a snapshot of the state.
func (s *State) ReadState() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := New()
	for output, j := range s.Jobs {
		cp := *j
		cp.Extra = maps.Clone(j.Extra)
		cp.Labels = maps.Clone(j.Labels)
		cp.Errors = append([]JobError(nil), j.Errors...)
		out.Jobs[output] = &cp
	}
	return out
}
