package remux

import (
	"errors"
	"fmt"
)

// ErrNoStreams is returned when the filter drops every source stream.
var ErrNoStreams = errors.New("no stream to remux")

// Phase is the step of a run an error comes from.
type Phase int

const (
	// PhaseSetup covers opening, probing, mapping and writing the header.
	PhaseSetup Phase = iota + 1
	// PhaseStreaming covers the packet loop.
	PhaseStreaming
	// PhaseTeardown covers the trailer and the release of every handle.
	PhaseTeardown
)

// String returns a string representation of a Phase.
func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseStreaming:
		return "streaming"
	case PhaseTeardown:
		return "teardown"
	}
	return "unknown"
}

// Error is a failed run.
//
// After a streaming error the destination holds a finalized, truncated
// output when the format allows it.
type Error struct {
	Phase Phase
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remux %s: %s: %s", e.Phase, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PhaseOf returns the phase of a remux error.
func PhaseOf(err error) (Phase, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase, true
	}
	return 0, false
}

func setupError(op string, err error) *Error {
	return &Error{Phase: PhaseSetup, Op: op, Err: err}
}

func streamingError(op string, err error) *Error {
	return &Error{Phase: PhaseStreaming, Op: op, Err: err}
}

func teardownError(op string, err error) *Error {
	return &Error{Phase: PhaseTeardown, Op: op, Err: err}
}
