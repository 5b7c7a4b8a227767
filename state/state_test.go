package state_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Darkness4/go-remux/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetJobStatus(t *testing.T) {
	// Arrange
	s := state.New()

	// Test
	s.SetJobStatus(
		"in.mp4",
		state.JobStatusPending,
		state.WithInput("in.ts"),
		state.WithLabels(map[string]string{"dir": "rec"}),
	)
	s.SetJobStatus(
		"in.mp4",
		state.JobStatusFinished,
		state.WithExtra(map[string]any{
			"packets": 3,
		}),
	)

	// Assert
	require.Equal(t, state.JobStatusFinished, s.GetJobStatus("in.mp4"))
	job := s.ReadState().Jobs["in.mp4"]
	assert.Equal(t, "in.ts", job.Input)
	assert.Equal(t, map[string]string{"dir": "rec"}, job.Labels)
	assert.Equal(t, map[string]any{"packets": 3}, job.Extra)
	assert.Equal(t, state.JobStatusUnspecified, s.GetJobStatus("missing.mp4"))
}

func TestSetJobError(t *testing.T) {
	// Arrange
	s := state.New()

	// Test
	s.SetJobError("in.mp4", errors.New("error1"))
	s.SetJobError("in.mp4", errors.New("error2"))
	s.SetJobError("in.mp4", nil)

	// Assert
	errs := s.ReadState().Jobs["in.mp4"].Errors
	require.Len(t, errs, 2)
	require.Equal(t, "error1", errs[0].Error)
	require.Equal(t, "error2", errs[1].Error)
}

func TestSetJobErrorIsBounded(t *testing.T) {
	s := state.New()
	for i := range 30 {
		s.SetJobError("in.mp4", fmt.Errorf("error%d", i))
	}
	errs := s.ReadState().Jobs["in.mp4"].Errors
	require.Len(t, errs, 20)
	assert.Equal(t, "error29", errs[19].Error)
}

func TestReadStateIsSnapshot(t *testing.T) {
	s := state.New()
	s.SetJobStatus("in.mp4", state.JobStatusRemuxing)
	snap := s.ReadState()
	s.SetJobStatus("in.mp4", state.JobStatusFailed)
	assert.Equal(t, state.JobStatusRemuxing, snap.Jobs["in.mp4"].State)
}

func TestForget(t *testing.T) {
	s := state.New()
	s.SetJobStatus("done.mp4", state.JobStatusFinished)
	s.SetJobStatus("busy.mp4", state.JobStatusRemuxing)
	time.Sleep(time.Millisecond)

	assert.Equal(t, 1, s.Forget(0))
	assert.Equal(t, state.JobStatusUnspecified, s.GetJobStatus("done.mp4"))
	assert.Equal(t, state.JobStatusRemuxing, s.GetJobStatus("busy.mp4"))
}

func TestJobStatusJSON(t *testing.T) {
	for status := state.JobStatusUnspecified; status <= state.JobStatusSkipped; status++ {
		t.Run(status.String(), func(t *testing.T) {
			b, err := json.Marshal(status)
			require.NoError(t, err)
			var got state.JobStatus
			require.NoError(t, json.Unmarshal(b, &got))
			assert.Equal(t, status, got)
		})
	}
}
