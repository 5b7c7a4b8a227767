package watcher_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Darkness4/go-remux/state"
	"github.com/Darkness4/go-remux/testutils/media"
	"github.com/Darkness4/go-remux/video/probe"
	"github.com/Darkness4/go-remux/watcher"
	"github.com/stretchr/testify/suite"
)

type WatcherTestSuite struct {
	suite.Suite
	dir    string
	config *watcher.Config
}

func (suite *WatcherTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.config = &watcher.Config{
		Directories: []watcher.Directory{{
			Path:       filepath.Join(suite.dir, "in"),
			Recursive:  true,
			Extensions: []string{".h264"},
			Format:     "mp4",
			Output:     filepath.Join(suite.dir, "out"),
			Labels:     map[string]string{"test": "true"},
		}},
		Concurrency: 2,
		Debounce:    50 * time.Millisecond,
		Retries:     1,
		RetryDelay:  time.Millisecond,
		Ledger:      filepath.Join(suite.dir, "ledger.msgpack"),
	}
	suite.Require().NoError(os.MkdirAll(filepath.Join(suite.dir, "in"), 0o755))
}

func (suite *WatcherTestSuite) write(rel string, data []byte) string {
	path := filepath.Join(suite.dir, "in", rel)
	suite.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	suite.Require().NoError(os.WriteFile(path, data, 0o644))
	return path
}

func (suite *WatcherTestSuite) start(s *state.State) (context.CancelFunc, <-chan error) {
	w, err := watcher.New(suite.config, watcher.WithState(s))
	suite.Require().NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	return cancel, done
}

func (suite *WatcherTestSuite) stop(cancel context.CancelFunc, done <-chan error) {
	cancel()
	select {
	case err := <-done:
		suite.Require().ErrorIs(err, context.Canceled)
	case <-time.After(10 * time.Second):
		suite.FailNow("watcher did not stop")
	}
}

func (suite *WatcherTestSuite) waitStatus(s *state.State, key string, status state.JobStatus) {
	suite.Require().Eventually(func() bool {
		return s.GetJobStatus(key) == status
	}, 10*time.Second, 10*time.Millisecond, "%s never reached %s", key, status)
}

func (suite *WatcherTestSuite) TestRemuxExistingAndNewFiles() {
	existing := suite.write("existing.h264", media.RawH264(5))
	s := state.New()
	cancel, done := suite.start(s)

	// Written while watching, in a new sub directory.
	time.Sleep(100 * time.Millisecond)
	created := suite.write("day1/created.h264", media.RawH264(3))

	out1 := filepath.Join(suite.dir, "out", "existing.mp4")
	out2 := filepath.Join(suite.dir, "out", "day1", "created.mp4")
	suite.waitStatus(s, out1, state.JobStatusFinished)
	suite.waitStatus(s, out2, state.JobStatusFinished)
	suite.stop(cancel, done)

	suite.Require().NoError(probe.Do([]string{out1, out2}, probe.WithQuiet()))
	snap := s.ReadState()
	suite.Equal(existing, snap.Jobs[out1].Input)
	suite.Equal(created, snap.Jobs[out2].Input)
	suite.Equal(map[string]string{"test": "true"}, snap.Jobs[out1].Labels)

	leftovers, err := filepath.Glob(filepath.Join(suite.dir, "out", "*.part"))
	suite.Require().NoError(err)
	suite.Empty(leftovers)

	// A restart does not redo the finished jobs.
	fi, err := os.Stat(out1)
	suite.Require().NoError(err)
	s = state.New()
	cancel, done = suite.start(s)
	suite.waitStatus(s, out1, state.JobStatusSkipped)
	suite.stop(cancel, done)
	fi2, err := os.Stat(out1)
	suite.Require().NoError(err)
	suite.Equal(fi.ModTime(), fi2.ModTime())
}

func (suite *WatcherTestSuite) TestInvalidInputFails() {
	s := state.New()
	suite.write("garbage.h264", []byte("not a video"))
	cancel, done := suite.start(s)

	out := filepath.Join(suite.dir, "out", "garbage.mp4")
	suite.waitStatus(s, out, state.JobStatusFailed)
	suite.stop(cancel, done)

	suite.NoFileExists(out)
	suite.NotEmpty(s.ReadState().Jobs[out].Errors)
}

func (suite *WatcherTestSuite) TestUnwatchableDirectory() {
	blocker := filepath.Join(suite.dir, "file")
	suite.Require().NoError(os.WriteFile(blocker, nil, 0o644))
	suite.config.Directories[0].Path = filepath.Join(blocker, "in")

	w, err := watcher.New(suite.config, watcher.WithState(state.New()))
	suite.Require().NoError(err)
	err = w.Run(context.Background())
	suite.Require().Error(err)
	suite.False(errors.Is(err, context.Canceled))
}

func TestWatcherTestSuite(t *testing.T) {
	suite.Run(t, &WatcherTestSuite{})
}
