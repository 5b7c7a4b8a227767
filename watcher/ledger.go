package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Darkness4/go-remux/utils"
	"github.com/shamaton/msgpack/v2"
)

// Entry is a finished remux.
type Entry struct {
	Input      string    `msgpack:"input"`
	Output     string    `msgpack:"output"`
	Size       int64     `msgpack:"size"`
	ModTime    time.Time `msgpack:"mod_time"`
	FinishedAt time.Time `msgpack:"finished_at"`
	Packets    int64     `msgpack:"packets"`
	Bytes      int64     `msgpack:"bytes"`
}

// Ledger records the finished remuxes so that a restart does not redo them.
//
// The ledger is stored as a msgpack map from output path to Entry.
type Ledger struct {
	path    string
	mu      sync.Mutex
	entries map[string]Entry
}

// OpenLedger loads the ledger at path. A missing file is an empty ledger. An
// empty path keeps the ledger in memory.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		entries: make(map[string]Entry),
	}
	if path == "" {
		return l, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	if err := msgpack.Unmarshal(b, &l.entries); err != nil {
		return nil, fmt.Errorf("ledger %s: %w", path, err)
	}
	if l.entries == nil {
		l.entries = make(map[string]Entry)
	}
	return l, nil
}

// Done reports whether output was produced from an input having the size and
// modification time of fi, and still exists.
func (l *Ledger) Done(output string, fi os.FileInfo) bool {
	l.mu.Lock()
	e, ok := l.entries[output]
	l.mu.Unlock()
	if !ok || e.Size != fi.Size() || !e.ModTime.Equal(fi.ModTime()) {
		return false
	}
	_, err := os.Stat(e.Output)
	return err == nil
}

// Get returns the entry of output.
func (l *Ledger) Get(output string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[output]
	return e, ok
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Record stores e and persists the ledger.
func (l *Ledger) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.Output] = e
	return l.save()
}

// Prune removes the entries whose input no longer exists.
func (l *Ledger) Prune() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for output, e := range l.entries {
		if _, err := os.Stat(e.Input); errors.Is(err, os.ErrNotExist) {
			delete(l.entries, output)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, l.save()
}

func (l *Ledger) save() error {
	if l.path == "" {
		return nil
	}
	b, err := msgpack.Marshal(l.entries)
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.%s.tmp", l.path, utils.GenerateRandomString(8))
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
