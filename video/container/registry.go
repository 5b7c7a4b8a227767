package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// headSize is the number of bytes sniffed to detect a source format.
const headSize = 3072

// Demuxer describes a readable format.
type Demuxer struct {
	Name       string
	Extensions []string
	MIMETypes  []string
	// Probe reports whether head looks like this format. Optional.
	Probe func(head []byte) bool
	Open  Opener
}

// Muxer describes a writable format.
type Muxer struct {
	Name       string
	Extensions []string
	Create     Creator
}

// URLOpener opens and identifies a source by itself (e.g. libavformat).
type URLOpener func(url string) (Input, error)

// Registry maps format names, extensions and MIME types to container
// libraries.
type Registry struct {
	mu        sync.RWMutex
	demuxers  []Demuxer
	muxers    []Muxer
	urlOpener URLOpener
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterDemuxer adds a demuxer. Later registrations take precedence.
func (r *Registry) RegisterDemuxer(d Demuxer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.demuxers = append([]Demuxer{d}, r.demuxers...)
}

// RegisterMuxer adds a muxer. Later registrations take precedence.
func (r *Registry) RegisterMuxer(m Muxer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.muxers = append([]Muxer{m}, r.muxers...)
}

// SetURLOpener routes every Open through fn.
func (r *Registry) SetURLOpener(fn URLOpener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urlOpener = fn
}

// Formats returns the names of the readable and writable formats.
func (r *Registry) Formats() (demuxers []string, muxers []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.demuxers {
		demuxers = append(demuxers, d.Name)
	}
	for _, m := range r.muxers {
		muxers = append(muxers, m.Name)
	}
	slices.Sort(demuxers)
	slices.Sort(muxers)
	return slices.Compact(demuxers), slices.Compact(muxers)
}

// Open opens the source at path and identifies its format.
//
// The returned Input has not been probed yet.
func (r *Registry) Open(path string) (Input, error) {
	r.mu.RLock()
	urlOpener := r.urlOpener
	r.mu.RUnlock()
	if urlOpener != nil {
		return urlOpener(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	in, err := r.OpenReader(f, filepath.Ext(path))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// OpenReader identifies the format of rs and opens it. ext is an optional
// extension hint.
func (r *Registry) OpenReader(rs io.ReadSeeker, ext string) (Input, error) {
	d, err := r.Detect(rs, ext)
	if err != nil {
		return nil, err
	}
	return d.Open(rs)
}

// Detect identifies the format of rs and rewinds it.
func (r *Registry) Detect(rs io.ReadSeeker, ext string) (Demuxer, error) {
	head := make([]byte, headSize)
	n, err := io.ReadFull(rs, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Demuxer{}, err
	}
	head = head[:n]
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return Demuxer{}, err
	}
	return r.detect(head, ext)
}

func (r *Registry) detect(head []byte, ext string) (Demuxer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mtype := mimetype.Detect(head)
	for _, d := range r.demuxers {
		for _, m := range d.MIMETypes {
			if mtype.Is(m) {
				return d, nil
			}
		}
	}
	for _, d := range r.demuxers {
		if d.Probe != nil && d.Probe(head) {
			return d, nil
		}
	}
	ext = strings.ToLower(ext)
	for _, d := range r.demuxers {
		if ext != "" && slices.Contains(d.Extensions, ext) {
			return d, nil
		}
	}
	return Demuxer{}, fmt.Errorf("%w: mime=%s ext=%q", ErrUnknownFormat, mtype.String(), ext)
}

// Create allocates an output for the format name.
func (r *Registry) Create(format string) (Output, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.muxers {
		if m.Name == format {
			return m.Create()
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// GuessFormat returns the muxer name matching the extension of filename.
func (r *Registry) GuessFormat(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.muxers {
		if slices.Contains(m.Extensions, ext) {
			return m.Name, nil
		}
	}
	return "", fmt.Errorf("%w: extension %q", ErrUnknownFormat, ext)
}
