package sink

import (
	"io"
)

// MemoryBuffer is an in-memory seekable destination.
type MemoryBuffer struct {
	data []byte
	pos  int64
}

// NewMemoryBuffer returns an empty MemoryBuffer.
func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{}
}

// Write writes p at the cursor, growing the buffer and zero-filling holes.
func (m *MemoryBuffer) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		if end > int64(cap(m.data)) {
			grown := make([]byte, end, max(end, 2*int64(cap(m.data))))
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:end]
		}
	}
	copy(m.data[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (m *MemoryBuffer) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = m.pos + offset
	case io.SeekEnd:
		target = int64(len(m.data)) + offset
	default:
		return 0, ErrInvalidWhence
	}
	if target < 0 {
		return 0, ErrNegativeOffset
	}
	m.pos = target
	return target, nil
}

// Bytes returns the buffer content.
func (m *MemoryBuffer) Bytes() []byte {
	return m.data
}

// Len returns the buffer length.
func (m *MemoryBuffer) Len() int {
	return len(m.data)
}
