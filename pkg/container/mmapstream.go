package container

import (
	"errors"
	"io"
)

// mmapStream adapts an in-memory byte slice (mapped or fully buffered,
// depending on platform) to hostiface.ByteStream for OpenMmap's read-only
// random-access path.
type mmapStream struct {
	data []byte
	pos  int64
}

func newMmapStream(data []byte) *mmapStream {
	return &mmapStream{data: data}
}

var errMmapReadOnly = errors.New("container: mmap stream is read-only")

func (m *mmapStream) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *mmapStream) Write([]byte) (int, error) {
	return 0, errMmapReadOnly
}

func (m *mmapStream) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = m.pos + offset
	case io.SeekEnd:
		newPos = int64(len(m.data)) + offset
	default:
		return 0, errors.New("container: invalid seek whence")
	}
	if newPos < 0 {
		return 0, errors.New("container: negative seek position")
	}
	m.pos = newPos
	return m.pos, nil
}

func (m *mmapStream) Tell() (int64, error) {
	return m.pos, nil
}

func (m *mmapStream) Close() error {
	return nil
}

// Release unmaps or frees the memory backing a Container opened via
// OpenMmap. It is a no-op for containers opened any other way.
func (c *Container) Release() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
