package hostiface

import (
	"fmt"
	"io"
	"os"
)

// OSFile adapts *os.File to ByteStream.
type OSFile struct {
	f *os.File
}

// NewOSFile wraps an already-open file.
func NewOSFile(f *os.File) *OSFile {
	return &OSFile{f: f}
}

// CreateOSFile creates (or truncates) path and wraps it.
func CreateOSFile(path string) (*OSFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("hostiface: create %s: %w", path, err)
	}
	return &OSFile{f: f}, nil
}

// OpenOSFile opens path read-only and wraps it.
func OpenOSFile(path string) (*OSFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hostiface: open %s: %w", path, err)
	}
	return &OSFile{f: f}, nil
}

func (o *OSFile) Read(p []byte) (int, error)  { return o.f.Read(p) }
func (o *OSFile) Write(p []byte) (int, error) { return o.f.Write(p) }
func (o *OSFile) Close() error                { return o.f.Close() }

func (o *OSFile) Seek(offset int64, whence int) (int64, error) {
	return o.f.Seek(offset, whence)
}

// Tell returns the current file offset, implemented as a relative Seek of
// zero bytes, matching the host byte-stream contract's expectation that
// Tell have no side effect on position.
func (o *OSFile) Tell() (int64, error) {
	return o.f.Seek(0, io.SeekCurrent)
}

// File exposes the underlying *os.File, e.g. for mmap in pkg/container.
func (o *OSFile) File() *os.File {
	return o.f
}
