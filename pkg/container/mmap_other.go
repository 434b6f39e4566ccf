//go:build !(linux || darwin || freebsd || openbsd || netbsd || dragonfly)

package container

import (
	"fmt"
	"os"
)

// OpenMmap on unsupported platforms falls back to reading the whole file
// into memory instead of calling into golang.org/x/sys/unix, since no
// portable mmap syscall exists here.
func OpenMmap(path string, opts OpenOptions) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrOpenFailed, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrOpenFailed, path)
	}

	stream := newMmapStream(data)
	c, err := Open(stream, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}
