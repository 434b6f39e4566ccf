//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package container

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenMmap opens path for read-only access, memory-maps its contents, and
// calls Open over the mapped bytes so tile and RAT-chunk payloads are
// served without an extra copy through a read syscall. The mapping is
// released when the returned Container is discarded by calling its
// Release method.
func OpenMmap(path string, opts OpenOptions) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrOpenFailed, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrOpenFailed, path, err)
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is empty", ErrOpenFailed, path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mmap %s: %v", ErrOpenFailed, path, err)
	}

	stream := newMmapStream(data)
	c, err := Open(stream, opts)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}

	c.closer = func() error {
		if err := unix.Munmap(data); err != nil {
			f.Close()
			return fmt.Errorf("container: munmap: %w", err)
		}
		return f.Close()
	}
	return c, nil
}
