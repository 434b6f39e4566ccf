package container

import "errors"

// The container's error kinds. Callers that need to distinguish failure
// classes should use errors.Is against these sentinels; wrapped context
// is added with fmt.Errorf("...: %w").
var (
	// ErrOpenFailed covers a target that cannot be created, a magic or
	// version mismatch, or a footer pointer that lands outside the file.
	ErrOpenFailed = errors.New("container: open failed")

	// ErrUnsupported covers reading from a write-open container, writing
	// to or closing a read-only one, a CreateCopy source not open for
	// reading, and CreateCopy block sizes that differ between bands.
	// Misaligned block writes return blockio.ErrMisalignedOffset instead.
	ErrUnsupported = errors.New("container: unsupported operation")

	// ErrIndexMissing is returned by a tile read whose key has no entry.
	ErrIndexMissing = errors.New("container: tile index missing")

	// ErrInvariantViolated is the kind for invariant violations; no code
	// path in this package returns it at present. Double overview creation
	// is reported as band.ErrOverviewsAlreadySet.
	ErrInvariantViolated = errors.New("container: invariant violated")

	// ErrCancelled is returned when a progress callback requests abort.
	ErrCancelled = errors.New("container: operation cancelled by progress callback")
)
