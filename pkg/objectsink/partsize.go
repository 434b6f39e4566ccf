// Package objectsink provides a sequential io.WriteCloser target backed
// by an S3 multipart upload, for containers created against an
// object-store URI rather than a local file.
package objectsink

import (
	"errors"
	"fmt"
)

const (
	// minPartSize is the floor imposed on the computed part size.
	minPartSize int64 = 50 * 1024 * 1024
	// maxParts is the object store's multipart upload part-count ceiling.
	maxParts int64 = 1000
	// maxPartSize is the object store's per-part size ceiling.
	maxPartSize int64 = 5 * 1024 * 1024 * 1024
)

// ErrFileTooLarge is returned by PartSize when expectedFileSize would
// require a part size beyond the object store's per-part ceiling even
// when spread across the maximum part count.
var ErrFileTooLarge = errors.New("objectsink: expected file size exceeds the object store's multipart limits")

// PartSize computes the multipart upload part size for an expected total
// file size: the smallest part size such that
// partSize*1000 >= expectedFileSize, floored at 50 MiB. If that would
// still require a part size above the object store's 5 GiB ceiling,
// creation fails.
func PartSize(expectedFileSize int64) (int64, error) {
	if expectedFileSize <= 0 {
		return minPartSize, nil
	}

	partSize := expectedFileSize / maxParts
	if expectedFileSize%maxParts != 0 {
		partSize++
	}
	if partSize < minPartSize {
		partSize = minPartSize
	}
	if partSize > maxPartSize {
		return 0, fmt.Errorf("%w: %d bytes would need a part size of %d bytes, ceiling is %d",
			ErrFileTooLarge, expectedFileSize, partSize, maxPartSize)
	}
	return partSize, nil
}

// ExpectedFileSize estimates a raster's on-disk size for PartSize's
// input: full-resolution pixel count times band count times element
// size, discounted by 0.5 for the compression this format always
// applies to tile payloads.
func ExpectedFileSize(xSize, ySize, bands uint64, elementSize int) int64 {
	return int64(float64(xSize*ySize*bands*uint64(elementSize)) * 0.5)
}
