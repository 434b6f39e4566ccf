// Package blockio implements the per-tile read/write engine: locating a
// tile in the TileIndex, (de)compressing its payload, handling partial
// edge tiles, and serializing all I/O through a container-wide mutex.
package blockio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emuformat/emu-go/pkg/hostiface"
	"github.com/emuformat/emu-go/pkg/membudget"
	"github.com/emuformat/emu-go/pkg/tileindex"
)

// Mode distinguishes a write-session engine (append-only, index mutable)
// from a read-only engine (random access, index sealed).
type Mode int

const (
	ModeWrite Mode = iota
	ModeRead
)

// ErrReadInWriteMode is returned by ReadBlock when the engine is still
// accepting writes: tiles are not readable until the container is Closed.
var ErrReadInWriteMode = errors.New("blockio: read attempted on a write-mode container")

// ErrWriteInReadMode is returned by WriteBlock on a read-only engine.
var ErrWriteInReadMode = errors.New("blockio: write attempted on a read-only container")

// ErrMisalignedOffset is returned when a caller requests a tile write at
// pixel coordinates that do not fall on the nominal tile grid.
var ErrMisalignedOffset = errors.New("blockio: write offset is not aligned to the tile grid")

// ErrTileNotFound is returned by ReadBlock when the key has no entry in
// the TileIndex.
var ErrTileNotFound = tileindex.ErrNotFound

// Engine is the shared tile I/O path for one container. Several bands
// (and their overviews) share a single Engine instance via the same
// mutex, file stream, and TileIndex, mirroring the container-wide mutex
// every reader and writer serializes through.
type Engine struct {
	mu     *sync.Mutex
	stream hostiface.ByteStream
	index  *tileindex.Index
	budget *membudget.Budget
	mode   Mode

	scratchPool sync.Pool
}

// New constructs an Engine over an already-open stream. mu is shared
// across every Engine (and RAT store) belonging to the same container.
func New(mu *sync.Mutex, stream hostiface.ByteStream, index *tileindex.Index, budget *membudget.Budget, mode Mode) *Engine {
	return &Engine{
		mu:     mu,
		stream: stream,
		index:  index,
		budget: budget,
		mode:   mode,
	}
}

// acquireScratch reserves n bytes from the memory budget (blocking if
// exhausted, the same soft-enforcement pattern used elsewhere for
// sort/merge buffers) and returns a buffer of at least that length drawn
// from a small pool to cut allocation churn on hot read/write paths.
func (e *Engine) acquireScratch(n int) ([]byte, error) {
	if e.budget != nil {
		if err := e.budget.Reserve(uint64(n)); err != nil {
			return nil, fmt.Errorf("blockio: reserve scratch: %w", err)
		}
	}
	if v := e.scratchPool.Get(); v != nil {
		buf := v.([]byte)
		if cap(buf) >= n {
			return buf[:n], nil
		}
	}
	return make([]byte, n), nil
}

func (e *Engine) releaseScratch(buf []byte, n int) {
	e.scratchPool.Put(buf[:cap(buf)]) //nolint:staticcheck // pool reuse, capacity preserved
	if e.budget != nil {
		e.budget.Release(uint64(n))
	}
}

// ValidExtent computes the actual in-bounds pixel extent of the tile at
// tile-grid coordinates (tx, ty) within a raster of size (rasterW,
// rasterH) tiled at (tileW, tileH): the nominal extent, clipped at the
// raster's right/bottom edge.
func ValidExtent(tx, ty, tileW, tileH, rasterW, rasterH int) (validW, validH int) {
	x0 := tx * tileW
	y0 := ty * tileH
	validW = tileW
	if x0+tileW > rasterW {
		validW = rasterW - x0
	}
	validH = tileH
	if y0+tileH > rasterH {
		validH = rasterH - y0
	}
	return validW, validH
}

// AlignedTileOffset converts a pixel offset into tile-grid coordinates,
// rejecting any offset that does not fall exactly on a tile boundary.
// Arbitrary-offset RasterIO writes are rejected; only offsets aligned to
// the nominal tile grid are accepted.
func AlignedTileOffset(xOff, yOff, tileW, tileH int) (tx, ty int, ok bool) {
	if tileW <= 0 || tileH <= 0 {
		return 0, 0, false
	}
	if xOff%tileW != 0 || yOff%tileH != 0 {
		return 0, 0, false
	}
	return xOff / tileW, yOff / tileH, true
}
