// Package container implements the EMU file format itself: preamble and
// footer marshalling, the create/open/close lifecycle, band assembly on
// open, and the streaming CreateCopy pipeline.
package container

import (
	"fmt"
	"sync"

	"github.com/emuformat/emu-go/pkg/band"
	"github.com/emuformat/emu-go/pkg/blockio"
	"github.com/emuformat/emu-go/pkg/hostiface"
	"github.com/emuformat/emu-go/pkg/membudget"
	"github.com/emuformat/emu-go/pkg/tileindex"
)

// Magic and Version are the 7-byte preamble identifier.
const (
	Magic   = "EMU"
	Version = "0001"
)

const (
	flagCloudOptimised uint32 = 1 << 0
)

const preambleSize = 11 // "EMU" + "0001" + u32 flags

// mode mirrors blockio.Mode but is kept container-local so Container's
// public surface does not leak the block-engine package's type.
type mode int

const (
	modeWrite mode = iota
	modeRead
)

// Container is the root object for one EMU file: it owns the file
// handle, the TileIndex, the band list, and the global mutex every band
// and RAT store shares.
type Container struct {
	mu sync.Mutex

	stream hostiface.ByteStream
	mode   mode

	cloudOptimised bool

	dataType hostiface.DataType
	rasterW  uint64
	rasterH  uint64
	tileSize uint64

	bands []*band.State

	geoTransform hostiface.GeoTransform
	projection   hostiface.Projection
	metadata     map[string]string

	index  *tileindex.Index
	engine *blockio.Engine
	budget *membudget.Budget

	closer func() error // platform-specific cleanup for Open (e.g. munmap)
}

// CreateOptions configures a new write-mode container.
type CreateOptions struct {
	DataType       hostiface.DataType
	BandCount      int
	RasterWidth    uint64
	RasterHeight   uint64
	TileSize       uint64
	CloudOptimised bool
	Budget         *membudget.Budget
}

// Create opens stream for writing and initialises a fresh container: it
// writes the 11-byte preamble and constructs one empty band.State per
// BandCount, all sharing the container's mutex, engine, and index.
func Create(stream hostiface.ByteStream, opts CreateOptions) (*Container, error) {
	if opts.BandCount <= 0 {
		return nil, fmt.Errorf("%w: band count must be positive", ErrOpenFailed)
	}

	c := &Container{
		stream:         stream,
		mode:           modeWrite,
		cloudOptimised: opts.CloudOptimised,
		dataType:       opts.DataType,
		rasterW:        opts.RasterWidth,
		rasterH:        opts.RasterHeight,
		tileSize:       opts.TileSize,
		metadata:       make(map[string]string),
		index:          tileindex.New(),
		budget:         opts.Budget,
	}

	if err := c.writePreamble(); err != nil {
		return nil, err
	}

	c.engine = blockio.New(&c.mu, stream, c.index, c.budget, blockio.ModeWrite)

	c.bands = make([]*band.State, opts.BandCount)
	for i := range c.bands {
		b := band.New(opts.DataType, opts.RasterWidth, opts.RasterHeight, opts.TileSize)
		b.RAT.Attach(&c.mu, stream)
		c.bands[i] = b
	}

	return c, nil
}

func (c *Container) writePreamble() error {
	buf := make([]byte, preambleSize)
	copy(buf[0:3], Magic)
	copy(buf[3:7], Version)
	flags := uint32(0)
	if c.cloudOptimised {
		flags |= flagCloudOptimised
	}
	putUint32(buf[7:11], flags)

	if _, err := c.stream.Write(buf); err != nil {
		return fmt.Errorf("%w: write preamble: %v", ErrOpenFailed, err)
	}
	return nil
}

// BandCount returns the number of bands.
func (c *Container) BandCount() int {
	return len(c.bands)
}

// Band returns band i's mutable state.
func (c *Container) Band(i int) (*band.State, error) {
	if i < 0 || i >= len(c.bands) {
		return nil, fmt.Errorf("container: band index %d out of range", i)
	}
	return c.bands[i], nil
}

// SetGeoTransform sets the affine pixel-to-georeferenced transform.
func (c *Container) SetGeoTransform(gt hostiface.GeoTransform) {
	c.geoTransform = gt
}

// GeoTransform returns the affine pixel-to-georeferenced transform.
func (c *Container) GeoTransform() hostiface.GeoTransform {
	return c.geoTransform
}

// SetProjection sets the dataset's coordinate reference system.
func (c *Container) SetProjection(p hostiface.Projection) {
	c.projection = p
}

// Projection returns the dataset's coordinate reference system, or nil if
// none was set.
func (c *Container) Projection() hostiface.Projection {
	return c.projection
}

// SetMetadata assigns a dataset-level KEY=VALUE pair.
func (c *Container) SetMetadata(key, value string) {
	c.metadata[key] = value
}

// RasterSize returns the full-resolution raster dimensions.
func (c *Container) RasterSize() (width, height uint64) {
	return c.rasterW, c.rasterH
}

// TileSize returns the nominal tile size shared by every band's
// full-resolution level.
func (c *Container) TileSize() uint64 {
	return c.tileSize
}
