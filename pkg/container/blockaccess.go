package container

import (
	"errors"
	"fmt"

	"github.com/emuformat/emu-go/pkg/band"
	"github.com/emuformat/emu-go/pkg/blockio"
	"github.com/emuformat/emu-go/pkg/codec"
	"github.com/emuformat/emu-go/pkg/tileindex"
)

// defaultTileCodec is the compression scheme applied to every tile write.
const defaultTileCodec = codec.Zlib

// ReadBlock decodes the tile at tile-grid coordinates (tx, ty) of band
// bandIdx, overview level level, into dst. dst must be exactly
// tileSize*tileSize*elementSize bytes for that level, row-major with
// stride tileSize*elementSize; for a partial edge tile only the valid
// sub-rectangle is copied into dst, and the bytes beyond the raster's true
// extent keep whatever dst already held.
func (c *Container) ReadBlock(level, bandIdx int, tx, ty int, dst []byte) error {
	if c.mode != modeRead {
		return fmt.Errorf("%w: ReadBlock on a write-mode container", ErrUnsupported)
	}
	b, err := c.Band(bandIdx)
	if err != nil {
		return err
	}

	levelW, levelH, tileSize, err := c.levelGeometry(b, level)
	if err != nil {
		return err
	}

	elemSize, err := c.dataType.ElementSize()
	if err != nil {
		return fmt.Errorf("container: element size: %w", err)
	}

	validW, validH := blockio.ValidExtent(tx, ty, int(tileSize), int(tileSize), int(levelW), int(levelH))
	spec := blockio.BlockSpec{
		NominalW:    int(tileSize),
		NominalH:    int(tileSize),
		ValidW:      validW,
		ValidH:      validH,
		ElementSize: elemSize,
	}

	key := tileindex.Key{Level: uint64(level), Band: uint64(bandIdx), X: uint64(tx), Y: uint64(ty)}
	if err := c.engine.ReadBlock(key, spec, dst); err != nil {
		if errors.Is(err, blockio.ErrTileNotFound) {
			return fmt.Errorf("%w: tile %v", ErrIndexMissing, key)
		}
		return fmt.Errorf("container: read block %v: %w", key, err)
	}
	return nil
}

// WriteBlock compresses and appends the tile at tile-grid coordinates
// (tx, ty) of band bandIdx, overview level level, from buf. Callers with
// arbitrary pixel offsets should use WriteBlockAtOffset instead.
func (c *Container) WriteBlock(level, bandIdx int, tx, ty int, buf []byte) error {
	if c.mode != modeWrite {
		return fmt.Errorf("%w: WriteBlock on a read-only container", ErrUnsupported)
	}
	b, err := c.Band(bandIdx)
	if err != nil {
		return err
	}

	levelW, levelH, tileSize, err := c.levelGeometry(b, level)
	if err != nil {
		return err
	}

	elemSize, err := c.dataType.ElementSize()
	if err != nil {
		return fmt.Errorf("container: element size: %w", err)
	}

	validW, validH := blockio.ValidExtent(tx, ty, int(tileSize), int(tileSize), int(levelW), int(levelH))
	spec := blockio.BlockSpec{
		NominalW:    int(tileSize),
		NominalH:    int(tileSize),
		ValidW:      validW,
		ValidH:      validH,
		ElementSize: elemSize,
		Codec:       defaultTileCodec,
	}

	key := tileindex.Key{Level: uint64(level), Band: uint64(bandIdx), X: uint64(tx), Y: uint64(ty)}
	if err := c.engine.WriteBlock(key, spec, buf); err != nil {
		return fmt.Errorf("container: write block %v: %w", key, err)
	}
	return nil
}

// WriteBlockAtOffset is WriteBlock for callers working in pixel space
// rather than tile-grid coordinates: it converts (xOff, yOff) to a tile
// index via blockio.AlignedTileOffset and rejects any offset that does
// not land exactly on the nominal tile grid for that level.
func (c *Container) WriteBlockAtOffset(level, bandIdx int, xOff, yOff int, buf []byte) error {
	b, err := c.Band(bandIdx)
	if err != nil {
		return err
	}
	_, _, tileSize, err := c.levelGeometry(b, level)
	if err != nil {
		return err
	}

	tx, ty, ok := blockio.AlignedTileOffset(xOff, yOff, int(tileSize), int(tileSize))
	if !ok {
		return fmt.Errorf("%w: (%d,%d) at level %d", blockio.ErrMisalignedOffset, xOff, yOff, level)
	}
	return c.WriteBlock(level, bandIdx, tx, ty, buf)
}

// levelGeometry returns the raster width, height, and tile size for band
// b's overview level (level 0 is full resolution).
func (c *Container) levelGeometry(b *band.State, level int) (width, height, tileSize uint64, err error) {
	if level == 0 {
		return b.XSize, b.YSize, b.TileSize, nil
	}
	idx := level - 1
	if idx < 0 || idx >= len(b.Overviews) {
		return 0, 0, 0, fmt.Errorf("container: overview level %d out of range", level)
	}
	ov := b.Overviews[idx]
	return ov.XSize, ov.YSize, ov.TileSize, nil
}
