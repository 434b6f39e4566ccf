package blockio

import (
	"fmt"
	"io"

	"github.com/emuformat/emu-go/pkg/codec"
	"github.com/emuformat/emu-go/pkg/tileindex"
)

// BlockSpec describes the geometry of one tile read or write request:
// nominal dimensions (the tile's declared size), valid dimensions (the
// in-bounds portion for an edge tile; equal to nominal for interior
// tiles), the per-pixel element size, and the compression discriminant to
// use on write.
type BlockSpec struct {
	NominalW, NominalH int
	ValidW, ValidH     int
	ElementSize        int
	Codec              byte
}

func (s BlockSpec) nominalBytes() int {
	return s.NominalW * s.NominalH * s.ElementSize
}

func (s BlockSpec) validBytes() int {
	return s.ValidW * s.ValidH * s.ElementSize
}

func (s BlockSpec) partial() bool {
	return s.ValidW != s.NominalW || s.ValidH != s.NominalH
}

// WriteBlock compresses buf (a NominalW*NominalH*ElementSize buffer,
// row-major with stride NominalW*ElementSize) and appends it to the
// stream, recording its location under key in the TileIndex.
//
// For a partial edge tile, only the valid sub-rectangle is compacted and
// compressed — the padding region is never written to disk.
func (e *Engine) WriteBlock(key tileindex.Key, spec BlockSpec, buf []byte) error {
	if e.mode != ModeWrite {
		return ErrWriteInReadMode
	}
	if len(buf) != spec.nominalBytes() {
		return fmt.Errorf("blockio: write buffer is %d bytes, want %d", len(buf), spec.nominalBytes())
	}

	payload := buf
	if spec.partial() {
		compact, err := e.acquireScratch(spec.validBytes())
		if err != nil {
			return err
		}
		defer e.releaseScratch(compact, spec.validBytes())
		compactRows(buf, compact, spec.NominalW, spec.ValidW, spec.ValidH, spec.ElementSize)
		payload = compact
	}

	compressed, _, err := codec.Encode(spec.Codec, payload)
	if err != nil {
		return fmt.Errorf("blockio: compress tile: %w", err)
	}

	e.mu.Lock()
	offset, err := e.stream.Tell()
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("blockio: tell offset: %w", err)
	}
	if _, err := e.stream.Write([]byte{spec.Codec}); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("blockio: write compression discriminant: %w", err)
	}
	if _, err := e.stream.Write(compressed); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("blockio: write tile payload: %w", err)
	}
	e.mu.Unlock()

	return e.index.Insert(key, tileindex.Value{
		Offset:           uint64(offset),
		CompressedSize:   uint64(len(compressed)),
		UncompressedSize: uint64(spec.validBytes()),
	})
}

// ReadBlock locates key in the TileIndex, decompresses its payload, and
// fills dst (a NominalW*NominalH*ElementSize buffer, row-major with
// stride NominalW*ElementSize). For a partial edge tile, the decompressed
// valid sub-rectangle is row-copied into dst and the remaining rows/
// columns are left at dst's existing contents (the padding region's
// contents are unspecified).
func (e *Engine) ReadBlock(key tileindex.Key, spec BlockSpec, dst []byte) error {
	if e.mode != ModeRead {
		return ErrReadInWriteMode
	}
	if len(dst) != spec.nominalBytes() {
		return fmt.Errorf("blockio: read buffer is %d bytes, want %d", len(dst), spec.nominalBytes())
	}

	e.mu.Lock()
	value, err := e.index.Get(key)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("blockio: tile index missing for %+v: %w", key, err)
	}
	if _, err := e.stream.Seek(int64(value.Offset), io.SeekStart); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("blockio: seek to tile: %w", err)
	}
	var discHdr [1]byte
	if _, err := io.ReadFull(e.stream, discHdr[:]); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("blockio: read compression discriminant: %w", err)
	}
	compressed, err := e.acquireScratch(int(value.CompressedSize))
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if _, err := io.ReadFull(e.stream, compressed); err != nil {
		e.mu.Unlock()
		e.releaseScratch(compressed, int(value.CompressedSize))
		return fmt.Errorf("blockio: read tile payload: %w", err)
	}
	e.mu.Unlock()
	defer e.releaseScratch(compressed, int(value.CompressedSize))

	if !spec.partial() {
		if int(value.UncompressedSize) != len(dst) {
			return fmt.Errorf("blockio: tile uncompressed size %d does not match buffer %d", value.UncompressedSize, len(dst))
		}
		return codec.Decode(discHdr[0], compressed, dst)
	}

	scratch, err := e.acquireScratch(int(value.UncompressedSize))
	if err != nil {
		return err
	}
	defer e.releaseScratch(scratch, int(value.UncompressedSize))
	if err := codec.Decode(discHdr[0], compressed, scratch); err != nil {
		return err
	}
	expandRows(scratch, dst, spec.NominalW, spec.ValidW, spec.ValidH, spec.ElementSize)
	return nil
}

// compactRows copies the top-left validW x validH sub-rectangle of a
// nominalW-wide, row-major src buffer into a tightly packed dst buffer of
// exactly validW*validH*elementSize bytes.
func compactRows(src, dst []byte, nominalW, validW, validH, elementSize int) {
	srcStride := nominalW * elementSize
	dstStride := validW * elementSize
	for row := 0; row < validH; row++ {
		srcOff := row * srcStride
		dstOff := row * dstStride
		copy(dst[dstOff:dstOff+dstStride], src[srcOff:srcOff+dstStride])
	}
}

// expandRows is the inverse of compactRows: it row-copies a tightly
// packed validW x validH buffer into the top-left corner of a
// nominalW-wide destination buffer, leaving the padding rows/columns
// untouched.
func expandRows(src, dst []byte, nominalW, validW, validH, elementSize int) {
	srcStride := validW * elementSize
	dstStride := nominalW * elementSize
	for row := 0; row < validH; row++ {
		srcOff := row * srcStride
		dstOff := row * dstStride
		copy(dst[dstOff:dstOff+srcStride], src[srcOff:srcOff+srcStride])
	}
}
