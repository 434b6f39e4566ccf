package container

import (
	"errors"
	"io"
	"testing"

	"github.com/emuformat/emu-go/pkg/blockio"
	"github.com/emuformat/emu-go/pkg/hostiface"
	"github.com/emuformat/emu-go/pkg/rat"
)

// memStream is a minimal in-memory hostiface.ByteStream for testing.
type memStream struct {
	buf []byte
	pos int64
}

func (m *memStream) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memStream) Write(p []byte) (int, error) {
	needed := int(m.pos) + len(p)
	if needed > len(m.buf) {
		m.buf = append(m.buf, make([]byte, needed-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos += int64(len(p))
	return len(p), nil
}

func (m *memStream) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = m.pos + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	}
	if newPos < 0 {
		return 0, errors.New("memStream: negative seek position")
	}
	m.pos = newPos
	return m.pos, nil
}

func (m *memStream) Close() error { return nil }

func (m *memStream) Tell() (int64, error) { return m.pos, nil }

func fillTile(w, h, elementSize int, f func(row, col int) byte) []byte {
	buf := make([]byte, w*h*elementSize)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := f(row, col)
			off := (row*w + col) * elementSize
			for i := 0; i < elementSize; i++ {
				buf[off+i] = v
			}
		}
	}
	return buf
}

// TestPartialTileRoundTrip covers end-to-end scenario 1: a 10x10 raster of
// 8-bit integers tiled at 8, written with row*10+col and read back.
func TestPartialTileRoundTrip(t *testing.T) {
	stream := &memStream{}
	c, err := Create(stream, CreateOptions{
		DataType:     hostiface.Byte,
		BandCount:    1,
		RasterWidth:  10,
		RasterHeight: 10,
		TileSize:     8,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for ty := 0; ty < 2; ty++ {
		for tx := 0; tx < 2; tx++ {
			buf := fillTile(8, 8, 1, func(row, col int) byte {
				globalRow := ty*8 + row
				globalCol := tx*8 + col
				return byte(globalRow*10 + globalCol)
			})
			if err := c.WriteBlock(0, 0, tx, ty, buf); err != nil {
				t.Fatalf("WriteBlock(%d,%d) failed: %v", tx, ty, err)
			}
		}
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(stream, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for ty := 0; ty < 2; ty++ {
		for tx := 0; tx < 2; tx++ {
			dst := make([]byte, 8*8)
			if err := reopened.ReadBlock(0, 0, tx, ty, dst); err != nil {
				t.Fatalf("ReadBlock(%d,%d) failed: %v", tx, ty, err)
			}
			validW, validH := 8, 8
			if tx == 1 {
				validW = 2
			}
			if ty == 1 {
				validH = 2
			}
			for row := 0; row < validH; row++ {
				for col := 0; col < validW; col++ {
					globalRow := ty*8 + row
					globalCol := tx*8 + col
					want := byte(globalRow*10 + globalCol)
					got := dst[row*8+col]
					if got != want {
						t.Errorf("tile(%d,%d) pixel (%d,%d) = %d, want %d", tx, ty, row, col, got, want)
					}
				}
			}
		}
	}
}

// TestOverviewRoundTrip covers end-to-end scenario 2: two explicit overview
// factors, constant pixel values, re-opened and verified at every level.
func TestOverviewRoundTrip(t *testing.T) {
	stream := &memStream{}
	c, err := Create(stream, CreateOptions{
		DataType:     hostiface.UInt16,
		BandCount:    2,
		RasterWidth:  1024,
		RasterHeight: 1024,
		TileSize:     512,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for bi := 0; bi < 2; bi++ {
		b, err := c.Band(bi)
		if err != nil {
			t.Fatalf("Band(%d) failed: %v", bi, err)
		}
		if err := b.CreateOverviewsByFactor([]int{2, 4}); err != nil {
			t.Fatalf("CreateOverviewsByFactor failed: %v", err)
		}
	}

	// 0xBEEF little-endian is the byte pair [0xEF, 0xBE] repeated once per
	// pixel.
	constantTile := func(tileSize int) []byte {
		buf := make([]byte, tileSize*tileSize*2)
		for i := 0; i < len(buf); i += 2 {
			buf[i] = 0xEF
			buf[i+1] = 0xBE
		}
		return buf
	}
	writeConstant := func(level, bi, tx, ty, tileSize int) {
		if err := c.WriteBlock(level, bi, tx, ty, constantTile(tileSize)); err != nil {
			t.Fatalf("WriteBlock level=%d band=%d (%d,%d) failed: %v", level, bi, tx, ty, err)
		}
	}

	for bi := 0; bi < 2; bi++ {
		writeConstant(0, bi, 0, 0, 512)
		writeConstant(0, bi, 1, 0, 512)
		writeConstant(0, bi, 0, 1, 512)
		writeConstant(0, bi, 1, 1, 512)
		writeConstant(1, bi, 0, 0, 256)
		writeConstant(2, bi, 0, 0, 128)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(stream, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for bi := 0; bi < 2; bi++ {
		b, err := reopened.Band(bi)
		if err != nil {
			t.Fatalf("Band(%d) failed: %v", bi, err)
		}
		if len(b.Overviews) != 2 {
			t.Fatalf("band %d: overviewCount = %d, want 2", bi, len(b.Overviews))
		}
		if b.Overviews[0].XSize != 512 || b.Overviews[0].YSize != 512 || b.Overviews[0].TileSize != 256 {
			t.Errorf("band %d overview 0 geometry = %+v, want 512x512 tile 256", bi, b.Overviews[0])
		}
		if b.Overviews[1].XSize != 256 || b.Overviews[1].YSize != 256 || b.Overviews[1].TileSize != 128 {
			t.Errorf("band %d overview 1 geometry = %+v, want 256x256 tile 128", bi, b.Overviews[1])
		}

		checkConstant := func(level, tx, ty, tileSize int) {
			dst := make([]byte, tileSize*tileSize*2)
			if err := reopened.ReadBlock(level, bi, tx, ty, dst); err != nil {
				t.Fatalf("ReadBlock level=%d band=%d (%d,%d) failed: %v", level, bi, tx, ty, err)
			}
			for i := 0; i < len(dst); i += 2 {
				if dst[i] != 0xEF || dst[i+1] != 0xBE {
					t.Errorf("band %d level %d pixel %d = %02x%02x, want efbe", bi, level, i/2, dst[i], dst[i+1])
					return
				}
			}
		}
		checkConstant(0, 0, 0, 512)
		checkConstant(1, 0, 0, 256)
		checkConstant(2, 0, 0, 128)
	}
}

// TestRATSparseRoundTrip covers end-to-end scenario 3: an Integer column
// written in full and a String column written sparsely.
func TestRATSparseRoundTrip(t *testing.T) {
	stream := &memStream{}
	c, err := Create(stream, CreateOptions{
		DataType:     hostiface.Byte,
		BandCount:    1,
		RasterWidth:  8,
		RasterHeight: 8,
		TileSize:     8,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	b, err := c.Band(0)
	if err != nil {
		t.Fatalf("Band(0) failed: %v", err)
	}

	histCol, err := b.RAT.AddColumn("Histogram", rat.Integer)
	if err != nil {
		t.Fatalf("AddColumn Histogram failed: %v", err)
	}
	nameCol, err := b.RAT.AddColumn("Name", rat.String)
	if err != nil {
		t.Fatalf("AddColumn Name failed: %v", err)
	}

	const rows = 100001
	b.RAT.SetRowCount(rows)

	hist := make([]int64, rows)
	for i := range hist {
		hist[i] = int64(i)
	}
	if err := b.RAT.ValuesIO(rat.Write, histCol, 0, rows, hist); err != nil {
		t.Fatalf("write Histogram failed: %v", err)
	}

	names := []string{"a", "bb", "ccc"}
	if err := b.RAT.ValuesIO(rat.Write, nameCol, 42, 3, names); err != nil {
		t.Fatalf("write Name failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(stream, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rb, err := reopened.Band(0)
	if err != nil {
		t.Fatalf("Band(0) failed: %v", err)
	}

	gotHist := make([]int64, rows)
	if err := rb.RAT.ValuesIO(rat.Read, 0, 0, rows, gotHist); err != nil {
		t.Fatalf("read Histogram failed: %v", err)
	}
	for i := range gotHist {
		if gotHist[i] != int64(i) {
			t.Fatalf("Histogram[%d] = %d, want %d", i, gotHist[i], i)
			break
		}
	}

	gotNames := make([]string, 10)
	if err := rb.RAT.ValuesIO(rat.Read, 1, 40, 10, gotNames); err != nil {
		t.Fatalf("read Name failed: %v", err)
	}
	want := []string{"", "", "a", "bb", "ccc", "", "", "", "", ""}
	for i := range want {
		if gotNames[i] != want[i] {
			t.Errorf("Name[%d] = %q, want %q", 40+i, gotNames[i], want[i])
		}
	}
}

// TestOpenTruncatedFileFails covers end-to-end scenario 5.
func TestOpenTruncatedFileFails(t *testing.T) {
	stream := &memStream{}
	c, err := Create(stream, CreateOptions{
		DataType:     hostiface.Byte,
		BandCount:    1,
		RasterWidth:  4,
		RasterHeight: 4,
		TileSize:     4,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	buf := make([]byte, 4*4)
	if err := c.WriteBlock(0, 0, 0, 0, buf); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	truncated := &memStream{buf: append([]byte(nil), stream.buf[:len(stream.buf)-4]...)}
	if _, err := Open(truncated, OpenOptions{}); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("got %v, want ErrOpenFailed", err)
	}
}

// TestReadInWriteModeRejected covers end-to-end scenario 6.
func TestReadInWriteModeRejected(t *testing.T) {
	stream := &memStream{}
	c, err := Create(stream, CreateOptions{
		DataType:     hostiface.Byte,
		BandCount:    1,
		RasterWidth:  4,
		RasterHeight: 4,
		TileSize:     4,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	dst := make([]byte, 4*4)
	if err := c.ReadBlock(0, 0, 0, 0, dst); !errors.Is(err, ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
}

// TestWriteBlockAtOffset covers the pixel-space write entry point: an
// offset landing exactly on the tile grid behaves like WriteBlock, and one
// that doesn't is rejected with ErrMisalignedOffset.
func TestWriteBlockAtOffset(t *testing.T) {
	stream := &memStream{}
	c, err := Create(stream, CreateOptions{
		DataType:     hostiface.Byte,
		BandCount:    1,
		RasterWidth:  16,
		RasterHeight: 16,
		TileSize:     8,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	buf := fillTile(8, 8, 1, func(row, col int) byte { return byte(row*8 + col) })
	if err := c.WriteBlockAtOffset(0, 0, 8, 0, buf); err != nil {
		t.Fatalf("WriteBlockAtOffset(8,0) failed: %v", err)
	}

	if err := c.WriteBlockAtOffset(0, 0, 5, 0, buf); !errors.Is(err, blockio.ErrMisalignedOffset) {
		t.Errorf("got %v, want ErrMisalignedOffset", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(stream, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	dst := make([]byte, 8*8)
	if err := reopened.ReadBlock(0, 0, 1, 0, dst); err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	for i, v := range dst {
		if v != buf[i] {
			t.Fatalf("pixel %d = %d, want %d", i, v, buf[i])
		}
	}
}

// TestMagicVersionMismatchRejected exercises the preamble check directly.
func TestMagicVersionMismatchRejected(t *testing.T) {
	stream := &memStream{buf: []byte("NOTEMU0001\x00garbage-footer-pointer")}
	if _, err := Open(stream, OpenOptions{}); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("got %v, want ErrOpenFailed", err)
	}
}

// TestCreateCopyOrdering covers end-to-end scenario 4: a CreateCopy pass
// produces a destination whose tile writes proceed coarsest-overview
// first, then the band RAT, then full resolution. The source bands have
// no RAT rows, so the test checks the tile-level order only.
func TestCreateCopyOrdering(t *testing.T) {
	srcStream := &memStream{}
	src, err := Create(srcStream, CreateOptions{
		DataType:     hostiface.Byte,
		BandCount:    3,
		RasterWidth:  16,
		RasterHeight: 16,
		TileSize:     4,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for bi := 0; bi < 3; bi++ {
		b, err := src.Band(bi)
		if err != nil {
			t.Fatalf("Band(%d) failed: %v", bi, err)
		}
		if err := b.CreateOverviewsByFactor([]int{2, 4}); err != nil {
			t.Fatalf("CreateOverviewsByFactor failed: %v", err)
		}
	}

	writeAllTiles := func(c *Container, level, bi, tileSize, rasterSize int) {
		tiles := (rasterSize + tileSize - 1) / tileSize
		for ty := 0; ty < tiles; ty++ {
			for tx := 0; tx < tiles; tx++ {
				buf := make([]byte, tileSize*tileSize)
				if err := c.WriteBlock(level, bi, tx, ty, buf); err != nil {
					t.Fatalf("WriteBlock level=%d band=%d failed: %v", level, bi, err)
				}
			}
		}
	}
	for bi := 0; bi < 3; bi++ {
		writeAllTiles(src, 0, bi, 4, 16)
		writeAllTiles(src, 1, bi, 2, 8)
		writeAllTiles(src, 2, bi, 1, 4)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close source failed: %v", err)
	}

	reopenedSrc, err := Open(srcStream, OpenOptions{})
	if err != nil {
		t.Fatalf("Open source failed: %v", err)
	}

	dstStream := &memStream{}
	dst, err := CreateCopy(dstStream, reopenedSrc, nil, nil)
	if err != nil {
		t.Fatalf("CreateCopy failed: %v", err)
	}

	for bi := 0; bi < 3; bi++ {
		if len(dst.bands[bi].Overviews) != 2 {
			t.Errorf("dst band %d overview count = %d, want 2", bi, len(dst.bands[bi].Overviews))
		}
	}
	if dst.index.Len() != src.index.Len() {
		t.Errorf("dst tile count = %d, want %d", dst.index.Len(), src.index.Len())
	}

	// Every tile of a coarser level must sit before every tile of the
	// next finer level in the destination payload.
	minOff := map[uint64]uint64{}
	maxOff := map[uint64]uint64{}
	for _, e := range dst.index.Sorted() {
		lvl, off := e.Key.Level, e.Value.Offset
		if cur, ok := minOff[lvl]; !ok || off < cur {
			minOff[lvl] = off
		}
		if off > maxOff[lvl] {
			maxOff[lvl] = off
		}
	}
	if maxOff[2] >= minOff[1] || maxOff[1] >= minOff[0] {
		t.Errorf("dst tile offsets not coarsest-first: level 2 max %d, level 1 [%d, %d], level 0 min %d",
			maxOff[2], minOff[1], maxOff[1], minOff[0])
	}
}
