package container

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/emuformat/emu-go/pkg/band"
	"github.com/emuformat/emu-go/pkg/blockio"
	"github.com/emuformat/emu-go/pkg/codec"
	"github.com/emuformat/emu-go/pkg/hostiface"
	"github.com/emuformat/emu-go/pkg/logging"
	"github.com/emuformat/emu-go/pkg/membudget"
	"github.com/emuformat/emu-go/pkg/rat"
	"github.com/emuformat/emu-go/pkg/tileindex"
)

const hdrMagic = "HDR\x00"

// Close flushes every band's RAT index, writes the footer, and appends
// the trailing 8-byte footer offset. It is only valid in write mode.
func (c *Container) Close() error {
	if c.mode != modeWrite {
		return fmt.Errorf("%w: Close on a read-only container", ErrUnsupported)
	}
	start := time.Now()
	log := logging.WithPhase("footer")

	for i, b := range c.bands {
		if err := b.RAT.WriteIndex(); err != nil {
			return fmt.Errorf("container: flush band %d RAT index: %w", i, err)
		}
	}

	headerOffset, err := c.stream.Tell()
	if err != nil {
		return fmt.Errorf("container: tell header offset: %w", err)
	}

	w := bufio.NewWriter(c.stream)
	if err := c.writeFooter(w); err != nil {
		return fmt.Errorf("container: write footer: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("container: flush footer: %w", err)
	}

	if err := writeU64(c.stream, uint64(headerOffset)); err != nil {
		return fmt.Errorf("container: write footer offset: %w", err)
	}

	logging.FileCreated(log, "footer", time.Since(start)).
		Int("band_count", len(c.bands)).
		CountUint64("tile_count", uint64(c.index.Len())).
		Uint64("footer_offset", uint64(headerOffset)).
		Log("footer_written")

	return c.stream.Close()
}

func (c *Container) writeFooter(w io.Writer) error {
	if err := writeBytes(w, []byte(hdrMagic)); err != nil {
		return err
	}
	if err := writeU64(w, uint64(c.dataType)); err != nil {
		return err
	}
	if err := writeU64(w, uint64(len(c.bands))); err != nil {
		return err
	}
	if err := writeU64(w, c.rasterW); err != nil {
		return err
	}
	if err := writeU64(w, c.rasterH); err != nil {
		return err
	}
	if err := writeU32(w, uint32(c.tileSize)); err != nil {
		return err
	}

	for _, b := range c.bands {
		if err := writeBandFooter(w, b); err != nil {
			return err
		}
	}

	for _, v := range c.geoTransform {
		if err := writeF64(w, v); err != nil {
			return err
		}
	}

	wkt := ""
	if c.projection != nil {
		wkt = c.projection.WKT()
	}
	if err := writeU64(w, uint64(len(wkt)+1)); err != nil {
		return err
	}
	if err := writeNulString(w, wkt); err != nil {
		return err
	}

	if err := writeMetadataBlock(w, c.metadata); err != nil {
		return err
	}

	entries := c.index.Sorted()
	if err := writeU64(w, uint64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeU64(w, e.Value.Offset); err != nil {
			return err
		}
		if err := writeU64(w, e.Value.CompressedSize); err != nil {
			return err
		}
		if err := writeU64(w, e.Value.UncompressedSize); err != nil {
			return err
		}
		if err := writeU64(w, e.Key.Level); err != nil {
			return err
		}
		if err := writeU64(w, e.Key.Band); err != nil {
			return err
		}
		if err := writeU64(w, e.Key.X); err != nil {
			return err
		}
		if err := writeU64(w, e.Key.Y); err != nil {
			return err
		}
	}

	return nil
}

func writeBandFooter(w io.Writer, b *band.State) error {
	flag := byte(0)
	if b.NoDataSet {
		flag = 1
	}
	if err := writeU8(w, flag); err != nil {
		return err
	}
	if err := writeI64(w, b.NoData); err != nil {
		return err
	}
	for _, v := range []float64{b.Min, b.Max, b.Mean, b.StdDev} {
		if err := writeF64(w, v); err != nil {
			return err
		}
	}

	if err := writeU32(w, uint32(len(b.Overviews))); err != nil {
		return err
	}
	for _, ov := range b.Overviews {
		if err := writeU64(w, ov.XSize); err != nil {
			return err
		}
		if err := writeU64(w, ov.YSize); err != nil {
			return err
		}
		if err := writeU16(w, uint16(ov.TileSize)); err != nil {
			return err
		}
	}

	if err := writeRatIndex(w, b.RAT); err != nil {
		return err
	}

	return writeMetadataBlock(w, b.Metadata)
}

func writeRatIndex(w io.Writer, store *rat.Store) error {
	if err := writeU64(w, uint64(store.ColumnCount())); err != nil {
		return err
	}
	if err := writeU64(w, store.RowCount()); err != nil {
		return err
	}
	for i := 0; i < store.ColumnCount(); i++ {
		col, err := store.Column(i)
		if err != nil {
			return err
		}
		if err := writeU64(w, uint64(col.Type)); err != nil {
			return err
		}
		if err := writeNulString(w, col.Name); err != nil {
			return err
		}
		chunks := append([]rat.Chunk(nil), col.Chunks...)
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartIdx < chunks[j].StartIdx })
		if err := writeU64(w, uint64(len(chunks))); err != nil {
			return err
		}
		for _, ch := range chunks {
			if err := writeU64(w, ch.StartIdx); err != nil {
				return err
			}
			if err := writeU64(w, ch.Length); err != nil {
				return err
			}
			if err := writeU64(w, ch.Offset); err != nil {
				return err
			}
			if err := writeU64(w, ch.CompressedSize); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeMetadataBlock encodes kv as inputSize/compressedSize/bytes, the
// shape shared by both the per-band "band metadata" block and the
// container-level "dataset metadata" block.
func writeMetadataBlock(w io.Writer, kv map[string]string) error {
	pairs := make([]string, 0, len(kv))
	for k, v := range kv {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	inputSize, compressed, err := codec.EncodeMetadata(pairs)
	if err != nil {
		return fmt.Errorf("container: encode metadata: %w", err)
	}
	if err := writeU64(w, inputSize); err != nil {
		return err
	}
	if inputSize == 0 {
		return nil
	}
	if err := writeU64(w, uint64(len(compressed))); err != nil {
		return err
	}
	return writeBytes(w, compressed)
}

// readMetadataBlock inverts writeMetadataBlock.
func readMetadataBlock(r io.Reader) (map[string]string, error) {
	inputSize, err := readU64(r)
	if err != nil {
		return nil, err
	}
	kv := make(map[string]string)
	if inputSize == 0 {
		return kv, nil
	}
	compressedSize, err := readU64(r)
	if err != nil {
		return nil, err
	}
	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("container: read metadata payload: %w", err)
	}
	pairs, err := codec.DecodeMetadata(inputSize, compressed)
	if err != nil {
		return nil, fmt.Errorf("container: decode metadata: %w", err)
	}
	for _, kvStr := range pairs {
		k, v := codec.SplitKV(kvStr)
		kv[k] = v
	}
	return kv, nil
}

// OpenOptions configures a read-mode Open.
type OpenOptions struct {
	Budget *membudget.Budget
}

// Open verifies stream's preamble and footer, then reconstructs a
// read-only Container: every band's statistics, overviews, RAT index, and
// the dataset-wide TileIndex (sealed for MPHF-accelerated lookups).
func Open(stream hostiface.ByteStream, opts OpenOptions) (*Container, error) {
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to preamble: %v", ErrOpenFailed, err)
	}
	preamble := make([]byte, preambleSize)
	if _, err := io.ReadFull(stream, preamble); err != nil {
		return nil, fmt.Errorf("%w: read preamble: %v", ErrOpenFailed, err)
	}
	if string(preamble[0:3]) != Magic || string(preamble[3:7]) != Version {
		return nil, fmt.Errorf("%w: magic/version mismatch", ErrOpenFailed)
	}
	flags := readUint32(preamble[7:11])

	if _, err := stream.Seek(-8, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("%w: seek to footer pointer: %v", ErrOpenFailed, err)
	}
	footerOffset, err := readU64(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: read footer pointer: %v", ErrOpenFailed, err)
	}
	if _, err := stream.Seek(int64(footerOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to footer: %v", ErrOpenFailed, err)
	}

	c := &Container{
		stream:         stream,
		mode:           modeRead,
		cloudOptimised: flags&flagCloudOptimised != 0,
		metadata:       make(map[string]string),
		index:          tileindex.New(),
		budget:         opts.Budget,
	}

	if err := c.readFooter(bufio.NewReader(stream)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	if err := c.index.Seal(); err != nil {
		return nil, fmt.Errorf("%w: seal tile index: %v", ErrOpenFailed, err)
	}

	c.engine = blockio.New(&c.mu, stream, c.index, c.budget, blockio.ModeRead)
	for _, b := range c.bands {
		b.RAT.Attach(&c.mu, stream)
	}

	return c, nil
}

func (c *Container) readFooter(r io.Reader) error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("read footer magic: %w", err)
	}
	if string(magic) != hdrMagic {
		return fmt.Errorf("footer magic mismatch")
	}

	dataType, err := readU64(r)
	if err != nil {
		return err
	}
	c.dataType = hostiface.DataType(dataType)

	bandCount, err := readU64(r)
	if err != nil {
		return err
	}
	if c.rasterW, err = readU64(r); err != nil {
		return err
	}
	if c.rasterH, err = readU64(r); err != nil {
		return err
	}
	tileSize, err := readU32(r)
	if err != nil {
		return err
	}
	c.tileSize = uint64(tileSize)

	c.bands = make([]*band.State, bandCount)
	for i := range c.bands {
		b, err := readBandFooter(r, c.dataType, c.rasterW, c.rasterH, c.tileSize)
		if err != nil {
			return fmt.Errorf("band %d: %w", i, err)
		}
		c.bands[i] = b
	}

	for i := range c.geoTransform {
		if c.geoTransform[i], err = readF64(r); err != nil {
			return err
		}
	}

	wktLen, err := readU64(r)
	if err != nil {
		return err
	}
	wktBuf := make([]byte, wktLen)
	if wktLen > 0 {
		if _, err := io.ReadFull(r, wktBuf); err != nil {
			return fmt.Errorf("read wkt: %w", err)
		}
	}
	wkt := ""
	if len(wktBuf) > 0 {
		wkt = string(wktBuf[:len(wktBuf)-1]) // strip trailing NUL
	}
	c.projection = hostiface.NewWKTProjection(wkt)

	metadata, err := readMetadataBlock(r)
	if err != nil {
		return fmt.Errorf("dataset metadata: %w", err)
	}
	c.metadata = metadata

	tileCount, err := readU64(r)
	if err != nil {
		return err
	}
	for i := uint64(0); i < tileCount; i++ {
		offset, err := readU64(r)
		if err != nil {
			return err
		}
		compressedSize, err := readU64(r)
		if err != nil {
			return err
		}
		uncompressedSize, err := readU64(r)
		if err != nil {
			return err
		}
		level, err := readU64(r)
		if err != nil {
			return err
		}
		bandIdx, err := readU64(r)
		if err != nil {
			return err
		}
		x, err := readU64(r)
		if err != nil {
			return err
		}
		y, err := readU64(r)
		if err != nil {
			return err
		}
		key := tileindex.Key{Level: level, Band: bandIdx, X: x, Y: y}
		value := tileindex.Value{Offset: offset, CompressedSize: compressedSize, UncompressedSize: uncompressedSize}
		if err := c.index.Insert(key, value); err != nil {
			return fmt.Errorf("restore tile %v: %w", key, err)
		}
	}

	return nil
}

func readBandFooter(r io.Reader, dataType hostiface.DataType, rasterW, rasterH, tileSize uint64) (*band.State, error) {
	b := band.New(dataType, rasterW, rasterH, tileSize)

	flag, err := readU8(r)
	if err != nil {
		return nil, err
	}
	b.NoDataSet = flag != 0
	if b.NoData, err = readI64(r); err != nil {
		return nil, err
	}
	if b.Min, err = readF64(r); err != nil {
		return nil, err
	}
	if b.Max, err = readF64(r); err != nil {
		return nil, err
	}
	if b.Mean, err = readF64(r); err != nil {
		return nil, err
	}
	if b.StdDev, err = readF64(r); err != nil {
		return nil, err
	}

	overviewCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	b.Overviews = make([]band.Overview, overviewCount)
	for i := range b.Overviews {
		ov := band.Overview{Level: i}
		if ov.XSize, err = readU64(r); err != nil {
			return nil, err
		}
		if ov.YSize, err = readU64(r); err != nil {
			return nil, err
		}
		tileSize16, err := readU16(r)
		if err != nil {
			return nil, err
		}
		ov.TileSize = uint64(tileSize16)
		b.Overviews[i] = ov
	}

	if err := readRatIndex(r, b.RAT); err != nil {
		return nil, fmt.Errorf("rat index: %w", err)
	}

	metadata, err := readMetadataBlock(r)
	if err != nil {
		return nil, fmt.Errorf("band metadata: %w", err)
	}
	b.Metadata = metadata

	return b, nil
}

func readRatIndex(r io.Reader, store *rat.Store) error {
	columnCount, err := readU64(r)
	if err != nil {
		return err
	}
	rowCount, err := readU64(r)
	if err != nil {
		return err
	}

	for i := uint64(0); i < columnCount; i++ {
		fieldType, err := readU64(r)
		if err != nil {
			return err
		}
		name, err := readNulString(r)
		if err != nil {
			return err
		}
		chunkCount, err := readU64(r)
		if err != nil {
			return err
		}
		chunks := make([]rat.Chunk, chunkCount)
		for j := range chunks {
			var ch rat.Chunk
			if ch.StartIdx, err = readU64(r); err != nil {
				return err
			}
			if ch.Length, err = readU64(r); err != nil {
				return err
			}
			if ch.Offset, err = readU64(r); err != nil {
				return err
			}
			if ch.CompressedSize, err = readU64(r); err != nil {
				return err
			}
			chunks[j] = ch
		}
		store.RestoreColumn(name, rat.FieldType(fieldType), chunks)
	}

	store.SetRowCount(rowCount)
	return nil
}

func readUint32(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}
