// Package rat implements the raster attribute table: a column-oriented,
// chunked, compressed side-store with a per-column sorted, non-overlapping
// chunk index supporting sparse writes and range reads across chunk
// boundaries.
package rat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/emuformat/emu-go/pkg/codec"
	"github.com/emuformat/emu-go/pkg/hostiface"
)

// MaxChunkRows is the largest number of rows a single RatChunk may cover;
// longer writes are split into several chunks.
const MaxChunkRows = 65536

// FieldType is a RAT column's value type.
type FieldType int

const (
	Integer FieldType = iota
	Real
	String
)

func (t FieldType) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Real:
		return "Real"
	case String:
		return "String"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// RWFlag selects the direction of a ValuesIO call.
type RWFlag int

const (
	Read RWFlag = iota
	Write
)

// Chunk is one contiguous, compressed run of a column's values.
type Chunk struct {
	StartIdx       uint64
	Length         uint64
	Offset         uint64
	CompressedSize uint64
}

// Column is one attribute column: a name, a type, and its chunk index.
type Column struct {
	Name   string
	Type   FieldType
	Chunks []Chunk

	sorted bool
}

// ErrColumnIndex is returned for an out-of-range column index.
var ErrColumnIndex = errors.New("rat: column index out of range")

// ErrTypeMismatch is returned when a ValuesIO buffer's type cannot be
// converted to or from the target column's type (String against numeric
// in either direction).
var ErrTypeMismatch = errors.New("rat: buffer type incompatible with column type")

// ErrOverlappingChunks is returned by WriteIndex when two chunks in the
// same column overlap in their row ranges.
var ErrOverlappingChunks = errors.New("rat: overlapping chunks in column")

// Store is one band's raster attribute table.
type Store struct {
	mu     *sync.Mutex
	stream hostiface.ByteStream

	columns  []Column
	rowCount uint64
}

// NewStore creates an empty RAT store with no columns, no back-reference
// to a container's byte stream yet (see Attach).
func NewStore() *Store {
	return &Store{}
}

// Attach wires the store to its container's shared mutex and byte stream,
// the payload-region I/O path a RAT store needs since it holds a
// back-reference to its owning container rather than its own handle. It
// must be called before any ValuesIO.
func (s *Store) Attach(mu *sync.Mutex, stream hostiface.ByteStream) {
	s.mu = mu
	s.stream = stream
}

// AddColumn declares a new column. Columns must be declared before any
// data is written to them.
func (s *Store) AddColumn(name string, t FieldType) (col int, err error) {
	s.columns = append(s.columns, Column{Name: name, Type: t})
	return len(s.columns) - 1, nil
}

// RestoreColumn reconstructs a column with a pre-built chunk list, as Open
// does when rebuilding a Store from a footer. The chunks are taken to
// already be sorted and non-overlapping, since WriteIndex validated that
// before the footer was written.
func (s *Store) RestoreColumn(name string, t FieldType, chunks []Chunk) int {
	s.columns = append(s.columns, Column{Name: name, Type: t, Chunks: chunks, sorted: true})
	return len(s.columns) - 1
}

// ColumnCount returns the number of declared columns.
func (s *Store) ColumnCount() int {
	return len(s.columns)
}

// Column returns a copy of column i's descriptor (including its current
// chunk list) for inspection.
func (s *Store) Column(i int) (Column, error) {
	if i < 0 || i >= len(s.columns) {
		return Column{}, ErrColumnIndex
	}
	return s.columns[i], nil
}

// RowCount returns the logical row count.
func (s *Store) RowCount() uint64 {
	return s.rowCount
}

// SetRowCount raises the logical row count to n if n is larger; it never
// shrinks the table.
func (s *Store) SetRowCount(n uint64) {
	if n > s.rowCount {
		s.rowCount = n
	}
}

// clampRange clips [startRow, startRow+length) to the current logical row
// count; reads and writes beyond the logical row count are clamped rather
// than rejected.
func (s *Store) clampRange(startRow, length uint64) (uint64, uint64) {
	if startRow >= s.rowCount {
		return startRow, 0
	}
	if startRow+length > s.rowCount {
		return startRow, s.rowCount - startRow
	}
	return startRow, length
}

// ValuesIO reads or writes length rows of column col starting at startRow.
// buf must be one of []int64, []float64, or []string depending on rw and
// the column's type; numeric columns accept either numeric slice type
// (Integer values are widened/narrowed to/from int64 as needed) but never
// a []string, and vice versa.
func (s *Store) ValuesIO(rw RWFlag, col int, startRow, length uint64, buf any) error {
	if col < 0 || col >= len(s.columns) {
		return ErrColumnIndex
	}
	column := &s.columns[col]

	startRow, length = s.clampRange(startRow, length)

	switch rw {
	case Write:
		return s.writeValues(column, startRow, length, buf)
	case Read:
		return s.readValues(column, startRow, length, buf)
	default:
		return fmt.Errorf("rat: unknown RWFlag %d", rw)
	}
}

// writeValues splits [startRow, startRow+length) into MaxChunkRows-sized
// sub-chunks and appends each as an independently compressed RatChunk.
func (s *Store) writeValues(column *Column, startRow, length uint64, buf any) error {
	if length == 0 {
		return nil
	}

	switch column.Type {
	case Integer, Real:
		ints, floats, err := numericSlice(column.Type, buf)
		if err != nil {
			return err
		}
		n := uint64(len(ints))
		if column.Type == Real {
			n = uint64(len(floats))
		}
		if n < length {
			return fmt.Errorf("rat: buffer has %d values, want at least %d", n, length)
		}
		for off := uint64(0); off < length; off += MaxChunkRows {
			sub := min64(MaxChunkRows, length-off)
			var payload []byte
			if column.Type == Integer {
				payload = encodeInt64s(ints[off : off+sub])
			} else {
				payload = encodeFloat64s(floats[off : off+sub])
			}
			if err := s.appendChunk(column, startRow+off, sub, payload); err != nil {
				return err
			}
		}
		return nil

	case String:
		strs, ok := buf.([]string)
		if !ok {
			return ErrTypeMismatch
		}
		if uint64(len(strs)) < length {
			return fmt.Errorf("rat: buffer has %d values, want at least %d", len(strs), length)
		}
		for off := uint64(0); off < length; off += MaxChunkRows {
			sub := min64(MaxChunkRows, length-off)
			payload := encodeStrings(strs[off : off+sub])
			if err := s.appendChunk(column, startRow+off, sub, payload); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("rat: unknown column type %v", column.Type)
	}
}

// appendChunk compresses payload, appends it to the shared stream under
// the container mutex, and records the resulting RatChunk.
func (s *Store) appendChunk(column *Column, startRow, length uint64, payload []byte) error {
	compressed, _, err := codec.Encode(codec.Zlib, payload)
	if err != nil {
		return fmt.Errorf("rat: compress chunk: %w", err)
	}

	s.mu.Lock()
	offset, err := s.stream.Tell()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("rat: tell offset: %w", err)
	}
	if _, err := s.stream.Write([]byte{codec.Zlib}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("rat: write compression discriminant: %w", err)
	}
	if _, err := s.stream.Write(compressed); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("rat: write chunk payload: %w", err)
	}
	s.mu.Unlock()

	column.Chunks = append(column.Chunks, Chunk{
		StartIdx:       startRow,
		Length:         length,
		Offset:         uint64(offset),
		CompressedSize: uint64(len(compressed)),
	})
	column.sorted = false
	return nil
}

// readValues locates the chunks overlapping [startRow, startRow+length)
// and copies out their rows, padding unwritten ranges with zero/empty
// defaults.
func (s *Store) readValues(column *Column, startRow, length uint64, buf any) error {
	column.ensureSorted()

	switch column.Type {
	case Integer, Real:
		switch out := buf.(type) {
		case []int64:
			if uint64(len(out)) < length {
				return ErrTypeMismatch
			}
			return s.readNumeric(column, startRow, length, out, nil)
		case []float64:
			if uint64(len(out)) < length {
				return ErrTypeMismatch
			}
			return s.readNumeric(column, startRow, length, nil, out)
		default:
			return ErrTypeMismatch
		}
	case String:
		out, ok := buf.([]string)
		if !ok || uint64(len(out)) < length {
			return ErrTypeMismatch
		}
		return s.readStrings(column, startRow, length, out)
	default:
		return fmt.Errorf("rat: unknown column type %v", column.Type)
	}
}

// ensureSorted sorts a column's chunks by StartIdx. Chunks may be
// appended in any order during a write session; WriteIndex is
// responsible for validating non-overlap once the final order is fixed.
func (c *Column) ensureSorted() {
	if c.sorted {
		return
	}
	sort.Slice(c.Chunks, func(i, j int) bool {
		return c.Chunks[i].StartIdx < c.Chunks[j].StartIdx
	})
	c.sorted = true
}

// chunkAt returns the index of the first chunk whose range could contain
// row, via binary search over the sorted chunk list. Valid once chunks
// are known sorted, i.e. after ensureSorted/WriteIndex have run.
func (c *Column) chunkAt(row uint64) int {
	// Find the last chunk with StartIdx <= row.
	i := sort.Search(len(c.Chunks), func(i int) bool {
		return c.Chunks[i].StartIdx > row
	})
	return i - 1
}

func (s *Store) readNumeric(column *Column, startRow, length uint64, outInt []int64, outFloat []float64) error {
	var written uint64
	idx := column.chunkAt(startRow)
	if idx < 0 {
		idx = 0
	}

	for written < length {
		row := startRow + written
		if idx >= len(column.Chunks) {
			break
		}
		chunk := column.Chunks[idx]
		if row < chunk.StartIdx {
			// Gap before the next chunk: pad with zero defaults.
			gap := min64(chunk.StartIdx-row, length-written)
			for i := uint64(0); i < gap; i++ {
				if outInt != nil {
					outInt[written+i] = 0
				} else {
					outFloat[written+i] = 0
				}
			}
			written += gap
			continue
		}
		if row >= chunk.StartIdx+chunk.Length {
			idx++
			continue
		}

		values, err := s.decodeNumericChunk(column, chunk)
		if err != nil {
			return err
		}
		skip := row - chunk.StartIdx
		avail := chunk.Length - skip
		take := min64(avail, length-written)

		for i := uint64(0); i < take; i++ {
			v := values[skip+i]
			if outInt != nil {
				outInt[written+i] = int64(v)
			} else {
				outFloat[written+i] = v
			}
		}
		written += take
		idx++
	}

	// Pad remaining rows with zero defaults (range beyond last chunk).
	for ; written < length; written++ {
		if outInt != nil {
			outInt[written] = 0
		} else {
			outFloat[written] = 0
		}
	}
	return nil
}

// decodeNumericChunk decompresses chunk's payload into float64 values
// (the column's stored width — int64 or float64 — both decode cleanly
// into float64 without precision loss for the ranges this format targets).
func (s *Store) decodeNumericChunk(column *Column, chunk Chunk) ([]float64, error) {
	raw, err := s.readChunkBytes(column.Type, chunk)
	if err != nil {
		return nil, err
	}
	values := make([]float64, chunk.Length)
	for i := uint64(0); i < chunk.Length; i++ {
		bits := binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
		if column.Type == Integer {
			values[i] = float64(int64(bits))
		} else {
			values[i] = math.Float64frombits(bits)
		}
	}
	return values, nil
}

func (s *Store) readStrings(column *Column, startRow, length uint64, out []string) error {
	var written uint64
	idx := column.chunkAt(startRow)
	if idx < 0 {
		idx = 0
	}

	for written < length {
		row := startRow + written
		if idx >= len(column.Chunks) {
			break
		}
		chunk := column.Chunks[idx]
		if row < chunk.StartIdx {
			gap := min64(chunk.StartIdx-row, length-written)
			for i := uint64(0); i < gap; i++ {
				out[written+i] = ""
			}
			written += gap
			continue
		}
		if row >= chunk.StartIdx+chunk.Length {
			idx++
			continue
		}

		strs, err := s.decodeStringChunk(chunk)
		if err != nil {
			return err
		}
		skip := row - chunk.StartIdx
		avail := chunk.Length - skip
		take := min64(avail, length-written)
		for i := uint64(0); i < take; i++ {
			out[written+i] = strs[skip+i]
		}
		written += take
		idx++
	}

	for ; written < length; written++ {
		out[written] = ""
	}
	return nil
}

func (s *Store) decodeStringChunk(chunk Chunk) ([]string, error) {
	raw, err := s.readChunkBytes(String, chunk)
	if err != nil {
		return nil, err
	}
	strs := make([]string, 0, chunk.Length)
	start := 0
	for start < len(raw) && uint64(len(strs)) < chunk.Length {
		end := indexByte(raw[start:], 0)
		if end < 0 {
			return nil, fmt.Errorf("rat: string chunk missing NUL terminator")
		}
		strs = append(strs, string(raw[start:start+end]))
		start += end + 1
	}
	for uint64(len(strs)) < chunk.Length {
		strs = append(strs, "")
	}
	return strs, nil
}

// readChunkBytes seeks to chunk.Offset and reads back its discriminant
// and compressed payload, leaving decompression to the caller (numeric
// chunks know their exact uncompressed size; string chunks don't and use
// codec.DecodeUnbounded instead).
func (s *Store) readChunkBytes(fieldType FieldType, chunk Chunk) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stream.Seek(int64(chunk.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("rat: seek to chunk: %w", err)
	}
	var disc [1]byte
	if _, err := io.ReadFull(s.stream, disc[:]); err != nil {
		return nil, fmt.Errorf("rat: read compression discriminant: %w", err)
	}
	compressed := make([]byte, chunk.CompressedSize)
	if _, err := io.ReadFull(s.stream, compressed); err != nil {
		return nil, fmt.Errorf("rat: read chunk payload: %w", err)
	}

	if fieldType == String {
		return codec.DecodeUnbounded(disc[0], compressed)
	}

	dst := make([]byte, chunk.Length*8)
	if err := codec.Decode(disc[0], compressed, dst); err != nil {
		return nil, fmt.Errorf("rat: decompress chunk: %w", err)
	}
	return dst, nil
}

// WriteIndex sorts every column's chunks by StartIdx and rejects any
// column whose chunks overlap. Chunks are sorted by startIdx immediately
// before write; overlapping inserts are rejected eagerly at serialization
// time rather than at each individual ValuesIO call.
func (s *Store) WriteIndex() error {
	for i := range s.columns {
		column := &s.columns[i]
		column.ensureSorted()
		for j := 1; j < len(column.Chunks); j++ {
			prev, cur := column.Chunks[j-1], column.Chunks[j]
			if prev.StartIdx+prev.Length > cur.StartIdx {
				return fmt.Errorf("%w: column %q, chunks [%d,%d) and [%d,%d)",
					ErrOverlappingChunks, column.Name,
					prev.StartIdx, prev.StartIdx+prev.Length,
					cur.StartIdx, cur.StartIdx+cur.Length)
			}
		}
	}
	return nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
