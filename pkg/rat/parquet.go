package rat

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ExportParquet flattens every column into rows and writes them as a
// Parquet file for host interoperability. This is a read-only export
// path, grounded on the column-to-schema mapping this codebase's lineage
// uses for its own inventory reader: it has no bearing on the container's
// own on-disk format and only runs against an already-populated Store.
func (s *Store) ExportParquet(path string) error {
	group := parquet.Group{}
	for _, col := range s.columns {
		switch col.Type {
		case Integer:
			group[col.Name] = parquet.Int(64)
		case Real:
			group[col.Name] = parquet.Leaf(parquet.DoubleType)
		case String:
			group[col.Name] = parquet.String()
		default:
			return fmt.Errorf("rat: export: unknown column type %v for %q", col.Type, col.Name)
		}
	}
	schema := parquet.NewSchema("RatRow", group)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rat: export: create %s: %w", path, err)
	}
	writer := parquet.NewWriter(f, schema)

	for row := uint64(0); row < s.rowCount; row++ {
		values := make([]parquet.Value, len(s.columns))
		for ci := range s.columns {
			v, err := s.readSingleValue(ci, row)
			if err != nil {
				writer.Close()
				f.Close()
				return fmt.Errorf("rat: export: row %d, column %d: %w", row, ci, err)
			}
			values[ci] = parquet.ValueOf(v).Level(0, 0, ci)
		}
		if _, err := writer.WriteRows([]parquet.Row{values}); err != nil {
			writer.Close()
			f.Close()
			return fmt.Errorf("rat: export: write row %d: %w", row, err)
		}
	}

	if err := writer.Close(); err != nil {
		f.Close()
		return fmt.Errorf("rat: export: close writer: %w", err)
	}
	return f.Close()
}

// readSingleValue reads one scalar from column ci at row, as the Go type
// parquet.ValueOf expects (int64, float64, or string).
func (s *Store) readSingleValue(ci int, row uint64) (any, error) {
	column := &s.columns[ci]
	switch column.Type {
	case Integer:
		out := make([]int64, 1)
		if err := s.ValuesIO(Read, ci, row, 1, out); err != nil {
			return nil, err
		}
		return out[0], nil
	case Real:
		out := make([]float64, 1)
		if err := s.ValuesIO(Read, ci, row, 1, out); err != nil {
			return nil, err
		}
		return out[0], nil
	case String:
		out := make([]string, 1)
		if err := s.ValuesIO(Read, ci, row, 1, out); err != nil {
			return nil, err
		}
		return out[0], nil
	default:
		return nil, fmt.Errorf("rat: unknown column type %v", column.Type)
	}
}
