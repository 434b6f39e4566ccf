package rat

import (
	"bytes"
	"encoding/binary"
	"math"
)

// numericSlice normalises a ValuesIO write buffer into either an int64 or
// float64 slice depending on the column's declared type, accepting the
// other numeric slice type too (Integer values are widened to int64;
// Real columns accept an []int64 and convert it to float64).
func numericSlice(colType FieldType, buf any) (ints []int64, floats []float64, err error) {
	switch v := buf.(type) {
	case []int64:
		if colType == Integer {
			return v, nil, nil
		}
		floats = make([]float64, len(v))
		for i, x := range v {
			floats[i] = float64(x)
		}
		return nil, floats, nil
	case []int32:
		widened := make([]int64, len(v))
		for i, x := range v {
			widened[i] = int64(x)
		}
		if colType == Integer {
			return widened, nil, nil
		}
		floats = make([]float64, len(v))
		for i, x := range v {
			floats[i] = float64(x)
		}
		return nil, floats, nil
	case []float64:
		if colType == Real {
			return nil, v, nil
		}
		ints = make([]int64, len(v))
		for i, x := range v {
			ints[i] = int64(x)
		}
		return ints, nil, nil
	case []float32:
		if colType == Real {
			floats = make([]float64, len(v))
			for i, x := range v {
				floats[i] = float64(x)
			}
			return nil, floats, nil
		}
		ints = make([]int64, len(v))
		for i, x := range v {
			ints[i] = int64(x)
		}
		return ints, nil, nil
	default:
		return nil, nil, ErrTypeMismatch
	}
}

// encodeInt64s packs values little-endian, 8 bytes each. Integer columns
// are always widened to 64-bit signed before compression, regardless of
// the caller's buffer width.
func encodeInt64s(values []int64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], uint64(v))
	}
	return buf
}

// encodeFloat64s packs values little-endian, 8 bytes each.
func encodeFloat64s(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], math.Float64bits(v))
	}
	return buf
}

// encodeStrings concatenates values as NUL-terminated strings in row
// order, the sub-chunk buffer representation for String columns.
func encodeStrings(values []string) []byte {
	var buf bytes.Buffer
	for _, s := range values {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}
