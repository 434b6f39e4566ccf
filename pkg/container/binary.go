package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

func putUint32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

func putUint64(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

// writeU8 through writeNulString write one field of the footer's wire
// format (encoding/binary.LittleEndian throughout) directly to w.

func writeU8(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	putUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	putUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeI64(w io.Writer, v int64) error {
	return writeU64(w, uint64(v))
}

func writeF64(w io.Writer, v float64) error {
	return writeU64(w, math.Float64bits(v))
}

func writeBytes(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func writeNulString(w io.Writer, s string) error {
	if err := writeBytes(w, []byte(s)); err != nil {
		return err
	}
	return writeU8(w, 0)
}

// readU8 through readNulString read one field back from r.

func readU8(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readI64(r io.Reader) (int64, error) {
	v, err := readU64(r)
	return int64(v), err
}

func readF64(r io.Reader) (float64, error) {
	v, err := readU64(r)
	return math.Float64frombits(v), err
}

func readNulString(r io.Reader) (string, error) {
	var buf []byte
	for {
		b, err := readU8(r)
		if err != nil {
			return "", fmt.Errorf("read NUL-terminated string: %w", err)
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}
