// Package codec implements the tile and metadata compression primitive used
// throughout the EMU container: a tagged, single-byte discriminant over a
// small set of compression schemes.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Discriminants for the compression byte that precedes every tile record
// and RAT chunk record on disk.
const (
	None byte = 0
	Zlib byte = 1
)

// ErrUnknownDiscriminant is returned when a payload carries a compression
// byte this codec does not recognise.
var ErrUnknownDiscriminant = fmt.Errorf("codec: unknown compression discriminant")

// Encode compresses src under the given discriminant. For None, the
// returned slice aliases src and owned is false, signalling the caller must
// not assume it may free or mutate the buffer independently of src. For
// Zlib, a freshly allocated buffer is returned with owned true.
func Encode(kind byte, src []byte) (dst []byte, owned bool, err error) {
	switch kind {
	case None:
		return src, false, nil
	case Zlib:
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return nil, false, fmt.Errorf("codec: create zlib writer: %w", err)
		}
		if _, err := w.Write(src); err != nil {
			w.Close()
			return nil, false, fmt.Errorf("codec: zlib compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, false, fmt.Errorf("codec: zlib flush: %w", err)
		}
		return buf.Bytes(), true, nil
	default:
		return nil, false, fmt.Errorf("codec: encode: %w (%d)", ErrUnknownDiscriminant, kind)
	}
}

// DecodeUnbounded decompresses src when the uncompressed length is not
// known in advance, as with a RAT string chunk's NUL-terminated
// concatenation (only its compressed size is recorded on disk).
func DecodeUnbounded(kind byte, src []byte) ([]byte, error) {
	switch kind {
	case None:
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("codec: create zlib reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("codec: zlib decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: decode: %w (%d)", ErrUnknownDiscriminant, kind)
	}
}

// Decode decompresses src into dst, which must be exactly the expected
// uncompressed length. For None, src is copied into dst. For Zlib, dst is
// filled via io.ReadFull over a zlib reader so a short or corrupt stream is
// detected rather than silently zero-padded.
func Decode(kind byte, src []byte, dst []byte) error {
	switch kind {
	case None:
		if len(src) != len(dst) {
			return fmt.Errorf("codec: decode none: length mismatch (src %d, dst %d)", len(src), len(dst))
		}
		copy(dst, src)
		return nil
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return fmt.Errorf("codec: create zlib reader: %w", err)
		}
		defer r.Close()
		if _, err := io.ReadFull(r, dst); err != nil {
			return fmt.Errorf("codec: zlib decompress: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("codec: decode: %w (%d)", ErrUnknownDiscriminant, kind)
	}
}
