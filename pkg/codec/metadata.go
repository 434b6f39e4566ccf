package codec

import (
	"bytes"
	"fmt"
	"strings"
)

// reservedKeys are metadata keys stored structurally elsewhere (band/dataset
// statistics, the cloud-optimised flag) and excluded from the free-form
// metadata blob.
var reservedKeys = map[string]struct{}{
	"STATISTICS_MINIMUM": {},
	"STATISTICS_MAXIMUM": {},
	"STATISTICS_MEAN":    {},
	"STATISTICS_STDDEV":  {},
	"CLOUD_OPTIMISED":    {},
}

// EncodeMetadata packs an ordered KEY=VALUE list into a double-NUL
// terminated buffer and compresses it with Zlib. Reserved keys are dropped.
// inputSize is the uncompressed byte length (0 when the residue is empty,
// in which case compressed is nil).
func EncodeMetadata(kvs []string) (inputSize uint64, compressed []byte, err error) {
	var kept []string
	for _, kv := range kvs {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			key = kv
		}
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		kept = append(kept, kv)
	}

	if len(kept) == 0 {
		return 0, nil, nil
	}

	var buf bytes.Buffer
	for _, kv := range kept {
		buf.WriteString(kv)
		buf.WriteByte(0)
	}
	buf.WriteByte(0)

	raw := buf.Bytes()
	out, _, err := Encode(Zlib, raw)
	if err != nil {
		return 0, nil, fmt.Errorf("codec: compress metadata: %w", err)
	}
	return uint64(len(raw)), out, nil
}

// DecodeMetadata inverts EncodeMetadata: it decompresses compressed to
// inputSize bytes and splits the double-NUL-terminated run into KEY=VALUE
// strings. A zero inputSize yields an empty, non-nil slice.
func DecodeMetadata(inputSize uint64, compressed []byte) ([]string, error) {
	if inputSize == 0 {
		return []string{}, nil
	}

	raw := make([]byte, inputSize)
	if err := Decode(Zlib, compressed, raw); err != nil {
		return nil, fmt.Errorf("codec: decompress metadata: %w", err)
	}

	var out []string
	start := 0
	for start < len(raw) {
		end := bytes.IndexByte(raw[start:], 0)
		if end < 0 {
			return nil, fmt.Errorf("codec: decode metadata: missing NUL terminator")
		}
		if end == 0 {
			break
		}
		out = append(out, string(raw[start:start+end]))
		start += end + 1
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// SplitKV splits a KEY=VALUE string at the first '='.
func SplitKV(kv string) (key, value string) {
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return kv, ""
	}
	return key, value
}

// IsReservedKey reports whether key is one of the structurally-stored
// reserved statistics/flag keys.
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}
