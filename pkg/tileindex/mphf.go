package tileindex

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/relab/bbhash"
)

// accel is the in-memory, read-path-only acceleration structure built by
// Seal. It never touches disk: the on-disk footer already records every
// Key/Value pair in full, and accel exists purely to turn repeated Get
// calls against an immutable, opened-for-read container into O(1) minimal
// perfect hash lookups instead of repeated map probing (or, for very large
// tile counts, to let the map itself be discarded to save memory).
type accel struct {
	mph          *bbhash.BBHash2
	values       []Value
	keys         []Key
	fingerprints []uint64
	count        int
}

// buildAccel constructs a minimal perfect hash function over the hashed
// keys of m, following the same bbhash.New(keys, bbhash.Gamma(2.0)) call
// and fnv64a-hash/fnv64-fingerprint verification split used elsewhere in
// this codebase's lineage for read-path MPHF acceleration.
func buildAccel(m map[Key]Value) (*accel, error) {
	n := len(m)
	if n == 0 {
		return &accel{}, nil
	}

	orig := make([]Key, 0, n)
	for k := range m {
		orig = append(orig, k)
	}

	keyHashes := make([]uint64, n)
	for i, k := range orig {
		keyHashes[i] = keyHash(k)
	}

	mph, err := bbhash.New(keyHashes, bbhash.Gamma(2.0))
	if err != nil {
		return nil, fmt.Errorf("tileindex: build MPHF: %w", err)
	}

	keys := make([]Key, n)
	values := make([]Value, n)
	fingerprints := make([]uint64, n)

	for _, k := range orig {
		hashVal := mph.Find(keyHash(k))
		if hashVal == 0 {
			return nil, fmt.Errorf("tileindex: MPHF lookup failed for key %+v", k)
		}
		pos := hashVal - 1
		keys[pos] = k
		values[pos] = m[k]
		fingerprints[pos] = keyFingerprint(k)
	}

	return &accel{
		mph:          mph,
		keys:         keys,
		values:       values,
		fingerprints: fingerprints,
		count:        n,
	}, nil
}

func (a *accel) lookup(key Key) (Value, error) {
	if a.count == 0 || a.mph == nil {
		return Value{}, ErrNotFound
	}

	hashVal := a.mph.Find(keyHash(key))
	if hashVal == 0 {
		return Value{}, ErrNotFound
	}
	pos := hashVal - 1
	if pos >= uint64(a.count) {
		return Value{}, ErrNotFound
	}

	if a.fingerprints[pos] != keyFingerprint(key) || a.keys[pos] != key {
		return Value{}, ErrNotFound
	}

	return a.values[pos], nil
}

func (a *accel) entries() []Entry {
	entries := make([]Entry, a.count)
	for i := 0; i < a.count; i++ {
		entries[i] = Entry{Key: a.keys[i], Value: a.values[i]}
	}
	return entries
}

// encodeKey packs a Key into 32 bytes, little-endian, for hashing.
func encodeKey(k Key) []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint64(buf[0:8], k.Level)
	binary.LittleEndian.PutUint64(buf[8:16], k.Band)
	binary.LittleEndian.PutUint64(buf[16:24], k.X)
	binary.LittleEndian.PutUint64(buf[24:32], k.Y)
	return buf
}

// keyHash is the MPHF's key space: an fnv64a hash of the encoded Key.
func keyHash(k Key) uint64 {
	h := fnv.New64a()
	h.Write(encodeKey(k))
	return h.Sum64()
}

// keyFingerprint uses a different hash (fnv64, not fnv64a) than keyHash so
// a collision in one is unlikely to also collide in the other, letting it
// serve as a cheap verification check after an MPHF lookup.
func keyFingerprint(k Key) uint64 {
	h := fnv.New64()
	h.Write(encodeKey(k))
	return h.Sum64()
}

// Seal freezes idx for read-only use and builds the MPHF acceleration
// structure. Sealed indexes reject Insert with ErrIndexSealed; Get and Sorted
// continue to work, now backed by the MPHF instead of the map. Seal is
// idempotent: a second call returns nil without rebuilding anything.
// container.Open calls it once, immediately after parsing the footer's
// tile list.
func (idx *Index) Seal() error {
	if idx.sealed {
		return nil
	}
	a, err := buildAccel(idx.m)
	if err != nil {
		return err
	}
	idx.accel = a
	idx.sealed = true
	idx.m = nil
	return nil
}
