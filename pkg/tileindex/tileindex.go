// Package tileindex implements the TileIndex: the mapping from
// (overviewLevel, band, x, y) to a tile's on-disk location, compressed
// size, and uncompressed size.
package tileindex

import (
	"errors"
	"sort"
)

// Key identifies a single tile or overview tile.
type Key struct {
	Level uint64
	Band  uint64
	X     uint64
	Y     uint64
}

// Value is the on-disk location and sizes recorded for a Key.
type Value struct {
	Offset           uint64
	CompressedSize   uint64
	UncompressedSize uint64
}

// ErrNotFound is returned by Get when a key has no entry.
var ErrNotFound = errors.New("tileindex: key not found")

// ErrIndexSealed is returned by Insert once the index has been Sealed for
// read-path acceleration.
var ErrIndexSealed = errors.New("tileindex: index is sealed")

// Index is the TileIndex: an insert-only map during a write session, with
// an optional read-path acceleration structure built once writing is done.
type Index struct {
	m      map[Key]Value
	sealed bool
	accel  *accel
}

// New creates an empty TileIndex.
func New() *Index {
	return &Index{m: make(map[Key]Value)}
}

// Insert records value under key. Per the container's invariants this
// should happen at most once per key during a write session; Insert does
// not itself detect duplicate keys (the caller, typically blockio.Engine,
// captures the file offset immediately before calling Insert and therefore
// cannot produce a colliding offset for a genuinely fresh key).
func (idx *Index) Insert(key Key, value Value) error {
	if idx.sealed {
		return ErrIndexSealed
	}
	idx.m[key] = value
	return nil
}

// Get returns the value for key, or ErrNotFound. After Seal, lookups go
// through the minimal perfect hash function instead of the map.
func (idx *Index) Get(key Key) (Value, error) {
	if idx.sealed {
		return idx.accel.lookup(key)
	}
	v, ok := idx.m[key]
	if !ok {
		return Value{}, ErrNotFound
	}
	return v, nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx.sealed {
		return idx.accel.count
	}
	return len(idx.m)
}

// Entry pairs a Key and Value for iteration.
type Entry struct {
	Key   Key
	Value Value
}

// Sorted returns all entries ordered by (Level, Band, Y, X), the order the
// footer writes tile entries in. This is not the payload order of a
// CreateCopy destination, which places the coarsest level first.
func (idx *Index) Sorted() []Entry {
	var entries []Entry
	if idx.sealed {
		entries = idx.accel.entries()
	} else {
		entries = make([]Entry, 0, len(idx.m))
		for k, v := range idx.m {
			entries = append(entries, Entry{Key: k, Value: v})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.Band != b.Band {
			return a.Band < b.Band
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return entries
}
