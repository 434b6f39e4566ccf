package tileindex

import "testing"

func TestInsertGet(t *testing.T) {
	idx := New()
	k := Key{Level: 0, Band: 1, X: 2, Y: 3}
	v := Value{Offset: 100, CompressedSize: 10, UncompressedSize: 40}

	if err := idx.Insert(k, v); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := idx.Get(k)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != v {
		t.Errorf("got %+v, want %+v", got, v)
	}

	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
}

func TestGetMissing(t *testing.T) {
	idx := New()
	if _, err := idx.Get(Key{Level: 1}); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSortedOrder(t *testing.T) {
	idx := New()
	keys := []Key{
		{Level: 1, Band: 0, X: 1, Y: 0},
		{Level: 0, Band: 1, X: 0, Y: 0},
		{Level: 0, Band: 0, X: 1, Y: 1},
		{Level: 0, Band: 0, X: 0, Y: 0},
		{Level: 0, Band: 0, X: 1, Y: 0},
	}
	for i, k := range keys {
		if err := idx.Insert(k, Value{Offset: uint64(i)}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	entries := idx.Sorted()
	if len(entries) != len(keys) {
		t.Fatalf("got %d entries, want %d", len(entries), len(keys))
	}
	for i := 1; i < len(entries); i++ {
		a, b := entries[i-1].Key, entries[i].Key
		if a.Level > b.Level ||
			(a.Level == b.Level && a.Band > b.Band) ||
			(a.Level == b.Level && a.Band == b.Band && a.Y > b.Y) ||
			(a.Level == b.Level && a.Band == b.Band && a.Y == b.Y && a.X > b.X) {
			t.Fatalf("entries not sorted at index %d: %+v then %+v", i, a, b)
		}
	}
}

func TestSealRejectsInsert(t *testing.T) {
	idx := New()
	k := Key{Level: 0, Band: 0, X: 0, Y: 0}
	if err := idx.Insert(k, Value{Offset: 1}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := idx.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if err := idx.Insert(Key{Level: 1}, Value{}); err != ErrIndexSealed {
		t.Errorf("got %v, want ErrIndexSealed", err)
	}
}

func TestSealPreservesLookups(t *testing.T) {
	idx := New()
	want := make(map[Key]Value)
	for level := uint64(0); level < 3; level++ {
		for band := uint64(0); band < 2; band++ {
			for y := uint64(0); y < 4; y++ {
				for x := uint64(0); x < 4; x++ {
					k := Key{Level: level, Band: band, X: x, Y: y}
					v := Value{
						Offset:           level*1000 + band*100 + y*10 + x,
						CompressedSize:   1,
						UncompressedSize: 2,
					}
					want[k] = v
					if err := idx.Insert(k, v); err != nil {
						t.Fatalf("Insert failed: %v", err)
					}
				}
			}
		}
	}

	if err := idx.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if idx.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", idx.Len(), len(want))
	}

	for k, v := range want {
		got, err := idx.Get(k)
		if err != nil {
			t.Fatalf("Get(%+v) failed: %v", k, err)
		}
		if got != v {
			t.Errorf("Get(%+v) = %+v, want %+v", k, got, v)
		}
	}

	if _, err := idx.Get(Key{Level: 99, Band: 99, X: 99, Y: 99}); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound for absent key", err)
	}
}

func TestSealEmptyIndex(t *testing.T) {
	idx := New()
	if err := idx.Seal(); err != nil {
		t.Fatalf("Seal failed on empty index: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", idx.Len())
	}
	if _, err := idx.Get(Key{}); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
