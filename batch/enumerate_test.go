package batch_test

import (
	"testing"

	"github.com/quadratecode/zhlaw-sub000/batch"
	"github.com/quadratecode/zhlaw-sub000/corrstore"
)

func seededSource() *memSource {
	src := newMemSource()
	src.add(key("170.4", "9"), "a")
	src.add(key("170.4", "10"), "b")
	src.add(key("170.4", "118"), "c")
	src.add(key("131.1", "22"), "d")
	return src
}

func TestEnumerateAll(t *testing.T) {
	keys, err := batch.Enumerate(seededSource(), batch.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 4 {
		t.Fatalf("got %d keys", len(keys))
	}
	// Versions of one law sort numerically: 9 < 10 < 118.
	want := []corrstore.Key{
		key("131.1", "22"), key("170.4", "9"), key("170.4", "10"), key("170.4", "118"),
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys[%d] = %v, want %v", i, keys[i], k)
		}
	}
}

func TestEnumerateOneLaw(t *testing.T) {
	keys, err := batch.Enumerate(seededSource(), batch.Filter{LawID: "170.4"})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Fatalf("got %v", keys)
	}
}

func TestEnumerateLatestOnly(t *testing.T) {
	keys, err := batch.Enumerate(seededSource(), batch.Filter{LatestOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %v", keys)
	}
	if keys[1] != key("170.4", "118") {
		t.Fatalf("latest of 170.4 = %v, want version 118", keys[1])
	}
}

func TestEnumerateVersionNeedsLaw(t *testing.T) {
	if _, err := batch.Enumerate(seededSource(), batch.Filter{Version: "118"}); err == nil {
		t.Fatal("expected error for version filter without law id")
	}
}

func TestEnumerateSingleVersion(t *testing.T) {
	keys, err := batch.Enumerate(seededSource(), batch.Filter{LawID: "170.4", Version: "118"})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != key("170.4", "118") {
		t.Fatalf("got %v", keys)
	}
}
