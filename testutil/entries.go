// Package testutil supplies conformance tests shared by the storage
// backends.
package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store"
)

// Entries exercises the content-store half of a backend:
// idempotent commits, get/commit round trips,
// tombstones, and entry listing.
func Entries(ctx context.Context, t *testing.T, s store.Store) {
	e1 := &anchored.Entry{Kind: anchored.KindData, Payload: []byte("hello")}
	e2 := &anchored.Entry{Kind: anchored.KindData, Payload: []byte("world")}

	a1, added, err := s.Commit(ctx, e1)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Error("first commit of e1 reported added=false")
	}
	if a1 != e1.Address() {
		t.Errorf("got address %s, want %s", a1, e1.Address())
	}

	// Committing the same content again is a no-op with the same address.
	a1again, added, err := s.Commit(ctx, e1)
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Error("second commit of e1 reported added=true")
	}
	if a1again != a1 {
		t.Errorf("second commit yielded address %s, want %s", a1again, a1)
	}

	a2, _, err := s.Commit(ctx, e2)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, a1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(e1, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Get(ctx, anchored.Address{0xff})
	if !errors.Is(err, anchored.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	var listed []anchored.Address
	err = s.ListEntries(ctx, anchored.Zero, func(addr anchored.Address) error {
		listed = append(listed, addr)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []anchored.Address{a1, a2}
	if a2.Less(a1) {
		want = []anchored.Address{a2, a1}
	}
	if diff := cmp.Diff(want, listed); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}

	// Listing starts strictly after the given address.
	listed = nil
	err = s.ListEntries(ctx, want[0], func(addr anchored.Address) error {
		listed = append(listed, addr)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want[1:], listed); diff != "" {
		t.Errorf("offset listing mismatch (-want +got):\n%s", diff)
	}

	// Tombstoning hides without erasing.
	err = s.Tombstone(ctx, a2)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Get(ctx, a2)
	if !errors.Is(err, anchored.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after tombstone", err)
	}
	listed = nil
	err = s.ListEntries(ctx, anchored.Zero, func(addr anchored.Address) error {
		listed = append(listed, addr)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]anchored.Address{a1}, listed); diff != "" {
		t.Errorf("post-tombstone listing mismatch (-want +got):\n%s", diff)
	}

	err = s.Tombstone(ctx, anchored.Address{0xfe})
	if !errors.Is(err, anchored.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound tombstoning unknown address", err)
	}
}
