package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/pattern"
	"github.com/bobg/anchored/resolve"
	. "github.com/bobg/anchored/store"
	"github.com/bobg/anchored/store/mem"
)

func TestSyncConverges(t *testing.T) {
	ctx := context.Background()

	s1, s2 := mem.New(), mem.New()
	p1 := pattern.NewAnchorFirst(s1, s1)
	p2 := pattern.NewAnchorFirst(s2, s2)

	anchor, err := p1.Create(ctx, []byte("hello"), []byte("u1:t1"))
	if err != nil {
		t.Fatal(err)
	}

	err = Sync(ctx, []Store{s1, s2})
	if err != nil {
		t.Fatal(err)
	}

	// The record is now readable on the other node.
	got, err := p2.Read(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}

	// An update on one node propagates to the other.
	v2, err := p1.Update(ctx, anchor, []byte("world"))
	if err != nil {
		t.Fatal(err)
	}
	err = Sync(ctx, []Store{s1, s2})
	if err != nil {
		t.Fatal(err)
	}

	r2 := resolve.Resolver{S: s2, L: s2}
	// The union brings back the removed old latest link;
	// resolution chases it forward, so the tip is still unambiguous.
	cur, err := r2.Latest(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if cur != v2 {
		t.Errorf("resolved %s, want %s", cur, v2)
	}
}

func TestSyncSurfacesConcurrentFork(t *testing.T) {
	ctx := context.Background()

	s1, s2 := mem.New(), mem.New()
	p1 := pattern.NewAnchorFirst(s1, s1)
	p2 := pattern.NewAnchorFirst(s2, s2)

	anchor, err := p1.Create(ctx, []byte("base"), []byte("u1:t1"))
	if err != nil {
		t.Fatal(err)
	}
	err = Sync(ctx, []Store{s1, s2})
	if err != nil {
		t.Fatal(err)
	}

	// Each node updates independently from the same base.
	va, err := p1.Update(ctx, anchor, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	vb, err := p2.Update(ctx, anchor, []byte("b"))
	if err != nil {
		t.Fatal(err)
	}

	err = Sync(ctx, []Store{s1, s2})
	if err != nil {
		t.Fatal(err)
	}

	want := []anchored.Address{va, vb}
	if vb.Less(va) {
		want = []anchored.Address{vb, va}
	}

	// Both nodes now see the same fork.
	for i, s := range []Store{s1, s2} {
		d := resolve.Detector{R: resolve.Resolver{S: s, L: s}}
		tips, err := d.Fork(ctx, anchor)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, tips); diff != "" {
			t.Errorf("node %d: fork tips mismatch (-want +got):\n%s", i+1, diff)
		}

		_, err = resolve.Resolver{S: s, L: s}.Latest(ctx, anchor)
		var fe *anchored.ForkError
		if !errors.As(err, &fe) {
			t.Errorf("node %d: got %v, want ForkError", i+1, err)
		}
	}

	// Syncing again changes nothing.
	err = Sync(ctx, []Store{s1, s2})
	if err != nil {
		t.Fatal(err)
	}
	d := resolve.Detector{R: resolve.Resolver{S: s1, L: s1}}
	tips, err := d.Fork(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, tips); diff != "" {
		t.Errorf("after resync: fork tips mismatch (-want +got):\n%s", diff)
	}
}
