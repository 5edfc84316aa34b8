package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/pattern"
	"github.com/bobg/anchored/resolve"
	"github.com/bobg/anchored/store"
)

// Lifecycle exercises the full record lifecycle over a backend,
// for both indirection strategies:
// create/read, update and latest-link maintenance,
// fork detection under concurrent updates,
// and history-preserving deletion.
//
// makeStore must return a fresh, empty backend each time.
func Lifecycle(ctx context.Context, t *testing.T, makeStore func(t *testing.T) store.Store) {
	strategies := map[string]func(store.Store) pattern.Strategy{
		"anchorfirst": func(s store.Store) pattern.Strategy { return pattern.NewAnchorFirst(s, s) },
		"datafirst":   func(s store.Store) pattern.Strategy { return pattern.NewDataFirst(s, s) },
	}

	for name, mk := range strategies {
		t.Run(name, func(t *testing.T) {
			s := makeStore(t)
			p := mk(s)
			r := resolve.Resolver{S: s, L: s}
			d := resolve.Detector{R: r}

			// Create, then read back.
			anchor, err := p.Create(ctx, []byte("hello"), []byte("u1:t1"))
			if err != nil {
				t.Fatal(err)
			}
			got, err := p.Read(ctx, anchor)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "hello" {
				t.Errorf("got %q, want %q", got, "hello")
			}

			v1, err := r.Latest(ctx, anchor)
			if err != nil {
				t.Fatal(err)
			}

			// Update moves the latest link and leaves exactly one.
			v2, err := p.Update(ctx, anchor, []byte("world"))
			if err != nil {
				t.Fatal(err)
			}
			cur, err := r.Latest(ctx, anchor)
			if err != nil {
				t.Fatal(err)
			}
			if cur != v2 {
				t.Errorf("resolved %s, want %s", cur, v2)
			}
			latest, err := s.Links(ctx, anchor, anchored.TagLatest)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]anchored.Address{v2}, latest); diff != "" {
				t.Errorf("latest links mismatch (-want +got):\n%s", diff)
			}
			got, err = p.Read(ctx, anchor)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "world" {
				t.Errorf("got %q, want %q", got, "world")
			}

			// Two writers update from the same base concurrently.
			// The local writer goes through the strategy;
			// the rival resolved v2 as the tip before that landed,
			// so replay its writes against the shared substrate:
			// same predecessor, its own supersedes and latest links.
			v3a, err := p.Update(ctx, anchor, []byte("a"))
			if err != nil {
				t.Fatal(err)
			}
			rival := &anchored.Entry{
				Kind:        anchored.KindData,
				Predecessor: v2,
				Anchor:      anchor,
				Payload:     []byte("b"),
			}
			v3b, _, err := s.Commit(ctx, rival)
			if err != nil {
				t.Fatal(err)
			}
			err = s.AddLink(ctx, anchored.Link{From: v2, To: v3b, Tag: anchored.TagSupersedes})
			if err != nil {
				t.Fatal(err)
			}
			err = s.AddLink(ctx, anchored.Link{From: anchor, To: v3b, Tag: anchored.TagLatest})
			if err != nil {
				t.Fatal(err)
			}
			err = s.RemoveLink(ctx, anchored.Link{From: anchor, To: v2, Tag: anchored.TagLatest})
			if err != nil {
				t.Fatal(err)
			}

			tips, err := d.Fork(ctx, anchor)
			if err != nil {
				t.Fatal(err)
			}
			want := []anchored.Address{v3a, v3b}
			if v3b.Less(v3a) {
				want = []anchored.Address{v3b, v3a}
			}
			if diff := cmp.Diff(want, tips); diff != "" {
				t.Errorf("fork tips mismatch (-want +got):\n%s", diff)
			}

			// Resolution reports the fork rather than silently picking a side.
			_, err = r.Latest(ctx, anchor)
			var fe *anchored.ForkError
			if !errors.As(err, &fe) {
				t.Fatalf("got %v, want ForkError", err)
			}

			// Delete tombstones the anchor and nothing else.
			err = p.Delete(ctx, anchor)
			if err != nil {
				t.Fatal(err)
			}
			_, err = p.Read(ctx, anchor)
			if !errors.Is(err, anchored.ErrNotFound) {
				t.Errorf("got %v, want ErrNotFound reading deleted record", err)
			}
			for _, addr := range []anchored.Address{v1, v2, v3b} {
				if _, err = s.Get(ctx, addr); err != nil {
					t.Errorf("version %s unreadable after delete: %v", addr, err)
				}
			}
		})
	}
}
