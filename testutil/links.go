package testutil

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store"
)

// Links exercises the link-index half of a backend:
// idempotent adds, removes, arrival-ordered queries, and full listing.
func Links(ctx context.Context, t *testing.T, s store.Store) {
	var (
		from  = anchored.Address{0x1}
		from2 = anchored.Address{0x2}
		to1   = anchored.Address{0x1a}
		to2   = anchored.Address{0x1b}
		to3   = anchored.Address{0x1c}
	)

	adds := []anchored.Link{
		{From: from, To: to2, Tag: anchored.TagLatest},
		{From: from, To: to1, Tag: anchored.TagLatest},
		{From: from, To: to3, Tag: anchored.TagSupersedes},
		{From: from2, To: to1, Tag: anchored.TagLatest},
		{From: from, To: to2, Tag: anchored.TagLatest}, // duplicate
	}
	for _, l := range adds {
		err := s.AddLink(ctx, l)
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Links(ctx, from, anchored.TagLatest)
	if err != nil {
		t.Fatal(err)
	}
	// Arrival order, duplicate collapsed.
	if diff := cmp.Diff([]anchored.Address{to2, to1}, got); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}

	got, err = s.Links(ctx, from, anchored.TagSupersedes)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]anchored.Address{to3}, got); diff != "" {
		t.Errorf("tagged links mismatch (-want +got):\n%s", diff)
	}

	err = s.RemoveLink(ctx, anchored.Link{From: from, To: to2, Tag: anchored.TagLatest})
	if err != nil {
		t.Fatal(err)
	}
	got, err = s.Links(ctx, from, anchored.TagLatest)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]anchored.Address{to1}, got); diff != "" {
		t.Errorf("post-remove links mismatch (-want +got):\n%s", diff)
	}

	// Removing an absent link is a no-op.
	err = s.RemoveLink(ctx, anchored.Link{From: from, To: to2, Tag: anchored.TagLatest})
	if err != nil {
		t.Fatal(err)
	}

	var all []anchored.Link
	err = s.ListLinks(ctx, func(l anchored.Link) error {
		all = append(all, l)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []anchored.Link{
		{From: from, To: to1, Tag: anchored.TagLatest},
		{From: from, To: to3, Tag: anchored.TagSupersedes},
		{From: from2, To: to1, Tag: anchored.TagLatest},
	}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("full listing mismatch (-want +got):\n%s", diff)
	}
}
