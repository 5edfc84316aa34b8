package pattern

import (
	"context"
	"errors"
	"testing"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store/mem"
)

func TestCreateIsDeterministic(t *testing.T) {
	ctx := context.Background()

	for _, mk := range []struct {
		name string
		f    func(s *mem.Store) Strategy
	}{
		{"anchorfirst", func(s *mem.Store) Strategy { return NewAnchorFirst(s, s) }},
		{"datafirst", func(s *mem.Store) Strategy { return NewDataFirst(s, s) }},
	} {
		t.Run(mk.name, func(t *testing.T) {
			s1, s2 := mem.New(), mem.New()
			a1, err := mk.f(s1).Create(ctx, []byte("hello"), []byte("u1:t1"))
			if err != nil {
				t.Fatal(err)
			}
			a2, err := mk.f(s2).Create(ctx, []byte("hello"), []byte("u1:t1"))
			if err != nil {
				t.Fatal(err)
			}
			// Same seed and payload mean the same record,
			// whichever node commits it.
			if a1 != a2 {
				t.Errorf("got distinct anchors %s and %s", a1, a2)
			}

			a3, err := mk.f(s1).Create(ctx, []byte("hello"), []byte("u2:t9"))
			if err != nil {
				t.Fatal(err)
			}
			if a3 == a1 {
				t.Error("distinct seeds yielded the same anchor")
			}
		})
	}
}

func TestStrategiesDiffer(t *testing.T) {
	ctx := context.Background()
	s := mem.New()

	af, err := NewAnchorFirst(s, s).Create(ctx, []byte("x"), []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	df, err := NewDataFirst(s, s).Create(ctx, []byte("x"), []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	if af == df {
		t.Error("the two strategies produced the same anchor for the same inputs")
	}

	// Each strategy refuses anchors created by the other.
	_, err = NewDataFirst(s, s).Read(ctx, af)
	if err == nil {
		t.Error("data-first read of an anchor-first anchor succeeded")
	}
	_, err = NewAnchorFirst(s, s).Update(ctx, df, []byte("y"))
	if err == nil {
		t.Error("anchor-first update of a data-first anchor succeeded")
	}
}

func TestReadRecoversFromBrokenLink(t *testing.T) {
	ctx := context.Background()

	for _, mk := range []struct {
		name string
		f    func(s *mem.Store) Strategy
	}{
		{"anchorfirst", func(s *mem.Store) Strategy { return NewAnchorFirst(s, s) }},
		{"datafirst", func(s *mem.Store) Strategy { return NewDataFirst(s, s) }},
	} {
		t.Run(mk.name, func(t *testing.T) {
			s := mem.New()
			p := mk.f(s)

			anchor, err := p.Create(ctx, []byte("v1"), []byte("seed"))
			if err != nil {
				t.Fatal(err)
			}
			v2, err := p.Update(ctx, anchor, []byte("v2"))
			if err != nil {
				t.Fatal(err)
			}

			// Lose the anchor-to-data link.
			err = s.RemoveLink(ctx, anchored.Link{From: anchor, To: v2, Tag: anchored.TagLatest})
			if err != nil {
				t.Fatal(err)
			}

			// The predecessor chain still leads to the tip.
			got, err := p.Read(ctx, anchor)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "v2" {
				t.Errorf("got %q, want %q", got, "v2")
			}
		})
	}
}

func TestAnchorFirstReplaceAnchor(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	p := NewAnchorFirst(s, s)

	anchor, err := p.Create(ctx, []byte("v1"), []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}

	// Recommitting the identical anchor is a no-op.
	same := &anchored.Entry{
		Kind:    anchored.KindAnchor,
		Mode:    anchored.ModeAnchorFirst,
		Payload: []byte("seed"),
	}
	got, err := p.ReplaceAnchor(ctx, anchor, same)
	if err != nil {
		t.Fatal(err)
	}
	if got != anchor {
		t.Errorf("got %s, want %s", got, anchor)
	}

	// Any change to the committed content is refused.
	changed := &anchored.Entry{
		Kind:    anchored.KindAnchor,
		Mode:    anchored.ModeAnchorFirst,
		Payload: []byte("other seed"),
	}
	_, err = p.ReplaceAnchor(ctx, anchor, changed)
	var ie *anchored.ImmutableError
	if !errors.As(err, &ie) {
		t.Fatalf("got %v, want ImmutableError", err)
	}
}

func TestDataFirstReplaceAnchor(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	p := NewDataFirst(s, s)

	anchor, err := p.Create(ctx, []byte("v1"), []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	ae, err := s.Get(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = p.Update(ctx, anchor, []byte("v2")); err != nil {
		t.Fatal(err)
	}

	// Changing the embedded first-version reference is refused.
	badEmbed := &anchored.Entry{
		Kind:    anchored.KindAnchor,
		Mode:    anchored.ModeDataFirst,
		Anchor:  anchored.Address{0xab},
		Payload: []byte("seed"),
	}
	_, err = p.ReplaceAnchor(ctx, anchor, badEmbed)
	var ie *anchored.ImmutableError
	if !errors.As(err, &ie) {
		t.Fatalf("got %v, want ImmutableError", err)
	}

	// A new seed with the same embedded reference replaces the anchor
	// wholesale as a new instance.
	reseeded := &anchored.Entry{
		Kind:    anchored.KindAnchor,
		Mode:    anchored.ModeDataFirst,
		Anchor:  ae.Anchor,
		Payload: []byte("new seed"),
	}
	replaced, err := p.ReplaceAnchor(ctx, anchor, reseeded)
	if err != nil {
		t.Fatal(err)
	}
	if replaced == anchor {
		t.Error("replacement kept the old anchor address")
	}

	// The new instance reads the current version; the old is gone.
	got, err := p.Read(ctx, replaced)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("got %q, want %q", got, "v2")
	}
	_, err = p.Read(ctx, anchor)
	if !errors.Is(err, anchored.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound reading replaced anchor", err)
	}
}

func TestUpdateAfterDelete(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	p := NewAnchorFirst(s, s)

	anchor, err := p.Create(ctx, []byte("v1"), []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	err = p.Delete(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Update(ctx, anchor, []byte("v2"))
	if !errors.Is(err, anchored.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound updating deleted record", err)
	}
	err = p.Delete(ctx, anchor)
	if !errors.Is(err, anchored.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound deleting twice", err)
	}
}
