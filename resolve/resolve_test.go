package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store/mem"
)

// fixture commits an anchor and a chain of versions,
// wiring supersedes links and a latest link to the final version.
func fixture(ctx context.Context, t *testing.T, s *mem.Store, payloads ...string) (anchor anchored.Address, versions []anchored.Address) {
	ae := &anchored.Entry{
		Kind:    anchored.KindAnchor,
		Mode:    anchored.ModeAnchorFirst,
		Payload: []byte("seed"),
	}
	anchor, _, err := s.Commit(ctx, ae)
	if err != nil {
		t.Fatal(err)
	}

	pred := anchored.Zero
	for _, p := range payloads {
		e := &anchored.Entry{
			Kind:        anchored.KindData,
			Predecessor: pred,
			Anchor:      anchor,
			Payload:     []byte(p),
		}
		addr, _, err := s.Commit(ctx, e)
		if err != nil {
			t.Fatal(err)
		}
		if !pred.IsZero() {
			err = s.AddLink(ctx, anchored.Link{From: pred, To: addr, Tag: anchored.TagSupersedes})
			if err != nil {
				t.Fatal(err)
			}
		}
		versions = append(versions, addr)
		pred = addr
	}

	err = s.AddLink(ctx, anchored.Link{From: anchor, To: pred, Tag: anchored.TagLatest})
	if err != nil {
		t.Fatal(err)
	}
	return anchor, versions
}

func TestLatest(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	anchor, versions := fixture(ctx, t, s, "v1", "v2", "v3")

	r := Resolver{S: s, L: s}
	got, err := r.Latest(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if got != versions[2] {
		t.Errorf("got %s, want %s", got, versions[2])
	}
}

func TestLatestStale(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	anchor, versions := fixture(ctx, t, s, "v1", "v2", "v3")

	// Rewind the latest link to v1, as if the writer of v2 and v3
	// had replicated its entries and supersedes links here
	// but not its latest-link move.
	err := s.RemoveLink(ctx, anchored.Link{From: anchor, To: versions[2], Tag: anchored.TagLatest})
	if err != nil {
		t.Fatal(err)
	}
	err = s.AddLink(ctx, anchored.Link{From: anchor, To: versions[0], Tag: anchored.TagLatest})
	if err != nil {
		t.Fatal(err)
	}

	r := Resolver{S: s, L: s}

	// Latest repairs silently.
	got, err := r.Latest(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if got != versions[2] {
		t.Errorf("got %s, want %s", got, versions[2])
	}

	// LatestStrict surfaces the staleness.
	_, err = r.LatestStrict(ctx, anchor)
	var se *anchored.StaleError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want StaleError", err)
	}
	if se.Stale != versions[0] || se.Tip != versions[2] {
		t.Errorf("got stale=%s tip=%s, want stale=%s tip=%s", se.Stale, se.Tip, versions[0], versions[2])
	}
}

func TestLatestBroken(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	anchor, versions := fixture(ctx, t, s, "v1", "v2", "v3")

	err := s.RemoveLink(ctx, anchored.Link{From: anchor, To: versions[2], Tag: anchored.TagLatest})
	if err != nil {
		t.Fatal(err)
	}

	r := Resolver{S: s, L: s}
	_, err = r.Latest(ctx, anchor)
	if !errors.Is(err, anchored.ErrBrokenLink) {
		t.Fatalf("got %v, want ErrBrokenLink", err)
	}

	// Any one known version is enough to recover the tip.
	for _, hint := range versions {
		got, err := r.Recover(ctx, anchor, hint)
		if err != nil {
			t.Fatal(err)
		}
		if got != versions[2] {
			t.Errorf("hint %s: got %s, want %s", hint, got, versions[2])
		}
	}
}

func TestFork(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	anchor, versions := fixture(ctx, t, s, "v1", "v2")

	// A rival update from the same base.
	rival := &anchored.Entry{
		Kind:        anchored.KindData,
		Predecessor: versions[0],
		Anchor:      anchor,
		Payload:     []byte("v2b"),
	}
	v2b, _, err := s.Commit(ctx, rival)
	if err != nil {
		t.Fatal(err)
	}
	err = s.AddLink(ctx, anchored.Link{From: versions[0], To: v2b, Tag: anchored.TagSupersedes})
	if err != nil {
		t.Fatal(err)
	}
	err = s.AddLink(ctx, anchored.Link{From: anchor, To: v2b, Tag: anchored.TagLatest})
	if err != nil {
		t.Fatal(err)
	}

	want := []anchored.Address{versions[1], v2b}
	if v2b.Less(versions[1]) {
		want = []anchored.Address{v2b, versions[1]}
	}

	r := Resolver{S: s, L: s}
	_, err = r.Latest(ctx, anchor)
	var fe *anchored.ForkError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want ForkError", err)
	}
	if diff := cmp.Diff(want, fe.Tips); diff != "" {
		t.Errorf("tips mismatch (-want +got):\n%s", diff)
	}

	d := Detector{R: r}
	tips, err := d.Fork(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, tips); diff != "" {
		t.Errorf("detector tips mismatch (-want +got):\n%s", diff)
	}

	// Applying a reconciliation choice clears the fork.
	winner, err := pickLowest{}.Reconcile(ctx, anchor, tips)
	if err != nil {
		t.Fatal(err)
	}
	var losers []anchored.Address
	for _, tip := range tips {
		if tip != winner {
			losers = append(losers, tip)
		}
	}
	err = Repair(ctx, s, anchor, winner, losers)
	if err != nil {
		t.Fatal(err)
	}
	tips, err = d.Fork(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if tips != nil {
		t.Errorf("fork still detected after repair: %v", tips)
	}
	got, err := r.Latest(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if got != winner {
		t.Errorf("got %s, want %s", got, winner)
	}
}

// pickLowest is a test-only reconciliation policy:
// the lowest-addressed tip wins.
type pickLowest struct{}

var _ Reconciler = pickLowest{}

func (pickLowest) Reconcile(_ context.Context, _ anchored.Address, tips []anchored.Address) (anchored.Address, error) {
	if len(tips) == 0 {
		return anchored.Zero, errors.New("no tips")
	}
	winner := tips[0]
	for _, tip := range tips[1:] {
		if tip.Less(winner) {
			winner = tip
		}
	}
	return winner, nil
}

func TestDetectorNoFork(t *testing.T) {
	ctx := context.Background()
	s := mem.New()
	anchor, _ := fixture(ctx, t, s, "v1", "v2")

	d := Detector{R: Resolver{S: s, L: s}}
	tips, err := d.Fork(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if tips != nil {
		t.Errorf("got %v, want no fork", tips)
	}
}
