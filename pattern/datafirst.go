package pattern

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/anchored"
)

// DataFirst is the indirection strategy that commits a record's first
// version before its anchor,
// then bakes that version's address into the anchor's content.
// The embedded reference always names the first version and is
// immutable;
// the current version is resolved through the explicit latest link
// only.
type DataFirst struct {
	c core
}

var _ Strategy = (*DataFirst)(nil)

// NewDataFirst produces a DataFirst over the given store and link index.
func NewDataFirst(s anchored.Store, l anchored.LinkIndex) *DataFirst {
	return &DataFirst{c: newCore(s, l)}
}

// Create implements Strategy.Create:
// data first, then an anchor embedding the data's address,
// then the explicit latest link as well.
func (p *DataFirst) Create(ctx context.Context, payload, seed []byte) (anchored.Address, error) {
	de := &anchored.Entry{
		Kind:    anchored.KindData,
		Payload: payload,
	}
	data, _, err := p.c.s.Commit(ctx, de)
	if err != nil {
		return anchored.Zero, errors.Wrap(err, "committing first version")
	}

	ae := &anchored.Entry{
		Kind:    anchored.KindAnchor,
		Mode:    anchored.ModeDataFirst,
		Anchor:  data,
		Payload: seed,
	}
	anchor, _, err := p.c.s.Commit(ctx, ae)
	if err != nil {
		return anchored.Zero, errors.Wrap(err, "committing anchor")
	}

	err = p.c.l.AddLink(ctx, anchored.Link{From: anchor, To: data, Tag: anchored.TagLatest})
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "linking %s as latest of %s", data, anchor)
	}

	return anchor, nil
}

// Update implements Strategy.Update.
// Resolution uses the explicit latest link only:
// the anchor's embedded reference still names the first version
// and must never be consulted for the current tip.
func (p *DataFirst) Update(ctx context.Context, anchor anchored.Address, payload []byte) (anchored.Address, error) {
	return p.c.update(ctx, anchor, anchored.ModeDataFirst, payload)
}

// Read implements Strategy.Read.
func (p *DataFirst) Read(ctx context.Context, anchor anchored.Address) ([]byte, error) {
	return p.c.read(ctx, anchor, anchored.ModeDataFirst, p.hint)
}

// hint is the anchor's embedded first-version reference.
// It may be arbitrarily far behind the tip,
// but any chain entry is enough to recover from a broken latest link.
func (p *DataFirst) hint(_ context.Context, ae *anchored.Entry) (anchored.Address, error) {
	return ae.Anchor, nil
}

// Delete implements Strategy.Delete.
func (p *DataFirst) Delete(ctx context.Context, anchor anchored.Address) error {
	return p.c.del(ctx, anchor, anchored.ModeDataFirst)
}

// ReplaceAnchor implements Strategy.ReplaceAnchor.
// Data-first anchors may be replaced wholesale as a new instance -
// a new seed produces a new anchor address -
// but the embedded first-version reference must not change.
// The replacement inherits the record's current latest link,
// and the old anchor is tombstoned.
func (p *DataFirst) ReplaceAnchor(ctx context.Context, anchor anchored.Address, replacement *anchored.Entry) (anchored.Address, error) {
	ae, err := p.c.loadAnchor(ctx, anchor, anchored.ModeDataFirst)
	if err != nil {
		return anchored.Zero, err
	}
	if replacement.Kind != anchored.KindAnchor || replacement.Mode != anchored.ModeDataFirst {
		return anchored.Zero, errors.Errorf("replacement for %s is not a data-first anchor", anchor)
	}
	if sameEntry(ae, replacement) {
		return anchor, nil
	}
	if replacement.Anchor != ae.Anchor {
		return anchored.Zero, &anchored.ImmutableError{Anchor: anchor}
	}

	cur, err := p.c.r.Latest(ctx, anchor)
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "resolving current version of %s", anchor)
	}

	replaced, _, err := p.c.s.Commit(ctx, replacement)
	if err != nil {
		return anchored.Zero, errors.Wrap(err, "committing replacement anchor")
	}
	err = p.c.l.AddLink(ctx, anchored.Link{From: replaced, To: cur, Tag: anchored.TagLatest})
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "linking %s as latest of %s", cur, replaced)
	}
	err = p.c.s.Tombstone(ctx, anchor)
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "tombstoning replaced anchor %s", anchor)
	}

	return replaced, nil
}
