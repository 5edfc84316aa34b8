package pattern

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/anchored"
)

// AnchorFirst is the indirection strategy that commits a record's
// anchor before any of its data.
// The anchor's content has no data dependency
// and never changes for the life of the record;
// only its outgoing link set does.
type AnchorFirst struct {
	c core
}

var _ Strategy = (*AnchorFirst)(nil)

// NewAnchorFirst produces an AnchorFirst over the given store and link
// index.
func NewAnchorFirst(s anchored.Store, l anchored.LinkIndex) *AnchorFirst {
	return &AnchorFirst{c: newCore(s, l)}
}

// Create implements Strategy.Create:
// anchor first, then the data entry carrying a back-reference to it,
// then the latest link.
func (p *AnchorFirst) Create(ctx context.Context, payload, seed []byte) (anchored.Address, error) {
	ae := &anchored.Entry{
		Kind:    anchored.KindAnchor,
		Mode:    anchored.ModeAnchorFirst,
		Payload: seed,
	}
	anchor, _, err := p.c.s.Commit(ctx, ae)
	if err != nil {
		return anchored.Zero, errors.Wrap(err, "committing anchor")
	}

	de := &anchored.Entry{
		Kind:    anchored.KindData,
		Anchor:  anchor,
		Payload: payload,
	}
	data, _, err := p.c.s.Commit(ctx, de)
	if err != nil {
		return anchored.Zero, errors.Wrap(err, "committing first version")
	}

	err = p.c.l.AddLink(ctx, anchored.Link{From: anchor, To: data, Tag: anchored.TagLatest})
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "linking %s as latest of %s", data, anchor)
	}

	return anchor, nil
}

// Update implements Strategy.Update.
func (p *AnchorFirst) Update(ctx context.Context, anchor anchored.Address, payload []byte) (anchored.Address, error) {
	return p.c.update(ctx, anchor, anchored.ModeAnchorFirst, payload)
}

// Read implements Strategy.Read.
func (p *AnchorFirst) Read(ctx context.Context, anchor anchored.Address) ([]byte, error) {
	return p.c.read(ctx, anchor, anchored.ModeAnchorFirst, p.hint)
}

// errStopScan stops a ListEntries scan early.
var errStopScan = errors.New("stop scan")

// hint finds some data entry of the record by scanning for the
// back-reference its versions carry.
func (p *AnchorFirst) hint(ctx context.Context, ae *anchored.Entry) (anchored.Address, error) {
	var (
		anchor = ae.Address()
		found  anchored.Address
	)
	err := p.c.s.ListEntries(ctx, anchored.Zero, func(addr anchored.Address) error {
		e, err := p.c.s.Get(ctx, addr)
		if errors.Is(err, anchored.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if e.Kind == anchored.KindData && e.Anchor == anchor {
			found = addr
			return errStopScan
		}
		return nil
	})
	if errors.Is(err, errStopScan) {
		return found, nil
	}
	if err != nil {
		return anchored.Zero, err
	}
	return anchored.Zero, errors.Wrapf(anchored.ErrNotFound, "no data entry references anchor %s", anchor)
}

// Delete implements Strategy.Delete.
func (p *AnchorFirst) Delete(ctx context.Context, anchor anchored.Address) error {
	return p.c.del(ctx, anchor, anchored.ModeAnchorFirst)
}

// ReplaceAnchor implements Strategy.ReplaceAnchor.
// Under anchor-first an anchor's content is permanent:
// an identical replacement is a no-op,
// anything else is an ImmutableError.
func (p *AnchorFirst) ReplaceAnchor(ctx context.Context, anchor anchored.Address, replacement *anchored.Entry) (anchored.Address, error) {
	ae, err := p.c.loadAnchor(ctx, anchor, anchored.ModeAnchorFirst)
	if err != nil {
		return anchored.Zero, err
	}
	if sameEntry(ae, replacement) {
		return anchor, nil
	}
	return anchored.Zero, &anchored.ImmutableError{Anchor: anchor}
}
