// Package pattern implements the two indirection strategies
// for maintaining a stable reference to content-addressed data:
// anchor-first and data-first.
//
// Both orchestrate the same primitives -
// an entry store, a link index, and chain/anchor resolution -
// and differ only in how a record is created
// and in what part of its anchor is allowed to change.
package pattern

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/resolve"
)

// Strategy is a versioned-record store.
// All methods are safe for use by independent writers with no shared
// lock:
// every write is an idempotent content-addressed commit or a
// commutative link operation,
// and concurrent updates from the same base version
// surface later as a detected fork rather than failing here.
type Strategy interface {
	// Create commits a new record with the given first payload.
	// The seed must make the record's anchor unique per logical
	// instance (e.g. author + timestamp + content hash);
	// two Creates with equal seed and payload are the same record.
	// It returns the record's anchor address,
	// which is its permanent identity.
	Create(ctx context.Context, payload, seed []byte) (anchored.Address, error)

	// Update commits a new version of the record anchored at anchor
	// and moves the latest link to it.
	// It returns the new data entry's address.
	Update(ctx context.Context, anchor anchored.Address, payload []byte) (anchored.Address, error)

	// Read returns the payload of the record's current version.
	// A lost latest link is repaired by walking the version chain.
	Read(ctx context.Context, anchor anchored.Address) ([]byte, error)

	// Delete tombstones the record's anchor.
	// The data entries and their predecessor links are left untouched:
	// deletion hides the record, it never erases history.
	Delete(ctx context.Context, anchor anchored.Address) error

	// ReplaceAnchor attempts to replace the committed anchor entry.
	// Anchor-first refuses any change.
	// Data-first permits a new anchor instance
	// as long as the embedded first-version reference is unchanged.
	// Both return *anchored.ImmutableError on a forbidden change,
	// and both treat an identical replacement as a no-op.
	ReplaceAnchor(ctx context.Context, anchor anchored.Address, replacement *anchored.Entry) (anchored.Address, error)
}

// core holds the primitives shared by both strategies.
type core struct {
	s anchored.Store
	l anchored.LinkIndex
	r resolve.Resolver
}

func newCore(s anchored.Store, l anchored.LinkIndex) core {
	return core{s: s, l: l, r: resolve.Resolver{S: s, L: l}}
}

// loadAnchor gets the anchor entry at addr and checks it was created by
// the expected strategy.
func (c core) loadAnchor(ctx context.Context, addr anchored.Address, mode anchored.Mode) (*anchored.Entry, error) {
	e, err := c.s.Get(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "getting anchor %s", addr)
	}
	if e.Kind != anchored.KindAnchor {
		return nil, errors.Errorf("entry %s is not an anchor", addr)
	}
	if e.Mode != mode {
		return nil, errors.Errorf("anchor %s was not created by this strategy", addr)
	}
	return e, nil
}

// update commits a new version with the current tip as predecessor,
// records the supersedes edge,
// then moves the latest link:
// add the new edge first, remove the old one second,
// so no observer ever sees the anchor with no path to its data.
func (c core) update(ctx context.Context, anchor anchored.Address, mode anchored.Mode, payload []byte) (anchored.Address, error) {
	_, err := c.loadAnchor(ctx, anchor, mode)
	if err != nil {
		return anchored.Zero, err
	}

	cur, err := c.r.Latest(ctx, anchor)
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "resolving current version of %s", anchor)
	}

	e := &anchored.Entry{
		Kind:        anchored.KindData,
		Predecessor: cur,
		Anchor:      anchor,
		Payload:     payload,
	}
	addr, _, err := c.s.Commit(ctx, e)
	if err != nil {
		return anchored.Zero, errors.Wrap(err, "committing new version")
	}

	err = c.l.AddLink(ctx, anchored.Link{From: cur, To: addr, Tag: anchored.TagSupersedes})
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "recording that %s supersedes %s", addr, cur)
	}
	err = c.l.AddLink(ctx, anchored.Link{From: anchor, To: addr, Tag: anchored.TagLatest})
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "linking %s as latest of %s", addr, anchor)
	}
	err = c.l.RemoveLink(ctx, anchored.Link{From: anchor, To: cur, Tag: anchored.TagLatest})
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "unlinking %s from %s", cur, anchor)
	}

	return addr, nil
}

// read resolves the current version and returns its payload.
// On a broken latest link it falls back to a chain walk,
// seeded by hint's out-of-band knowledge of one data entry of the record.
func (c core) read(ctx context.Context, anchor anchored.Address, mode anchored.Mode, hint func(ctx context.Context, e *anchored.Entry) (anchored.Address, error)) ([]byte, error) {
	ae, err := c.loadAnchor(ctx, anchor, mode)
	if err != nil {
		return nil, err
	}

	cur, err := c.r.Latest(ctx, anchor)
	if errors.Is(err, anchored.ErrBrokenLink) {
		h, herr := hint(ctx, ae)
		if herr != nil {
			return nil, errors.Wrapf(herr, "finding a chain entry for %s after broken link", anchor)
		}
		cur, err = c.r.Recover(ctx, anchor, h)
	}
	if err != nil {
		return nil, err
	}

	e, err := c.s.Get(ctx, cur)
	if err != nil {
		return nil, errors.Wrapf(err, "getting current version %s", cur)
	}
	return e.Payload, nil
}

// del tombstones the anchor only.
func (c core) del(ctx context.Context, anchor anchored.Address, mode anchored.Mode) error {
	_, err := c.loadAnchor(ctx, anchor, mode)
	if err != nil {
		return err
	}
	return errors.Wrapf(c.s.Tombstone(ctx, anchor), "tombstoning anchor %s", anchor)
}

// sameEntry tells whether two entries have identical committed content.
func sameEntry(a, b *anchored.Entry) bool {
	return bytes.Equal(a.Encode(), b.Encode())
}
