package resolve

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/anchored"
)

// Detector surfaces forks and staleness as observable conditions.
// It never resolves anything:
// which version wins a fork is application policy,
// expressed through a Reconciler.
type Detector struct {
	R Resolver
}

// Fork returns the competing tip addresses for the record anchored at
// anchor,
// or nil when there is no fork.
// A missing latest link propagates as anchored.ErrBrokenLink.
func (d Detector) Fork(ctx context.Context, anchor anchored.Address) ([]anchored.Address, error) {
	_, err := d.R.Latest(ctx, anchor)
	var fe *anchored.ForkError
	if errors.As(err, &fe) {
		return fe.Tips, nil
	}
	return nil, err
}

// Reconciler chooses a winning tip among the competitors of a fork.
// This module ships no policy:
// whether to merge, pick by timestamp,
// or hand the choice to a human is up to the application.
type Reconciler interface {
	Reconcile(ctx context.Context, anchor anchored.Address, tips []anchored.Address) (anchored.Address, error)
}

// Repair applies a reconciliation choice:
// it points the anchor's latest link at winner
// and removes the latest links to the given losers.
// It does not touch the chain itself;
// the losing versions remain addressable forever.
func Repair(ctx context.Context, l anchored.LinkIndex, anchor, winner anchored.Address, losers []anchored.Address) error {
	err := l.AddLink(ctx, anchored.Link{From: anchor, To: winner, Tag: anchored.TagLatest})
	if err != nil {
		return errors.Wrapf(err, "linking %s as latest of %s", winner, anchor)
	}
	for _, loser := range losers {
		if loser == winner {
			continue
		}
		err = l.RemoveLink(ctx, anchored.Link{From: anchor, To: loser, Tag: anchored.TagLatest})
		if err != nil {
			return errors.Wrapf(err, "unlinking %s from %s", loser, anchor)
		}
	}
	return nil
}
