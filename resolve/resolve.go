// Package resolve maps anchors to the current version of their record.
package resolve

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/chain"
)

// Resolver resolves an anchor's "latest" link to the record's current
// data-entry address,
// independent of which indirection strategy created the anchor.
type Resolver struct {
	S anchored.Store
	L anchored.LinkIndex
}

// Latest returns the address of the current version of the record
// anchored at anchor.
//
// A missing latest link yields anchored.ErrBrokenLink
// (recoverable; see Recover).
// A latest link that has fallen behind the chain is repaired silently
// by following supersedes links to the true tip;
// use LatestStrict to observe that condition instead.
// Competing tips yield a *anchored.ForkError.
func (r Resolver) Latest(ctx context.Context, anchor anchored.Address) (anchored.Address, error) {
	tip, _, err := r.latest(ctx, anchor)
	return tip, err
}

// LatestStrict is Latest,
// except that a latest link naming a superseded address
// yields a *anchored.StaleError carrying both the stale target
// and the true tip.
func (r Resolver) LatestStrict(ctx context.Context, anchor anchored.Address) (anchored.Address, error) {
	tip, stale, err := r.latest(ctx, anchor)
	if err != nil {
		return anchored.Zero, err
	}
	if !stale.IsZero() {
		return anchored.Zero, &anchored.StaleError{Anchor: anchor, Stale: stale, Tip: tip}
	}
	return tip, nil
}

func (r Resolver) latest(ctx context.Context, anchor anchored.Address) (tip, stale anchored.Address, err error) {
	targets, err := r.L.Links(ctx, anchor, anchored.TagLatest)
	if err != nil {
		return anchored.Zero, anchored.Zero, errors.Wrapf(err, "getting latest links of %s", anchor)
	}
	if len(targets) == 0 {
		return anchored.Zero, anchored.Zero, errors.Wrapf(anchored.ErrBrokenLink, "anchor %s", anchor)
	}

	// Chase each candidate to its chain tip(s).
	// Candidates from a remove/add race collapse to the same tip;
	// genuinely concurrent updates do not, and that is a fork.
	var (
		tips    []anchored.Address
		chased  bool
		fork    bool
		visited = make(map[anchored.Address]bool)
	)
	for _, target := range targets {
		if visited[target] {
			continue
		}
		visited[target] = true

		ts, err := chain.Tips(ctx, r.L, target)
		if err != nil {
			return anchored.Zero, anchored.Zero, err
		}
		if ts.Fork {
			fork = true
		}
		for _, t := range ts.Addrs {
			if t != target {
				chased = true
			}
			tips = mergeAddr(tips, t)
		}
	}
	if fork || len(tips) > 1 {
		return anchored.Zero, anchored.Zero, &anchored.ForkError{Anchor: anchor, Tips: tips}
	}

	tip = tips[0]
	if chased && len(targets) == 1 {
		stale = targets[0]
	}
	return tip, stale, nil
}

// Recover resolves the current version of the record anchored at anchor
// without using the anchor's latest link,
// by rebuilding the version chain from hint:
// the address of any data entry known to belong to the record.
// It is the fallback when Latest reports ErrBrokenLink.
func (r Resolver) Recover(ctx context.Context, anchor, hint anchored.Address) (anchored.Address, error) {
	ts, err := chain.Recover(ctx, r.S, hint)
	if err != nil {
		return anchored.Zero, errors.Wrapf(err, "recovering chain from %s", hint)
	}
	if len(ts.Addrs) == 0 {
		return anchored.Zero, errors.Wrapf(anchored.ErrNotFound, "no chain found from %s", hint)
	}
	if ts.Fork || len(ts.Addrs) > 1 {
		return anchored.Zero, &anchored.ForkError{Anchor: anchor, Tips: ts.Addrs}
	}
	return ts.Addrs[0], nil
}

func mergeAddr(addrs []anchored.Address, a anchored.Address) []anchored.Address {
	for i, x := range addrs {
		if x == a {
			return addrs
		}
		if a.Less(x) {
			addrs = append(addrs, anchored.Address{})
			copy(addrs[i+1:], addrs[i:])
			addrs[i] = a
			return addrs
		}
	}
	return append(addrs, a)
}
