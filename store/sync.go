package store

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/anchored"
)

// Sync converges two or more stores.
// It lists entries and links on all input stores concurrently;
// whatever some stores have and others lack is copied to the stores
// where it's missing.
//
// Sync is the in-process stand-in for substrate replication,
// and it has the substrate's semantics:
// it is a set union.
// Entry commits are idempotent, so repeated Syncs are no-ops.
// A latest link removed on one store but still present on another
// comes back on both;
// that is harmless,
// because resolution chases superseded link targets forward to the
// chain tip.
// Tombstones are per-node read-side state and do not propagate.
func Sync(ctx context.Context, stores []Store) error {
	if len(stores) < 2 {
		return nil
	}

	var (
		entries = make([]map[anchored.Address]bool, len(stores))
		links   = make([]map[anchored.Link]bool, len(stores))
	)

	eg, ctx2 := errgroup.WithContext(ctx)
	for i, s := range stores {
		i, s := i, s
		eg.Go(func() error {
			m := make(map[anchored.Address]bool)
			err := s.ListEntries(ctx2, anchored.Zero, func(addr anchored.Address) error {
				m[addr] = true
				return nil
			})
			if err != nil {
				return errors.Wrap(err, "listing entries")
			}
			entries[i] = m

			lm := make(map[anchored.Link]bool)
			err = s.ListLinks(ctx2, func(l anchored.Link) error {
				lm[l] = true
				return nil
			})
			if err != nil {
				return errors.Wrap(err, "listing links")
			}
			links[i] = lm
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		return err
	}

	for i, have := range entries {
		for addr := range have {
			for j, other := range entries {
				if j == i || other[addr] {
					continue
				}
				e, err := stores[i].Get(ctx, addr)
				if errors.Is(err, anchored.ErrNotFound) {
					// Tombstoned since listing; leave it out.
					break
				}
				if err != nil {
					return errors.Wrapf(err, "getting entry %s", addr)
				}
				_, _, err = stores[j].Commit(ctx, e)
				if err != nil {
					return errors.Wrapf(err, "copying entry %s", addr)
				}
				other[addr] = true
			}
		}
	}

	for i, have := range links {
		for l := range have {
			for j, other := range links {
				if j == i || other[l] {
					continue
				}
				err = stores[j].AddLink(ctx, l)
				if err != nil {
					return errors.Wrapf(err, "copying link %s-[%s]->%s", l.From, l.Tag, l.To)
				}
				other[l] = true
			}
		}
	}

	return nil
}
