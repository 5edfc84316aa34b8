// Package chain resolves version chains of content-addressed entries.
//
// A chain is the set of data entries reachable by following predecessor
// pointers backward from an address.
// Because updates may be issued concurrently from the same predecessor,
// a node can have more than one successor - a fork.
// Entries and links may be observed in any order,
// so everything here is a pure function of the set observed so far:
// resolution is re-run as more arrive, never computed once and trusted.
package chain

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/anchored"
)

// TipSet is the result of resolving a chain:
// the address(es) with no known successor.
// Fork is true when more than one distinct successor was found
// at some point in the chain.
type TipSet struct {
	Addrs []anchored.Address
	Fork  bool
}

// Graph is a successor index over a set of observed data entries.
// Adding entries is idempotent and order-insensitive,
// so a Graph built from the same set of observations
// always resolves to the same tips,
// whatever order they arrived in.
type Graph struct {
	preds map[anchored.Address]anchored.Address
	succs map[anchored.Address][]anchored.Address
}

// NewGraph produces an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		preds: make(map[anchored.Address]anchored.Address),
		succs: make(map[anchored.Address][]anchored.Address),
	}
}

// Add records the observation of entry e at addr.
// Duplicate observations are no-ops.
// An entry whose predecessor has not itself been observed is fine:
// it is an unresolved leaf until the predecessor arrives.
func (g *Graph) Add(addr anchored.Address, e *anchored.Entry) {
	if _, ok := g.preds[addr]; ok {
		return
	}
	g.preds[addr] = e.Predecessor
	if !e.Predecessor.IsZero() {
		g.succs[e.Predecessor] = insertAddr(g.succs[e.Predecessor], addr)
	}
}

// insertAddr inserts addr into the sorted slice s if not already present.
// Keeping successor sets sorted makes resolution independent of arrival order.
func insertAddr(s []anchored.Address, addr anchored.Address) []anchored.Address {
	i := sort.Search(len(s), func(n int) bool { return !s[n].Less(addr) })
	if i < len(s) && s[i] == addr {
		return s
	}
	s = append(s, anchored.Address{})
	copy(s[i+1:], s[i:])
	s[i] = addr
	return s
}

// Tips walks forward from start through the known successor sets
// and returns the chain tips.
func (g *Graph) Tips(start anchored.Address) TipSet {
	var (
		ts      TipSet
		visited = make(map[anchored.Address]bool)
	)
	frontier := []anchored.Address{start}
	for len(frontier) > 0 {
		addr := frontier[0]
		frontier = frontier[1:]
		if visited[addr] {
			continue
		}
		visited[addr] = true

		succs := g.succs[addr]
		if len(succs) == 0 {
			ts.Addrs = insertAddr(ts.Addrs, addr)
			continue
		}
		if len(succs) > 1 {
			ts.Fork = true
		}
		frontier = append(frontier, succs...)
	}
	return ts
}

// Base walks backward from addr to the earliest locally-known entry
// of its chain.
// An unknown predecessor stops the walk:
// it may simply not have replicated yet.
func (g *Graph) Base(addr anchored.Address) anchored.Address {
	for {
		pred, ok := g.preds[addr]
		if !ok || pred.IsZero() {
			return addr
		}
		if _, ok := g.preds[pred]; !ok {
			return addr
		}
		addr = pred
	}
}

// Tips walks forward from start over "supersedes" links
// and returns the chain tips.
// Supersedes links mirror the Predecessor fields of committed entries,
// so this is the link-index view of the same computation Graph performs
// over raw entries.
func Tips(ctx context.Context, links anchored.LinkIndex, start anchored.Address) (TipSet, error) {
	var (
		ts      TipSet
		visited = make(map[anchored.Address]bool)
	)
	frontier := []anchored.Address{start}
	for len(frontier) > 0 {
		addr := frontier[0]
		frontier = frontier[1:]
		if visited[addr] {
			continue
		}
		visited[addr] = true

		succs, err := links.Links(ctx, addr, anchored.TagSupersedes)
		if err != nil {
			return TipSet{}, errors.Wrapf(err, "getting supersedes links of %s", addr)
		}
		if len(succs) == 0 {
			ts.Addrs = insertAddr(ts.Addrs, addr)
			continue
		}
		distinct := dedupe(succs)
		if len(distinct) > 1 {
			ts.Fork = true
		}
		frontier = append(frontier, distinct...)
	}
	return ts, nil
}

func dedupe(addrs []anchored.Address) []anchored.Address {
	var out []anchored.Address
	for _, a := range addrs {
		out = insertAddr(out, a)
	}
	return out
}

// Recover rebuilds the chain containing hint by scanning every live
// data entry in s,
// then resolves the tips of that chain.
// It is the fallback for a lost anchor-to-data link:
// predecessor pointers give an independent path to the tip,
// so knowing any one data entry of a record is enough.
func Recover(ctx context.Context, s anchored.Store, hint anchored.Address) (TipSet, error) {
	g := NewGraph()
	err := s.ListEntries(ctx, anchored.Zero, func(addr anchored.Address) error {
		e, err := s.Get(ctx, addr)
		if errors.Is(err, anchored.ErrNotFound) {
			// Tombstoned since listing; skip.
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "getting entry %s", addr)
		}
		if e.Kind == anchored.KindData {
			g.Add(addr, e)
		}
		return nil
	})
	if err != nil {
		return TipSet{}, errors.Wrap(err, "scanning entries")
	}
	return g.Tips(g.Base(hint)), nil
}
