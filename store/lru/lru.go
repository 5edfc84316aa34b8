// Package lru implements a store wrapper that caches entry reads.
// Entries are immutable once committed,
// so a cache never serves stale data;
// link operations pass through uncached,
// because links are the one mutable part of the substrate.
package lru

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store"
)

var _ store.Store = &Store{}

type Store struct {
	c *lru.Cache // Address -> *anchored.Entry
	s store.Store
}

// New produces a new Store delegating to `s`
// with an entry cache holding up to `size` entries.
func New(s store.Store, size int) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c}, err
}

func (s *Store) Get(ctx context.Context, addr anchored.Address) (*anchored.Entry, error) {
	if got, ok := s.c.Get(addr); ok {
		return got.(*anchored.Entry), nil
	}
	got, err := s.s.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.c.Add(addr, got)
	return got, nil
}

func (s *Store) Commit(ctx context.Context, e *anchored.Entry) (anchored.Address, bool, error) {
	addr, added, err := s.s.Commit(ctx, e)
	if err != nil {
		return addr, added, err
	}
	s.c.Add(addr, e)
	return addr, added, nil
}

// Tombstone evicts the cached entry so reads see the deletion.
func (s *Store) Tombstone(ctx context.Context, addr anchored.Address) error {
	err := s.s.Tombstone(ctx, addr)
	if err != nil {
		return err
	}
	s.c.Remove(addr)
	return nil
}

func (s *Store) ListEntries(ctx context.Context, start anchored.Address, f func(anchored.Address) error) error {
	return s.s.ListEntries(ctx, start, f)
}

func (s *Store) AddLink(ctx context.Context, l anchored.Link) error {
	return s.s.AddLink(ctx, l)
}

func (s *Store) RemoveLink(ctx context.Context, l anchored.Link) error {
	return s.s.RemoveLink(ctx, l)
}

func (s *Store) Links(ctx context.Context, from anchored.Address, tag anchored.Tag) ([]anchored.Address, error) {
	return s.s.Links(ctx, from, tag)
}

func (s *Store) ListLinks(ctx context.Context, f func(anchored.Link) error) error {
	return s.s.ListLinks(ctx, f)
}

func init() {
	store.Register("lru", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
		size, ok := conf["size"].(int)
		if !ok {
			return nil, errors.New(`missing "size" parameter`)
		}
		nested, ok := conf["nested"].(map[string]interface{})
		if !ok {
			return nil, errors.New(`missing "nested" parameter`)
		}
		nestedType, ok := nested["type"].(string)
		if !ok {
			return nil, errors.New(`"nested" parameter missing "type"`)
		}
		nestedStore, err := store.Create(ctx, nestedType, nested)
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nestedStore, size)
	})
}
