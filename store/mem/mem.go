// Package mem implements an in-memory storage backend.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store"
)

var _ store.Store = &Store{}

// Store is a memory-based implementation of a storage backend.
type Store struct {
	mu      sync.Mutex
	entries map[anchored.Address][]byte
	dead    map[anchored.Address]bool
	links   []anchored.Link // arrival order
}

// New produces a new Store.
func New() *Store {
	return &Store{
		entries: make(map[anchored.Address][]byte),
		dead:    make(map[anchored.Address]bool),
	}
}

// Get gets the entry at `addr`.
func (s *Store) Get(_ context.Context, addr anchored.Address) (*anchored.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dead[addr] {
		return nil, anchored.ErrNotFound
	}
	b, ok := s.entries[addr]
	if !ok {
		return nil, anchored.ErrNotFound
	}
	return anchored.DecodeEntry(b)
}

// Commit adds an entry to the store if it wasn't already present.
func (s *Store) Commit(_ context.Context, e *anchored.Entry) (anchored.Address, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := e.Address()
	if _, ok := s.entries[addr]; ok {
		return addr, false, nil
	}
	s.entries[addr] = e.Encode()
	return addr, true, nil
}

// Tombstone marks the entry at `addr` deleted without erasing it.
func (s *Store) Tombstone(_ context.Context, addr anchored.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[addr]; !ok {
		return anchored.ErrNotFound
	}
	s.dead[addr] = true
	return nil
}

// ListEntries produces all live entry addresses, in lexicographic order.
func (s *Store) ListEntries(_ context.Context, start anchored.Address, f func(anchored.Address) error) error {
	s.mu.Lock()
	addrs := make([]anchored.Address, 0, len(s.entries))
	for addr := range s.entries {
		if !s.dead[addr] {
			addrs = append(addrs, addr)
		}
	}
	s.mu.Unlock()

	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	index := sort.Search(len(addrs), func(n int) bool {
		return start.Less(addrs[n])
	})

	for i := index; i < len(addrs); i++ {
		err := f(addrs[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// AddLink adds a link if it wasn't already present.
func (s *Store) AddLink(_ context.Context, l anchored.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, have := range s.links {
		if have == l {
			return nil
		}
	}
	s.links = append(s.links, l)
	return nil
}

// RemoveLink removes a link.
// Removing an absent link is a no-op.
func (s *Store) RemoveLink(_ context.Context, l anchored.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, have := range s.links {
		if have == l {
			s.links = append(s.links[:i], s.links[i+1:]...)
			return nil
		}
	}
	return nil
}

// Links produces the targets of all links from `from` tagged `tag`,
// in arrival order.
func (s *Store) Links(_ context.Context, from anchored.Address, tag anchored.Tag) ([]anchored.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []anchored.Address
	for _, l := range s.links {
		if l.From == from && l.Tag == tag {
			out = append(out, l.To)
		}
	}
	return out, nil
}

// ListLinks produces every link in the index, in arrival order.
func (s *Store) ListLinks(_ context.Context, f func(anchored.Link) error) error {
	s.mu.Lock()
	links := make([]anchored.Link, len(s.links))
	copy(links, s.links)
	s.mu.Unlock()

	for _, l := range links {
		err := f(l)
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (store.Store, error) {
		return New(), nil
	})
}
