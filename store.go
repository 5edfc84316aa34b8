package anchored

import "context"

// Tag labels a link.
type Tag string

const (
	// TagLatest marks the single anchor-to-data edge
	// naming a record's current version.
	TagLatest Tag = "latest"

	// TagSupersedes marks the edge from a data entry
	// to a successor that was committed with it as predecessor.
	// It mirrors the successor's Predecessor field,
	// giving resolution a forward path through the chain.
	TagSupersedes Tag = "supersedes"
)

// Link is a directed, tagged edge between two addresses.
type Link struct {
	From Address
	To   Address
	Tag  Tag
}

// Getter is a read-only Store (qv).
type Getter interface {
	// Get gets an entry by its address.
	// It returns ErrNotFound for unknown and tombstoned addresses alike.
	Get(context.Context, Address) (*Entry, error)

	// ListEntries calls a function for each live entry address in the store
	// in lexicographic order,
	// beginning with the first address _after_ the specified one.
	// If the callback returns an error, ListEntries exits with that error.
	ListEntries(ctx context.Context, start Address, f func(Address) error) error
}

// Store is a content-addressable entry store.
// Implementations are external substrates;
// this package assumes only that commits are idempotent
// and says nothing about ordering or replication.
type Store interface {
	Getter

	// Commit adds e to the store if it was not already present.
	// It returns e's address and a boolean that is true iff the entry
	// had to be added.
	// Committing the same entry twice is a no-op:
	// the second commit computes the same address.
	Commit(ctx context.Context, e *Entry) (addr Address, added bool, err error)

	// Tombstone marks the entry at addr as deleted without erasing it.
	// Subsequent Gets return ErrNotFound.
	// It returns ErrNotFound if addr is unknown.
	Tombstone(context.Context, Address) error
}

// LinkIndex stores directed, tagged edges between addresses.
// Adding a link that is already present is a no-op,
// and add/remove of distinct links commute,
// so independent writers need no mutual exclusion.
type LinkIndex interface {
	AddLink(context.Context, Link) error
	RemoveLink(context.Context, Link) error

	// Links returns the targets of all links from the given address
	// with the given tag.
	// Order reflects arrival at this node, not any global order;
	// callers must not assign it meaning.
	Links(ctx context.Context, from Address, tag Tag) ([]Address, error)

	// ListLinks calls a function for every link in the index.
	ListLinks(ctx context.Context, f func(Link) error) error
}
