// Package anchored is a versioned entry store with anchor indirection.
//
// An entry store is content-addressable:
// it stores immutable byte records - "entries" -
// and indexes them by the hash of their content.
// This key is called the entry's address.
//
// Content addressability has some desirable properties,
// but it does mean that when a piece of data changes,
// so does its address,
// which makes it tricky to refer to that data over its lifetime.
// So in addition to plain data entries,
// this module provides "anchor" entries.
// An anchor is an entry whose address never changes;
// it stands for the stable identity of a logically mutable record.
// A directed, tagged link connects the anchor
// to the data entry holding the record's current contents,
// and each new version of the data names its predecessor,
// forming a version chain.
//
// The substrate that stores entries and links is assumed to offer
// no ordering of writes and only eventual, idempotent convergence,
// as in a distributed hash table.
// Resolution of the current version is therefore a pure function
// of the set of entries and links known locally:
// replaying the same observations in any order yields the same answer,
// and two writers updating the same anchor concurrently
// produce a fork that is detected and surfaced,
// never silently resolved.
//
// Two indirection strategies are provided in the pattern subpackage.
// Anchor-first commits the anchor before any data and never changes it.
// Data-first commits the data before its anchor
// and bakes the first version's address into the anchor's content;
// only the anchor's outgoing "latest" link may change thereafter.
//
// Pluggable storage backends live under the store subpackage.
package anchored
