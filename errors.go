package anchored

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is the error returned when a referenced address
// is absent from the store,
// or present only as a tombstone.
var ErrNotFound = errors.New("not found")

// ErrBrokenLink is the error returned when an anchor has no "latest" link.
// It is recoverable:
// the chain can be rebuilt from any known data entry of the record
// (see resolve.Resolver.Recover).
var ErrBrokenLink = errors.New("broken link")

// ForkError reports that more than one valid latest version
// exists for an anchor.
// It carries the competing tip addresses, sorted.
// Forks are never resolved automatically;
// resolution policy belongs to the caller.
type ForkError struct {
	Anchor Address
	Tips   []Address
}

func (e *ForkError) Error() string {
	tips := make([]string, 0, len(e.Tips))
	for _, t := range e.Tips {
		tips = append(tips, t.String())
	}
	return fmt.Sprintf("fork at anchor %s: competing tips %s", e.Anchor, strings.Join(tips, ", "))
}

// StaleError reports that an anchor's latest link names an address
// that has since been superseded.
// Tip is the address resolution actually arrives at
// by following the chain past the stale link target.
type StaleError struct {
	Anchor Address
	Stale  Address
	Tip    Address
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale latest link at anchor %s: link names %s, chain tip is %s", e.Anchor, e.Stale, e.Tip)
}

// ImmutableError reports an attempted mutation of an anchor's committed
// content that the active strategy forbids:
// any change at all under anchor-first,
// any change to the embedded implicit reference under data-first.
type ImmutableError struct {
	Anchor Address
}

func (e *ImmutableError) Error() string {
	return fmt.Sprintf("anchor %s is immutable", e.Anchor)
}
