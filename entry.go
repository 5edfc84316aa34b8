package anchored

import (
	"crypto/sha256"

	"github.com/pkg/errors"
)

// Kind distinguishes the two kinds of entry.
type Kind byte

const (
	// KindData is a content-carrying entry, one version of a record.
	KindData Kind = 1

	// KindAnchor is a stable-identity entry standing for a logical record.
	KindAnchor Kind = 2
)

// Mode is the indirection strategy an anchor was created under.
// It is zero for data entries.
type Mode byte

const (
	ModeNone Mode = 0

	// ModeAnchorFirst anchors are committed before any data
	// and their content never changes.
	ModeAnchorFirst Mode = 1

	// ModeDataFirst anchors embed the address of the record's first
	// data entry in their content.
	// The embedded reference is immutable;
	// only the anchor's explicit "latest" link may change.
	ModeDataFirst Mode = 2
)

// Entry is the unit of storage.
// Entries are immutable once committed;
// their address is the hash of their encoding.
//
// For a data entry,
// Payload holds the record contents,
// Predecessor is the address of the version this one supersedes
// (Zero for a record's first version),
// and Anchor is a back-reference to the owning anchor
// (Zero when the entry was committed before its anchor existed,
// as the data-first strategy does for first versions).
//
// For an anchor entry,
// Payload holds the caller-supplied uniqueness seed,
// Mode records the strategy that created it,
// Predecessor is always Zero,
// and Anchor holds the embedded first-version reference
// in data-first mode
// (Zero in anchor-first mode, whose anchors have no data dependency).
type Entry struct {
	Kind        Kind
	Mode        Mode
	Predecessor Address
	Anchor      Address
	Payload     []byte
}

// entryHeaderLen is the length of the fixed portion of an encoded entry:
// one byte each for kind and mode, then the two addresses.
const entryHeaderLen = 2 + 2*sha256.Size

// Encode produces the canonical encoding of e.
// The encoding is deterministic:
// equal entries always encode to equal bytes,
// which is what makes Address content-addressing sound.
func (e *Entry) Encode() []byte {
	buf := make([]byte, 0, entryHeaderLen+len(e.Payload))
	buf = append(buf, byte(e.Kind), byte(e.Mode))
	buf = append(buf, e.Predecessor[:]...)
	buf = append(buf, e.Anchor[:]...)
	buf = append(buf, e.Payload...)
	return buf
}

// Address computes the content address of e.
func (e *Entry) Address() Address {
	return sha256.Sum256(e.Encode())
}

// DecodeEntry parses an encoded entry.
func DecodeEntry(b []byte) (*Entry, error) {
	if len(b) < entryHeaderLen {
		return nil, errors.Errorf("encoded entry too short: %d bytes", len(b))
	}

	e := &Entry{
		Kind: Kind(b[0]),
		Mode: Mode(b[1]),
	}
	switch e.Kind {
	case KindData, KindAnchor:
	default:
		return nil, errors.Errorf("unknown entry kind %d", b[0])
	}

	copy(e.Predecessor[:], b[2:2+sha256.Size])
	copy(e.Anchor[:], b[2+sha256.Size:entryHeaderLen])
	if len(b) > entryHeaderLen {
		e.Payload = make([]byte, len(b)-entryHeaderLen)
		copy(e.Payload, b[entryHeaderLen:])
	}
	return e, nil
}
