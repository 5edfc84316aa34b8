// Package badger implements a storage backend on the Badger key-value
// store,
// with optional xz compression of entry bytes at rest.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store"
)

var _ store.Store = &Store{}

// Store is a Badger-based storage backend.
type Store struct {
	db       *badger.DB
	compress bool
}

// Key layout.
// Entry values carry a one-byte flag telling whether they are
// xz-compressed.
var (
	entryPrefix = []byte("e:")
	deadPrefix  = []byte("t:")
	linkPrefix  = []byte("l:") // seq (8 bytes BE) -> encoded link
	dedupPrefix = []byte("L:") // from | to | tag -> seq
	seqKey      = []byte("seq")
)

const (
	flagRaw = 0
	flagXz  = 1
)

// New produces a new Store over db.
// When compress is true,
// entry bytes are xz-compressed on the way in
// and uncompressed on the way out;
// addresses are always computed over the uncompressed encoding,
// so compression is invisible to callers.
func New(db *badger.DB, compress bool) *Store {
	return &Store{db: db, compress: compress}
}

// Open opens (or creates) a Badger database at dir and produces a Store
// over it.
func Open(dir string, compress bool) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger db at %s", dir)
	}
	return New(db, compress), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func entryKey(addr anchored.Address) []byte {
	return append(append([]byte{}, entryPrefix...), addr[:]...)
}

func deadKey(addr anchored.Address) []byte {
	return append(append([]byte{}, deadPrefix...), addr[:]...)
}

func dedupKey(l anchored.Link) []byte {
	k := append([]byte{}, dedupPrefix...)
	k = append(k, l.From[:]...)
	k = append(k, l.To[:]...)
	k = append(k, []byte(l.Tag)...)
	return k
}

// Get gets the entry at `addr`.
func (s *Store) Get(_ context.Context, addr anchored.Address) (*anchored.Entry, error) {
	var b []byte
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(deadKey(addr))
		if err == nil {
			return anchored.ErrNotFound
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		item, err := txn.Get(entryKey(addr))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return anchored.ErrNotFound
		}
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	b, err = unflag(b)
	if err != nil {
		return nil, errors.Wrapf(err, "uncompressing entry %s", addr)
	}
	return anchored.DecodeEntry(b)
}

// Commit adds an entry to the store if it wasn't already present.
func (s *Store) Commit(_ context.Context, e *anchored.Entry) (anchored.Address, bool, error) {
	var (
		addr  = e.Address()
		added bool
	)

	val, err := s.flag(e.Encode())
	if err != nil {
		return anchored.Zero, false, errors.Wrap(err, "compressing entry")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(entryKey(addr))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		added = true
		return txn.Set(entryKey(addr), val)
	})
	return addr, added, err
}

// Tombstone marks the entry at `addr` deleted without erasing it.
func (s *Store) Tombstone(_ context.Context, addr anchored.Address) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(entryKey(addr))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return anchored.ErrNotFound
		}
		if err != nil {
			return err
		}
		return txn.Set(deadKey(addr), nil)
	})
}

// ListEntries produces all live entry addresses, in lexicographic order.
func (s *Store) ListEntries(_ context.Context, start anchored.Address, f func(anchored.Address) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(entryKey(start)); it.Valid(); it.Next() {
			addr := anchored.AddressFromBytes(it.Item().Key()[len(entryPrefix):])
			if !start.Less(addr) {
				continue
			}
			_, err := txn.Get(deadKey(addr))
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			err = f(addr)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// AddLink adds a link if it wasn't already present.
func (s *Store) AddLink(_ context.Context, l anchored.Link) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(dedupKey(l))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		seq, err := nextSeq(txn)
		if err != nil {
			return err
		}
		err = txn.Set(dedupKey(l), seq)
		if err != nil {
			return err
		}
		return txn.Set(append(append([]byte{}, linkPrefix...), seq...), encodeLink(l))
	})
}

// RemoveLink removes a link.
// Removing an absent link is a no-op.
func (s *Store) RemoveLink(_ context.Context, l anchored.Link) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(dedupKey(l))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		seq, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		err = txn.Delete(append(append([]byte{}, linkPrefix...), seq...))
		if err != nil {
			return err
		}
		return txn.Delete(dedupKey(l))
	})
}

// Links produces the targets of all links from `from` tagged `tag`,
// in arrival order.
func (s *Store) Links(ctx context.Context, from anchored.Address, tag anchored.Tag) ([]anchored.Address, error) {
	var out []anchored.Address
	err := s.ListLinks(ctx, func(l anchored.Link) error {
		if l.From == from && l.Tag == tag {
			out = append(out, l.To)
		}
		return nil
	})
	return out, err
}

// ListLinks produces every link in the index, in arrival order.
// Link keys are sequence numbers,
// so key order is arrival order.
func (s *Store) ListLinks(_ context.Context, f func(anchored.Link) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = linkPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(linkPrefix); it.Valid(); it.Next() {
			var l anchored.Link
			err := it.Item().Value(func(val []byte) error {
				var err error
				l, err = decodeLink(val)
				return err
			})
			if err != nil {
				return err
			}
			err = f(l)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func nextSeq(txn *badger.Txn) ([]byte, error) {
	var n uint64
	item, err := txn.Get(seqKey)
	if err == nil {
		err = item.Value(func(val []byte) error {
			n = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, err
	}

	n++
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, n)
	return seq, txn.Set(seqKey, seq)
}

func encodeLink(l anchored.Link) []byte {
	b := make([]byte, 0, 64+len(l.Tag))
	b = append(b, l.From[:]...)
	b = append(b, l.To[:]...)
	b = append(b, []byte(l.Tag)...)
	return b
}

func decodeLink(b []byte) (anchored.Link, error) {
	if len(b) < 64 {
		return anchored.Link{}, errors.Errorf("encoded link too short: %d bytes", len(b))
	}
	return anchored.Link{
		From: anchored.AddressFromBytes(b[:32]),
		To:   anchored.AddressFromBytes(b[32:64]),
		Tag:  anchored.Tag(b[64:]),
	}, nil
}

func (s *Store) flag(b []byte) ([]byte, error) {
	if !s.compress {
		return append([]byte{flagRaw}, b...), nil
	}
	var buf bytes.Buffer
	buf.WriteByte(flagXz)
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	_, err = w.Write(b)
	if err != nil {
		return nil, err
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unflag(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty entry value")
	}
	if b[0] == flagRaw {
		return b[1:], nil
	}
	r, err := xz.NewReader(bytes.NewReader(b[1:]))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func init() {
	store.Register("badger", func(_ context.Context, conf map[string]interface{}) (store.Store, error) {
		dir, ok := conf["dir"].(string)
		if !ok {
			return nil, errors.New(`missing "dir" parameter`)
		}
		compress, _ := conf["compress"].(bool)
		return Open(dir, compress)
	})
}
