// Package file implements a storage backend as a file hierarchy.
package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bobg/flock"
	"github.com/pkg/errors"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store"
)

var _ store.Store = &Store{}

// Store is a file-based implementation of a storage backend.
//
// Entries live under entries/ in a fan-out hierarchy keyed by address.
// Tombstones are marker files under dead/.
// A link is a file links/FROM/TAG/TO whose content is the link's
// arrival sequence number;
// the counter file feeding those numbers is guarded with a file lock
// so that independent processes sharing the hierarchy
// assign distinct numbers.
type Store struct {
	root    string
	flocker flock.Locker
}

// New produces a new Store storing data beneath `root`.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) entryroot() string {
	return filepath.Join(s.root, "entries")
}

func (s *Store) entrypath(addr anchored.Address) string {
	h := addr.String()
	return filepath.Join(s.entryroot(), h[:2], h[:4], h)
}

func (s *Store) deadpath(addr anchored.Address) string {
	return filepath.Join(s.root, "dead", addr.String())
}

func (s *Store) linkroot() string {
	return filepath.Join(s.root, "links")
}

func (s *Store) linkpath(l anchored.Link) string {
	return filepath.Join(s.linkroot(), l.From.String(), string(l.Tag), l.To.String())
}

func (s *Store) seqpath() string {
	return filepath.Join(s.root, "linkseq")
}

// Get gets the entry at `addr`.
func (s *Store) Get(_ context.Context, addr anchored.Address) (*anchored.Entry, error) {
	if _, err := os.Stat(s.deadpath(addr)); err == nil {
		return nil, anchored.ErrNotFound
	}

	path := s.entrypath(addr)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, anchored.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return anchored.DecodeEntry(b)
}

// Commit adds an entry to the store if it wasn't already present.
func (s *Store) Commit(_ context.Context, e *anchored.Entry) (anchored.Address, bool, error) {
	var (
		addr = e.Address()
		path = s.entrypath(addr)
		dir  = filepath.Dir(path)
	)

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return addr, false, errors.Wrapf(err, "ensuring path %s exists", dir)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return addr, false, nil
	}
	if err != nil {
		return anchored.Zero, false, errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	_, err = f.Write(e.Encode())
	if err != nil {
		return anchored.Zero, false, errors.Wrapf(err, "writing data to %s", path)
	}

	return addr, true, nil
}

// Tombstone marks the entry at `addr` deleted without erasing it.
func (s *Store) Tombstone(_ context.Context, addr anchored.Address) error {
	if _, err := os.Stat(s.entrypath(addr)); os.IsNotExist(err) {
		return anchored.ErrNotFound
	}

	path := s.deadpath(addr)
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return errors.Wrapf(err, "ensuring path %s exists", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	return f.Close()
}

// ListEntries produces all live entry addresses, in lexicographic order.
func (s *Store) ListEntries(_ context.Context, start anchored.Address, f func(anchored.Address) error) error {
	var addrs []anchored.Address
	err := filepath.WalkDir(s.entryroot(), func(path string, d fs.DirEntry, err error) error {
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		addr, err := anchored.AddressFromHex(d.Name())
		if err != nil {
			// Not an entry file.
			return nil
		}
		if _, err := os.Stat(s.deadpath(addr)); err == nil {
			return nil
		}
		addrs = append(addrs, addr)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking %s", s.entryroot())
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	index := sort.Search(len(addrs), func(n int) bool {
		return start.Less(addrs[n])
	})
	for i := index; i < len(addrs); i++ {
		err = f(addrs[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// AddLink adds a link if it wasn't already present.
func (s *Store) AddLink(_ context.Context, l anchored.Link) error {
	path := s.linkpath(l)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	seq, err := s.nextSeq()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return errors.Wrapf(err, "ensuring path %s exists", filepath.Dir(path))
	}
	return errors.Wrapf(os.WriteFile(path, []byte(strconv.FormatUint(seq, 10)), 0644), "writing %s", path)
}

// nextSeq increments the arrival counter under a file lock.
func (s *Store) nextSeq() (uint64, error) {
	err := s.flocker.Lock(s.seqpath())
	if err != nil {
		return 0, errors.Wrap(err, "locking link counter")
	}
	defer s.flocker.Unlock(s.seqpath())

	var n uint64
	b, err := os.ReadFile(s.seqpath())
	if err == nil {
		n, err = strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "parsing link counter")
		}
	} else if !os.IsNotExist(err) {
		return 0, errors.Wrap(err, "reading link counter")
	}

	n++
	return n, errors.Wrap(os.WriteFile(s.seqpath(), []byte(strconv.FormatUint(n, 10)), 0644), "writing link counter")
}

// RemoveLink removes a link.
// Removing an absent link is a no-op.
func (s *Store) RemoveLink(_ context.Context, l anchored.Link) error {
	err := os.Remove(s.linkpath(l))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "removing %s", s.linkpath(l))
}

type seqLink struct {
	seq uint64
	l   anchored.Link
}

// Links produces the targets of all links from `from` tagged `tag`,
// in arrival order.
func (s *Store) Links(_ context.Context, from anchored.Address, tag anchored.Tag) ([]anchored.Address, error) {
	dir := filepath.Join(s.linkroot(), from.String(), string(tag))
	infos, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading dir %s", dir)
	}

	var links []seqLink
	for _, info := range infos {
		to, err := anchored.AddressFromHex(info.Name())
		if err != nil {
			continue
		}
		l := anchored.Link{From: from, To: to, Tag: tag}
		seq, err := s.linkSeq(l)
		if os.IsNotExist(errors.Cause(err)) {
			// Removed while listing.
			continue
		}
		if err != nil {
			return nil, err
		}
		links = append(links, seqLink{seq: seq, l: l})
	}

	sort.Slice(links, func(i, j int) bool { return links[i].seq < links[j].seq })

	out := make([]anchored.Address, 0, len(links))
	for _, sl := range links {
		out = append(out, sl.l.To)
	}
	return out, nil
}

func (s *Store) linkSeq(l anchored.Link) (uint64, error) {
	b, err := os.ReadFile(s.linkpath(l))
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", s.linkpath(l))
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	return n, errors.Wrapf(err, "parsing %s", s.linkpath(l))
}

// ListLinks produces every link in the index, in arrival order.
func (s *Store) ListLinks(_ context.Context, f func(anchored.Link) error) error {
	var links []seqLink
	err := filepath.WalkDir(s.linkroot(), func(path string, d fs.DirEntry, err error) error {
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.linkroot(), path)
		if err != nil {
			return err
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) != 3 {
			return nil
		}
		from, err := anchored.AddressFromHex(parts[0])
		if err != nil {
			return nil
		}
		to, err := anchored.AddressFromHex(parts[2])
		if err != nil {
			return nil
		}

		l := anchored.Link{From: from, To: to, Tag: anchored.Tag(parts[1])}
		seq, err := s.linkSeq(l)
		if os.IsNotExist(errors.Cause(err)) {
			return nil
		}
		if err != nil {
			return err
		}
		links = append(links, seqLink{seq: seq, l: l})
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking %s", s.linkroot())
	}

	sort.Slice(links, func(i, j int) bool { return links[i].seq < links[j].seq })

	for _, sl := range links {
		err = f(sl.l)
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	store.Register("file", func(_ context.Context, conf map[string]interface{}) (store.Store, error) {
		root, ok := conf["root"].(string)
		if !ok {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root), nil
	})
}
