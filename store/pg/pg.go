// Package pg implements a Postgresql-based storage backend.
package pg

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/lib/pq" // register the postgres type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store"
)

var _ store.Store = &Store{}

// Store is a Postgresql-based storage backend.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `entries` and `links` tables if they do not exist.
// (If they do exist, they must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
  addr BYTEA PRIMARY KEY NOT NULL,
  data BYTEA NOT NULL,
  tombstoned BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS links (
  seq BIGSERIAL PRIMARY KEY,
  from_addr BYTEA NOT NULL,
  to_addr BYTEA NOT NULL,
  tag TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS link_idx ON links (from_addr, tag, to_addr);
`

// New produces a new Store using `db` for storage.
// It expects to create tables `entries` and `links`,
// or for those tables already to exist with the correct schema.
// (See variable Schema.)
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, err
}

// Get gets the entry at `addr`.
func (s *Store) Get(ctx context.Context, addr anchored.Address) (*anchored.Entry, error) {
	const q = `SELECT data FROM entries WHERE addr = $1 AND NOT tombstoned`

	var b []byte
	err := s.db.QueryRowContext(ctx, q, addr).Scan(&b)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, anchored.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "querying entry %s", addr)
	}
	return anchored.DecodeEntry(b)
}

// Commit adds an entry to the store if it wasn't already present.
func (s *Store) Commit(ctx context.Context, e *anchored.Entry) (anchored.Address, bool, error) {
	const q = `INSERT INTO entries (addr, data) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	addr := e.Address()
	res, err := s.db.ExecContext(ctx, q, addr, e.Encode())
	if err != nil {
		return anchored.Zero, false, errors.Wrap(err, "inserting entry")
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return anchored.Zero, false, errors.Wrap(err, "counting affected rows")
	}
	return addr, aff > 0, nil
}

// Tombstone marks the entry at `addr` deleted without erasing it.
func (s *Store) Tombstone(ctx context.Context, addr anchored.Address) error {
	const q = `UPDATE entries SET tombstoned = TRUE WHERE addr = $1`

	res, err := s.db.ExecContext(ctx, q, addr)
	if err != nil {
		return errors.Wrapf(err, "tombstoning %s", addr)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if aff == 0 {
		return anchored.ErrNotFound
	}
	return nil
}

// ListEntries produces all live entry addresses, in lexicographic order.
func (s *Store) ListEntries(ctx context.Context, start anchored.Address, f func(anchored.Address) error) error {
	const q = `SELECT addr FROM entries WHERE addr > $1 AND NOT tombstoned ORDER BY addr`
	return sqlutil.ForQueryRows(ctx, s.db, q, start, func(addr anchored.Address) error {
		return f(addr)
	})
}

// AddLink adds a link if it wasn't already present.
func (s *Store) AddLink(ctx context.Context, l anchored.Link) error {
	const q = `INSERT INTO links (from_addr, to_addr, tag) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`

	_, err := s.db.ExecContext(ctx, q, l.From, l.To, string(l.Tag))
	return errors.Wrap(err, "inserting link")
}

// RemoveLink removes a link.
// Removing an absent link is a no-op.
func (s *Store) RemoveLink(ctx context.Context, l anchored.Link) error {
	const q = `DELETE FROM links WHERE from_addr = $1 AND to_addr = $2 AND tag = $3`

	_, err := s.db.ExecContext(ctx, q, l.From, l.To, string(l.Tag))
	return errors.Wrap(err, "deleting link")
}

// Links produces the targets of all links from `from` tagged `tag`,
// in arrival order.
func (s *Store) Links(ctx context.Context, from anchored.Address, tag anchored.Tag) ([]anchored.Address, error) {
	const q = `SELECT to_addr FROM links WHERE from_addr = $1 AND tag = $2 ORDER BY seq`

	var out []anchored.Address
	err := sqlutil.ForQueryRows(ctx, s.db, q, from, string(tag), func(to anchored.Address) {
		out = append(out, to)
	})
	return out, errors.Wrap(err, "querying links")
}

// ListLinks produces every link in the index, in arrival order.
func (s *Store) ListLinks(ctx context.Context, f func(anchored.Link) error) error {
	const q = `SELECT from_addr, to_addr, tag FROM links ORDER BY seq`
	return sqlutil.ForQueryRows(ctx, s.db, q, func(from, to anchored.Address, tag string) error {
		return f(anchored.Link{From: from, To: to, Tag: anchored.Tag(tag)})
	})
}

func init() {
	store.Register("pg", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
