// Package logging implements a store that delegates everything to a nested store,
// logging operations as they happen.
package logging

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bobg/anchored"
	"github.com/bobg/anchored/store"
)

var _ store.Store = &Store{}

type Store struct {
	s   store.Store
	log *logrus.Logger
}

// New produces a new Store delegating to `s` and logging to `log`.
// A nil log means the logrus standard logger.
func New(s store.Store, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{s: s, log: log}
}

func (s *Store) Get(ctx context.Context, addr anchored.Address) (*anchored.Entry, error) {
	e, err := s.s.Get(ctx, addr)
	if err != nil {
		s.log.WithField("addr", addr).WithError(err).Error("Get")
	} else {
		s.log.WithField("addr", addr).Info("Get")
	}
	return e, err
}

func (s *Store) Commit(ctx context.Context, e *anchored.Entry) (anchored.Address, bool, error) {
	addr, added, err := s.s.Commit(ctx, e)
	if err != nil {
		s.log.WithError(err).Error("Commit")
	} else {
		s.log.WithFields(logrus.Fields{"addr": addr, "added": added}).Info("Commit")
	}
	return addr, added, err
}

func (s *Store) Tombstone(ctx context.Context, addr anchored.Address) error {
	err := s.s.Tombstone(ctx, addr)
	if err != nil {
		s.log.WithField("addr", addr).WithError(err).Error("Tombstone")
	} else {
		s.log.WithField("addr", addr).Info("Tombstone")
	}
	return err
}

func (s *Store) ListEntries(ctx context.Context, start anchored.Address, f func(anchored.Address) error) error {
	s.log.WithField("start", start).Info("ListEntries")
	return s.s.ListEntries(ctx, start, func(addr anchored.Address) error {
		err := f(addr)
		if err != nil {
			s.log.WithField("addr", addr).WithError(err).Error("  ListEntries")
		}
		return err
	})
}

func (s *Store) AddLink(ctx context.Context, l anchored.Link) error {
	err := s.s.AddLink(ctx, l)
	s.logLink("AddLink", l, err)
	return err
}

func (s *Store) RemoveLink(ctx context.Context, l anchored.Link) error {
	err := s.s.RemoveLink(ctx, l)
	s.logLink("RemoveLink", l, err)
	return err
}

func (s *Store) Links(ctx context.Context, from anchored.Address, tag anchored.Tag) ([]anchored.Address, error) {
	tos, err := s.s.Links(ctx, from, tag)
	fields := logrus.Fields{"from": from, "tag": tag}
	if err != nil {
		s.log.WithFields(fields).WithError(err).Error("Links")
	} else {
		s.log.WithFields(fields).WithField("n", len(tos)).Info("Links")
	}
	return tos, err
}

func (s *Store) ListLinks(ctx context.Context, f func(anchored.Link) error) error {
	s.log.Info("ListLinks")
	return s.s.ListLinks(ctx, f)
}

func (s *Store) logLink(op string, l anchored.Link, err error) {
	fields := logrus.Fields{"from": l.From, "to": l.To, "tag": l.Tag}
	if err != nil {
		s.log.WithFields(fields).WithError(err).Error(op)
	} else {
		s.log.WithFields(fields).Info(op)
	}
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
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
		return New(nestedStore, nil), nil
	})
}
