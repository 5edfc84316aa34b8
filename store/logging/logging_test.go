package logging

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/bobg/anchored/store"
	"github.com/bobg/anchored/store/mem"
	"github.com/bobg/anchored/testutil"
)

func newTestStore() *Store {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(mem.New(), log)
}

func TestEntries(t *testing.T) {
	testutil.Entries(context.Background(), t, newTestStore())
}

func TestLinks(t *testing.T) {
	testutil.Links(context.Background(), t, newTestStore())
}

func TestLifecycle(t *testing.T) {
	testutil.Lifecycle(context.Background(), t, func(*testing.T) store.Store {
		return newTestStore()
	})
}
