package badger

import (
	"context"
	"testing"

	"github.com/bobg/anchored/store"
	"github.com/bobg/anchored/testutil"
)

func newTestStore(t *testing.T, compress bool) *Store {
	s, err := Open(t.TempDir(), compress)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEntries(t *testing.T) {
	testutil.Entries(context.Background(), t, newTestStore(t, false))
}

func TestEntriesCompressed(t *testing.T) {
	testutil.Entries(context.Background(), t, newTestStore(t, true))
}

func TestLinks(t *testing.T) {
	testutil.Links(context.Background(), t, newTestStore(t, false))
}

func TestLifecycle(t *testing.T) {
	testutil.Lifecycle(context.Background(), t, func(t *testing.T) store.Store {
		return newTestStore(t, true)
	})
}
