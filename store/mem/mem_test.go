package mem

import (
	"context"
	"testing"

	"github.com/bobg/anchored/store"
	"github.com/bobg/anchored/testutil"
)

func TestEntries(t *testing.T) {
	testutil.Entries(context.Background(), t, New())
}

func TestLinks(t *testing.T) {
	testutil.Links(context.Background(), t, New())
}

func TestLifecycle(t *testing.T) {
	testutil.Lifecycle(context.Background(), t, func(*testing.T) store.Store {
		return New()
	})
}
