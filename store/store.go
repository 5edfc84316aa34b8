// Package store defines the interface satisfied by storage backends,
// which combine a content-addressable entry store with a link index,
// and a registry for creating them from configuration.
package store

import (
	"context"
	"fmt"

	"github.com/bobg/anchored"
)

// Store is a storage backend:
// an entry store and a link index over the same substrate.
type Store interface {
	anchored.Store
	anchored.LinkIndex
}

// Factory is a function for instantiating a Store from a configuration.
type Factory func(context.Context, map[string]interface{}) (Store, error)

var registry = make(map[string]Factory)

// Register associates a backend name with a Factory.
// Backends call it from their init functions.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create instantiates the backend registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (Store, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}
