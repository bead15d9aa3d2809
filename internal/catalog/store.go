package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested item does not exist.
var ErrNotFound = errors.New("catalog: item not found")

// Store is the catalog persistence contract. The conversation flow only
// reads; write operations exist for the operator command surface.
type Store interface {
	// Get returns the item stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (Item, error)
	// List returns all items ordered by display order, ties by key.
	List(ctx context.Context) ([]Item, error)
	// Put inserts or replaces an item.
	Put(ctx context.Context, item Item) error
	// Delete removes an item. Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}
