// Package redis implements the catalog and user stores on a remote key-value
// service. Items and users are JSON documents inside two hashes, so a single
// HGETALL serves the listing operations.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gateprep/coursebot/internal/catalog"
	"github.com/gateprep/coursebot/internal/users"
)

const (
	catalogHash = "coursebot:catalog"
	usersHash   = "coursebot:users"

	opTimeout = 5 * time.Second
)

// Connect parses a redis URL, opens a client, and verifies connectivity.
func Connect(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// CatalogStore keeps items as JSON values in one hash keyed by item key.
type CatalogStore struct {
	client *redis.Client
}

// NewCatalog wraps a connected client.
func NewCatalog(client *redis.Client) *CatalogStore {
	return &CatalogStore{client: client}
}

// Get implements catalog.Store.
func (s *CatalogStore) Get(ctx context.Context, key string) (catalog.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := s.client.HGet(ctx, catalogHash, key).Result()
	if errors.Is(err, redis.Nil) {
		return catalog.Item{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Item{}, fmt.Errorf("redis catalog: get %q: %w", key, err)
	}
	var it catalog.Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return catalog.Item{}, fmt.Errorf("redis catalog: decode %q: %w", key, err)
	}
	return it, nil
}

// List implements catalog.Store.
func (s *CatalogStore) List(ctx context.Context) ([]catalog.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := s.client.HGetAll(ctx, catalogHash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis catalog: list: %w", err)
	}
	items := make([]catalog.Item, 0, len(raw))
	for key, val := range raw {
		var it catalog.Item
		if err := json.Unmarshal([]byte(val), &it); err != nil {
			return nil, fmt.Errorf("redis catalog: decode %q: %w", key, err)
		}
		items = append(items, it)
	}
	catalog.SortItems(items)
	return items, nil
}

// Put implements catalog.Store.
func (s *CatalogStore) Put(ctx context.Context, item catalog.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("redis catalog: encode %q: %w", item.Key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.client.HSet(ctx, catalogHash, item.Key, data).Err(); err != nil {
		return fmt.Errorf("redis catalog: put %q: %w", item.Key, err)
	}
	return nil
}

// Delete implements catalog.Store.
func (s *CatalogStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	removed, err := s.client.HDel(ctx, catalogHash, key).Result()
	if err != nil {
		return fmt.Errorf("redis catalog: delete %q: %w", key, err)
	}
	if removed == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// UserRegistry keeps users as JSON values in one hash keyed by user ID.
type UserRegistry struct {
	client *redis.Client
}

// NewUsers wraps a connected client.
func NewUsers(client *redis.Client) *UserRegistry {
	return &UserRegistry{client: client}
}

// Upsert implements users.Registry.
func (r *UserRegistry) Upsert(ctx context.Context, u users.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("redis users: encode %d: %w", u.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	field := strconv.FormatInt(u.ID, 10)
	if err := r.client.HSet(ctx, usersHash, field, data).Err(); err != nil {
		return fmt.Errorf("redis users: upsert %d: %w", u.ID, err)
	}
	return nil
}

// List implements users.Registry.
func (r *UserRegistry) List(ctx context.Context) ([]users.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := r.client.HGetAll(ctx, usersHash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis users: list: %w", err)
	}
	out := make([]users.User, 0, len(raw))
	for field, val := range raw {
		var u users.User
		if err := json.Unmarshal([]byte(val), &u); err != nil {
			return nil, fmt.Errorf("redis users: decode %s: %w", field, err)
		}
		out = append(out, u)
	}
	return out, nil
}
