// Package file implements the catalog and user stores on top of local JSON
// files. It mirrors the simplest deployment: a single process owning its
// data files, rewritten atomically on every mutation.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gateprep/coursebot/internal/catalog"
	"github.com/gateprep/coursebot/internal/users"
)

// CatalogStore persists items in one JSON document.
type CatalogStore struct {
	mu    sync.RWMutex
	path  string
	items map[string]catalog.Item
}

// OpenCatalog loads the catalog file, creating an empty store when the file
// does not exist yet.
func OpenCatalog(path string) (*CatalogStore, error) {
	s := &CatalogStore{path: path, items: make(map[string]catalog.Item)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file catalog: read %s: %w", path, err)
	}
	var doc struct {
		Items []catalog.Item `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("file catalog: parse %s: %w", path, err)
	}
	for _, it := range doc.Items {
		s.items[it.Key] = it
	}
	return s, nil
}

// Get implements catalog.Store.
func (s *CatalogStore) Get(ctx context.Context, key string) (catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[key]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return it, nil
}

// List implements catalog.Store.
func (s *CatalogStore) List(ctx context.Context) ([]catalog.Item, error) {
	s.mu.RLock()
	out := make([]catalog.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	s.mu.RUnlock()
	catalog.SortItems(out)
	return out, nil
}

// Put implements catalog.Store.
func (s *CatalogStore) Put(ctx context.Context, item catalog.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Key] = item
	return s.saveLocked()
}

// Delete implements catalog.Store.
func (s *CatalogStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.items, key)
	return s.saveLocked()
}

func (s *CatalogStore) saveLocked() error {
	items := make([]catalog.Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, it)
	}
	catalog.SortItems(items)
	doc := struct {
		Items []catalog.Item `json:"items"`
	}{Items: items}
	return writeAtomic(s.path, doc)
}

// UserRegistry persists known users in one JSON document.
type UserRegistry struct {
	mu    sync.RWMutex
	path  string
	byID  map[int64]users.User
	order []int64
}

// OpenUsers loads the user registry file, creating an empty registry when the
// file does not exist yet.
func OpenUsers(path string) (*UserRegistry, error) {
	r := &UserRegistry{path: path, byID: make(map[int64]users.User)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file users: read %s: %w", path, err)
	}
	var list []users.User
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("file users: parse %s: %w", path, err)
	}
	for _, u := range list {
		r.byID[u.ID] = u
		r.order = append(r.order, u.ID)
	}
	return r, nil
}

// Upsert implements users.Registry. First-seen order is preserved.
func (r *UserRegistry) Upsert(ctx context.Context, u users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.byID[u.ID]; !known {
		r.order = append(r.order, u.ID)
	}
	r.byID[u.ID] = u
	return r.saveLocked()
}

// List implements users.Registry.
func (r *UserRegistry) List(ctx context.Context) ([]users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]users.User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}

func (r *UserRegistry) saveLocked() error {
	list := make([]users.User, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.byID[id])
	}
	return writeAtomic(r.path, list)
}

// writeAtomic marshals v and replaces path via rename so readers never see a
// torn file.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: marshal: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return fmt.Errorf("file store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file store: rename: %w", err)
	}
	return nil
}
