// Package postgres implements the catalog and user stores on sqlx over
// lib/pq, with schema managed by golang-migrate.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gateprep/coursebot/internal/catalog"
	"github.com/gateprep/coursebot/internal/users"
)

const queryTimeout = 5 * time.Second

// CatalogStore reads and writes the items table.
type CatalogStore struct {
	db *sqlx.DB
}

// NewCatalog wraps an open connection pool.
func NewCatalog(db *sqlx.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

type itemRow struct {
	Key            string `db:"key"`
	Name           string `db:"name"`
	Price          int64  `db:"price"`
	Status         string `db:"status"`
	DisplayOrder   int    `db:"display_order"`
	DemoSourceChat int64  `db:"demo_source_chat"`
	DemoSubjects   []byte `db:"demo_subjects"`
}

func (r itemRow) toItem() (catalog.Item, error) {
	it := catalog.Item{
		Key:    r.Key,
		Name:   r.Name,
		Price:  r.Price,
		Status: catalog.Status(r.Status),
		Order:  r.DisplayOrder,
	}
	it.Demo.SourceChatID = r.DemoSourceChat
	if len(r.DemoSubjects) > 0 {
		if err := json.Unmarshal(r.DemoSubjects, &it.Demo.Subjects); err != nil {
			return catalog.Item{}, fmt.Errorf("postgres catalog: decode demo subjects for %q: %w", r.Key, err)
		}
	}
	return it, nil
}

// Get implements catalog.Store.
func (s *CatalogStore) Get(ctx context.Context, key string) (catalog.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row itemRow
	err := s.db.GetContext(ctx, &row,
		`SELECT key, name, price, status, display_order, demo_source_chat, demo_subjects
		 FROM items WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Item{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Item{}, fmt.Errorf("postgres catalog: get %q: %w", key, err)
	}
	return row.toItem()
}

// List implements catalog.Store.
func (s *CatalogStore) List(ctx context.Context) ([]catalog.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT key, name, price, status, display_order, demo_source_chat, demo_subjects
		 FROM items ORDER BY display_order, key`)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: list: %w", err)
	}
	items := make([]catalog.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.toItem()
		if err != nil {
			return nil, err
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
	subjects, err := json.Marshal(item.Demo.Subjects)
	if err != nil {
		return fmt.Errorf("postgres catalog: encode demo subjects for %q: %w", item.Key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (key, name, price, status, display_order, demo_source_chat, demo_subjects)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key) DO UPDATE SET
		   name = EXCLUDED.name,
		   price = EXCLUDED.price,
		   status = EXCLUDED.status,
		   display_order = EXCLUDED.display_order,
		   demo_source_chat = EXCLUDED.demo_source_chat,
		   demo_subjects = EXCLUDED.demo_subjects`,
		item.Key, item.Name, item.Price, string(item.Status), item.Order,
		item.Demo.SourceChatID, subjects)
	if err != nil {
		return fmt.Errorf("postgres catalog: put %q: %w", item.Key, err)
	}
	return nil
}

// Delete implements catalog.Store.
func (s *CatalogStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("postgres catalog: delete %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// UserRegistry reads and writes the bot_users table.
type UserRegistry struct {
	db *sqlx.DB
}

// NewUsers wraps an open connection pool.
func NewUsers(db *sqlx.DB) *UserRegistry {
	return &UserRegistry{db: db}
}

// Upsert implements users.Registry.
func (r *UserRegistry) Upsert(ctx context.Context, u users.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bot_users (id, first_name, last_name, username)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name,
		   username = EXCLUDED.username,
		   last_seen = now()`,
		u.ID, u.FirstName, u.LastName, u.Username)
	if err != nil {
		return fmt.Errorf("postgres users: upsert %d: %w", u.ID, err)
	}
	return nil
}

// List implements users.Registry.
func (r *UserRegistry) List(ctx context.Context) ([]users.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []users.User
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, first_name, last_name, username FROM bot_users ORDER BY first_seen, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres users: list: %w", err)
	}
	return out, nil
}
