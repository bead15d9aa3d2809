package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gateprep/coursebot/internal/catalog"
	filestore "github.com/gateprep/coursebot/internal/storage/file"
)

const seedDoc = `{
  "items": [
    {"key": "me_je", "name": "SSC JE", "price": 1499, "status": "available", "order": 1},
    {"key": "rrb_je", "name": "RRB JE", "price": 1499, "status": "available", "order": 2}
  ]
}`

func newStore(t *testing.T) catalog.Store {
	t.Helper()
	s, err := filestore.OpenCatalog(filepath.Join(t.TempDir(), "courses.json"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	return s
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestSeedCatalogPopulatesEmptyStore(t *testing.T) {
	store := newStore(t)
	if err := SeedCatalog(context.Background(), store, writeSeed(t, seedDoc)); err != nil {
		t.Fatalf("SeedCatalog: %v", err)
	}
	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
}

func TestSeedCatalogSkipsPopulatedStore(t *testing.T) {
	store := newStore(t)
	edited := catalog.Item{Key: "me_je", Name: "SSC JE (updated)", Price: 1999, Status: catalog.StatusAvailable}
	if err := store.Put(context.Background(), edited); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := SeedCatalog(context.Background(), store, writeSeed(t, seedDoc)); err != nil {
		t.Fatalf("SeedCatalog: %v", err)
	}

	got, err := store.Get(context.Background(), "me_je")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Price != 1999 {
		t.Fatalf("seed clobbered operator edit: %+v", got)
	}
	items, _ := store.List(context.Background())
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 (seed must not add to non-empty store)", len(items))
	}
}

func TestSeedCatalogMissingFile(t *testing.T) {
	store := newStore(t)
	if err := SeedCatalog(context.Background(), store, filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
}

func TestSeedCatalogEmptyPath(t *testing.T) {
	if err := SeedCatalog(context.Background(), newStore(t), ""); err != nil {
		t.Fatalf("empty path must disable seeding: %v", err)
	}
}

func TestSeedCatalogBadJSON(t *testing.T) {
	if err := SeedCatalog(context.Background(), newStore(t), writeSeed(t, "{")); err == nil {
		t.Fatal("malformed seed file accepted")
	}
}

func TestSeedCatalogInvalidItem(t *testing.T) {
	doc := `{"items": [{"key": "", "name": "X"}]}`
	if err := SeedCatalog(context.Background(), newStore(t), writeSeed(t, doc)); err == nil {
		t.Fatal("invalid seed item accepted")
	}
}
