package file

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gateprep/coursebot/internal/catalog"
	"github.com/gateprep/coursebot/internal/users"
)

func TestOpenCatalogMissingFile(t *testing.T) {
	s, err := OpenCatalog(filepath.Join(t.TempDir(), "courses.json"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	items, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %d, want 0", len(items))
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.json")
	s, err := OpenCatalog(path)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}

	ctx := context.Background()
	item := catalog.Item{
		Key: "rrb_je", Name: "RRB JE (Mechanical)", Price: 1499,
		Status: catalog.StatusAvailable, Order: 2,
		Demo: catalog.DemoBundle{
			SourceChatID: -200,
			Subjects: []catalog.DemoSubject{
				{Key: "thermo", Label: "Thermodynamics", MessageID: 31},
				{Key: "fluids", Label: "Fluid Mechanics", MessageID: 32},
			},
		},
	}
	if err := s.Put(ctx, item); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, catalog.Item{Key: "me_je", Name: "SSC JE", Price: 999, Status: catalog.StatusAvailable, Order: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Reopen from disk: everything must survive the round trip.
	reopened, err := OpenCatalog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, "rrb_je")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Demo.SourceChatID != -200 || len(got.Demo.Subjects) != 2 {
		t.Fatalf("demo bundle lost: %+v", got.Demo)
	}
	if got.Demo.Subjects[0].Key != "thermo" || got.Demo.Subjects[1].Key != "fluids" {
		t.Fatalf("subject order lost: %+v", got.Demo.Subjects)
	}

	items, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].Key != "me_je" || items[1].Key != "rrb_je" {
		t.Fatalf("listing = %+v, want display order", items)
	}
}

func TestCatalogDelete(t *testing.T) {
	s, err := OpenCatalog(filepath.Join(t.TempDir(), "courses.json"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	ctx := context.Background()
	if err := s.Put(ctx, catalog.Item{Key: "x", Name: "X", Status: catalog.StatusAvailable}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "x"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "x"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestCatalogPutValidates(t *testing.T) {
	s, err := OpenCatalog(filepath.Join(t.TempDir(), "courses.json"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	if err := s.Put(context.Background(), catalog.Item{Key: "", Name: "X"}); err == nil {
		t.Fatal("Put accepted an invalid item")
	}
}

func TestUsersFirstSeenOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	r, err := OpenUsers(path)
	if err != nil {
		t.Fatalf("OpenUsers: %v", err)
	}

	ctx := context.Background()
	for _, id := range []int64{3, 1, 2} {
		if err := r.Upsert(ctx, users.User{ID: id, FirstName: "u"}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	// Re-upserting must refresh fields without moving the user.
	if err := r.Upsert(ctx, users.User{ID: 3, FirstName: "renamed"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reopened, err := OpenUsers(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	list, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("users = %d, want 3", len(list))
	}
	wantOrder := []int64{3, 1, 2}
	for i, id := range wantOrder {
		if list[i].ID != id {
			t.Fatalf("position %d = %d, want %d", i, list[i].ID, id)
		}
	}
	if list[0].FirstName != "renamed" {
		t.Fatalf("upsert did not refresh fields: %+v", list[0])
	}
}
