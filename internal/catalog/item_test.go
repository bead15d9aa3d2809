package catalog

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
		ok   bool
	}{
		{"available", StatusAvailable, true},
		{"AVAILABLE", StatusAvailable, true},
		{"  coming_soon ", StatusComingSoon, true},
		{"sold_out", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.raw)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseStatus(%q) accepted invalid status", tc.raw)
		}
	}
}

func TestItemValidate(t *testing.T) {
	valid := Item{Key: "me_je", Name: "SSC JE", Price: 1499, Status: StatusAvailable}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}

	cases := []struct {
		name string
		item Item
	}{
		{"empty key", Item{Name: "X", Status: StatusAvailable}},
		{"empty name", Item{Key: "x", Status: StatusAvailable}},
		{"negative price", Item{Key: "x", Name: "X", Price: -1, Status: StatusAvailable}},
		{"bad status", Item{Key: "x", Name: "X", Status: "archived"}},
	}
	for _, tc := range cases {
		if err := tc.item.Validate(); err == nil {
			t.Fatalf("%s: Validate accepted invalid item", tc.name)
		}
	}
}

func TestSortItemsOrderThenKey(t *testing.T) {
	items := []Item{
		{Key: "c", Order: 2},
		{Key: "b", Order: 1},
		{Key: "a", Order: 2},
		{Key: "d", Order: 1},
	}
	SortItems(items)

	want := []string{"b", "d", "a", "c"}
	for i, key := range want {
		if items[i].Key != key {
			t.Fatalf("position %d = %q, want %q", i, items[i].Key, key)
		}
	}
}

func TestDemoBundleSubject(t *testing.T) {
	b := DemoBundle{
		SourceChatID: -100,
		Subjects: []DemoSubject{
			{Key: "thermo", Label: "Thermodynamics", MessageID: 10},
			{Key: "fluids", Label: "Fluid Mechanics", MessageID: 11},
		},
	}

	s, ok := b.Subject("fluids")
	if !ok || s.MessageID != 11 {
		t.Fatalf("Subject(fluids) = %+v, %v", s, ok)
	}
	if _, ok := b.Subject("som"); ok {
		t.Fatal("Subject returned a missing key")
	}
	if b.Empty() {
		t.Fatal("bundle with subjects reported empty")
	}
	if !(DemoBundle{SourceChatID: -100}).Empty() {
		t.Fatal("bundle without subjects reported non-empty")
	}
	if (Item{Key: "x", Demo: DemoBundle{}}).HasDemo() {
		t.Fatal("item without subjects reported HasDemo")
	}
}

func TestErrNotFoundIsSentinel(t *testing.T) {
	wrapped := errors.Join(ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatal("ErrNotFound lost through wrapping")
	}
}
