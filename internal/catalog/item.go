package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Status describes item availability.
type Status string

const (
	// StatusAvailable marks an item that can be purchased right away.
	StatusAvailable Status = "available"
	// StatusComingSoon marks an item that is announced but not yet sold.
	StatusComingSoon Status = "coming_soon"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusAvailable:
		return StatusAvailable, nil
	case StatusComingSoon:
		return StatusComingSoon, nil
	}
	return "", fmt.Errorf("catalog: invalid status %q; allowed: available, coming_soon", raw)
}

// DemoSubject is one named excerpt of an item's demo bundle.
type DemoSubject struct {
	Key       string `json:"key" db:"key"`
	Label     string `json:"label" db:"label"`
	MessageID int    `json:"message_id" db:"message_id"`
}

// DemoBundle points at a source conversation holding demo messages that can
// be re-delivered on demand. A bundle with no subjects is treated as absent.
type DemoBundle struct {
	SourceChatID int64         `json:"source_chat_id"`
	Subjects     []DemoSubject `json:"subjects"`
}

// Empty reports whether the bundle should be treated as absent.
func (b DemoBundle) Empty() bool {
	return len(b.Subjects) == 0
}

// Subject looks up a subject by key preserving no assumptions about order.
func (b DemoBundle) Subject(key string) (DemoSubject, bool) {
	for _, s := range b.Subjects {
		if s.Key == key {
			return s, true
		}
	}
	return DemoSubject{}, false
}

// Item is a purchasable catalog entry.
type Item struct {
	Key    string     `json:"key" db:"key"`
	Name   string     `json:"name" db:"name"`
	Price  int64      `json:"price" db:"price"`
	Status Status     `json:"status" db:"status"`
	Order  int        `json:"order" db:"display_order"`
	Demo   DemoBundle `json:"demo,omitempty"`
}

// HasDemo reports whether the item carries a usable demo bundle.
func (i Item) HasDemo() bool {
	return !i.Demo.Empty()
}

// Validate checks the invariants an item must satisfy before it is stored.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Key) == "" {
		return fmt.Errorf("catalog: item key is required")
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("catalog: item %q has no name", i.Key)
	}
	if i.Price < 0 {
		return fmt.Errorf("catalog: item %q has negative price %d", i.Key, i.Price)
	}
	if _, err := ParseStatus(string(i.Status)); err != nil {
		return err
	}
	return nil
}

// SortItems orders items by display order, ties broken by key. The slice is
// sorted in place; every store backend returns listings through this helper
// so the order is stable regardless of how records come off the wire.
func SortItems(items []Item) {
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].Order != items[b].Order {
			return items[a].Order < items[b].Order
		}
		return items[a].Key < items[b].Key
	})
}
