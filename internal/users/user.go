package users

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a user has never interacted with the bot.
var ErrNotFound = errors.New("users: not found")

// User is a person who has interacted with the bot at least once. The ID is
// assigned by the messaging gateway and never changes; display fields are
// refreshed on every interaction.
type User struct {
	ID        int64   `json:"id" db:"id"`
	FirstName string  `json:"first_name" db:"first_name"`
	LastName  string  `json:"last_name" db:"last_name"`
	Username  *string `json:"username,omitempty" db:"username"`
}

// DisplayName joins the non-empty name parts for operator-facing messages.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "unknown"
	}
	return name
}

// Registry is the append/upsert-only store of known users.
type Registry interface {
	// Upsert creates the user on first contact and refreshes display fields
	// afterwards. Records are never deleted.
	Upsert(ctx context.Context, u User) error
	// List returns every user that has ever interacted with the bot.
	List(ctx context.Context) ([]User, error)
}
