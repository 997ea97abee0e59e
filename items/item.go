// Package items defines the CRUD strategy shared by notes, todos and files,
// and the policy that prefers the remote store and falls back to the
// device's local store.
package items

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an item id is unknown to a backend.
	ErrNotFound = errors.New("item not found")
	// ErrUnavailable is returned when neither backend could serve a request.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInvalid is returned for items a backend refuses to store.
	ErrInvalid = errors.New("invalid item")
)

// LocalIDPrefix marks identifiers minted by the local store.
const LocalIDPrefix = "local-"

// Item is one note, todo or file. Feature-specific data lives in Fields;
// file bytes travel in Content.
type Item struct {
	ID        string            `json:"id"`
	Fields    map[string]string `json:"fields,omitempty"`
	Content   []byte            `json:"content,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Field returns Fields[key], or "" when unset.
func (it Item) Field(key string) string {
	return it.Fields[key]
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	out := it
	out.Fields = maps.Clone(it.Fields)
	if it.Content != nil {
		out.Content = append([]byte(nil), it.Content...)
	}
	return out
}

// IsLocalID reports whether id was minted by the local store, i.e. the
// item has not been migrated to the server yet.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// Backend is a store for one collection of items.
type Backend interface {
	List(ctx context.Context) ([]Item, error)
	// Create stores it under a fresh id assigned by the backend and
	// returns the stored item.
	Create(ctx context.Context, it Item) (Item, error)
	// Update replaces the fields of an existing item. A nil Content keeps
	// the stored content.
	Update(ctx context.Context, it Item) (Item, error)
	Delete(ctx context.Context, id string) error
}
