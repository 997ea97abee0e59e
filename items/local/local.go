// Package local stores items in the device's local store, one namespace
// per collection. It is the offline half of items.Fallback.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/items"
	"github.com/jmcleod/folio/storage"
)

// Backend implements items.Backend over a storage.Scoped namespace.
type Backend struct {
	store  *storage.Scoped
	now    func() time.Time
	logger *slog.Logger
}

var _ items.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New returns a Backend writing to store.
func New(store *storage.Scoped, opts ...Option) *Backend {
	b := &Backend{store: store, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "local", "namespace", store.Namespace())
	return b
}

// List returns every readable item, oldest first. Records that fail to
// decode are skipped.
func (b *Backend) List(_ context.Context) ([]items.Item, error) {
	keys, err := b.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", b.store.Namespace(), err)
	}
	out := make([]items.Item, 0, len(keys))
	for _, k := range keys {
		var it items.Item
		if err := b.store.GetJSON(k, &it); err != nil {
			if errors.Is(err, storage.ErrCorrupt) {
				b.logger.Warn("skipping unreadable item", slog.String("key", k), slog.Any("error", err))
				continue
			}
			return nil, err
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Create stores it under a new local id.
func (b *Backend) Create(_ context.Context, it items.Item) (items.Item, error) {
	now := b.now().UTC()
	id, err := b.newID(now)
	if err != nil {
		return items.Item{}, err
	}
	stored := it.Clone()
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if err := b.store.PutJSON(id, stored); err != nil {
		return items.Item{}, err
	}
	return stored, nil
}

func (b *Backend) Update(_ context.Context, it items.Item) (items.Item, error) {
	var existing items.Item
	if err := b.store.GetJSON(it.ID, &existing); err != nil {
		return items.Item{}, mapErr(it.ID, err)
	}
	stored := it.Clone()
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = b.now().UTC()
	if stored.Content == nil {
		stored.Content = existing.Content
	}
	if err := b.store.PutJSON(it.ID, stored); err != nil {
		return items.Item{}, err
	}
	return stored, nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	if err := b.store.Delete(id); err != nil {
		return mapErr(id, err)
	}
	return nil
}

// newID mints "local-<unix millis>-<suffix>", retrying on the unlikely
// collision with an existing key.
func (b *Backend) newID(now time.Time) (string, error) {
	for range 3 {
		suffix, err := util.RandomChars(6)
		if err != nil {
			return "", err
		}
		id := fmt.Sprintf("%s%d-%s", items.LocalIDPrefix, now.UnixMilli(), suffix)
		if _, err := b.store.Get(id); errors.Is(err, storage.ErrNotFound) {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique local id")
}

func mapErr(id string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
		return fmt.Errorf("%s: %w", id, items.ErrNotFound)
	default:
		return err
	}
}
