package items

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Fallback runs every operation against the remote backend first and, on
// any failure, repeats it against the local backend. Callers see the local
// result as if the remote had served it. Nothing written locally is copied
// back to the remote automatically; see Migrate.
//
// Operations are serialised so a double-submitted form cannot interleave
// two remote writes.
type Fallback struct {
	mu         sync.Mutex
	collection string
	remote     Backend
	local      Backend
	logger     *slog.Logger
}

var _ Backend = (*Fallback)(nil)

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) FallbackOption {
	return func(f *Fallback) {
		f.logger = logger
	}
}

// NewFallback wraps remote and local for the named collection.
func NewFallback(collection string, remote, local Backend, opts ...FallbackOption) *Fallback {
	f := &Fallback{collection: collection, remote: remote, local: local}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "fallback", "collection", collection)
	return f
}

// Local returns the local backend, e.g. as a migration source.
func (f *Fallback) Local() Backend { return f.local }

// Remote returns the remote backend.
func (f *Fallback) Remote() Backend { return f.remote }

func (f *Fallback) List(ctx context.Context) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, err := f.remote.List(ctx)
	if err == nil {
		return out, nil
	}
	f.degraded("list", err)
	out, lerr := f.local.List(ctx)
	if lerr != nil {
		return nil, f.unavailable("list", err, lerr)
	}
	return out, nil
}

func (f *Fallback) Create(ctx context.Context, it Item) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, err := f.remote.Create(ctx, it)
	if err == nil {
		return out, nil
	}
	f.degraded("create", err)
	out, lerr := f.local.Create(ctx, it)
	if lerr != nil {
		return Item{}, f.unavailable("create", err, lerr)
	}
	return out, nil
}

func (f *Fallback) Update(ctx context.Context, it Item) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, err := f.remote.Update(ctx, it)
	if err == nil {
		return out, nil
	}
	f.degraded("update", err)
	out, lerr := f.local.Update(ctx, it)
	if lerr != nil {
		return Item{}, f.unavailable("update", err, lerr)
	}
	return out, nil
}

func (f *Fallback) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.remote.Delete(ctx, id)
	if err == nil {
		return nil
	}
	f.degraded("delete", err)
	if lerr := f.local.Delete(ctx, id); lerr != nil {
		return f.unavailable("delete", err, lerr)
	}
	return nil
}

func (f *Fallback) degraded(op string, err error) {
	f.logger.Warn("remote failed, using local store", slog.String("op", op), slog.Any("error", err))
}

func (f *Fallback) unavailable(op string, remoteErr, localErr error) error {
	f.logger.Error("remote and local store both failed", slog.String("op", op),
		slog.Any("remote_error", remoteErr), slog.Any("local_error", localErr))
	err := fmt.Errorf("%s %s: %w", op, f.collection, ErrUnavailable)
	return errors.Join(err, fmt.Errorf("remote: %w", remoteErr), fmt.Errorf("local: %w", localErr))
}
