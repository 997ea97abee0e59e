// Package client assembles the pieces the CLI needs when it acts as the
// site's admin device: the local store, the session guard and the notes,
// todos and files services that prefer the server and fall back to the
// local store.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jmcleod/folio/config"
	"github.com/jmcleod/folio/guard"
	"github.com/jmcleod/folio/items"
	"github.com/jmcleod/folio/items/local"
	"github.com/jmcleod/folio/items/remote"
	"github.com/jmcleod/folio/storage"
	bboltstorage "github.com/jmcleod/folio/storage/bbolt"
)

// Collection names. Each is also the local-store namespace holding the
// offline copies of that feature's items.
const (
	Notes = "notes"
	Todos = "todos"
	Files = "files"
)

// ErrUnknownCollection is returned by Collection for unknown names.
var ErrUnknownCollection = errors.New("unknown collection")

// Option configures Open.
type Option func(*options)

type options struct {
	repo   storage.Repository
	logger *slog.Logger
	now    func() time.Time
}

// WithRepository uses repo as the local store instead of opening the bbolt
// file named in the configuration.
func WithRepository(repo storage.Repository) Option {
	return func(o *options) {
		o.repo = repo
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock replaces time.Now in the guard and the local store.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Client is the opened device. Close releases the local store.
type Client struct {
	Guard  *guard.Guard
	Remote *remote.Client

	services map[string]*items.Fallback
	closer   io.Closer
	logger   *slog.Logger
}

// Open builds a Client from cfg. Initialisation order is local store,
// then guard, then services.
func Open(cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Client{logger: o.logger.With("component", "client")}

	repo := o.repo
	if repo == nil {
		path := cfg.Client.LocalStore
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating local store dir: %w", err)
		}
		// The file is opened per call so a watching heartbeat does not lock
		// other folio commands out of the store.
		store, err := bboltstorage.OpenFile(path, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, fmt.Errorf("opening local store %s: %w", path, err)
		}
		repo = store
		c.closer = store
	}

	var verifier *guard.Verifier
	if cfg.Guard.SecretHash != "" {
		v, err := guard.ParseVerifier(cfg.Guard.SecretHash)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("guard.secret_hash: %w", err)
		}
		verifier = v
	}
	c.Guard = guard.New(repo, verifier, cfg.Guard.Thresholds(),
		guard.WithClock(o.now),
		guard.WithLogger(o.logger),
		guard.WithSubject("admin", cfg.Guard.DisplayName))

	c.Remote = remote.New(cfg.Client.RemoteURL, cfg.Client.APIToken, remote.WithTimeout(cfg.Client.Timeout))
	newLocal := func(ns string) *local.Backend {
		return local.New(storage.Scope(repo, ns), local.WithClock(o.now), local.WithLogger(o.logger))
	}
	c.services = map[string]*items.Fallback{
		Notes: items.NewFallback(Notes, c.Remote.Records(Notes), newLocal(Notes), items.WithLogger(o.logger)),
		Todos: items.NewFallback(Todos, c.Remote.Records(Todos), newLocal(Todos), items.WithLogger(o.logger)),
		Files: items.NewFallback(Files, c.Remote.Files(), newLocal(Files), items.WithLogger(o.logger)),
	}
	return c, nil
}

// Collection returns the service for name.
func (c *Client) Collection(name string) (*items.Fallback, error) {
	svc, ok := c.services[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownCollection)
	}
	return svc, nil
}

// Authorize returns the current session and records activity on it. It
// fails with guard.ErrNotAuthenticated or guard.ErrBlocked when protected
// features must stay hidden.
func (c *Client) Authorize() (guard.Session, error) {
	session, err := c.Guard.RequireSession()
	if err != nil {
		return guard.Session{}, err
	}
	if err := c.Guard.TouchActivity(); err != nil {
		return guard.Session{}, err
	}
	return session, nil
}

// Migrate moves every locally held item of collection to the server.
func (c *Client) Migrate(ctx context.Context, collection string) (items.Report, error) {
	svc, err := c.Collection(collection)
	if err != nil {
		return items.Report{}, err
	}
	return items.Migrate(ctx, svc.Local(), svc.Remote(), c.logger)
}

// Close releases the local store. It is safe to call more than once.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
