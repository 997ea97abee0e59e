// Package storage provides the namespaced record storage used by both the
// server (notes, todos) and the client device's local store (session,
// lockout, offline copies of notes, todos and files).
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key does not exist in a namespace.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidKey is returned for empty namespaces or keys.
	ErrInvalidKey = errors.New("invalid namespace or key")
	// ErrCorrupt marks a stored record that could not be decoded.
	ErrCorrupt = errors.New("corrupt record")
)

// Repository stores opaque byte records under (namespace, key). Namespaces
// are disjoint: a key written in one namespace is never visible from another.
type Repository interface {
	Put(namespace string, key string, value []byte) error
	Get(namespace string, key string) ([]byte, error)
	Delete(namespace string, key string) error
	// List returns the keys in a namespace in ascending byte order.
	// An unknown namespace lists as empty.
	List(namespace string) ([]string, error)
}

func validate(namespace, key string) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("%q/%q: %w", namespace, key, ErrInvalidKey)
	}
	return nil
}

// Scoped is a view of a Repository bound to a single namespace. Features are
// handed a Scoped rather than the Repository so they cannot reach into
// another feature's records.
type Scoped struct {
	repo      Repository
	namespace string
}

// Scope binds repo to namespace.
func Scope(repo Repository, namespace string) *Scoped {
	return &Scoped{repo: repo, namespace: namespace}
}

// Namespace returns the bound namespace.
func (s *Scoped) Namespace() string { return s.namespace }

func (s *Scoped) Put(key string, value []byte) error {
	if err := validate(s.namespace, key); err != nil {
		return err
	}
	return s.repo.Put(s.namespace, key, value)
}

func (s *Scoped) Get(key string) ([]byte, error) {
	if err := validate(s.namespace, key); err != nil {
		return nil, err
	}
	return s.repo.Get(s.namespace, key)
}

func (s *Scoped) Delete(key string) error {
	if err := validate(s.namespace, key); err != nil {
		return err
	}
	return s.repo.Delete(s.namespace, key)
}

func (s *Scoped) List() ([]string, error) {
	return s.repo.List(s.namespace)
}

// PutJSON marshals v and stores it under key.
func (s *Scoped) PutJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", s.namespace, key, err)
	}
	return s.Put(key, data)
}

// GetJSON loads key and unmarshals it into v. A record that exists but does
// not decode is reported as ErrCorrupt so callers can treat it as absent.
func (s *Scoped) GetJSON(key string, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s/%s: %w: %v", s.namespace, key, ErrCorrupt, err)
	}
	return nil
}
