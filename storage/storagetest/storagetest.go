// Package storagetest holds the conformance suite every storage.Repository
// implementation runs.
package storagetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/folio/storage"
)

// Run exercises repo against the storage.Repository contract.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		require.NoError(t, repo.Put("notes", "n1", []byte("hello")))
		got, err := repo.Get("notes", "n1")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), got)
	})

	t.Run("ReturnedBytesAreCopies", func(t *testing.T) {
		require.NoError(t, repo.Put("notes", "copy", []byte("abc")))
		got, err := repo.Get("notes", "copy")
		require.NoError(t, err)
		got[0] = 'X'
		again, err := repo.Get("notes", "copy")
		require.NoError(t, err)
		assert.Equal(t, byte('a'), again[0])
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, repo.Put("notes", "ow", []byte("v1")))
		require.NoError(t, repo.Put("notes", "ow", []byte("v2")))
		got, err := repo.Get("notes", "ow")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get("notes", "nope")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)

		_, err = repo.Get("no-such-namespace", "nope")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Put("notes", "del", []byte("x")))
		require.NoError(t, repo.Delete("notes", "del"))
		_, err := repo.Get("notes", "del")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		err := repo.Delete("notes", "never-existed")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("NamespacesAreDisjoint", func(t *testing.T) {
		require.NoError(t, repo.Put("session", "current", []byte("s")))
		require.NoError(t, repo.Put("lockout", "current", []byte("l")))

		s, err := repo.Get("session", "current")
		require.NoError(t, err)
		l, err := repo.Get("lockout", "current")
		require.NoError(t, err)
		assert.Equal(t, []byte("s"), s)
		assert.Equal(t, []byte("l"), l)

		require.NoError(t, repo.Delete("session", "current"))
		_, err = repo.Get("lockout", "current")
		assert.NoError(t, err, "deleting in one namespace must not touch another")
	})

	t.Run("ListSorted", func(t *testing.T) {
		for _, k := range []string{"b", "c", "a"} {
			require.NoError(t, repo.Put("todos", k, []byte(k)))
		}
		require.NoError(t, repo.Put("files", "z", []byte("z")))

		keys, err := repo.List("todos")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, keys)
	})

	t.Run("ListUnknownNamespace", func(t *testing.T) {
		keys, err := repo.List("nothing-here")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Scoped", func(t *testing.T) {
		sc := storage.Scope(repo, "scoped")
		require.NoError(t, sc.PutJSON("k", map[string]int{"n": 1}))
		var v map[string]int
		require.NoError(t, sc.GetJSON("k", &v))
		assert.Equal(t, 1, v["n"])

		require.NoError(t, sc.Put("bad", []byte("{not json")))
		err := sc.GetJSON("bad", &v)
		assert.True(t, errors.Is(err, storage.ErrCorrupt), "got %v", err)

		err = sc.Put("", []byte("x"))
		assert.True(t, errors.Is(err, storage.ErrInvalidKey))
	})
}
