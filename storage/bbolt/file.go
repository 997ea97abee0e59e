package bbolt

import (
	"errors"
	"sync"

	"github.com/jmcleod/folio/storage"
	"go.etcd.io/bbolt"
)

// FileStore implements storage.Repository on a BBolt file that is only held
// open for the duration of each call. BBolt locks the file while it is open,
// so a long-running process such as a heartbeat loop would otherwise shut
// every other process out of the same store.
type FileStore struct {
	path    string
	options *bbolt.Options

	mu sync.Mutex
}

var _ storage.Repository = (*FileStore)(nil)

// OpenFile returns a FileStore for path. The file is created if missing and
// opened once up front so a bad path or a foreign file fails here.
func OpenFile(path string, options *bbolt.Options) (*FileStore, error) {
	f := &FileStore{path: path, options: options}
	if err := f.with(func(*Store) error { return nil }); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileStore) with(fn func(*Store) error) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := NewRepositoryFromFile(f.path, f.options)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s)
}

// Close is a no-op; the file is never left open between calls.
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) Put(namespace, key string, value []byte) error {
	return f.with(func(s *Store) error { return s.Put(namespace, key, value) })
}

func (f *FileStore) Get(namespace, key string) ([]byte, error) {
	var out []byte
	err := f.with(func(s *Store) error {
		var err error
		out, err = s.Get(namespace, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FileStore) Delete(namespace, key string) error {
	return f.with(func(s *Store) error { return s.Delete(namespace, key) })
}

func (f *FileStore) List(namespace string) ([]string, error) {
	var keys []string
	err := f.with(func(s *Store) error {
		var err error
		keys, err = s.List(namespace)
		return err
	})
	return keys, err
}

