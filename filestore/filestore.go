// Package filestore keeps uploaded files on the local file system: one blob
// per file plus a JSON sidecar holding the metadata of every file.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jmcleod/folio/internal/uuid"
)

const indexName = "metadata.json"

var (
	// ErrNotFound is returned for unknown file ids.
	ErrNotFound = errors.New("file not found")
	// ErrInvalid is returned for uploads missing a usable name.
	ErrInvalid = errors.New("invalid file")
)

// File describes one stored file.
type File struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patch lists the metadata fields an update may change. Nil fields are left
// as they are.
type Patch struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is safe for concurrent use. Index mutations are serialised; blob
// reads are not.
type Store struct {
	mu     sync.Mutex
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// New opens the store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating file store: %w", err)
	}
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "filestore")
	return s, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// List returns all files, newest first.
func (s *Store) List() ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(files, func(a, b File) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return files, nil
}

// Get returns the metadata of one file.
func (s *Store) Get(id string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.readIndex()
	if err != nil {
		return File{}, err
	}
	i := indexOf(files, id)
	if i < 0 {
		return File{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return files[i], nil
}

// Create stores the bytes read from r. Only the base name of name is kept.
// An empty or generic contentType is replaced by one sniffed from the data.
func (s *Store) Create(name, category, contentType string, r io.Reader) (File, error) {
	name = cleanName(name)
	if name == "" {
		return File{}, fmt.Errorf("missing file name: %w", ErrInvalid)
	}

	id := uuid.New()
	size, sniffed, err := s.writeBlob(id, r)
	if err != nil {
		return File{}, err
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffed
	}

	now := s.now().UTC()
	f := File{
		ID:          id,
		Name:        name,
		Category:    strings.TrimSpace(category),
		ContentType: contentType,
		Size:        size,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.readIndex()
	if err == nil {
		err = s.writeIndex(append(files, f))
	}
	if err != nil {
		os.Remove(s.blobPath(id))
		return File{}, err
	}
	s.logger.Info("file stored", slog.String("id", id), slog.Int64("size", size))
	return f, nil
}

// Update applies p to the metadata of file id.
func (s *Store) Update(id string, p Patch) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.readIndex()
	if err != nil {
		return File{}, err
	}
	i := indexOf(files, id)
	if i < 0 {
		return File{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if p.Name != nil {
		name := cleanName(*p.Name)
		if name == "" {
			return File{}, fmt.Errorf("missing file name: %w", ErrInvalid)
		}
		files[i].Name = name
	}
	if p.Category != nil {
		files[i].Category = strings.TrimSpace(*p.Category)
	}
	files[i].UpdatedAt = s.now().UTC()
	if err := s.writeIndex(files); err != nil {
		return File{}, err
	}
	return files[i], nil
}

// Delete removes the metadata entry and the blob of file id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.readIndex()
	if err != nil {
		return err
	}
	i := indexOf(files, id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err := s.writeIndex(slices.Delete(files, i, i+1)); err != nil {
		return err
	}
	if err := os.Remove(s.blobPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("orphaned blob left behind", slog.String("id", id), slog.Any("error", err))
	}
	s.logger.Info("file deleted", slog.String("id", id))
	return nil
}

// Open returns the metadata of file id and a reader over its bytes. The
// caller closes the reader.
func (s *Store) Open(id string) (File, *os.File, error) {
	f, err := s.Get(id)
	if err != nil {
		return File{}, nil, err
	}
	blob, err := os.Open(s.blobPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, nil, fmt.Errorf("%s blob: %w", id, ErrNotFound)
		}
		return File{}, nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, blob, nil
}

func (s *Store) blobPath(id string) string {
	return filepath.Join(s.dir, id)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, indexName)
}

// readIndex loads the sidecar. A missing sidecar is an empty store; so is
// an unreadable one, which is renamed aside so the next write cannot
// destroy what is left of it.
func (s *Store) readIndex() ([]File, error) {
	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading file index: %w", err)
	}
	var files []File
	if err := json.Unmarshal(data, &files); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%s", s.indexPath(), s.now().UTC().Format("20060102T150405.000000000Z"))
		if rerr := os.Rename(s.indexPath(), aside); rerr != nil {
			return nil, fmt.Errorf("moving unreadable file index aside: %w", rerr)
		}
		s.logger.Warn("file index unreadable, moved aside and treating as empty",
			slog.String("moved_to", aside), slog.Any("error", err))
		return nil, nil
	}
	return files, nil
}

func (s *Store) writeIndex(files []File) error {
	if files == nil {
		files = []File{}
	}
	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding file index: %w", err)
	}
	return atomicWrite(s.indexPath(), data, 0o600)
}

// writeBlob copies r into the blob for id and returns its size and the
// content type sniffed from the first bytes.
func (s *Store) writeBlob(id string, r io.Reader) (int64, string, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return 0, "", fmt.Errorf("creating blob: %w", err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, "", fmt.Errorf("reading upload: %w", err)
	}
	head = head[:n]
	if _, err := tmp.Write(head); err != nil {
		return 0, "", fmt.Errorf("writing blob: %w", err)
	}
	rest, err := io.Copy(tmp, r)
	if err != nil {
		return 0, "", fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, "", fmt.Errorf("syncing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Rename(tmpPath, s.blobPath(id)); err != nil {
		return 0, "", fmt.Errorf("placing blob: %w", err)
	}
	ok = true
	return int64(n) + rest, http.DetectContentType(head), nil
}

func indexOf(files []File, id string) int {
	return slices.IndexFunc(files, func(f File) bool { return f.ID == id })
}

// cleanName strips any directory part a client may have sent.
func cleanName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}
