package remote_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/folio/api"
	"github.com/jmcleod/folio/filestore"
	"github.com/jmcleod/folio/items"
	"github.com/jmcleod/folio/items/local"
	"github.com/jmcleod/folio/items/remote"
	"github.com/jmcleod/folio/storage"
	"github.com/jmcleod/folio/storage/memory"
)

const token = "remote-test-token"

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	files, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	a := api.New(files, memory.NewRepository(),
		api.WithToken(token),
		api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// deadURL returns the address of a server that has already shut down.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := remote.New(startServer(t).URL, token)
	notes := c.Records("notes")

	created, err := notes.Create(ctx, items.Item{Fields: map[string]string{"title": "hello", "body": "world"}})
	require.NoError(t, err)
	assert.False(t, items.IsLocalID(created.ID))
	assert.Equal(t, "hello", created.Field("title"))

	created.Fields["title"] = "hi"
	updated, err := notes.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "hi", updated.Field("title"))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	list, err := notes.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	require.NoError(t, notes.Delete(ctx, created.ID))
	list, err = notes.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordsListFollowsPages(t *testing.T) {
	ctx := context.Background()
	c := remote.New(startServer(t).URL, token)
	todos := c.Records("todos")

	const n = 205
	for i := range n {
		_, err := todos.Create(ctx, items.Item{Fields: map[string]string{"text": fmt.Sprintf("todo %d", i)}})
		require.NoError(t, err)
	}
	list, err := todos.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestErrorsAreClassified(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)

	notes := remote.New(srv.URL, token).Records("notes")
	_, err := notes.Update(ctx, items.Item{ID: "0b6f1d3e-7a21-4c9b-9e55-2f8d6c4a1b70", Fields: map[string]string{"title": "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, items.ErrNotFound)
	assert.ErrorIs(t, err, remote.ErrRemote)
	var se *remote.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	_, err = notes.Update(ctx, items.Item{ID: "local-1-abcdef", Fields: map[string]string{"title": "x"}})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.ErrorIs(t, err, remote.ErrRemote)
	assert.NotErrorIs(t, err, items.ErrNotFound)

	_, err = remote.New(srv.URL, "wrong").Records("notes").List(ctx)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.NotErrorIs(t, err, items.ErrNotFound)

	_, err = remote.New(deadURL(t), token).Records("notes").List(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrRemote)
}

func TestFilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := remote.New(startServer(t).URL, token)
	files := c.Files()

	created, err := files.Create(ctx, items.Item{
		Fields: map[string]string{
			remote.FieldName:        "cv.pdf",
			remote.FieldCategory:    "documents",
			remote.FieldContentType: "application/pdf",
		},
		Content: []byte("%PDF-1.7 resume"),
	})
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", created.Field(remote.FieldName))
	assert.Equal(t, "15", created.Field(remote.FieldSize))
	assert.Nil(t, created.Content)

	list, err := files.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	updated, err := files.Update(ctx, items.Item{ID: created.ID, Fields: map[string]string{remote.FieldCategory: "cv"}})
	require.NoError(t, err)
	assert.Equal(t, "cv", updated.Field(remote.FieldCategory))
	assert.Equal(t, "cv.pdf", updated.Field(remote.FieldName))

	var buf bytes.Buffer
	name, err := files.Download(ctx, created.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", name)
	assert.Equal(t, "%PDF-1.7 resume", buf.String())

	require.NoError(t, files.Delete(ctx, created.ID))
	_, err = files.Download(ctx, created.ID, io.Discard)
	assert.ErrorIs(t, err, items.ErrNotFound)
	assert.ErrorIs(t, files.Delete(ctx, created.ID), items.ErrNotFound)
}

func TestFilesCreateNeedsName(t *testing.T) {
	c := remote.New(startServer(t).URL, token)
	_, err := c.Files().Create(context.Background(), items.Item{Content: []byte("x")})
	assert.ErrorIs(t, err, items.ErrInvalid)
}

func TestFallbackWhileServerDown(t *testing.T) {
	ctx := context.Background()
	store := storage.Scope(memory.NewRepository(), "notes")
	f := items.NewFallback("notes",
		remote.New(deadURL(t), token).Records("notes"),
		local.New(store))

	created, err := f.Create(ctx, items.Item{Fields: map[string]string{"title": "offline"}})
	require.NoError(t, err)
	assert.True(t, items.IsLocalID(created.ID))

	list, err := f.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "offline", list[0].Field("title"))
}

func TestMigrateToServer(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)
	store := storage.Scope(memory.NewRepository(), "files")
	loc := local.New(store)

	_, err := loc.Create(ctx, items.Item{
		Fields:  map[string]string{remote.FieldName: "a.txt", remote.FieldCategory: "misc"},
		Content: []byte("alpha"),
	})
	require.NoError(t, err)
	_, err = loc.Create(ctx, items.Item{Fields: map[string]string{remote.FieldCategory: "nameless"}, Content: []byte("b")})
	require.NoError(t, err)

	files := remote.New(srv.URL, token).Files()
	report, err := items.Migrate(ctx, loc, files, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Len(t, report.Errors, 1)

	onServer, err := files.List(ctx)
	require.NoError(t, err)
	require.Len(t, onServer, 1)
	assert.Equal(t, "a.txt", onServer[0].Field(remote.FieldName))

	left, err := loc.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "nameless", left[0].Field(remote.FieldCategory))

	var buf bytes.Buffer
	_, err = files.Download(ctx, onServer[0].ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "alpha", buf.String())
}

func TestMigratedRecordsKeepCreatedAt(t *testing.T) {
	ctx := context.Background()
	written := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	loc := local.New(storage.Scope(memory.NewRepository(), "notes"),
		local.WithClock(func() time.Time { return written }))

	_, err := loc.Create(ctx, items.Item{Fields: map[string]string{"title": "offline"}})
	require.NoError(t, err)

	notes := remote.New(startServer(t).URL, token).Records("notes")
	report, err := items.Migrate(ctx, loc, notes, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)

	onServer, err := notes.List(ctx)
	require.NoError(t, err)
	require.Len(t, onServer, 1)
	assert.True(t, written.Equal(onServer[0].CreatedAt), "created_at %s", onServer[0].CreatedAt)
	assert.True(t, onServer[0].UpdatedAt.After(written))
}
