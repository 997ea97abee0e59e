package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandlerServesAssetsAndDeepLinks(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":     {Data: []byte("<html>site</html>")},
		"assets/app.js":  {Data: []byte("console.log(1)")},
		"assets/app.css": {Data: []byte("body{}")},
	}
	h, err := Handler(fsys)
	require.NoError(t, err)

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>site</html>", rec.Body.String())

	rec = get(t, h, "/assets/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	for _, deep := range []string{"/projects", "/admin/notes", "/assets", "/../../etc/passwd"} {
		rec = get(t, h, deep)
		assert.Equal(t, http.StatusOK, rec.Code, deep)
		assert.Equal(t, "<html>site</html>", rec.Body.String(), deep)
	}
}

func TestHandlerNeedsIndex(t *testing.T) {
	_, err := Handler(fstest.MapFS{"app.js": {Data: []byte("x")}})
	assert.Error(t, err)
}

func TestDir(t *testing.T) {
	fsys, err := Dir("")
	require.NoError(t, err)
	h, err := Handler(fsys)
	require.NoError(t, err)
	body, err := io.ReadAll(get(t, h, "/").Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "static_dir")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("custom"), 0o600))
	fsys, err = Dir(dir)
	require.NoError(t, err)
	h, err = Handler(fsys)
	require.NoError(t, err)
	assert.Equal(t, "custom", get(t, h, "/about").Body.String())

	_, err = Dir(filepath.Join(dir, "index.html"))
	assert.Error(t, err)
	_, err = Dir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
