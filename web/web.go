// Package web serves the single-page site in front of the API.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed placeholder/*
var placeholder embed.FS

// Dir returns the site assets rooted at dir, or the built-in placeholder
// page when dir is empty.
func Dir(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(placeholder, "placeholder")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Handler returns an http.Handler that serves the assets in fsys. Paths
// that match no file get index.html so client-side routes survive a reload.
func Handler(fsys fs.FS) (http.Handler, error) {
	indexBytes, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		return nil, fmt.Errorf("reading index.html: %w", err)
	}

	static := http.FileServer(http.FS(fsys))

	serveIndex := func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(indexBytes)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if cleanPath == "" || cleanPath == "." || cleanPath == "index.html" {
			serveIndex(w)
			return
		}

		if info, err := fs.Stat(fsys, cleanPath); err == nil && !info.IsDir() {
			static.ServeHTTP(w, r)
			return
		}

		// Deep-link fallback.
		serveIndex(w)
	}), nil
}
