package api

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/jmcleod/folio/filestore"
)

// maxMemoryBytes is how much of a multipart upload is buffered in memory
// before spilling to temporary files.
const maxMemoryBytes = 8 << 20

// ListFiles handles GET /files.
func (a *API) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.files.List()
	if err != nil {
		a.mapError(w, err)
		return
	}
	if files == nil {
		files = []filestore.File{}
	}
	data, meta := page(r, files)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: meta})
}

// UploadFile handles POST /files. The multipart form carries the payload
// in "file" and an optional "category".
func (a *API) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.mapError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer part.Close()

	f, err := a.files.Create(header.Filename, r.FormValue("category"), header.Header.Get("Content-Type"), part)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.logTarget(AuditFileUploaded, r, "file", f.ID,
		slog.String("name", f.Name), slog.Int64("size", f.Size))
	writeData(w, http.StatusCreated, f)
}

// UpdateFile handles PATCH /files?id=.
func (a *API) UpdateFile(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	var req FilePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := a.files.Update(id, req)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.logTarget(AuditFileUpdated, r, "file", id)
	writeData(w, http.StatusOK, f)
}

// DeleteFile handles DELETE /files?id=.
func (a *API) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	if err := a.files.Delete(id); err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.logTarget(AuditFileDeleted, r, "file", id)
	writeMessage(w, "file deleted")
}

// DownloadFile handles GET /download?id=. The file is sent as an
// attachment under its stored name.
func (a *API) DownloadFile(w http.ResponseWriter, r *http.Request) {
	a.serveFile(w, r, "attachment")
}

// PreviewFile handles GET /preview?id=. The file is sent inline with its
// original content type.
func (a *API) PreviewFile(w http.ResponseWriter, r *http.Request) {
	a.serveFile(w, r, "inline")
}

func (a *API) serveFile(w http.ResponseWriter, r *http.Request, disposition string) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	f, blob, err := a.files.Open(id)
	if err != nil {
		a.mapError(w, err)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.Name}))
	w.Header().Set("Cache-Control", "private, no-store")
	a.audit.logTarget(AuditFileDownloaded, r, "file", id, slog.String("disposition", disposition))
	http.ServeContent(w, r, f.Name, f.UpdatedAt, blob)
}
