package api

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/folio/internal/uuid"
	"github.com/jmcleod/folio/items"
	"github.com/jmcleod/folio/storage"
)

// collectionHandlers serves one record namespace (notes or todos).
type collectionHandlers struct {
	a     *API
	name  string
	store *storage.Scoped
}

func (a *API) collection(name string) *collectionHandlers {
	h := &collectionHandlers{a: a, name: name}
	if a.records != nil {
		h.store = storage.Scope(a.records, name)
	}
	return h
}

// list handles GET /{collection}. Records are returned oldest first.
func (h *collectionHandlers) list(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.List()
	if err != nil {
		h.a.mapError(w, err)
		return
	}
	out := make([]items.Item, 0, len(keys))
	for _, k := range keys {
		var it items.Item
		if err := h.store.GetJSON(k, &it); err != nil {
			if errors.Is(err, storage.ErrCorrupt) {
				h.a.logger.Warn("skipping unreadable record",
					slog.String("collection", h.name), slog.String("id", k), slog.Any("error", err))
				continue
			}
			h.a.mapError(w, err)
			return
		}
		out = append(out, it)
	}
	slices.SortStableFunc(out, func(x, y items.Item) int {
		if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
			return c
		}
		switch {
		case x.ID < y.ID:
			return -1
		case x.ID > y.ID:
			return 1
		}
		return 0
	})
	data, meta := page(r, out)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: meta})
}

// create handles POST /{collection}. The server assigns the id.
func (h *collectionHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields are required")
		return
	}
	now := h.a.now().UTC()
	it := items.Item{
		ID:        uuid.New(),
		Fields:    req.Fields,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Records migrated from a device keep the time they were first saved.
	if req.CreatedAt != nil && !req.CreatedAt.IsZero() && req.CreatedAt.Before(now) {
		it.CreatedAt = req.CreatedAt.UTC()
	}
	if err := h.store.PutJSON(it.ID, it); err != nil {
		h.a.mapError(w, err)
		return
	}
	h.a.audit.logTarget(AuditRecordCreated, r, h.name, it.ID)
	writeData(w, http.StatusCreated, it)
}

// update handles PUT /{collection}/{id}, replacing the record's fields.
func (h *collectionHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var req RecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields are required")
		return
	}
	var it items.Item
	if err := h.store.GetJSON(id, &it); err != nil {
		h.a.mapError(w, err)
		return
	}
	it.Fields = req.Fields
	it.UpdatedAt = h.a.now().UTC()
	if err := h.store.PutJSON(id, it); err != nil {
		h.a.mapError(w, err)
		return
	}
	h.a.audit.logTarget(AuditRecordUpdated, r, h.name, id)
	writeData(w, http.StatusOK, it)
}

// remove handles DELETE /{collection}/{id}.
func (h *collectionHandlers) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(id); err != nil {
		h.a.mapError(w, err)
		return
	}
	h.a.audit.logTarget(AuditRecordDeleted, r, h.name, id)
	writeMessage(w, h.name+" entry deleted")
}

// recordID returns the {id} path parameter. Ids this server never issues,
// such as the device's local-... ids, are rejected with 400.
func recordID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !uuid.Valid(id) {
		writeError(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}
