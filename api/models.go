package api

import (
	"time"

	"github.com/jmcleod/folio/filestore"
)

// Envelope wraps every JSON response. Exactly one of Data, Error or
// Message is set.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       any             `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// RecordRequest is the JSON body for POST /{collection} and
// PUT /{collection}/{id}. CreatedAt is only honoured on create.
type RecordRequest struct {
	Fields    map[string]string `json:"fields"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
}

// FilePatchRequest is the JSON body for PATCH /files.
type FilePatchRequest = filestore.Patch
