package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmcleod/folio/filestore"
	"github.com/jmcleod/folio/items"
)

// Item field names used for files.
const (
	FieldName        = "name"
	FieldCategory    = "category"
	FieldContentType = "content_type"
	FieldSize        = "size"
)

// Files is the Backend for the server's file store. Listed items carry
// metadata only; use Download for the bytes.
type Files struct {
	c *Client
}

var _ items.Backend = (*Files)(nil)

// Files returns the file Backend.
func (c *Client) Files() *Files {
	return &Files{c: c}
}

// FileItem converts file metadata to an Item.
func FileItem(f filestore.File) items.Item {
	return items.Item{
		ID: f.ID,
		Fields: map[string]string{
			FieldName:        f.Name,
			FieldCategory:    f.Category,
			FieldContentType: f.ContentType,
			FieldSize:        strconv.FormatInt(f.Size, 10),
		},
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func (f *Files) List(ctx context.Context) ([]items.Item, error) {
	files, err := listAll[filestore.File](ctx, f.c, "/files")
	if err != nil {
		return nil, err
	}
	out := make([]items.Item, 0, len(files))
	for _, file := range files {
		out = append(out, FileItem(file))
	}
	return out, nil
}

// Create uploads it.Content under the name in it.Fields.
func (f *Files) Create(ctx context.Context, it items.Item) (items.Item, error) {
	name := it.Field(FieldName)
	if name == "" {
		return items.Item{}, fmt.Errorf("file without a name: %w", items.ErrInvalid)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	if ct := it.Field(FieldContentType); ct != "" {
		h.Set("Content-Type", ct)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return items.Item{}, err
	}
	if _, err := part.Write(it.Content); err != nil {
		return items.Item{}, err
	}
	if err := mw.WriteField("category", it.Field(FieldCategory)); err != nil {
		return items.Item{}, err
	}
	if err := mw.Close(); err != nil {
		return items.Item{}, err
	}

	var out filestore.File
	_, err = f.c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/files",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &out)
	if err != nil {
		return items.Item{}, err
	}
	return FileItem(out), nil
}

// Update renames or recategorises a file. The bytes cannot be replaced.
func (f *Files) Update(ctx context.Context, it items.Item) (items.Item, error) {
	var patch filestore.Patch
	if v, ok := it.Fields[FieldName]; ok {
		patch.Name = &v
	}
	if v, ok := it.Fields[FieldCategory]; ok {
		patch.Category = &v
	}
	body, err := jsonBody(patch)
	if err != nil {
		return items.Item{}, err
	}
	var out filestore.File
	_, err = f.c.call(ctx, request{
		method:      http.MethodPatch,
		path:        "/files",
		query:       url.Values{"id": {it.ID}},
		body:        body,
		contentType: "application/json",
	}, &out)
	if err != nil {
		return items.Item{}, err
	}
	return FileItem(out), nil
}

func (f *Files) Delete(ctx context.Context, id string) error {
	_, err := f.c.call(ctx, request{
		method: http.MethodDelete,
		path:   "/files",
		query:  url.Values{"id": {id}},
	}, nil)
	return err
}

// Download copies the bytes of file id to w and returns the file name the
// server suggested.
func (f *Files) Download(ctx context.Context, id string, w io.Writer) (string, error) {
	r := request{method: http.MethodGet, path: "/download", query: url.Values{"id": {id}}}
	req, err := f.c.newRequest(ctx, r)
	if err != nil {
		return "", err
	}
	resp, err := f.c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: GET /download: %w", ErrRemote, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("%w: GET /download: %w", ErrRemote, err)
	}
	return filenameFrom(resp.Header.Get("Content-Disposition")), nil
}

func filenameFrom(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
