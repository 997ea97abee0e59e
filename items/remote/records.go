package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jmcleod/folio/items"
)

// Records is the Backend for one server-side record collection (notes or
// todos).
type Records struct {
	c    *Client
	path string
}

var _ items.Backend = (*Records)(nil)

// Records returns the Backend for collection.
func (c *Client) Records(collection string) *Records {
	return &Records{c: c, path: "/" + collection}
}

type recordRequest struct {
	Fields    map[string]string `json:"fields"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
}

func (r *Records) List(ctx context.Context) ([]items.Item, error) {
	out, err := listAll[items.Item](ctx, r.c, r.path)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores it on the server. A set CreatedAt is sent along so items
// migrated from the device keep their original creation time.
func (r *Records) Create(ctx context.Context, it items.Item) (items.Item, error) {
	req := recordRequest{Fields: it.Fields}
	if !it.CreatedAt.IsZero() {
		req.CreatedAt = &it.CreatedAt
	}
	body, err := jsonBody(req)
	if err != nil {
		return items.Item{}, err
	}
	var out items.Item
	_, err = r.c.call(ctx, request{
		method:      http.MethodPost,
		path:        r.path,
		body:        body,
		contentType: "application/json",
	}, &out)
	return out, err
}

func (r *Records) Update(ctx context.Context, it items.Item) (items.Item, error) {
	body, err := jsonBody(recordRequest{Fields: it.Fields})
	if err != nil {
		return items.Item{}, err
	}
	var out items.Item
	_, err = r.c.call(ctx, request{
		method:      http.MethodPut,
		path:        r.path + "/" + url.PathEscape(it.ID),
		body:        body,
		contentType: "application/json",
	}, &out)
	return out, err
}

func (r *Records) Delete(ctx context.Context, id string) error {
	_, err := r.c.call(ctx, request{
		method: http.MethodDelete,
		path:   r.path + "/" + url.PathEscape(id),
	}, nil)
	return err
}
