// Package remote implements items.Backend against the folio server API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmcleod/folio/items"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 10 * time.Second

// pageSize is the largest page the server hands out.
const pageSize = 200

// ErrRemote marks every failure talking to the server, whether the request
// never completed or the server answered with an error.
var ErrRemote = errors.New("remote request failed")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is makes StatusError match ErrRemote, and items.ErrNotFound for 404s.
func (e *StatusError) Is(target error) bool {
	if target == ErrRemote {
		return true
	}
	return e.StatusCode == http.StatusNotFound && target == items.ErrNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// Client talks to one server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a Client for the server at baseURL (e.g.
// "https://example.com"), authenticating with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	Pagination *struct {
		TotalCount int  `json:"total_count"`
		HasMore    bool `json:"has_more"`
	} `json:"pagination"`
}

// request is one API call. body may be nil.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRemote, r.method, r.path, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// call performs r and decodes the envelope's data into out (if non-nil).
func (c *Client) call(ctx context.Context, r request, out any) (envelope, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return envelope{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %s %s: %w", ErrRemote, r.method, r.path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return env, &StatusError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Message: env.Error}
	}
	if decodeErr != nil {
		return env, fmt.Errorf("%w: %s %s: decoding response: %w", ErrRemote, r.method, r.path, decodeErr)
	}
	if !env.Success {
		return env, &StatusError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Message: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env, fmt.Errorf("%w: %s %s: decoding data: %w", ErrRemote, r.method, r.path, err)
		}
	}
	return env, nil
}

// listAll follows pagination until the server reports no more pages.
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for offset := 0; ; {
		var batch []T
		q := url.Values{"limit": {fmt.Sprint(pageSize)}, "offset": {fmt.Sprint(offset)}}
		env, err := c.call(ctx, request{method: http.MethodGet, path: path, query: q}, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if env.Pagination == nil || !env.Pagination.HasMore || len(batch) == 0 {
			return all, nil
		}
		offset += len(batch)
	}
}

func jsonBody(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &buf, nil
}
