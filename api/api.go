// Package api serves the file and record endpoints the client device talks
// to when it is online.
package api

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/folio/filestore"
	"github.com/jmcleod/folio/storage"
)

// Collections are the record namespaces exposed under /{collection}.
var Collections = []string{"notes", "todos"}

// DefaultMaxUploadBytes caps a single upload unless overridden.
const DefaultMaxUploadBytes int64 = 32 << 20

// API holds the dependencies needed by the REST handlers.
type API struct {
	files          *filestore.Store
	records        storage.Repository
	token          *memguard.Enclave
	trustedProxies []netip.Prefix
	maxUploadBytes int64
	limiter        *ipRateLimiter
	audit          *auditLogger
	logger         *slog.Logger
	alertFn        AlertFunc
	now            func() time.Time
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for request and audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithToken sets the static bearer token every request must present. An
// empty token leaves the API open.
//
// The token is a shared secret between the server and its own client. It
// identifies no user and carries no session; the client-side guard is a
// separate mechanism.
func WithToken(token string) Option {
	return func(a *API) {
		if token == "" {
			a.token = nil
			return
		}
		a.token = memguard.NewEnclave([]byte(token))
	}
}

// WithTrustedProxies sets the CIDR ranges whose proxy headers are believed
// when working out the client IP for throttling. Bare IPs are accepted as
// single-host prefixes.
func WithTrustedProxies(cidrs []string) (Option, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return func(a *API) {
		a.trustedProxies = prefixes
	}, nil
}

// WithMaxUploadBytes caps the size of a single upload request.
func WithMaxUploadBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxUploadBytes = n
		}
	}
}

// WithAlertFunc installs a callback for anomaly alerts (bad-token spikes,
// bulk downloads). Without one, alerts are logged.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithClock replaces time.Now for record timestamps and throttling.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// New creates a new API instance serving files from files and notes and
// todos from records.
func New(files *filestore.Store, records storage.Repository, opts ...Option) *API {
	a := &API{
		files:          files,
		records:        records,
		maxUploadBytes: DefaultMaxUploadBytes,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.limiter = newIPRateLimiter(a.now)
	a.audit = newAuditLogger(a.logger, a.now)
	alertFn := a.alertFn
	if alertFn == nil {
		alertFn = a.audit.alert
	}
	a.audit.metrics = newMetricsCollector(alertFn, a.now)
	return a
}

// AuthEnabled reports whether requests must carry the bearer token.
func (a *API) AuthEnabled() bool { return a.token != nil }

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Group(func(r chi.Router) {
		r.Use(a.TokenAuth)

		r.Get("/files", a.ListFiles)
		r.Post("/files", a.UploadFile)
		r.Patch("/files", a.UpdateFile)
		r.Delete("/files", a.DeleteFile)
		r.Get("/download", a.DownloadFile)
		r.Get("/preview", a.PreviewFile)

		for _, c := range Collections {
			h := a.collection(c)
			r.Get("/"+c, h.list)
			r.Post("/"+c, h.create)
			r.Put("/"+c+"/{id}", h.update)
			r.Delete("/"+c+"/{id}", h.remove)
		}
	})

	return r
}
