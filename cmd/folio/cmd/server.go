package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/jmcleod/folio/api"
	"github.com/jmcleod/folio/config"
	"github.com/jmcleod/folio/filestore"
	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/storage"
	bboltstorage "github.com/jmcleod/folio/storage/bbolt"
	"github.com/jmcleod/folio/storage/memory"
	"github.com/jmcleod/folio/storage/sqlite"
	"github.com/jmcleod/folio/web"
)

const sweepInterval = 5 * time.Minute

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the file and record server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyServerFlags(cmd, &cfg.Server)

		h, err := newServer(&cfg.Server, logger)
		if err != nil {
			return err
		}
		defer h.Close()

		tlsConfig, err := serverTLSConfig(&cfg.Server, logger)
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           h,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       5 * time.Minute,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       60 * time.Second,
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go h.sweep(ctx)

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if tlsConfig != nil {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		out := cmd.OutOrStdout()
		printBanner(out)
		fmt.Fprintf(out, "Starting server on %s (data: %s, store: %s)...\n",
			cfg.Server.Addr, cfg.Server.DataDir, cfg.Server.Store)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
	serverCmd.Flags().String("data-dir", "", "Directory for persistent data")
	serverCmd.Flags().String("store", "", "Record store: bbolt, sqlite or memory")
	serverCmd.Flags().String("static-dir", "", "Directory holding the built site")
	serverCmd.Flags().String("tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().String("tls-key", "", "Path to TLS key file")
	serverCmd.Flags().Bool("tls-self-signed", false, "Serve TLS with a runtime generated certificate")
}

// applyServerFlags copies explicitly set flags over the loaded config.
func applyServerFlags(cmd *cobra.Command, sc *config.ServerConfig) {
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"addr":       &sc.Addr,
		"data-dir":   &sc.DataDir,
		"store":      &sc.Store,
		"static-dir": &sc.StaticDir,
		"tls-cert":   &sc.TLSCert,
		"tls-key":    &sc.TLSKey,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("tls-self-signed") {
		sc.TLSSelfSigned, _ = flags.GetBool("tls-self-signed")
	}
}

// serverHandler is the assembled HTTP surface plus what must be closed
// when it goes away.
type serverHandler struct {
	http.Handler
	api    *api.API
	closer io.Closer
}

func (h *serverHandler) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// sweep periodically drops stale throttling state until ctx is done.
func (h *serverHandler) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.api.Sweep()
		}
	}
}

func newServer(sc *config.ServerConfig, logger *slog.Logger) (*serverHandler, error) {
	if err := os.MkdirAll(sc.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	records, closer, err := openRecordStore(sc)
	if err != nil {
		return nil, err
	}
	h := &serverHandler{closer: closer}

	files, err := filestore.New(filepath.Join(sc.DataDir, "files"), filestore.WithLogger(logger))
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to open file store: %w", err)
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithToken(sc.APIToken),
		api.WithMaxUploadBytes(sc.MaxUploadBytes),
	}
	if len(sc.TrustedProxies) > 0 {
		opt, err := api.WithTrustedProxies(sc.TrustedProxies)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		opts = append(opts, opt)
	}
	h.api = api.New(files, records, opts...)
	if !h.api.AuthEnabled() {
		logger.Warn("no API token configured; the file and record API is open to anyone who can reach it",
			slog.String("env", config.TokenEnv))
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Mount("/api/v1", h.api.Router())

	site, err := web.Dir(sc.StaticDir)
	if err != nil {
		h.Close()
		return nil, err
	}
	webHandler, err := web.Handler(site)
	if err != nil {
		h.Close()
		return nil, err
	}
	r.Handle("/*", webHandler)

	h.Handler = r
	return h, nil
}

// openRecordStore opens the notes and todos repository selected by sc.Store.
func openRecordStore(sc *config.ServerConfig) (storage.Repository, io.Closer, error) {
	switch sc.Store {
	case config.StoreBbolt:
		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(sc.DataDir, "records.db"), &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open record storage: %w", err)
		}
		return repo, repo, nil
	case config.StoreSQLite:
		repo, err := sqlite.Open(filepath.Join(sc.DataDir, "records.sqlite"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open record storage: %w", err)
		}
		return repo, repo, nil
	case config.StoreMemory:
		return memory.NewRepository(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown record store %q", sc.Store)
	}
}

// serverTLSConfig returns nil when the server should speak plain HTTP.
func serverTLSConfig(sc *config.ServerConfig, logger *slog.Logger) (*tls.Config, error) {
	var cert tls.Certificate
	switch {
	case sc.TLSCert != "" && sc.TLSKey != "":
		c, err := tls.LoadX509KeyPair(sc.TLSCert, sc.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		cert = c
	case sc.TLSSelfSigned:
		c, err := util.GenerateSelfSignedCert()
		if err != nil {
			return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}
		cert = c
		logger.Info("using self-signed runtime generated certificate for TLS")
	default:
		return nil, nil
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
