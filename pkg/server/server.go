package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/frankenergie/frankenergie/pkg/cache"
	"github.com/frankenergie/frankenergie/pkg/coordinator"
	"github.com/frankenergie/frankenergie/pkg/credentials"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/levenlabs/go-lflag"
)

type contextKey string

const (
	emailContextKey     contextKey = "email"
	requestIDContextKey contextKey = "requestID"
)

// LoginClient is the part of the Frank Energie client the config flow needs
// before an entry exists.
type LoginClient interface {
	Login(ctx context.Context, email, password string) (types.Authentication, error)
	UserSites(ctx context.Context) ([]types.DeliverySite, error)
}

// Server handles the HTTP API. It reads entry state from the coordinator map
// and manages entries in storage.
type Server struct {
	entries        *coordinator.Map
	storage        storage.Database
	snapshots      cache.Snapshots
	cipher         *credentials.Cipher
	newLoginClient func() LoginClient
	hub            *hub
	now            func() time.Time

	listenAddr  string
	httpServer  *http.Server
	adminEmails []string
	verifier    tokenVerifier
	bypassAuth  bool
	serverName  string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(entries *coordinator.Map, db storage.Database, snapshots cache.Snapshots, cipher *credentials.Cipher, newLoginClient func() LoginClient) *Server {
	srv := newServer(entries, db, snapshots, cipher, newLoginClient)
	srv.serverName = "frankenergie"
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to use the API")
	oidcAudience := lflag.String("oidc-audience", "", "audience of the ID tokens to accept, auth is disabled when empty")
	oidcIssuer := lflag.String("oidc-issuer", "https://accounts.google.com", "issuer of the ID tokens to accept")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if *adminEmails != "" {
			srv.adminEmails = strings.Split(*adminEmails, ",")
			for i, email := range srv.adminEmails {
				srv.adminEmails[i] = strings.TrimSpace(email)
			}
		}
		if *oidcAudience == "" {
			log.Ctx(context.Background()).Warn("no oidc-audience configured, API authentication is disabled")
			srv.bypassAuth = true
			return
		}
		provider, err := oidc.NewProvider(context.Background(), *oidcIssuer)
		if err != nil {
			log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("issuer", *oidcIssuer), slog.Any("error", err))
			os.Exit(1)
		}
		srv.verifier = oidcVerifier(provider.Verifier(&oidc.Config{ClientID: *oidcAudience}))
	})

	return srv
}

func newServer(entries *coordinator.Map, db storage.Database, snapshots cache.Snapshots, cipher *credentials.Cipher, newLoginClient func() LoginClient) *Server {
	if snapshots == nil {
		snapshots = cache.Noop{}
	}
	s := &Server{
		entries:        entries,
		storage:        db,
		snapshots:      snapshots,
		cipher:         cipher,
		newLoginClient: newLoginClient,
		hub:            newHub(),
		now:            time.Now,
	}
	entries.Subscribe(s.broadcastStates)
	return s
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/entries", s.handleListEntries)
	apiMux.HandleFunc("POST /api/entries/login", s.handleEntryLogin)
	apiMux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	apiMux.HandleFunc("POST /api/entries/{id}/reauth", s.handleReauthEntry)
	apiMux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)
	apiMux.HandleFunc("POST /api/refresh", s.handleRefresh)
	apiMux.HandleFunc("GET /api/sensors", s.handleSensors)
	apiMux.HandleFunc("GET /api/history/prices", s.handleHistoryPrices)

	mux := http.NewServeMux()
	mux.Handle("/api/", gziphandler.GzipHandler(s.authMiddleware(apiMux)))
	// the websocket upgrade needs the raw connection so it skips gzip
	mux.Handle("GET /api/ws", s.authMiddleware(http.HandlerFunc(s.handleWebsocket)))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(s.requestIDMiddleware(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

// coordinatorFor resolves the entryID query parameter. When it is empty and
// exactly one entry exists, that entry is used.
func (s *Server) coordinatorFor(w http.ResponseWriter, r *http.Request) (*coordinator.Coordinator, bool) {
	id := r.URL.Query().Get("entryID")
	if id == "" {
		list := s.entries.List()
		if len(list) != 1 {
			writeJSONError(w, "entryID required", http.StatusBadRequest)
			return nil, false
		}
		return list[0], true
	}
	c, ok := s.entries.Get(id)
	if !ok {
		writeJSONError(w, "entry not found", http.StatusNotFound)
		return nil, false
	}
	return c, true
}
