package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frankenergie/frankenergie/pkg/coordinator"
	"github.com/frankenergie/frankenergie/pkg/credentials"
	"github.com/frankenergie/frankenergie/pkg/frank"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/types"
)

const defaultEntryTitle = "Frank Energie"

// entryView is an entry as the API shows it. Credentials never leave the
// server.
type entryView struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Email         string              `json:"email,omitempty"`
	SiteReference string              `json:"siteReference,omitempty"`
	Disabled      bool                `json:"disabled"`
	Authenticated bool                `json:"authenticated"`
	Loaded        bool                `json:"loaded"`
	Status        *coordinator.Status `json:"status,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func (s *Server) viewEntry(entry types.Entry) entryView {
	v := entryView{
		ID:            entry.ID,
		Title:         entry.Title,
		Email:         entry.Email,
		SiteReference: entry.SiteReference,
		Disabled:      entry.Disabled,
		Authenticated: len(entry.EncryptedCredentials) > 0,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
	if c, ok := s.entries.Get(entry.ID); ok {
		status := c.Status()
		v.Loaded = true
		v.Authenticated = c.Authenticated()
		v.Status = &status
	}
	return v
}

type siteView struct {
	Reference string   `json:"reference"`
	Title     string   `json:"title"`
	Segments  []string `json:"segments"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	// Entry is set when the account had a single site and the entry was
	// created right away.
	Entry *entryView `json:"entry,omitempty"`
	Sites []siteView `json:"sites,omitempty"`
}

type createEntryRequest struct {
	loginRequest
	SiteReference string `json:"siteReference"`
	Title         string `json:"title"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	// Limit body size to 1MB to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to decode request body", slog.Any("error", err))
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := s.storage.ListEntries(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list entries", slog.Any("error", err))
		writeJSONError(w, "failed to list entries", http.StatusInternalServerError)
		return
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, s.viewEntry(e))
	}
	writeJSON(w, http.StatusOK, views)
}

// login signs in to Frank Energie and lists the account's sites. It writes
// the error response itself and returns false on failure.
func (s *Server) login(w http.ResponseWriter, r *http.Request, req loginRequest) (types.Authentication, []types.DeliverySite, bool) {
	ctx := r.Context()
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeJSONError(w, "email and password are required", http.StatusBadRequest)
		return types.Authentication{}, nil, false
	}

	client := s.newLoginClient()
	auth, err := client.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, frank.ErrReauthRequired) {
			log.Ctx(ctx).InfoContext(ctx, "frank login rejected", slog.String("email", req.Email), slog.Any("error", err))
			writeJSONError(w, "invalid email or password", http.StatusUnauthorized)
		} else {
			log.Ctx(ctx).ErrorContext(ctx, "frank login failed", slog.Any("error", err))
			writeJSONError(w, "failed to reach frank energie", http.StatusBadGateway)
		}
		return types.Authentication{}, nil, false
	}

	sites, err := client.UserSites(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list delivery sites", slog.Any("error", err))
		writeJSONError(w, "failed to list delivery sites", http.StatusBadGateway)
		return types.Authentication{}, nil, false
	}
	return auth, types.InDeliverySites(sites), true
}

func (s *Server) handleEntryLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	auth, sites, ok := s.login(w, r, req)
	if !ok {
		return
	}

	switch len(sites) {
	case 0:
		writeJSONError(w, "account has no sites in delivery", http.StatusUnprocessableEntity)
	case 1:
		entry, ok := s.createEntry(w, r, strings.TrimSpace(req.Email), sites[0], auth, "")
		if !ok {
			return
		}
		view := s.viewEntry(entry)
		writeJSON(w, http.StatusCreated, loginResponse{Entry: &view})
	default:
		views := make([]siteView, 0, len(sites))
		for _, site := range sites {
			views = append(views, siteView{Reference: site.Reference, Title: site.Title(), Segments: site.Segments})
		}
		writeJSON(w, http.StatusOK, loginResponse{Sites: views})
	}
}

// handleCreateEntry adds the selected site of an account, or an entry for the
// public prices when no email is given.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		entry, ok := s.createEntry(w, r, "", types.DeliverySite{}, types.Authentication{}, req.Title)
		if !ok {
			return
		}
		writeJSON(w, http.StatusCreated, s.viewEntry(entry))
		return
	}

	if req.SiteReference == "" {
		writeJSONError(w, "siteReference is required", http.StatusBadRequest)
		return
	}
	auth, sites, ok := s.login(w, r, req.loginRequest)
	if !ok {
		return
	}
	for _, site := range sites {
		if site.Reference != req.SiteReference {
			continue
		}
		entry, ok := s.createEntry(w, r, strings.TrimSpace(req.Email), site, auth, req.Title)
		if !ok {
			return
		}
		writeJSON(w, http.StatusCreated, s.viewEntry(entry))
		return
	}
	writeJSONError(w, "site is not in delivery for this account", http.StatusUnprocessableEntity)
}

// createEntry stores a new entry and starts its coordinator. It writes the
// error response itself and returns false on failure.
func (s *Server) createEntry(w http.ResponseWriter, r *http.Request, email string, site types.DeliverySite, auth types.Authentication, title string) (types.Entry, bool) {
	ctx := r.Context()
	now := s.now().UTC()
	entry := types.Entry{
		ID:            coordinator.NewEntryID(email, site.Reference),
		Title:         title,
		Email:         email,
		SiteReference: site.Reference,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if entry.Title == "" {
		entry.Title = defaultEntryTitle
		if site.Reference != "" {
			entry.Title = site.Title()
		}
	}
	ctx = log.WithAttrs(ctx, slog.String("entryID", entry.ID))

	if !auth.Empty() {
		encrypted, ok := s.encrypt(ctx, w, auth)
		if !ok {
			return types.Entry{}, false
		}
		entry.EncryptedCredentials = encrypted
	}

	if err := s.storage.CreateEntry(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrEntryExists) {
			writeJSONError(w, "entry already exists", http.StatusConflict)
			return types.Entry{}, false
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to create entry", slog.Any("error", err))
		writeJSONError(w, "failed to create entry", http.StatusInternalServerError)
		return types.Entry{}, false
	}
	if !s.setup(ctx, w, entry) {
		// a retry would otherwise conflict with the half created entry
		if err := s.storage.DeleteEntry(ctx, entry.ID); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to remove entry after failed setup", slog.Any("error", err))
		}
		return types.Entry{}, false
	}
	log.Ctx(ctx).InfoContext(ctx, "entry created", slog.Bool("authenticated", !auth.Empty()))
	return entry, true
}

func (s *Server) encrypt(ctx context.Context, w http.ResponseWriter, auth types.Authentication) ([]byte, bool) {
	var encrypted []byte
	err := credentials.ErrNoKey
	if s.cipher != nil {
		encrypted, err = s.cipher.Encrypt(ctx, auth)
	}
	if err != nil {
		if errors.Is(err, credentials.ErrNoKey) {
			writeJSONError(w, "credentials-encryption-key is not configured", http.StatusServiceUnavailable)
			return nil, false
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to encrypt credentials", slog.Any("error", err))
		writeJSONError(w, "failed to encrypt credentials", http.StatusInternalServerError)
		return nil, false
	}
	return encrypted, true
}

func (s *Server) setup(ctx context.Context, w http.ResponseWriter, entry types.Entry) bool {
	if _, err := s.entries.Setup(ctx, entry); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to set up entry", slog.Any("error", err))
		writeJSONError(w, "failed to set up entry", http.StatusInternalServerError)
		return false
	}
	return true
}

// getEntry loads the entry named by the id path value. It writes the error
// response itself and returns false on failure.
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) (types.Entry, bool) {
	ctx := r.Context()
	entry, err := s.storage.GetEntry(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			writeJSONError(w, "entry not found", http.StatusNotFound)
			return types.Entry{}, false
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get entry", slog.Any("error", err))
		writeJSONError(w, "failed to get entry", http.StatusInternalServerError)
		return types.Entry{}, false
	}
	return entry, true
}

// handleReauthEntry logs in again for an entry whose session was rejected and
// restarts its coordinator with the new tokens.
func (s *Server) handleReauthEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.getEntry(w, r)
	if !ok {
		return
	}
	ctx := log.WithAttrs(r.Context(), slog.String("entryID", entry.ID))
	if entry.SiteReference == "" {
		writeJSONError(w, "entry tracks public prices only", http.StatusBadRequest)
		return
	}

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" {
		req.Email = entry.Email
	}
	auth, sites, ok := s.login(w, r, req)
	if !ok {
		return
	}
	found := false
	for _, site := range sites {
		if site.Reference == entry.SiteReference {
			found = true
			break
		}
	}
	if !found {
		writeJSONError(w, "site is not in delivery for this account", http.StatusUnprocessableEntity)
		return
	}

	encrypted, ok := s.encrypt(ctx, w, auth)
	if !ok {
		return
	}
	entry.Email = strings.TrimSpace(req.Email)
	entry.EncryptedCredentials = encrypted
	entry.UpdatedAt = s.now().UTC()
	if err := s.storage.UpdateEntry(ctx, entry); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to update entry", slog.Any("error", err))
		writeJSONError(w, "failed to update entry", http.StatusInternalServerError)
		return
	}
	if !s.setup(ctx, w, entry) {
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "entry reauthenticated")
	writeJSON(w, http.StatusOK, s.viewEntry(entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.getEntry(w, r)
	if !ok {
		return
	}
	ctx := log.WithAttrs(r.Context(), slog.String("entryID", entry.ID))

	s.entries.Unload(entry.ID)
	if err := s.storage.DeleteEntry(ctx, entry.ID); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete entry", slog.Any("error", err))
		writeJSONError(w, "failed to delete entry", http.StatusInternalServerError)
		return
	}
	if err := s.snapshots.Delete(ctx, entry.ID); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to delete snapshot", slog.Any("error", err))
	}
	log.Ctx(ctx).InfoContext(ctx, "entry deleted")
	w.WriteHeader(http.StatusNoContent)
}
