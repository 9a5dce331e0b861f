package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frankenergie/frankenergie/pkg/coordinator"
	"github.com/frankenergie/frankenergie/pkg/credentials"
	"github.com/frankenergie/frankenergie/pkg/frank"
	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/storage/storagemock"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv     *Server
	db      *storagemock.MockDatabase
	entries *coordinator.Map
	login   *mockLoginClient
	cipher  *credentials.Cipher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cipher, err := credentials.New(testKey)
	require.NoError(t, err)
	prices := hourlyPrices(time.Now())

	env := &testEnv{
		db:     &storagemock.MockDatabase{},
		login:  &mockLoginClient{},
		cipher: cipher,
	}
	env.entries = coordinator.NewMap(coordinator.Options{
		Cipher: cipher,
		NewClient: func(auth types.Authentication) coordinator.Client {
			return &fakeClient{auth: auth, prices: prices}
		},
	})
	env.srv = newServer(env.entries, env.db, nil, cipher, func() LoginClient { return env.login })
	env.srv.bypassAuth = true
	return env
}

func (e *testEnv) do(t *testing.T, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	w := httptest.NewRecorder()
	e.srv.setupHandler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	env.srv.serverName = "rev-1"
	w := env.do(t, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "rev-1", w.Header().Get("Server"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRequestIDMiddleware(t *testing.T) {
	env := newTestEnv(t)
	var seen string
	h := env.srv.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(requestIDContextKey).(string)
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
	})

	t.Run("from header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Request-Id", "req-1")
		h.ServeHTTP(w, req)
		assert.Equal(t, "req-1", seen)
		assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	})
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	srv := env.srv
	srv.bypassAuth = false
	srv.adminEmails = []string{"admin@example.com"}
	srv.verifier = func(ctx context.Context, token string) (string, error) {
		switch token {
		case "admin-token":
			return "admin@example.com", nil
		case "other-token":
			return "other@example.com", nil
		}
		return "", assert.AnError
	}

	handler := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, _ := r.Context().Value(emailContextKey).(string)
		w.Header().Set("X-Email", email)
		w.WriteHeader(http.StatusOK)
	}))

	for _, tc := range []struct {
		name   string
		url    string
		header string
		code   int
	}{
		{name: "missing token", url: "/api/entries", code: http.StatusUnauthorized},
		{name: "not bearer", url: "/api/entries", header: "Basic abc", code: http.StatusUnauthorized},
		{name: "invalid token", url: "/api/entries", header: "Bearer bad", code: http.StatusUnauthorized},
		{name: "not an admin", url: "/api/entries", header: "Bearer other-token", code: http.StatusForbidden},
		{name: "admin", url: "/api/entries", header: "Bearer admin-token", code: http.StatusOK},
		{name: "websocket query token", url: "/api/ws?token=admin-token", code: http.StatusOK},
		{name: "query token outside websocket", url: "/api/entries?token=admin-token", code: http.StatusUnauthorized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "admin@example.com", w.Header().Get("X-Email"))
			}
		})
	}

	t.Run("bypass", func(t *testing.T) {
		srv.bypassAuth = true
		defer func() { srv.bypassAuth = false }()
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/entries", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHandleListEntries(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.entries.Setup(t.Context(), types.Entry{ID: "public", Title: "Public"})
	require.NoError(t, err)
	env.db.On("ListEntries", mock.Anything).Return([]types.Entry{
		{ID: "public", Title: "Public"},
		{ID: "stored", Title: "Stored", EncryptedCredentials: []byte("sealed"), SiteReference: "site"},
	}, nil)

	w := env.do(t, "GET", "/api/entries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sealed")

	views := decode[[]entryView](t, w)
	require.Len(t, views, 2)
	assert.True(t, views[0].Loaded)
	assert.NotNil(t, views[0].Status)
	assert.False(t, views[0].Authenticated)
	assert.False(t, views[1].Loaded)
	assert.True(t, views[1].Authenticated)

	t.Run("storage failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.On("ListEntries", mock.Anything).Return([]types.Entry(nil), errors.New("unavailable"))
		w := env.do(t, "GET", "/api/entries", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandleEntryLogin(t *testing.T) {
	auth := types.Authentication{AuthToken: "auth", RefreshToken: "refresh"}
	site := func(ref, status string) types.DeliverySite {
		return types.DeliverySite{Reference: ref, Status: status, AddressFormatted: []string{"Street " + ref}}
	}
	req := loginRequest{Email: " user@example.com ", Password: "secret"}

	t.Run("single site creates the entry", func(t *testing.T) {
		env := newTestEnv(t)
		env.login.On("Login", mock.Anything, "user@example.com", "secret").Return(auth, nil)
		env.login.On("UserSites", mock.Anything).Return([]types.DeliverySite{
			site("old", "DEACTIVATED"),
			site("1", types.DeliverySiteStatusInDelivery),
		}, nil)
		wantID := coordinator.NewEntryID("user@example.com", "1")
		env.db.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e types.Entry) bool {
			if e.ID != wantID || e.Title != "Street 1" || e.Email != "user@example.com" || e.SiteReference != "1" {
				return false
			}
			got, err := env.cipher.Decrypt(context.Background(), e.EncryptedCredentials)
			return err == nil && got == auth
		})).Return(nil)

		w := env.do(t, "POST", "/api/entries/login", req)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp := decode[loginResponse](t, w)
		require.NotNil(t, resp.Entry)
		assert.Equal(t, wantID, resp.Entry.ID)
		assert.True(t, resp.Entry.Authenticated)

		c, ok := env.entries.Get(wantID)
		require.True(t, ok)
		assert.True(t, c.Authenticated())
		env.db.AssertExpectations(t)
	})

	t.Run("several sites are listed", func(t *testing.T) {
		env := newTestEnv(t)
		env.login.On("Login", mock.Anything, "user@example.com", "secret").Return(auth, nil)
		env.login.On("UserSites", mock.Anything).Return([]types.DeliverySite{
			site("1", types.DeliverySiteStatusInDelivery),
			site("2", types.DeliverySiteStatusInDelivery),
			site("3", "DEACTIVATED"),
		}, nil)

		w := env.do(t, "POST", "/api/entries/login", req)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[loginResponse](t, w)
		assert.Nil(t, resp.Entry)
		require.Len(t, resp.Sites, 2)
		assert.Equal(t, "Street 2", resp.Sites[1].Title)
		env.db.AssertNotCalled(t, "CreateEntry", mock.Anything, mock.Anything)
	})

	t.Run("no site in delivery", func(t *testing.T) {
		env := newTestEnv(t)
		env.login.On("Login", mock.Anything, "user@example.com", "secret").Return(auth, nil)
		env.login.On("UserSites", mock.Anything).Return([]types.DeliverySite{site("3", "DEACTIVATED")}, nil)
		w := env.do(t, "POST", "/api/entries/login", req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.login.On("Login", mock.Anything, "user@example.com", "secret").
			Return(types.Authentication{}, fmt.Errorf("%w: user-error:password-invalid", frank.ErrReauthRequired))
		w := env.do(t, "POST", "/api/entries/login", req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("frank unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		env.login.On("Login", mock.Anything, "user@example.com", "secret").
			Return(types.Authentication{}, fmt.Errorf("%w: connection reset", frank.ErrTransient))
		w := env.do(t, "POST", "/api/entries/login", req)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("missing password", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", "/api/entries/login", loginRequest{Email: "user@example.com"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env.login.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid body", func(t *testing.T) {
		env := newTestEnv(t)
		w := httptest.NewRecorder()
		env.srv.setupHandler().ServeHTTP(w, httptest.NewRequest("POST", "/api/entries/login", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleCreateEntry(t *testing.T) {
	auth := types.Authentication{AuthToken: "auth", RefreshToken: "refresh"}

	t.Run("public", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e types.Entry) bool {
			return e.ID == coordinator.NewEntryID("", "") && e.Title == defaultEntryTitle && len(e.EncryptedCredentials) == 0
		})).Return(nil)

		w := env.do(t, "POST", "/api/entries", createEntryRequest{})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		view := decode[entryView](t, w)
		assert.False(t, view.Authenticated)
		_, ok := env.entries.Get(view.ID)
		assert.True(t, ok)
	})

	t.Run("already exists", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.On("CreateEntry", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: id", storage.ErrEntryExists))
		w := env.do(t, "POST", "/api/entries", createEntryRequest{Title: "Public"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Empty(t, env.entries.List())
	})

	t.Run("selected site", func(t *testing.T) {
		env := newTestEnv(t)
		env.login.On("Login", mock.Anything, "user@example.com", "secret").Return(auth, nil)
		env.login.On("UserSites", mock.Anything).Return([]types.DeliverySite{
			{Reference: "1", Status: types.DeliverySiteStatusInDelivery},
			{Reference: "2", Status: types.DeliverySiteStatusInDelivery},
		}, nil)
		env.db.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e types.Entry) bool {
			return e.SiteReference == "2" && e.Title == "Holiday home" && len(e.EncryptedCredentials) > 0
		})).Return(nil)

		w := env.do(t, "POST", "/api/entries", createEntryRequest{
			loginRequest:  loginRequest{Email: "user@example.com", Password: "secret"},
			SiteReference: "2",
			Title:         "Holiday home",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, coordinator.NewEntryID("user@example.com", "2"), decode[entryView](t, w).ID)
	})

	t.Run("unknown site", func(t *testing.T) {
		env := newTestEnv(t)
		env.login.On("Login", mock.Anything, "user@example.com", "secret").Return(auth, nil)
		env.login.On("UserSites", mock.Anything).Return([]types.DeliverySite{
			{Reference: "1", Status: types.DeliverySiteStatusInDelivery},
		}, nil)
		w := env.do(t, "POST", "/api/entries", createEntryRequest{
			loginRequest:  loginRequest{Email: "user@example.com", Password: "secret"},
			SiteReference: "9",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("missing site", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", "/api/entries", createEntryRequest{
			loginRequest: loginRequest{Email: "user@example.com", Password: "secret"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no encryption key", func(t *testing.T) {
		env := newTestEnv(t)
		env.srv.cipher = nil
		env.login.On("Login", mock.Anything, "user@example.com", "secret").Return(auth, nil)
		env.login.On("UserSites", mock.Anything).Return([]types.DeliverySite{
			{Reference: "1", Status: types.DeliverySiteStatusInDelivery},
		}, nil)
		w := env.do(t, "POST", "/api/entries", createEntryRequest{
			loginRequest:  loginRequest{Email: "user@example.com", Password: "secret"},
			SiteReference: "1",
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		env.db.AssertNotCalled(t, "CreateEntry", mock.Anything, mock.Anything)
	})

	t.Run("setup failure removes the entry", func(t *testing.T) {
		env := newTestEnv(t)
		// credentials encrypted with another key cannot be decrypted by the map
		other, err := credentials.New("fedcba9876543210fedcba9876543210")
		require.NoError(t, err)
		env.srv.cipher = other

		id := coordinator.NewEntryID("user@example.com", "1")
		env.login.On("Login", mock.Anything, "user@example.com", "secret").Return(auth, nil)
		env.login.On("UserSites", mock.Anything).Return([]types.DeliverySite{
			{Reference: "1", Status: types.DeliverySiteStatusInDelivery},
		}, nil)
		env.db.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)
		env.db.On("DeleteEntry", mock.Anything, id).Return(nil)

		w := env.do(t, "POST", "/api/entries", createEntryRequest{
			loginRequest:  loginRequest{Email: "user@example.com", Password: "secret"},
			SiteReference: "1",
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env.db.AssertCalled(t, "DeleteEntry", mock.Anything, id)
		assert.Empty(t, env.entries.List())
	})
}

func TestHandleReauthEntry(t *testing.T) {
	auth := types.Authentication{AuthToken: "auth-2", RefreshToken: "refresh-2"}
	entry := types.Entry{ID: "home", Title: "Home", Email: "user@example.com", SiteReference: "1"}

	env := newTestEnv(t)
	_, err := env.entries.Setup(t.Context(), entry)
	require.NoError(t, err)
	env.db.On("GetEntry", mock.Anything, "home").Return(entry, nil)
	env.login.On("Login", mock.Anything, "user@example.com", "secret").Return(auth, nil)
	env.login.On("UserSites", mock.Anything).Return([]types.DeliverySite{
		{Reference: "1", Status: types.DeliverySiteStatusInDelivery},
	}, nil)
	env.db.On("UpdateEntry", mock.Anything, mock.MatchedBy(func(e types.Entry) bool {
		if e.ID != "home" || e.Title != "Home" || e.UpdatedAt.IsZero() {
			return false
		}
		got, err := env.cipher.Decrypt(context.Background(), e.EncryptedCredentials)
		return err == nil && got == auth
	})).Return(nil)

	// the stored email is used when none is given
	w := env.do(t, "POST", "/api/entries/home/reauth", loginRequest{Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[entryView](t, w).Authenticated)

	c, ok := env.entries.Get("home")
	require.True(t, ok)
	assert.True(t, c.Authenticated())
	env.db.AssertExpectations(t)

	t.Run("missing entry", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.On("GetEntry", mock.Anything, "nope").Return(types.Entry{}, fmt.Errorf("%w: nope", storage.ErrEntryNotFound))
		w := env.do(t, "POST", "/api/entries/nope/reauth", loginRequest{Password: "secret"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("public entry", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.On("GetEntry", mock.Anything, "public").Return(types.Entry{ID: "public"}, nil)
		w := env.do(t, "POST", "/api/entries/public/reauth", loginRequest{Email: "user@example.com", Password: "secret"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDeleteEntry(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.entries.Setup(t.Context(), types.Entry{ID: "public"})
	require.NoError(t, err)
	env.db.On("GetEntry", mock.Anything, "public").Return(types.Entry{ID: "public"}, nil)
	env.db.On("DeleteEntry", mock.Anything, "public").Return(nil)

	w := env.do(t, "DELETE", "/api/entries/public", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok := env.entries.Get("public")
	assert.False(t, ok)
	env.db.AssertExpectations(t)

	t.Run("missing", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.On("GetEntry", mock.Anything, "nope").Return(types.Entry{}, fmt.Errorf("%w: nope", storage.ErrEntryNotFound))
		w := env.do(t, "DELETE", "/api/entries/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		env.db.AssertNotCalled(t, "DeleteEntry", mock.Anything, mock.Anything)
	})
}

func TestHandleRefreshAndSensors(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.entries.Setup(t.Context(), types.Entry{ID: "public"})
	require.NoError(t, err)
	_, err = env.entries.Setup(t.Context(), types.Entry{ID: "off", Disabled: true})
	require.NoError(t, err)

	w := env.do(t, "POST", "/api/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode[[]refreshResult](t, w)
	require.Len(t, results, 1)
	assert.Equal(t, "public", results[0].EntryID)
	assert.True(t, results[0].OK)
	assert.False(t, results[0].FetchedAt.IsZero())

	w = env.do(t, "GET", "/api/sensors?entryID=public", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[sensorsResponse](t, w)
	assert.Equal(t, "public", resp.EntryID)
	assert.False(t, resp.Authenticated)
	states := map[string]string{}
	for _, s := range resp.Sensors {
		states[s.Key] = s.Value.ValueOrZero()
	}
	assert.Equal(t, "0.250", states["elec_markup"])
	assert.Equal(t, "0.800", states["gas_markup"])
	assert.NotContains(t, states, "total_costs")

	t.Run("single refresh", func(t *testing.T) {
		w := env.do(t, "POST", "/api/refresh?entryID=public", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]refreshResult](t, w), 1)
	})

	t.Run("unknown entry", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/refresh?entryID=nope", nil).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/sensors?entryID=nope", nil).Code)
	})

	t.Run("entry required with several entries", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/sensors", nil).Code)
	})

	t.Run("failed refresh", func(t *testing.T) {
		env := newTestEnv(t)
		env.entries = coordinator.NewMap(coordinator.Options{
			NewClient: func(auth types.Authentication) coordinator.Client {
				return &fakeClient{err: fmt.Errorf("%w: timeout", frank.ErrTransient)}
			},
		})
		env.srv.entries = env.entries
		_, err := env.entries.Setup(t.Context(), types.Entry{ID: "public"})
		require.NoError(t, err)

		w := env.do(t, "POST", "/api/refresh", nil)
		require.Equal(t, http.StatusOK, w.Code)
		results := decode[[]refreshResult](t, w)
		require.Len(t, results, 1)
		assert.False(t, results[0].OK)
		assert.Contains(t, results[0].Error, "timeout")

		// the only entry is used without an entryID, and has no values yet
		w = env.do(t, "GET", "/api/sensors", nil)
		require.Equal(t, http.StatusOK, w.Code)
		for _, s := range decode[sensorsResponse](t, w).Sensors {
			assert.False(t, s.Value.Valid, s.Key)
		}
	})
}

func TestHandleHistoryPrices(t *testing.T) {
	env := newTestEnv(t)
	env.srv.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	_, err := env.entries.Setup(t.Context(), types.Entry{ID: "public"})
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	prices := hourlyPrices(start).Gas[:3]
	env.db.On("GetPriceHistory", mock.Anything, "public", types.CommodityGas, start, end).Return(prices, nil)

	w := env.do(t, "GET", "/api/history/prices?entryID=public&commodity=gas&start=2024-03-01T00:00:00Z&end=2024-03-02T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "private, max-age=86400", w.Header().Get("Cache-Control"))
	resp := decode[historyResponse](t, w)
	assert.Equal(t, types.UnitGas, resp.Unit)
	assert.Len(t, resp.Prices, 3)

	t.Run("recent range", func(t *testing.T) {
		start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		env.db.On("GetPriceHistory", mock.Anything, "public", types.CommodityElectricity, start, start.Add(48*time.Hour)).
			Return(types.PriceSeries(nil), nil)
		w := env.do(t, "GET", "/api/history/prices?entryID=public&start=2024-03-10T00:00:00Z&end=2024-03-12T00:00:00Z", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))
		assert.NotNil(t, decode[historyResponse](t, w).Prices)
	})

	t.Run("invalid commodity", func(t *testing.T) {
		w := env.do(t, "GET", "/api/history/prices?entryID=public&commodity=water", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("range too long", func(t *testing.T) {
		w := env.do(t, "GET", "/api/history/prices?entryID=public&start=2024-03-01T00:00:00Z&end=2024-03-09T00:00:00Z", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.entries.Setup(t.Context(), types.Entry{ID: "public"})
		require.NoError(t, err)
		env.db.On("GetPriceHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(types.PriceSeries(nil), errors.New("unavailable"))
		w := env.do(t, "GET", "/api/history/prices", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestParseTimeRange(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		name      string
		query     string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "default", wantStart: now.Add(-24 * time.Hour), wantEnd: now.Add(24 * time.Hour)},
		{
			name:      "explicit",
			query:     "start=2024-03-01T00:00:00Z&end=2024-03-03T00:00:00Z",
			wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		{name: "only start", query: "start=2024-03-01T00:00:00Z", wantErr: true},
		{name: "bad start", query: "start=yesterday&end=2024-03-03T00:00:00Z", wantErr: true},
		{name: "bad end", query: "start=2024-03-01T00:00:00Z&end=tomorrow", wantErr: true},
		{name: "reversed", query: "start=2024-03-03T00:00:00Z&end=2024-03-01T00:00:00Z", wantErr: true},
		{name: "empty", query: "start=2024-03-01T00:00:00Z&end=2024-03-01T00:00:00Z", wantErr: true},
		{name: "too long", query: "start=2024-03-01T00:00:00Z&end=2024-03-08T00:00:01Z", wantErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := parseTimeRange(httptest.NewRequest("GET", "/?"+tc.query, nil), now)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.wantStart.Equal(start), start)
			assert.True(t, tc.wantEnd.Equal(end), end)
		})
	}
}
