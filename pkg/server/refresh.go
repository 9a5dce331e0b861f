package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/frankenergie/frankenergie/pkg/coordinator"
	"github.com/frankenergie/frankenergie/pkg/frank"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/sensor"
)

type refreshResult struct {
	EntryID        string    `json:"entryID"`
	OK             bool      `json:"ok"`
	Error          string    `json:"error,omitempty"`
	ReauthRequired bool      `json:"reauthRequired,omitempty"`

	// Stale is true when the previous result was kept.
	Stale     bool      `json:"stale,omitempty"`
	FetchedAt time.Time `json:"fetchedAt,omitzero"`
}

// handleRefresh refreshes one entry, or all enabled ones when no entryID is
// given. It lets an external scheduler drive refreshes.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var targets []*coordinator.Coordinator
	if id := r.URL.Query().Get("entryID"); id != "" {
		c, ok := s.entries.Get(id)
		if !ok {
			writeJSONError(w, "entry not found", http.StatusNotFound)
			return
		}
		targets = append(targets, c)
	} else {
		for _, c := range s.entries.List() {
			if !c.Entry().Disabled {
				targets = append(targets, c)
			}
		}
	}

	results := make([]refreshResult, 0, len(targets))
	for _, c := range targets {
		res := refreshResult{EntryID: c.Entry().ID}
		result, err := c.Refresh(ctx)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "refresh failed", slog.String("entryID", res.EntryID), slog.Any("error", err))
			res.Error = err.Error()
			res.ReauthRequired = errors.Is(err, frank.ErrReauthRequired)
		} else {
			res.OK = true
			res.Stale = c.Status().Stale
			res.FetchedAt = result.FetchedAt
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, results)
}

type sensorsResponse struct {
	EntryID       string             `json:"entryID"`
	Authenticated bool               `json:"authenticated"`
	Status        coordinator.Status `json:"status"`
	Sensors       []sensor.State     `json:"sensors"`
}

func (s *Server) sensorsOf(c *coordinator.Coordinator) sensorsResponse {
	return sensorsResponse{
		EntryID:       c.Entry().ID,
		Authenticated: c.Authenticated(),
		Status:        c.Status(),
		Sensors:       sensor.Render(s.now(), c.Last(), c.Authenticated()),
	}
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	c, ok := s.coordinatorFor(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, s.sensorsOf(c))
}
