package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
)

// maxHistoryRange bounds a single price history request.
const maxHistoryRange = 7 * 24 * time.Hour

type historyResponse struct {
	EntryID   string            `json:"entryID"`
	Commodity types.Commodity   `json:"commodity"`
	Unit      string            `json:"unit"`
	Prices    types.PriceSeries `json:"prices"`
}

func (s *Server) handleHistoryPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := s.coordinatorFor(w, r)
	if !ok {
		return
	}
	commodity := types.Commodity(r.URL.Query().Get("commodity"))
	if commodity == "" {
		commodity = types.CommodityElectricity
	}
	if !commodity.Valid() {
		writeJSONError(w, "invalid commodity", http.StatusBadRequest)
		return
	}
	start, end, err := parseTimeRange(r, s.now())
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	entryID := c.Entry().ID
	prices, err := s.storage.GetPriceHistory(ctx, entryID, commodity, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get prices", slog.String("entryID", entryID), slog.Any("error", err))
		writeJSONError(w, "failed to get prices", http.StatusInternalServerError)
		return
	}
	if prices == nil {
		prices = types.PriceSeries{}
	}

	// Set Cache-Control headers
	// If the range ends before today (midnight today), cache for 24 hours.
	// Otherwise, cache for 1 minute.
	today := s.now().UTC().Truncate(24 * time.Hour)
	if end.Before(today) {
		w.Header().Set("Cache-Control", "private, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, max-age=60")
	}

	writeJSON(w, http.StatusOK, historyResponse{
		EntryID:   entryID,
		Commodity: commodity,
		Unit:      commodity.Unit(),
		Prices:    prices,
	})
}

func parseTimeRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" && endStr == "" {
		// Default to the last 24 hours and the next day of known prices
		return now.Add(-24 * time.Hour), now.Add(24 * time.Hour), nil
	}
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start and end must both be set")
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > maxHistoryRange {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed %s", maxHistoryRange)
	}

	return start, end, nil
}
