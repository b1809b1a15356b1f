package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GetRealtimeStats aggregates the current day's send rows by status.
func (h *Handlers) GetRealtimeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.RealtimeStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetDailyAnalytics returns every daily rollup for a campaign, or one day
// when ?day= is given.
func (h *Handlers) GetDailyAnalytics(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		respondError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}
	id := chi.URLParam(r, "id")

	if dayParam := r.URL.Query().Get("day"); dayParam != "" {
		day, err := strconv.Atoi(dayParam)
		if err != nil {
			respondError(w, http.StatusBadRequest, "day must be an integer")
			return
		}
		da, err := h.analytics.Get(r.Context(), id, day)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, da)
		return
	}

	days, err := h.analytics.ListByCampaign(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"days":        days,
		"total":       len(days),
	})
}

// GetQueueStats returns the delivery queue's per-state depths.
func (h *Handlers) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "queue not configured")
		return
	}
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
