package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetCurrentExecutionPlan returns the current day's plan joined with the
// campaign's live queue depths.
func (h *Handlers) GetCurrentExecutionPlan(w http.ResponseWriter, r *http.Request) {
	ep, err := h.service.CurrentExecutionPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ep)
}

// GetTodaysPlan returns the stored plan for the campaign's current day.
func (h *Handlers) GetTodaysPlan(w http.ResponseWriter, r *http.Request) {
	dp, err := h.service.TodaysPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dp)
}

// GetCampaignPlan returns the full plan summary across all planned days.
func (h *Handlers) GetCampaignPlan(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.CampaignPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// RegeneratePlan rebuilds and reschedules the current day from scratch.
func (h *Handlers) RegeneratePlan(w http.ResponseWriter, r *http.Request) {
	dp, err := h.service.RegeneratePlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dp)
}

type simulatePlanRequest struct {
	Day                 int   `json:"day"`
	AvailableRecipients int   `json:"available_recipients"`
	Seed                int64 `json:"seed"`
}

// SimulateDailyPlan builds a throwaway plan from the campaign's
// configuration without persisting or scheduling anything.
func (h *Handlers) SimulateDailyPlan(w http.ResponseWriter, r *http.Request) {
	req := simulatePlanRequest{Day: 1}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dp, err := h.service.SimulateDailyPlan(r.Context(), chi.URLParam(r, "id"), req.Day, req.AvailableRecipients, req.Seed)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dp)
}

// TransitionDay forces the day transition for one campaign, the same
// operation the midnight scheduler runs.
func (h *Handlers) TransitionDay(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.TransitionDay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
