package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailwarm/internal/domain"
)

type createCampaignRequest struct {
	Name          string               `json:"name"`
	TemplateNames []string             `json:"template_names"`
	CreatedBy     string               `json:"created_by"`
	Configuration domain.Configuration `json:"configuration"`
}

// CreateCampaign creates a draft campaign.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := &domain.Campaign{
		Name:          req.Name,
		TemplateNames: req.TemplateNames,
		CreatedBy:     req.CreatedBy,
		Configuration: req.Configuration,
	}
	if err := h.service.CreateCampaign(r.Context(), c); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// GetCampaign returns one campaign.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// ListCampaigns returns all campaigns, optionally filtered by ?status=.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.service.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"total":     len(campaigns),
	})
}

// StartCampaign starts delivery for a campaign.
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartedBy string `json:"started_by"`
	}
	// Body is optional; a bare POST starts anonymously.
	_ = decodeBody(r, &req)

	c, err := h.service.Start(r.Context(), chi.URLParam(r, "id"), req.StartedBy)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// PauseCampaign pauses a running campaign and removes its queued work.
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// ResumeCampaign resumes a paused campaign on its stored plan.
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DeleteCampaign deletes a non-running campaign.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
