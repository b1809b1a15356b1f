package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailwarm/internal/domain"
)

// AddSenderEmail adds a sender identity to a non-running campaign.
func (h *Handlers) AddSenderEmail(w http.ResponseWriter, r *http.Request) {
	var sender domain.SenderEmail
	if err := decodeBody(r, &sender); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.service.AddSenderEmail(r.Context(), chi.URLParam(r, "id"), sender)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// UpdateSenderEmail replaces one sender identity, matched by address.
func (h *Handlers) UpdateSenderEmail(w http.ResponseWriter, r *http.Request) {
	var sender domain.SenderEmail
	if err := decodeBody(r, &sender); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.service.UpdateSenderEmail(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "email"), sender)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// RemoveSenderEmail removes one sender identity, matched by address.
func (h *Handlers) RemoveSenderEmail(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.RemoveSenderEmail(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "email"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
