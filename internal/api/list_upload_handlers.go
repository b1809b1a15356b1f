package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/mailwarm/internal/recipients"
)

// maxListUploadBytes bounds custom list uploads to 50 MiB.
const maxListUploadBytes = 50 << 20

// UploadRecipientList accepts a recipient CSV as multipart field "file",
// stores it under the custom list prefix and returns the list id a
// campaign configuration references via custom_email_list_id. The upload
// is validated by parsing it back; a file without usable addresses is
// removed again.
func (h *Handlers) UploadRecipientList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "uploads not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxListUploadBytes)
	if err := r.ParseMultipartForm(maxListUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "expected multipart upload of at most 50 MiB")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	listID := uuid.New().String()
	key := recipients.CustomListKey(h.listPrefix, listID)
	if err := h.store.Put(r.Context(), key, "text/csv", file); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	emails, err := recipients.LoadEmailList(r.Context(), h.store, key)
	if err != nil {
		_ = h.store.Delete(r.Context(), key)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(emails) == 0 {
		_ = h.store.Delete(r.Context(), key)
		respondError(w, http.StatusBadRequest, "no valid recipient addresses in file")
		return
	}

	log.Printf("[API] Uploaded custom list %s (%s, %d recipients)", listID, header.Filename, len(emails))
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"list_id":    listID,
		"key":        key,
		"recipients": len(emails),
		"filename":   header.Filename,
	})
}

// ListRecipientLists returns the object keys of all uploaded custom lists.
func (h *Handlers) ListRecipientLists(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "uploads not configured")
		return
	}
	keys, err := h.store.List(r.Context(), h.listPrefix)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"lists": keys,
		"total": len(keys),
	})
}

// DeleteRecipientList removes one uploaded custom list.
func (h *Handlers) DeleteRecipientList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "uploads not configured")
		return
	}
	key := recipients.CustomListKey(h.listPrefix, chi.URLParam(r, "listID"))
	if err := h.store.Delete(r.Context(), key); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
