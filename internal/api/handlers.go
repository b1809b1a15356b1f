package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/orchestrator"
	"github.com/ignite/mailwarm/internal/storage"
)

// CampaignService is the slice of the orchestrator the HTTP layer calls.
// Handlers are a pass-through: no business logic lives here.
type CampaignService interface {
	CreateCampaign(ctx context.Context, c *domain.Campaign) error
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, status string) ([]domain.Campaign, error)
	Start(ctx context.Context, id, startedBy string) (*domain.Campaign, error)
	Pause(ctx context.Context, id string) (*domain.Campaign, error)
	Resume(ctx context.Context, id string) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error
	RealtimeStats(ctx context.Context, id string) (*domain.RealtimeStats, error)
	CurrentExecutionPlan(ctx context.Context, id string) (*orchestrator.ExecutionPlan, error)
	TodaysPlan(ctx context.Context, id string) (*domain.DailyPlan, error)
	CampaignPlan(ctx context.Context, id string) (*domain.PlanSummary, error)
	RegeneratePlan(ctx context.Context, id string) (*domain.DailyPlan, error)
	SimulateDailyPlan(ctx context.Context, id string, day, availableRecipients int, seed int64) (*domain.DailyPlan, error)
	AddSenderEmail(ctx context.Context, id string, sender domain.SenderEmail) (*domain.Campaign, error)
	UpdateSenderEmail(ctx context.Context, id, email string, sender domain.SenderEmail) (*domain.Campaign, error)
	RemoveSenderEmail(ctx context.Context, id, email string) (*domain.Campaign, error)
	TransitionDay(ctx context.Context, id string) (*domain.Campaign, error)
}

// AnalyticsReader serves the per-day rollups.
type AnalyticsReader interface {
	Get(ctx context.Context, campaignID string, day int) (*domain.DailyAnalytics, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.DailyAnalytics, error)
}

// QueueStats exposes the delivery queue's depth counters.
type QueueStats interface {
	Stats(ctx context.Context) (map[string]int64, error)
}

// EventSource is the bus side the SSE stream subscribes to.
type EventSource interface {
	Subscribe(id string) <-chan bus.Event
	Unsubscribe(id string)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	service CampaignService

	analytics   AnalyticsReader
	queue       QueueStats
	events      EventSource
	store       storage.ObjectStore
	listPrefix  string
	webhook     http.HandlerFunc
	corsOrigins []string
}

// NewHandlers creates a new Handlers instance around the campaign service.
// Optional surfaces (analytics, queue stats, SSE, uploads, webhook) are
// wired with the setters below.
func NewHandlers(service CampaignService) *Handlers {
	return &Handlers{service: service}
}

// SetAnalytics wires the daily analytics reader.
func (h *Handlers) SetAnalytics(analytics AnalyticsReader) {
	h.analytics = analytics
}

// SetQueueStats wires the delivery queue depth endpoint.
func (h *Handlers) SetQueueStats(queue QueueStats) {
	h.queue = queue
}

// SetEventSource wires the bus behind /api/events/stream.
func (h *Handlers) SetEventSource(events EventSource) {
	h.events = events
}

// SetObjectStore wires custom list uploads. prefix is the key prefix
// uploaded lists are stored under.
func (h *Handlers) SetObjectStore(store storage.ObjectStore, prefix string) {
	h.store = store
	h.listPrefix = prefix
}

// SetWebhook mounts the provider event webhook handler.
func (h *Handlers) SetWebhook(webhook http.HandlerFunc) {
	h.webhook = webhook
}

// SetCORSOrigins restricts cross-origin access to the given origins.
// Empty means allow all.
func (h *Handlers) SetCORSOrigins(origins []string) {
	h.corsOrigins = origins
}

// HealthCheck reports process liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps the domain error kinds onto HTTP statuses:
// validation → 400, not found → 404, state conflicts → 409, the
// rest → 500.
func respondDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflictingState), errors.Is(err, domain.ErrCampaignNotRunning):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
