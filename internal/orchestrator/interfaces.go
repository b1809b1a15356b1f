package orchestrator

import (
	"context"

	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/queue"
	"github.com/ignite/mailwarm/internal/recipients"
	"github.com/ignite/mailwarm/internal/store"
)

// CampaignStore persists campaigns and their lifecycle transitions. The
// Orchestrator uses this instead of *sql.DB for all campaign persistence,
// making the state machine testable with in-memory implementations.
type CampaignStore interface {
	Create(ctx context.Context, c *domain.Campaign) error
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, status string) ([]domain.Campaign, error)
	Update(ctx context.Context, id string, u store.CampaignUpdate) error
	Delete(ctx context.Context, id string) error
	MarkRunning(ctx context.Context, id, startedBy, utcDay string) error
	MarkPaused(ctx context.Context, id string) error
	MarkResumed(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	AddProgress(ctx context.Context, id string, d store.ProgressDelta) error
	SetWarmupIndex(ctx context.Context, id string, index int) error
	SetDailyPlan(ctx context.Context, id string, plan *domain.DailyPlan, totalRecipients int, stats domain.EmailListStats) error
	SetDayTransition(ctx context.Context, id string, newDay int) error
	AddSender(ctx context.Context, id string, sender domain.SenderEmail) error
	UpdateSender(ctx context.Context, id, email string, sender domain.SenderEmail) error
	RemoveSender(ctx context.Context, id, email string) error
}

// MessageStore persists per-send rows keyed by (campaign, recipient, day).
type MessageStore interface {
	UpsertQueued(ctx context.Context, s *domain.SentEmail) error
	GetByKey(ctx context.Context, campaignID, recipientEmail string, day int) (*domain.SentEmail, error)
	MarkSent(ctx context.Context, id, messageID string, processingMs int64) error
	MarkFailed(ctx context.Context, id, errorDetails string) error
	RealtimeStats(ctx context.Context, campaignID string, day int) (*domain.RealtimeStats, error)
}

// Analytics records send outcomes into the per-day rollups.
type Analytics interface {
	RecordSent(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain string) error
	RecordFailed(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain string) error
}

// DeliveryQueue is the durable job queue the schedule pipeline feeds and
// the lifecycle transitions drain.
type DeliveryQueue interface {
	EnqueueBatch(ctx context.Context, jobs []*queue.Job, priority int) (int, error)
	RemoveByCampaign(ctx context.Context, campaignID string) (int, error)
	ListByCampaign(ctx context.Context, campaignID string, state queue.State) ([]*queue.Job, error)
}

// RecipientSource resolves the eligible recipient list for a campaign.
type RecipientSource interface {
	Eligible(ctx context.Context, c *domain.Campaign) (*recipients.Result, error)
}

// RateLimiter gates provider calls to the configured send rate.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Publisher pushes realtime events to stream subscribers. Publishing never
// blocks the caller.
type Publisher interface {
	Publish(e bus.Event)
}
