package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/pkg/logger"
	"github.com/ignite/mailwarm/internal/store"
)

// MessageUpdater is the slice of the message store the applier mutates.
type MessageUpdater interface {
	GetByMessageID(ctx context.Context, messageID string) (*domain.SentEmail, error)
	MarkEvent(ctx context.Context, id string, eventStatus, finalStatus domain.SentEmailStatus, at time.Time) error
	RecordOpen(ctx context.Context, id string, finalStatus domain.SentEmailStatus, at time.Time, userAgent, ipAddress string) error
	RecordClick(ctx context.Context, id string, finalStatus domain.SentEmailStatus, at time.Time, userAgent, ipAddress string) error
}

// CampaignProgress bumps campaign-level counters.
type CampaignProgress interface {
	AddProgress(ctx context.Context, id string, d store.ProgressDelta) error
}

// AnalyticsSink rolls provider events into the daily analytics.
type AnalyticsSink interface {
	RecordDelivered(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain string) error
	AddSummary(ctx context.Context, campaignID string, day int, d store.SummaryDelta) error
}

// EventLog is the append-only audit trail.
type EventLog interface {
	Append(ctx context.Context, e *domain.CampaignEvent) error
}

// Publisher pushes events to live subscribers.
type Publisher interface {
	Publish(e bus.Event)
}

// Applier turns parsed provider events into message, campaign and
// analytics mutations. One Applier serves all campaigns.
type Applier struct {
	campaigns CampaignProgress
	messages  MessageUpdater
	analytics AnalyticsSink
	events    EventLog
	bus       Publisher

	now func() time.Time
}

// NewApplier creates the event applier.
func NewApplier(
	campaigns CampaignProgress,
	messages MessageUpdater,
	analytics AnalyticsSink,
	events EventLog,
	eventBus Publisher,
) *Applier {
	return &Applier{
		campaigns: campaigns,
		messages:  messages,
		analytics: analytics,
		events:    events,
		bus:       eventBus,
		now:       time.Now,
	}
}

// Apply processes one provider event. The audit record is appended first;
// an unknown message id is logged and dropped. Counter and analytics
// failures after the message mutation are logged rather than returned,
// because a redelivery would re-apply the mutation.
func (a *Applier) Apply(ctx context.Context, e *domain.ProviderEvent) error {
	at := e.Timestamp
	if at.IsZero() {
		at = a.now().UTC()
	}

	if err := a.events.Append(ctx, &domain.CampaignEvent{
		CampaignID: e.CampaignID,
		MessageID:  e.MessageID,
		EventType:  string(e.Type),
		Timestamp:  at,
		Recipient:  e.Recipient(),
		UserAgent:  e.UserAgent(),
		IPAddress:  e.IPAddress(),
		Link:       e.Link(),
		Details:    eventDetails(e),
	}); err != nil {
		return err
	}

	mapped, ok := e.Type.MappedStatus()
	if !ok {
		log.Printf("[Ingest] Ignoring unmapped event type %q for campaign %s", e.Type, e.CampaignID)
		return nil
	}

	sent, err := a.messages.GetByMessageID(ctx, e.MessageID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Printf("[Ingest] No message for provider id %s (campaign %s, %s), dropping",
			e.MessageID, e.CampaignID, e.Type)
		return nil
	}
	if err != nil {
		return err
	}

	firstOpen := sent.Tracking.OpenCount == 0
	firstClick := sent.Tracking.ClickCount == 0
	final := domain.AdvanceStatus(sent.Status, mapped)

	switch e.Type {
	case domain.EventOpen:
		err = a.messages.RecordOpen(ctx, sent.ID, final, at, e.UserAgent(), e.IPAddress())
	case domain.EventClick:
		err = a.messages.RecordClick(ctx, sent.ID, final, at, e.UserAgent(), e.IPAddress())
	default:
		err = a.messages.MarkEvent(ctx, sent.ID, mapped, final, at)
	}
	if err != nil {
		return err
	}

	a.bump(ctx, e, sent, firstOpen, firstClick)
	log.Printf("[Ingest] %s for %s (campaign %s day %d, status %s)",
		e.Type, logger.RedactEmail(sent.Recipient.Email), sent.CampaignID, sent.Metadata.Day, final)
	return nil
}

// bump applies the campaign counters, the analytics rollup and the live
// push for one already-persisted event. Unique engagement counters move
// only on a first-time open or click.
func (a *Applier) bump(ctx context.Context, e *domain.ProviderEvent, sent *domain.SentEmail, firstOpen, firstClick bool) {
	campaignID := sent.CampaignID
	day := sent.Metadata.Day

	var progress store.ProgressDelta
	var summary store.SummaryDelta
	busType := ""

	switch e.Type {
	case domain.EventDelivery:
		progress.Delivered = 1
		busType = bus.EventEmailDelivered
		if err := a.analytics.RecordDelivered(ctx, campaignID, day, sent.Metadata.Hour, sent.Sender.Email, sent.Recipient.Domain); err != nil {
			log.Printf("[Ingest] Failed to record delivery analytics for campaign %s: %v", campaignID, err)
		}
	case domain.EventBounce:
		progress.Bounced = 1
		summary.Bounced = 1
		busType = bus.EventEmailBounced
	case domain.EventOpen:
		summary.Opened = 1
		busType = bus.EventEmailOpened
		if firstOpen {
			progress.Opened = 1
			summary.UniqueOpens = 1
		}
	case domain.EventClick:
		summary.Clicked = 1
		busType = bus.EventEmailClicked
		if firstClick {
			progress.Clicked = 1
			summary.UniqueClicks = 1
		}
	case domain.EventComplaint, domain.EventReject, domain.EventRenderingFailure:
		busType = bus.EventEmailFailed
	}

	if progress != (store.ProgressDelta{}) {
		if err := a.campaigns.AddProgress(ctx, campaignID, progress); err != nil {
			log.Printf("[Ingest] Failed to bump progress for campaign %s: %v", campaignID, err)
		}
	}
	if summary != (store.SummaryDelta{}) {
		if err := a.analytics.AddSummary(ctx, campaignID, day, summary); err != nil {
			log.Printf("[Ingest] Failed to roll up analytics for campaign %s day %d: %v", campaignID, day, err)
		}
	}
	if busType != "" {
		a.bus.Publish(bus.Event{
			Type:       busType,
			CampaignID: campaignID,
			Data: map[string]interface{}{
				"recipient":  sent.Recipient.Email,
				"message_id": e.MessageID,
				"day":        day,
				"event":      string(e.Type),
			},
		})
	}
}

// eventDetails serializes the typed detail payload for the audit record.
func eventDetails(e *domain.ProviderEvent) string {
	var detail interface{}
	switch {
	case e.Open != nil:
		detail = e.Open
	case e.Click != nil:
		detail = e.Click
	case e.Bounce != nil:
		detail = e.Bounce
	case e.Delivery != nil:
		detail = e.Delivery
	case e.Failure != nil:
		detail = e.Failure
	default:
		return ""
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return ""
	}
	return string(b)
}
