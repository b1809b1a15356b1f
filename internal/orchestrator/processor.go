package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/mail"
	"github.com/ignite/mailwarm/internal/pkg/logger"
	"github.com/ignite/mailwarm/internal/queue"
	"github.com/ignite/mailwarm/internal/store"
)

// maxJobAge is the staleness cutoff: a job picked up this long after its
// scheduled slot is dropped instead of sent.
const maxJobAge = 2 * time.Hour

// Processor is the queue handler that turns scheduled jobs into provider
// sends. It holds no lifecycle state; the worker pool drives it, and a
// returned error schedules a retry under the queue's backoff policy.
type Processor struct {
	campaigns CampaignStore
	messages  MessageStore
	analytics Analytics
	transport mail.Transport
	limiter   RateLimiter
	bus       Publisher

	now func() time.Time
}

// NewProcessor creates the job processor.
func NewProcessor(
	campaigns CampaignStore,
	messages MessageStore,
	analytics Analytics,
	transport mail.Transport,
	limiter RateLimiter,
	eventBus Publisher,
) *Processor {
	return &Processor{
		campaigns: campaigns,
		messages:  messages,
		analytics: analytics,
		transport: transport,
		limiter:   limiter,
		bus:       eventBus,
		now:       time.Now,
	}
}

// ProcessJob sends one scheduled email. Skips are terminal and complete
// the job: a recipient already attempted for this day, a campaign that is
// no longer running, and a job past its staleness cutoff all return nil.
func (p *Processor) ProcessJob(ctx context.Context, job *queue.Job) error {
	started := p.now()

	existing, err := p.messages.GetByKey(ctx, job.CampaignID, job.Recipient, job.Day)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if existing != nil && existing.WasAttempted() {
		log.Printf("[Processor] Skipping %s day %d for campaign %s: already %s",
			logger.RedactEmail(job.Recipient), job.Day, job.CampaignID, existing.Status)
		return nil
	}

	c, err := p.campaigns.Get(ctx, job.CampaignID)
	if errors.Is(err, domain.ErrCampaignNotFound) {
		log.Printf("[Processor] Dropping job %s: campaign %s no longer exists", job.ID, job.CampaignID)
		return nil
	}
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignRunning {
		log.Printf("[Processor] Skipping job %s (campaign_not_running): campaign %s is %s",
			job.ID, job.CampaignID, c.Status)
		return nil
	}

	now := p.now().UTC()
	if domain.UTCDay(job.ScheduledFor) != domain.UTCDay(now) || now.Sub(job.ScheduledFor) > maxJobAge {
		log.Printf("[Processor] Skipping job %s (stale_job): scheduled for %s, now %s",
			job.ID, job.ScheduledFor.Format(time.RFC3339), now.Format(time.RFC3339))
		return nil
	}

	sent := &domain.SentEmail{
		CampaignID:   job.CampaignID,
		Recipient:    domain.NewEmailAddress(job.Recipient),
		Sender:       domain.NewEmailAddress(job.Sender),
		TemplateName: job.TemplateName,
		Metadata: domain.SendMetadata{
			Day:           job.Day,
			Hour:          job.Hour,
			Minute:        job.Minute,
			Second:        job.Second,
			AttemptNumber: job.AttemptsMade + 1,
		},
	}
	if err := p.messages.UpsertQueued(ctx, sent); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			log.Printf("[Processor] Skipping %s day %d for campaign %s: duplicate send",
				logger.RedactEmail(job.Recipient), job.Day, job.CampaignID)
			return nil
		}
		return err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	messageID, sendErr := p.transport.Send(ctx, &mail.Message{
		From:         job.Sender,
		To:           job.Recipient,
		TemplateName: job.TemplateName,
		TemplateData: job.TemplateData,
		CampaignID:   job.CampaignID,
	})
	if sendErr != nil {
		p.recordFailure(ctx, job, sent, sendErr)
		return sendErr
	}

	p.recordSuccess(ctx, job, sent, messageID, p.now().Sub(started))
	return nil
}

// recordSuccess persists the accepted send and fans out the bookkeeping.
// The message left the building, so bookkeeping failures are logged rather
// than returned: a retry would send a duplicate.
func (p *Processor) recordSuccess(ctx context.Context, job *queue.Job, sent *domain.SentEmail, messageID string, took time.Duration) {
	if err := p.messages.MarkSent(ctx, sent.ID, messageID, took.Milliseconds()); err != nil {
		log.Printf("[Processor] Failed to mark %s sent: %v", sent.ID, err)
	}
	if err := p.campaigns.AddProgress(ctx, job.CampaignID, store.ProgressDelta{Sent: 1, TouchLastSent: true}); err != nil {
		log.Printf("[Processor] Failed to bump sent progress for campaign %s: %v", job.CampaignID, err)
	}
	if err := p.analytics.RecordSent(ctx, job.CampaignID, job.Day, job.Hour, job.Sender, sent.Recipient.Domain); err != nil {
		log.Printf("[Processor] Failed to record sent analytics for campaign %s: %v", job.CampaignID, err)
	}

	p.bus.Publish(bus.Event{
		Type:       bus.EventEmailSent,
		CampaignID: job.CampaignID,
		Data: map[string]interface{}{
			"recipient":  job.Recipient,
			"message_id": messageID,
			"day":        job.Day,
		},
	})
	log.Printf("[Processor] Sent to %s for campaign %s day %d (attempt %d, %dms)",
		logger.RedactEmail(job.Recipient), job.CampaignID, job.Day,
		job.AttemptsMade+1, took.Milliseconds())
}

// recordFailure persists a failed attempt. The caller rethrows the send
// error so the queue applies its backoff policy.
func (p *Processor) recordFailure(ctx context.Context, job *queue.Job, sent *domain.SentEmail, sendErr error) {
	if err := p.messages.MarkFailed(ctx, sent.ID, sendErr.Error()); err != nil {
		log.Printf("[Processor] Failed to mark %s failed: %v", sent.ID, err)
	}
	if err := p.campaigns.AddProgress(ctx, job.CampaignID, store.ProgressDelta{Failed: 1}); err != nil {
		log.Printf("[Processor] Failed to bump failed progress for campaign %s: %v", job.CampaignID, err)
	}
	if err := p.analytics.RecordFailed(ctx, job.CampaignID, job.Day, job.Hour, job.Sender, sent.Recipient.Domain); err != nil {
		log.Printf("[Processor] Failed to record failed analytics for campaign %s: %v", job.CampaignID, err)
	}

	p.bus.Publish(bus.Event{
		Type:       bus.EventEmailFailed,
		CampaignID: job.CampaignID,
		Data: map[string]interface{}{
			"recipient": job.Recipient,
			"day":       job.Day,
			"error":     sendErr.Error(),
		},
	})
	log.Printf("[Processor] Send to %s failed for campaign %s day %d (attempt %d): %v",
		logger.RedactEmail(job.Recipient), job.CampaignID, job.Day,
		job.AttemptsMade+1, sendErr)
}
