package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/plan"
)

// Orchestrator drives the campaign state machine and the planning and
// scheduling pipeline that feeds the delivery queue. Every lifecycle
// transition serializes on a per-campaign mutex; pause and resume never
// touch the global worker pool, they only remove that campaign's jobs.
type Orchestrator struct {
	campaigns CampaignStore
	messages  MessageStore
	queue     DeliveryQueue
	pool      RecipientSource
	generator *plan.Generator
	bus       Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// New creates the orchestrator.
func New(
	campaigns CampaignStore,
	messages MessageStore,
	q DeliveryQueue,
	pool RecipientSource,
	generator *plan.Generator,
	eventBus Publisher,
) *Orchestrator {
	return &Orchestrator{
		campaigns: campaigns,
		messages:  messages,
		queue:     q,
		pool:      pool,
		generator: generator,
		bus:       eventBus,
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// campaignLock returns the mutex serializing one campaign's transitions.
func (o *Orchestrator) campaignLock(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	return l
}

// CreateCampaign validates and persists a new draft campaign.
func (o *Orchestrator) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	if c.Name == "" {
		return &domain.ValidationError{Field: "name", Reason: "is required"}
	}
	if len(c.TemplateNames) == 0 {
		return &domain.ValidationError{Field: "template_names", Reason: "at least one template is required"}
	}
	if err := c.Configuration.Validate(); err != nil {
		return err
	}
	if err := o.campaigns.Create(ctx, c); err != nil {
		return err
	}
	log.Printf("[Orchestrator] Created campaign %s (%s)", c.ID, c.Name)
	return nil
}

// Get loads one campaign.
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return o.campaigns.Get(ctx, id)
}

// List returns campaigns, optionally filtered by status.
func (o *Orchestrator) List(ctx context.Context, status string) ([]domain.Campaign, error) {
	return o.campaigns.List(ctx, status)
}

// Start transitions a campaign to running and kicks off planning and
// scheduling for day 1 in the background. Legal from draft, paused and
// completed; a start always begins a fresh delivery cycle.
func (o *Orchestrator) Start(ctx context.Context, id, startedBy string) (*domain.Campaign, error) {
	l := o.campaignLock(id)
	l.Lock()
	defer l.Unlock()

	utcDay := domain.UTCDay(o.now())
	if err := o.campaigns.MarkRunning(ctx, id, startedBy, utcDay); err != nil {
		return nil, err
	}
	o.purgeJobs(ctx, id, "start")

	log.Printf("[Orchestrator] Campaign %s started by %s (day 1, utc_day=%s)", id, startedBy, utcDay)
	o.bus.Publish(bus.Event{Type: bus.EventCampaignStarted, CampaignID: id})

	go o.planAndSchedule(id, 1, false)

	return o.campaigns.Get(ctx, id)
}

// Pause transitions a running campaign to paused and removes its queued,
// delayed and active jobs. Jobs already claimed by a worker finish under
// the stale-job guard.
func (o *Orchestrator) Pause(ctx context.Context, id string) (*domain.Campaign, error) {
	l := o.campaignLock(id)
	l.Lock()
	defer l.Unlock()

	if err := o.campaigns.MarkPaused(ctx, id); err != nil {
		return nil, err
	}
	o.purgeJobs(ctx, id, "pause")

	log.Printf("[Orchestrator] Campaign %s paused", id)
	o.bus.Publish(bus.Event{Type: bus.EventCampaignPaused, CampaignID: id})

	return o.campaigns.Get(ctx, id)
}

// Resume transitions a paused campaign back to running. The stored plan
// for the current day is reused when present, otherwise a fresh one is
// generated; either way scheduling re-runs for the rest of the day.
func (o *Orchestrator) Resume(ctx context.Context, id string) (*domain.Campaign, error) {
	l := o.campaignLock(id)
	l.Lock()
	defer l.Unlock()

	if err := o.campaigns.MarkResumed(ctx, id); err != nil {
		return nil, err
	}
	o.purgeJobs(ctx, id, "resume")

	c, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Printf("[Orchestrator] Campaign %s resumed (day %d)", id, c.Progress.CurrentDay)
	o.bus.Publish(bus.Event{Type: bus.EventCampaignResumed, CampaignID: id})

	go o.planAndSchedule(id, c.Progress.CurrentDay, true)

	return c, nil
}

// Delete removes a campaign and its residual jobs. Rejected while running.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	l := o.campaignLock(id)
	l.Lock()
	defer l.Unlock()

	if err := o.campaigns.Delete(ctx, id); err != nil {
		return err
	}
	o.purgeJobs(ctx, id, "delete")

	o.mu.Lock()
	delete(o.locks, id)
	o.mu.Unlock()

	log.Printf("[Orchestrator] Campaign %s deleted", id)
	return nil
}

// RealtimeStats aggregates the current day's send rows for a campaign.
func (o *Orchestrator) RealtimeStats(ctx context.Context, id string) (*domain.RealtimeStats, error) {
	c, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.messages.RealtimeStats(ctx, id, c.Progress.CurrentDay)
}

// planAndSchedule runs the planning pipeline detached from the API
// request that triggered it. A failure here is unrecoverable for the
// campaign: it transitions to failed and its jobs are removed.
func (o *Orchestrator) planAndSchedule(id string, day int, reusePlan bool) {
	ctx := context.Background()
	if err := o.runDay(ctx, id, day, reusePlan); err != nil {
		log.Printf("[Orchestrator] Campaign %s day %d pipeline failed: %v", id, day, err)
		o.fail(ctx, id, err.Error())
	}
}

// fail moves a campaign to the failed state and cleans up its jobs.
func (o *Orchestrator) fail(ctx context.Context, id, errorMessage string) {
	if err := o.campaigns.MarkFailed(ctx, id, errorMessage); err != nil {
		log.Printf("[Orchestrator] Failed to mark campaign %s failed: %v", id, err)
		return
	}
	o.purgeJobs(ctx, id, "failure")
	o.bus.Publish(bus.Event{
		Type:       bus.EventCampaignFailed,
		CampaignID: id,
		Data:       map[string]interface{}{"error": errorMessage},
	})
}

// purgeJobs removes a campaign's queued, delayed and active jobs. Removal
// failures are logged, not fatal: leftover jobs are caught by the
// running-status check in the job processor.
func (o *Orchestrator) purgeJobs(ctx context.Context, id, reason string) {
	removed, err := o.queue.RemoveByCampaign(ctx, id)
	if err != nil {
		log.Printf("[Orchestrator] Failed to remove jobs for campaign %s on %s: %v", id, reason, err)
		return
	}
	if removed > 0 {
		log.Printf("[Orchestrator] Removed %d residual jobs for campaign %s on %s", removed, id, reason)
	}
}
