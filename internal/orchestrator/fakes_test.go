package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/queue"
	"github.com/ignite/mailwarm/internal/recipients"
	"github.com/ignite/mailwarm/internal/store"
)

// fakeCampaigns is an in-memory CampaignStore with the same status guards
// as the Postgres store.
type fakeCampaigns struct {
	mu   sync.Mutex
	byID map[string]*domain.Campaign

	failing      map[string]error
	setPlanCalls int
	setDayCalls  int
}

func newFakeCampaigns(cs ...*domain.Campaign) *fakeCampaigns {
	f := &fakeCampaigns{byID: map[string]*domain.Campaign{}, failing: map[string]error{}}
	for _, c := range cs {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCampaigns) get(id string) *domain.Campaign {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (f *fakeCampaigns) planWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setPlanCalls
}

func (f *fakeCampaigns) dayWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setDayCalls
}

func (f *fakeCampaigns) conflict(id string) error {
	c, ok := f.byID[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	return fmt.Errorf("%w: campaign %s is %s", domain.ErrConflictingState, id, c.Status)
}

func (f *fakeCampaigns) Create(ctx context.Context, c *domain.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["Create"]; err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("camp-%d", len(f.byID)+1)
	}
	if c.Status == "" {
		c.Status = domain.CampaignDraft
	}
	if c.Progress.CurrentDay == 0 {
		c.Progress.CurrentDay = 1
	}
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCampaigns) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["Get"]; err != nil {
		return nil, err
	}
	c, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) List(ctx context.Context, status string) ([]domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Campaign
	for _, c := range f.byID {
		if status == "" || string(c.Status) == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCampaigns) Update(ctx context.Context, id string, u store.CampaignUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status == domain.CampaignRunning {
		return f.conflict(id)
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.TemplateNames != nil {
		c.TemplateNames = u.TemplateNames
	}
	if u.Configuration != nil {
		c.Configuration = *u.Configuration
	}
	return nil
}

func (f *fakeCampaigns) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status == domain.CampaignRunning {
		return f.conflict(id)
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeCampaigns) MarkRunning(ctx context.Context, id, startedBy, utcDay string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	switch c.Status {
	case domain.CampaignDraft, domain.CampaignPaused, domain.CampaignCompleted:
	default:
		return f.conflict(id)
	}
	now := time.Now().UTC()
	c.Status = domain.CampaignRunning
	c.StartedAt = &now
	c.StartedBy = startedBy
	c.Progress.StartedOnUTCDay = utcDay
	c.Progress.CurrentDay = 1
	c.Plan.DailyPlans = nil
	c.Plan.TotalRecipients = 0
	c.PausedAt = nil
	c.CompletedAt = nil
	c.ErrorMessage = ""
	return nil
}

func (f *fakeCampaigns) MarkPaused(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status != domain.CampaignRunning {
		return f.conflict(id)
	}
	now := time.Now().UTC()
	c.Status = domain.CampaignPaused
	c.PausedAt = &now
	return nil
}

func (f *fakeCampaigns) MarkResumed(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status != domain.CampaignPaused {
		return f.conflict(id)
	}
	c.Status = domain.CampaignRunning
	c.PausedAt = nil
	return nil
}

func (f *fakeCampaigns) MarkCompleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status != domain.CampaignRunning {
		return f.conflict(id)
	}
	now := time.Now().UTC()
	c.Status = domain.CampaignCompleted
	c.CompletedAt = &now
	return nil
}

func (f *fakeCampaigns) MarkFailed(ctx context.Context, id, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || (c.Status != domain.CampaignRunning && c.Status != domain.CampaignPaused) {
		return f.conflict(id)
	}
	now := time.Now().UTC()
	c.Status = domain.CampaignFailed
	c.FailedAt = &now
	c.ErrorMessage = errorMessage
	return nil
}

func (f *fakeCampaigns) AddProgress(ctx context.Context, id string, d store.ProgressDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["AddProgress"]; err != nil {
		return err
	}
	c, ok := f.byID[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.Progress.TotalSent += d.Sent
	c.Progress.TotalDelivered += d.Delivered
	c.Progress.TotalFailed += d.Failed
	c.Progress.TotalBounced += d.Bounced
	c.Progress.TotalOpened += d.Opened
	c.Progress.TotalClicked += d.Clicked
	c.Progress.TotalUnsubscribed += d.Unsubscribed
	if d.TouchLastSent {
		now := time.Now().UTC()
		c.Progress.LastSentAt = &now
	}
	return nil
}

func (f *fakeCampaigns) SetWarmupIndex(ctx context.Context, id string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	c.Configuration.WarmupMode.CurrentIndex = index
	return nil
}

func (f *fakeCampaigns) SetDailyPlan(ctx context.Context, id string, plan *domain.DailyPlan, totalRecipients int, stats domain.EmailListStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing["SetDailyPlan"]; err != nil {
		return err
	}
	c, ok := f.byID[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	f.setPlanCalls++
	var kept []domain.DailyPlan
	for _, p := range c.Plan.DailyPlans {
		if p.Day != plan.Day {
			kept = append(kept, p)
		}
	}
	c.Plan.DailyPlans = append(kept, *plan)
	c.Plan.TotalRecipients = totalRecipients
	c.Plan.EmailListStats = stats
	return nil
}

func (f *fakeCampaigns) SetDayTransition(ctx context.Context, id string, newDay int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status != domain.CampaignRunning {
		return f.conflict(id)
	}
	f.setDayCalls++
	now := time.Now().UTC()
	c.Progress.CurrentDay = newDay
	c.Progress.LastDayTransitionAt = &now
	return nil
}

func (f *fakeCampaigns) AddSender(ctx context.Context, id string, sender domain.SenderEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status == domain.CampaignRunning {
		return f.conflict(id)
	}
	c.Configuration.SenderEmails = append(c.Configuration.SenderEmails, sender)
	return nil
}

func (f *fakeCampaigns) UpdateSender(ctx context.Context, id, email string, sender domain.SenderEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status == domain.CampaignRunning {
		return f.conflict(id)
	}
	for i := range c.Configuration.SenderEmails {
		if c.Configuration.SenderEmails[i].Email == email {
			c.Configuration.SenderEmails[i] = sender
		}
	}
	return nil
}

func (f *fakeCampaigns) RemoveSender(ctx context.Context, id, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status == domain.CampaignRunning {
		return f.conflict(id)
	}
	kept := make([]domain.SenderEmail, 0, len(c.Configuration.SenderEmails))
	for _, s := range c.Configuration.SenderEmails {
		if s.Email != email {
			kept = append(kept, s)
		}
	}
	c.Configuration.SenderEmails = kept
	return nil
}

// fakeMessages is an in-memory MessageStore keyed like the unique index.
type fakeMessages struct {
	mu   sync.Mutex
	rows map[string]*domain.SentEmail
	byID map[string]*domain.SentEmail
	seq  int

	stats *domain.RealtimeStats
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		rows: map[string]*domain.SentEmail{},
		byID: map[string]*domain.SentEmail{},
	}
}

func rowKey(campaignID, recipient string, day int) string {
	return fmt.Sprintf("%s|%s|%d", campaignID, recipient, day)
}

func (f *fakeMessages) seed(s *domain.SentEmail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if s.ID == "" {
		s.ID = fmt.Sprintf("msg-%d", f.seq)
	}
	f.rows[rowKey(s.CampaignID, s.Recipient.Email, s.Metadata.Day)] = s
	f.byID[s.ID] = s
}

func (f *fakeMessages) UpsertQueued(ctx context.Context, s *domain.SentEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rowKey(s.CampaignID, s.Recipient.Email, s.Metadata.Day)
	if existing, ok := f.rows[key]; ok {
		if existing.WasAttempted() {
			return domain.ErrDuplicateEmail
		}
		existing.Status = domain.EmailQueued
		existing.Metadata.AttemptNumber = s.Metadata.AttemptNumber
		existing.Sender = s.Sender
		existing.TemplateName = s.TemplateName
		s.ID = existing.ID
		s.Status = domain.EmailQueued
		return nil
	}
	f.seq++
	s.ID = fmt.Sprintf("msg-%d", f.seq)
	s.Status = domain.EmailQueued
	cp := *s
	f.rows[key] = &cp
	f.byID[s.ID] = &cp
	return nil
}

func (f *fakeMessages) GetByKey(ctx context.Context, campaignID, recipientEmail string, day int) (*domain.SentEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[rowKey(campaignID, recipientEmail, day)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeMessages) MarkSent(ctx context.Context, id, messageID string, processingMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	s.Status = domain.EmailSent
	s.MessageID = messageID
	s.Metadata.ProcessingTimeMs = processingMs
	s.Delivery.SentAt = &now
	return nil
}

func (f *fakeMessages) MarkFailed(ctx context.Context, id, errorDetails string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	s.Status = domain.EmailFailed
	s.ErrorDetails = errorDetails
	s.Delivery.FailedAt = &now
	return nil
}

func (f *fakeMessages) RealtimeStats(ctx context.Context, campaignID string, day int) (*domain.RealtimeStats, error) {
	if f.stats != nil {
		return f.stats, nil
	}
	return &domain.RealtimeStats{CampaignID: campaignID, Day: day, ByStatus: map[string]int{}}, nil
}

func (f *fakeMessages) row(campaignID, recipient string, day int) *domain.SentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[rowKey(campaignID, recipient, day)]
}

// fakeAnalytics records the rollup calls it receives.
type fakeAnalytics struct {
	mu     sync.Mutex
	sent   []string
	failed []string
}

func (f *fakeAnalytics) RecordSent(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, fmt.Sprintf("%s/%d/%d/%s/%s", campaignID, day, hour, sender, recipientDomain))
	return nil
}

func (f *fakeAnalytics) RecordFailed(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, fmt.Sprintf("%s/%d/%d/%s/%s", campaignID, day, hour, sender, recipientDomain))
	return nil
}

func (f *fakeAnalytics) recordedSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeAnalytics) recordedFailed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.failed))
	copy(out, f.failed)
	return out
}

// fakeQueue records enqueued jobs and removal calls.
type fakeQueue struct {
	mu          sync.Mutex
	jobs        []*queue.Job
	removeCalls []string
	removed     map[string]int
	listed      map[queue.State][]*queue.Job
	enqueueErr  error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{removed: map[string]int{}, listed: map[queue.State][]*queue.Job{}}
}

func (f *fakeQueue) EnqueueBatch(ctx context.Context, jobs []*queue.Job, priority int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return 0, f.enqueueErr
	}
	f.jobs = append(f.jobs, jobs...)
	return len(jobs), nil
}

func (f *fakeQueue) RemoveByCampaign(ctx context.Context, campaignID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, campaignID)
	return f.removed[campaignID], nil
}

func (f *fakeQueue) ListByCampaign(ctx context.Context, campaignID string, state queue.State) ([]*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*queue.Job
	for _, j := range f.listed[state] {
		if j.CampaignID == campaignID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeQueue) enqueued() []*queue.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*queue.Job, len(f.jobs))
	copy(out, f.jobs)
	return out
}

func (f *fakeQueue) removals() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.removeCalls))
	copy(out, f.removeCalls)
	return out
}

// fakePool returns a canned eligibility result.
type fakePool struct {
	mu     sync.Mutex
	result recipients.Result
	err    error
	calls  int
}

func (f *fakePool) Eligible(ctx context.Context, c *domain.Campaign) (*recipients.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result.WarmupReset {
		c.Configuration.WarmupMode.CurrentIndex = 0
	}
	r := f.result
	return &r, nil
}

// fakeLimiter counts Wait calls.
type fakeLimiter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLimiter) Wait(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

// fakePublisher records events.
type fakePublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (f *fakePublisher) Publish(e bus.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakePublisher) byType(eventType string) []bus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bus.Event
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
