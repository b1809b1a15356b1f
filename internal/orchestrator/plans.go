package orchestrator

import (
	"context"
	"fmt"
	"math"

	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/plan"
	"github.com/ignite/mailwarm/internal/queue"
	"github.com/ignite/mailwarm/internal/randx"
)

// ExecutionPlan is the live view of one campaign day: the stored plan
// joined with the campaign's current job depths in the delivery queue.
type ExecutionPlan struct {
	CampaignID string                `json:"campaign_id"`
	Day        int                   `json:"day"`
	Status     domain.CampaignStatus `json:"status"`
	Plan       *domain.DailyPlan     `json:"plan,omitempty"`
	Jobs       ExecutionJobs         `json:"jobs"`
}

// ExecutionJobs counts one campaign's jobs by queue state.
type ExecutionJobs struct {
	Waiting int `json:"waiting"`
	Delayed int `json:"delayed"`
	Active  int `json:"active"`
}

// CurrentExecutionPlan returns the current day's plan together with the
// campaign's live queue depths. The plan is nil when the day has not been
// planned yet.
func (o *Orchestrator) CurrentExecutionPlan(ctx context.Context, id string) (*ExecutionPlan, error) {
	c, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ep := &ExecutionPlan{
		CampaignID: id,
		Day:        c.Progress.CurrentDay,
		Status:     c.Status,
		Plan:       c.Plan.PlanForDay(c.Progress.CurrentDay),
	}

	count := func(st queue.State) (int, error) {
		jobs, err := o.queue.ListByCampaign(ctx, id, st)
		if err != nil {
			return 0, fmt.Errorf("list %s jobs: %w", st, err)
		}
		return len(jobs), nil
	}
	if ep.Jobs.Waiting, err = count(queue.StateWaiting); err != nil {
		return nil, err
	}
	if ep.Jobs.Delayed, err = count(queue.StateDelayed); err != nil {
		return nil, err
	}
	if ep.Jobs.Active, err = count(queue.StateActive); err != nil {
		return nil, err
	}
	return ep, nil
}

// TodaysPlan returns the stored plan for the campaign's current day.
func (o *Orchestrator) TodaysPlan(ctx context.Context, id string) (*domain.DailyPlan, error) {
	c, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dp := c.Plan.PlanForDay(c.Progress.CurrentDay)
	if dp == nil {
		return nil, fmt.Errorf("no plan for day %d: %w", c.Progress.CurrentDay, domain.ErrNotFound)
	}
	return dp, nil
}

// CampaignPlan returns the full plan summary: every stored day plan plus
// the eligibility stats of the latest planning run.
func (o *Orchestrator) CampaignPlan(ctx context.Context, id string) (*domain.PlanSummary, error) {
	c, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c.Plan, nil
}

// RegeneratePlan rebuilds and reschedules the current day from scratch.
// Legal only while running; existing jobs for the campaign are removed
// first. A pipeline failure here fails the campaign, same as the
// asynchronous start path.
func (o *Orchestrator) RegeneratePlan(ctx context.Context, id string) (*domain.DailyPlan, error) {
	l := o.campaignLock(id)
	l.Lock()
	defer l.Unlock()

	c, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignRunning {
		return nil, domain.ErrCampaignNotRunning
	}

	o.purgeJobs(ctx, id, "regenerate")
	if err := o.runDay(ctx, id, c.Progress.CurrentDay, false); err != nil {
		o.fail(ctx, id, err.Error())
		return nil, err
	}

	c, err = o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dp := c.Plan.PlanForDay(c.Progress.CurrentDay)
	if dp == nil {
		return nil, domain.ErrNotFound
	}
	return dp, nil
}

// SimulateDailyPlan builds a throwaway plan from a campaign's
// configuration without persisting or scheduling anything. Zero or
// negative availableRecipients means uncapped; a non-zero seed pins the
// kernel so the same request reproduces the same plan.
func (o *Orchestrator) SimulateDailyPlan(ctx context.Context, id string, day, availableRecipients int, seed int64) (*domain.DailyPlan, error) {
	c, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return SimulatePlan(&c.Configuration, day, availableRecipients, seed)
}

// SimulatePlan builds a plan from a bare configuration on its own kernel,
// leaving the production kernel's random stream untouched.
func SimulatePlan(cfg *domain.Configuration, day, availableRecipients int, seed int64) (*domain.DailyPlan, error) {
	if availableRecipients <= 0 {
		availableRecipients = math.MaxInt32
	}
	k := randx.New()
	if seed != 0 {
		k = randx.NewSeeded(seed)
	}
	return plan.NewGenerator(k).BuildDailyPlan(cfg, day, availableRecipients)
}
