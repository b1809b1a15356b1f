package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/queue"
	"github.com/ignite/mailwarm/internal/recipients"
)

// Scheduled sends all enqueue at the same priority; ordering within a day
// comes from each job's delayed activation time.
const sendPriority = 0

// runDay executes the pipeline for one campaign day: eligibility, warm-up
// windowing, plan generation and job scheduling. When reusePlan is set and
// a plan for the day is already stored, generation and the warm-up window
// advance are skipped and only scheduling re-runs; recipients already sent
// today are filtered out by eligibility, so the day continues where it
// stopped.
func (o *Orchestrator) runDay(ctx context.Context, id string, day int, reusePlan bool) error {
	c, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignRunning {
		log.Printf("[Orchestrator] Skipping day %d pipeline for campaign %s: status is %s", day, id, c.Status)
		return nil
	}

	result, err := o.pool.Eligible(ctx, c)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	list := result.Recipients

	var dp *domain.DailyPlan
	if reusePlan {
		if dp = c.Plan.PlanForDay(day); dp != nil {
			log.Printf("[Orchestrator] Reusing stored plan for campaign %s day %d (%d emails)", id, day, dp.TotalEmails)
			if result.WarmupReset {
				if err := o.campaigns.SetWarmupIndex(ctx, id, 0); err != nil {
					return fmt.Errorf("persist warm-up reset: %w", err)
				}
			}
		}
	}

	if dp == nil {
		if c.Configuration.WarmupMode.Enabled {
			quota := o.generator.DailyTotal(&c.Configuration, day)
			window, next := recipients.Window(list, c.Configuration.WarmupMode.CurrentIndex, quota)
			if err := o.campaigns.SetWarmupIndex(ctx, id, next); err != nil {
				return fmt.Errorf("advance warm-up index: %w", err)
			}
			log.Printf("[Orchestrator] Warm-up window for campaign %s day %d: %d of %d eligible (next index %d)",
				id, day, len(window), len(list), next)
			list = window
		}

		dp, err = o.generator.BuildDailyPlan(&c.Configuration, day, len(list))
		if err != nil {
			return fmt.Errorf("build daily plan: %w", err)
		}
		if err := o.campaigns.SetDailyPlan(ctx, id, dp, result.Stats.Eligible, result.Stats); err != nil {
			return fmt.Errorf("persist daily plan: %w", err)
		}
	}

	scheduled, err := o.scheduleDay(ctx, c, dp, list)
	if err != nil {
		return fmt.Errorf("schedule day %d: %w", day, err)
	}
	log.Printf("[Orchestrator] Campaign %s day %d: planned %d emails, scheduled %d jobs",
		id, day, dp.TotalEmails, scheduled)
	return nil
}

// scheduleDay turns a daily plan into delayed queue jobs. Recipients are
// consumed from list in plan-tree order; a message whose wall-clock slot
// already passed, or would land past the end of the UTC day, consumes its
// recipient but emits no job, so a mid-day start sends only the rest of
// the day and never rolls into tomorrow.
func (o *Orchestrator) scheduleDay(ctx context.Context, c *domain.Campaign, dp *domain.DailyPlan, list []string) (int, error) {
	now := o.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	jobs := make([]*queue.Job, 0, dp.TotalEmails)
	next := 0
	skipped := 0

	for _, dplan := range dp.Domains {
		for _, splan := range dplan.Senders {
			for _, hplan := range splan.Hours {
				for minute := 0; minute < 60; minute++ {
					count := hplan.Minutes[minute]
					for i := 0; i < count && next < len(list); i++ {
						recipient := list[next]
						next++

						sec := i * 60 / count
						t := dayStart.Add(time.Duration(hplan.Hour)*time.Hour +
							time.Duration(minute)*time.Minute +
							time.Duration(sec)*time.Second)
						if !t.After(now) || !t.Before(dayEnd) {
							skipped++
							continue
						}

						jobs = append(jobs, &queue.Job{
							CampaignID:   c.ID,
							Recipient:    recipient,
							Sender:       splan.Email,
							TemplateName: o.generator.Kernel().PickString(c.TemplateNames),
							TemplateData: templateVars(c, recipient, dp.Day),
							Day:          dp.Day,
							Hour:         hplan.Hour,
							Minute:       minute,
							Second:       sec,
							ScheduledFor: t,
						})
					}
				}
			}
		}
	}

	enqueued, err := o.queue.EnqueueBatch(ctx, jobs, sendPriority)
	if err != nil {
		return enqueued, err
	}
	if skipped > 0 {
		log.Printf("[Orchestrator] Campaign %s day %d: %d slots already past, left unscheduled", c.ID, dp.Day, skipped)
	}
	return enqueued, nil
}

// templateVars builds one message's template payload: the built-in
// variables plus the campaign's configured entries with {{var}}
// placeholders substituted. Configured entries win on name collisions.
func templateVars(c *domain.Campaign, recipient string, day int) map[string]string {
	name := recipient
	if i := strings.LastIndex(recipient, "@"); i >= 0 {
		name = recipient[:i]
	}
	dayStr := strconv.Itoa(day)

	vars := map[string]string{
		"recipientName":  name,
		"recipientEmail": recipient,
		"campaignName":   c.Name,
		"day":            dayStr,
	}
	for k, v := range c.Configuration.TemplateData {
		v = strings.ReplaceAll(v, "{{recipientName}}", name)
		v = strings.ReplaceAll(v, "{{recipientEmail}}", recipient)
		v = strings.ReplaceAll(v, "{{campaignName}}", c.Name)
		v = strings.ReplaceAll(v, "{{day}}", dayStr)
		vars[k] = v
	}
	return vars
}
