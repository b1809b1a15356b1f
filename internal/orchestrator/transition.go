package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/domain"
)

// TransitionDay moves one running campaign to the day the calendar says
// it should be on: days since start plus one. Returns the campaign
// unchanged when it is already there. A non-warm-up campaign with nobody
// left to mail completes instead of transitioning.
func (o *Orchestrator) TransitionDay(ctx context.Context, id string) (*domain.Campaign, error) {
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

	newDay, err := dayForToday(c, o.now())
	if err != nil {
		return nil, err
	}
	if newDay == c.Progress.CurrentDay {
		log.Printf("[Orchestrator] Campaign %s already on day %d, nothing to do", id, newDay)
		return c, nil
	}

	result, err := o.pool.Eligible(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	if result.WarmupReset {
		if err := o.campaigns.SetWarmupIndex(ctx, id, 0); err != nil {
			return nil, fmt.Errorf("persist warm-up reset: %w", err)
		}
	}
	if !c.Configuration.WarmupMode.Enabled && len(result.Recipients) == 0 {
		if err := o.campaigns.MarkCompleted(ctx, id); err != nil {
			return nil, err
		}
		o.purgeJobs(ctx, id, "completion")
		log.Printf("[Orchestrator] Campaign %s completed: recipient list exhausted", id)
		o.bus.Publish(bus.Event{Type: bus.EventCampaignCompleted, CampaignID: id})
		return o.campaigns.Get(ctx, id)
	}

	o.purgeJobs(ctx, id, "day transition")
	if err := o.campaigns.SetDayTransition(ctx, id, newDay); err != nil {
		return nil, err
	}

	log.Printf("[Orchestrator] Campaign %s transitioned from day %d to day %d",
		id, c.Progress.CurrentDay, newDay)
	o.bus.Publish(bus.Event{
		Type:       bus.EventDayTransition,
		CampaignID: id,
		Data:       map[string]interface{}{"day": newDay},
	})

	if err := o.runDay(ctx, id, newDay, false); err != nil {
		o.fail(ctx, id, err.Error())
		return nil, err
	}

	return o.campaigns.Get(ctx, id)
}

// dayForToday derives the calendar day number for a campaign: day 1 is
// the UTC day the campaign started on.
func dayForToday(c *domain.Campaign, now time.Time) (int, error) {
	started, err := time.Parse("2006-01-02", c.Progress.StartedOnUTCDay)
	if err != nil {
		return 0, fmt.Errorf("parse started_on_utc_day %q: %w", c.Progress.StartedOnUTCDay, err)
	}
	today, err := time.Parse("2006-01-02", domain.UTCDay(now))
	if err != nil {
		return 0, err
	}

	newDay := int(today.Sub(started).Hours()/24) + 1
	if newDay < 1 {
		newDay = 1
	}
	return newDay, nil
}
