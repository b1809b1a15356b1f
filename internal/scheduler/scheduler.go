package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/pkg/distlock"
)

// CampaignLister enumerates campaigns by status.
type CampaignLister interface {
	List(ctx context.Context, status string) ([]domain.Campaign, error)
}

// DayTransitioner moves one campaign to its calendar day.
type DayTransitioner interface {
	TransitionDay(ctx context.Context, id string) (*domain.Campaign, error)
}

// Scheduler drives the daily campaign rollover: at midnight UTC every
// running campaign is moved to the day the calendar says it should be
// on. An optional catch-up pass at startup covers campaigns a downtime
// window left stranded on an old day.
type Scheduler struct {
	campaigns    CampaignLister
	transitioner DayTransitioner
	catchUp      bool
	lock         distlock.Lock

	cron *cron.Cron
}

// New creates the day transition scheduler. The cron runs in UTC so the
// rollover matches the UTC day keys campaigns are planned against.
func New(campaigns CampaignLister, transitioner DayTransitioner, catchUp bool) *Scheduler {
	return &Scheduler{
		campaigns:    campaigns,
		transitioner: transitioner,
		catchUp:      catchUp,
		cron:         cron.New(cron.WithLocation(time.UTC)),
	}
}

// SetLock guards the transition pass with a cross-instance lock, so that
// with several API instances running only one moves campaigns forward.
func (s *Scheduler) SetLock(l distlock.Lock) {
	s.lock = l
}

// Start registers the midnight job and starts the ticker. The catch-up
// pass, when enabled, runs synchronously before the ticker starts so a
// restarted worker repairs stale campaigns before taking new work.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * *", func() {
		s.TransitionAll(context.Background())
	}); err != nil {
		return err
	}
	if s.catchUp {
		log.Printf("[DayScheduler] Running startup catch-up pass")
		s.TransitionAll(context.Background())
	}
	s.cron.Start()
	log.Printf("[DayScheduler] Day transitions scheduled for 00:00 UTC")
	return nil
}

// Stop halts the ticker and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Printf("[DayScheduler] Stopped")
}

// TransitionAll runs the day transition over every running campaign.
// One campaign's failure never blocks the others.
func (s *Scheduler) TransitionAll(ctx context.Context) {
	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[DayScheduler] Lock error: %v", err)
			return
		}
		if !ok {
			log.Printf("[DayScheduler] Another instance is running the transition pass, skipping")
			return
		}
		defer s.lock.Release(ctx)
	}

	running, err := s.campaigns.List(ctx, string(domain.CampaignRunning))
	if err != nil {
		log.Printf("[DayScheduler] Failed to list running campaigns: %v", err)
		return
	}
	if len(running) == 0 {
		return
	}

	moved := 0
	for _, c := range running {
		updated, err := s.transitioner.TransitionDay(ctx, c.ID)
		if errors.Is(err, domain.ErrCampaignNotRunning) {
			// Paused or deleted between the list and the transition.
			continue
		}
		if err != nil {
			log.Printf("[DayScheduler] Day transition failed for campaign %s: %v", c.ID, err)
			continue
		}
		if updated.Progress.CurrentDay != c.Progress.CurrentDay || updated.Status != c.Status {
			moved++
		}
	}
	log.Printf("[DayScheduler] Transition pass done: %d campaign(s) checked, %d moved", len(running), moved)
}
