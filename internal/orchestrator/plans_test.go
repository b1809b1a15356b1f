package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/queue"
)

func TestTodaysPlan(t *testing.T) {
	c := testCampaign("camp-1", domain.CampaignRunning)
	c.Progress.CurrentDay = 3
	c.Plan.DailyPlans = []domain.DailyPlan{
		{Day: 2, TotalEmails: 5},
		{Day: 3, TotalEmails: 8},
	}
	env := newTestEnv(c)

	dp, err := env.orch.TodaysPlan(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("TodaysPlan failed: %v", err)
	}
	if dp.Day != 3 || dp.TotalEmails != 8 {
		t.Errorf("plan = day %d / %d emails, want day 3 / 8", dp.Day, dp.TotalEmails)
	}
}

func TestTodaysPlan_NotPlanned(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignDraft))

	_, err := env.orch.TodaysPlan(context.Background(), "camp-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCampaignPlan(t *testing.T) {
	c := testCampaign("camp-1", domain.CampaignPaused)
	c.Plan.TotalRecipients = 120
	c.Plan.EmailListStats = domain.EmailListStats{TotalInList: 150, AlreadySent: 20, Unsubscribed: 10, Eligible: 120}
	c.Plan.DailyPlans = []domain.DailyPlan{{Day: 1, TotalEmails: 5}, {Day: 2, TotalEmails: 7}}
	env := newTestEnv(c)

	got, err := env.orch.CampaignPlan(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("CampaignPlan failed: %v", err)
	}
	if got.TotalRecipients != 120 || len(got.DailyPlans) != 2 {
		t.Errorf("summary = %d recipients / %d plans, want 120 / 2", got.TotalRecipients, len(got.DailyPlans))
	}
	if got.EmailListStats.AlreadySent != 20 {
		t.Errorf("AlreadySent = %d, want 20", got.EmailListStats.AlreadySent)
	}
}

func TestCurrentExecutionPlan(t *testing.T) {
	c := testCampaign("camp-1", domain.CampaignRunning)
	c.Plan.DailyPlans = []domain.DailyPlan{{Day: 1, TotalEmails: 9}}
	env := newTestEnv(c)
	env.queue.listed[queue.StateDelayed] = []*queue.Job{
		{CampaignID: "camp-1"}, {CampaignID: "camp-1"}, {CampaignID: "other"},
	}
	env.queue.listed[queue.StateWaiting] = []*queue.Job{{CampaignID: "camp-1"}}
	env.queue.listed[queue.StateActive] = []*queue.Job{{CampaignID: "other"}}

	ep, err := env.orch.CurrentExecutionPlan(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("CurrentExecutionPlan failed: %v", err)
	}
	if ep.CampaignID != "camp-1" || ep.Day != 1 || ep.Status != domain.CampaignRunning {
		t.Errorf("header = %s/%d/%s", ep.CampaignID, ep.Day, ep.Status)
	}
	if ep.Plan == nil || ep.Plan.TotalEmails != 9 {
		t.Errorf("Plan = %+v, want the stored day 1 plan", ep.Plan)
	}
	if ep.Jobs.Delayed != 2 || ep.Jobs.Waiting != 1 || ep.Jobs.Active != 0 {
		t.Errorf("jobs = %+v, want delayed 2 / waiting 1 / active 0", ep.Jobs)
	}
}

func TestCurrentExecutionPlan_UnplannedDay(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignDraft))

	ep, err := env.orch.CurrentExecutionPlan(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("CurrentExecutionPlan failed: %v", err)
	}
	if ep.Plan != nil {
		t.Errorf("Plan = %+v, want nil for an unplanned day", ep.Plan)
	}
}

func TestRegeneratePlan(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignRunning))
	env.pool.result = threeRecipients()
	env.orch.now = func() time.Time {
		return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	}

	dp, err := env.orch.RegeneratePlan(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("RegeneratePlan failed: %v", err)
	}
	if dp.Day != 1 || dp.TotalEmails != 3 {
		t.Errorf("plan = day %d / %d emails, want day 1 / 3", dp.Day, dp.TotalEmails)
	}
	if n := env.campaigns.planWrites(); n != 1 {
		t.Errorf("plan writes = %d, want 1", n)
	}
	if got := env.queue.removals(); len(got) != 1 || got[0] != "camp-1" {
		t.Errorf("removal calls = %v, want one purge before rescheduling", got)
	}
}

func TestRegeneratePlan_NotRunning(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignPaused))

	if _, err := env.orch.RegeneratePlan(context.Background(), "camp-1"); !errors.Is(err, domain.ErrCampaignNotRunning) {
		t.Fatalf("err = %v, want ErrCampaignNotRunning", err)
	}
	if len(env.queue.removals()) != 0 {
		t.Error("paused campaign's jobs must not be touched")
	}
}

func TestRegeneratePlan_PipelineFailureFailsCampaign(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignRunning))
	env.pool.err = errors.New("list fetch timed out")

	_, err := env.orch.RegeneratePlan(context.Background(), "camp-1")
	if err == nil || !strings.Contains(err.Error(), "list fetch timed out") {
		t.Fatalf("err = %v, want the pipeline error", err)
	}
	c := env.campaigns.get("camp-1")
	if c.Status != domain.CampaignFailed {
		t.Errorf("Status = %s, want failed", c.Status)
	}
	if !strings.Contains(c.ErrorMessage, "list fetch timed out") {
		t.Errorf("ErrorMessage = %q", c.ErrorMessage)
	}
}

func TestSimulatePlan_SeedReproducible(t *testing.T) {
	cfg := &testCampaign("", domain.CampaignDraft).Configuration

	a, err := SimulatePlan(cfg, 3, 0, 99)
	if err != nil {
		t.Fatalf("SimulatePlan failed: %v", err)
	}
	b, err := SimulatePlan(cfg, 3, 0, 99)
	if err != nil {
		t.Fatalf("SimulatePlan failed: %v", err)
	}
	if a.TotalEmails != b.TotalEmails {
		t.Errorf("totals differ: %d vs %d", a.TotalEmails, b.TotalEmails)
	}
	if !reflect.DeepEqual(a.Domains, b.Domains) {
		t.Error("same seed produced different plan trees")
	}
	if !a.Validate() {
		t.Error("simulated plan does not reconcile")
	}
}

func TestSimulatePlan_CapsAtAvailable(t *testing.T) {
	cfg := &testCampaign("", domain.CampaignDraft).Configuration

	dp, err := SimulatePlan(cfg, 1, 2, 0)
	if err != nil {
		t.Fatalf("SimulatePlan failed: %v", err)
	}
	if dp.TotalEmails > 2 {
		t.Errorf("TotalEmails = %d, want at most the 2 available", dp.TotalEmails)
	}
}

func TestSimulateDailyPlan_UsesCampaignConfiguration(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignDraft))

	dp, err := env.orch.SimulateDailyPlan(context.Background(), "camp-1", 2, 0, 7)
	if err != nil {
		t.Fatalf("SimulateDailyPlan failed: %v", err)
	}
	if dp.Day != 2 {
		t.Errorf("Day = %d, want 2", dp.Day)
	}
	if env.campaigns.planWrites() != 0 {
		t.Error("simulation must not persist a plan")
	}
	if len(env.queue.enqueued()) != 0 {
		t.Error("simulation must not schedule jobs")
	}
}

func TestAddSenderEmail(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignDraft))

	got, err := env.orch.AddSenderEmail(context.Background(), "camp-1",
		domain.SenderEmail{Email: "s1@mail.example.com", Active: true})
	if err != nil {
		t.Fatalf("AddSenderEmail failed: %v", err)
	}
	if len(got.Configuration.SenderEmails) != 1 {
		t.Fatalf("senders = %d, want 1", len(got.Configuration.SenderEmails))
	}
	s := got.Configuration.SenderEmails[0]
	if s.Domain != "mail.example.com" {
		t.Errorf("Domain = %q, want the domain derived from the address", s.Domain)
	}
	if !s.Active {
		t.Error("Active flag lost")
	}
}

func TestAddSenderEmail_Invalid(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignDraft))

	if _, err := env.orch.AddSenderEmail(context.Background(), "camp-1",
		domain.SenderEmail{Email: "no-at-sign"}); err == nil {
		t.Fatal("expected an error for a malformed address")
	}
	if _, err := env.orch.AddSenderEmail(context.Background(), "camp-1",
		domain.SenderEmail{Email: "s1@a.com", Domain: "b.com"}); err == nil {
		t.Fatal("expected an error for a mismatched declared domain")
	}
	if n := len(env.campaigns.get("camp-1").Configuration.SenderEmails); n != 0 {
		t.Errorf("senders = %d, rejected adds must not persist", n)
	}
}

func TestAddSenderEmail_RejectedWhileRunning(t *testing.T) {
	env := newTestEnv(testCampaign("camp-1", domain.CampaignRunning))

	_, err := env.orch.AddSenderEmail(context.Background(), "camp-1",
		domain.SenderEmail{Email: "s1@mail.example.com"})
	if !errors.Is(err, domain.ErrConflictingState) {
		t.Fatalf("err = %v, want ErrConflictingState", err)
	}
}

func TestUpdateSenderEmail(t *testing.T) {
	c := testCampaign("camp-1", domain.CampaignDraft)
	c.Configuration.SenderEmails = []domain.SenderEmail{
		{Email: "s1@mail.example.com", Domain: "mail.example.com", Active: true},
	}
	env := newTestEnv(c)

	got, err := env.orch.UpdateSenderEmail(context.Background(), "camp-1", "s1@mail.example.com",
		domain.SenderEmail{Email: "s1@mail.example.com", Active: false})
	if err != nil {
		t.Fatalf("UpdateSenderEmail failed: %v", err)
	}
	if got.Configuration.SenderEmails[0].Active {
		t.Error("sender still active after update")
	}
	if got.Configuration.SenderEmails[0].Domain != "mail.example.com" {
		t.Errorf("Domain = %q", got.Configuration.SenderEmails[0].Domain)
	}
}

func TestRemoveSenderEmail(t *testing.T) {
	c := testCampaign("camp-1", domain.CampaignPaused)
	c.Configuration.SenderEmails = []domain.SenderEmail{
		{Email: "s1@mail.example.com", Domain: "mail.example.com", Active: true},
		{Email: "s2@mail.example.com", Domain: "mail.example.com", Active: true},
	}
	env := newTestEnv(c)

	got, err := env.orch.RemoveSenderEmail(context.Background(), "camp-1", "s1@mail.example.com")
	if err != nil {
		t.Fatalf("RemoveSenderEmail failed: %v", err)
	}
	if len(got.Configuration.SenderEmails) != 1 || got.Configuration.SenderEmails[0].Email != "s2@mail.example.com" {
		t.Errorf("senders = %+v, want only s2", got.Configuration.SenderEmails)
	}
}
