package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailwarm/internal/config"
)

func setupQueue(t *testing.T, cfg config.QueueConfig) (*Queue, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, cfg), func() {
		client.Close()
		mr.Close()
	}
}

// pinClock fixes queue time at start and returns a function that advances
// it. Every script takes timestamps as arguments, so advancing the clock is
// enough to make delays and retention windows elapse.
func pinClock(q *Queue, start time.Time) func(time.Duration) {
	current := start
	q.now = func() time.Time { return current }
	return func(d time.Duration) { current = current.Add(d) }
}

func TestNew_Defaults(t *testing.T) {
	q := New(nil, config.QueueConfig{})

	if q.maxAttempts != DefaultMaxAttempts {
		t.Errorf("maxAttempts = %d, want %d", q.maxAttempts, DefaultMaxAttempts)
	}
	if q.backoffBase != DefaultBackoffBase {
		t.Errorf("backoffBase = %v, want %v", q.backoffBase, DefaultBackoffBase)
	}
	if q.completedRetention != 24*time.Hour {
		t.Errorf("completedRetention = %v, want 24h", q.completedRetention)
	}
	if q.completedMax != 1000 {
		t.Errorf("completedMax = %d, want 1000", q.completedMax)
	}
	if q.failedRetention != 7*24*time.Hour {
		t.Errorf("failedRetention = %v, want 168h", q.failedRetention)
	}
}

func TestQueue_EnqueueClaim(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{})
	defer cleanup()
	ctx := context.Background()

	job := &Job{
		CampaignID:   "camp-1",
		Recipient:    "alice@example.com",
		Sender:       "warm1@sender.example.com",
		TemplateName: "intro",
		TemplateData: map[string]string{"subject": "Hello Alice"},
		Day:          3,
		Hour:         14,
		Minute:       30,
		Second:       12,
		ScheduledFor: time.Date(2024, 3, 1, 14, 30, 12, 0, time.UTC),
	}
	id, err := q.Enqueue(ctx, job, 0, 0)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue() returned empty id")
	}

	got, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if got == nil {
		t.Fatal("Claim() = nil, want job")
	}
	if got.ID != id {
		t.Errorf("Claim() id = %s, want %s", got.ID, id)
	}
	if got.AttemptsMade != 0 {
		t.Errorf("AttemptsMade = %d, want 0", got.AttemptsMade)
	}
	if got.CampaignID != job.CampaignID || got.Recipient != job.Recipient ||
		got.Sender != job.Sender || got.TemplateName != job.TemplateName {
		t.Errorf("Claim() payload = %+v, want %+v", got, job)
	}
	if got.TemplateData["subject"] != "Hello Alice" {
		t.Errorf("TemplateData = %v, want subject preserved", got.TemplateData)
	}
	if got.Day != 3 || got.Hour != 14 || got.Minute != 30 || got.Second != 12 {
		t.Errorf("slot = day %d %02d:%02d:%02d, want day 3 14:30:12", got.Day, got.Hour, got.Minute, got.Second)
	}
	if !got.ScheduledFor.Equal(job.ScheduledFor) {
		t.Errorf("ScheduledFor = %v, want %v", got.ScheduledFor, job.ScheduledFor)
	}

	next, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if next != nil {
		t.Errorf("second Claim() = %+v, want nil", next)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats["active"] != 1 {
		t.Errorf("active = %d, want 1", stats["active"])
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{})
	defer cleanup()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: fmt.Sprintf("r%d@example.com", i)}, 0, 0)
		if err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		ids = append(ids, id)
	}

	for i := 0; i < 3; i++ {
		got, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim() error: %v", err)
		}
		if got == nil {
			t.Fatalf("claim %d = nil, want job", i)
		}
		if got.ID != ids[i] {
			t.Errorf("claim %d = job %s, want %s", i, got.ID, ids[i])
		}
	}
}

func TestQueue_PriorityOrder(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{})
	defer cleanup()
	ctx := context.Background()

	lowID, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "low@example.com"}, 0, 1)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	highID, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "high@example.com"}, 0, 0)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	// Lower priority values pop first even when enqueued later.
	first, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if first == nil || first.ID != highID {
		t.Fatalf("first claim = %+v, want job %s", first, highID)
	}
	second, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if second == nil || second.ID != lowID {
		t.Fatalf("second claim = %+v, want job %s", second, lowID)
	}
}

func TestQueue_DelayedJob(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{})
	defer cleanup()
	ctx := context.Background()
	advance := pinClock(q, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	if _, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "a@example.com"}, 5*time.Minute, 0); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	got, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if got != nil {
		t.Fatalf("Claim() before ready = %+v, want nil", got)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats["delayed"] != 1 {
		t.Errorf("delayed = %d, want 1", stats["delayed"])
	}

	advance(5 * time.Minute)

	got, err = q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if got == nil {
		t.Fatal("Claim() after delay = nil, want job")
	}
	if got.Recipient != "a@example.com" {
		t.Errorf("Recipient = %s, want a@example.com", got.Recipient)
	}
}

func TestQueue_FailBackoff(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{MaxAttempts: 3, BackoffBaseSeconds: 2})
	defer cleanup()
	ctx := context.Background()
	advance := pinClock(q, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	id, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "a@example.com"}, 0, 0)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	claim := func() *Job {
		t.Helper()
		j, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim() error: %v", err)
		}
		return j
	}

	// First failure: retry in 2s.
	if j := claim(); j == nil || j.AttemptsMade != 0 {
		t.Fatalf("first claim = %+v, want attempts 0", j)
	}
	attempts, err := q.Fail(ctx, id, "smtp timeout")
	if err != nil {
		t.Fatalf("Fail() error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Fail() attempts = %d, want 1", attempts)
	}
	if j := claim(); j != nil {
		t.Fatalf("claim during backoff = %+v, want nil", j)
	}
	advance(2 * time.Second)

	// Second failure: backoff doubles to 4s.
	if j := claim(); j == nil || j.AttemptsMade != 1 {
		t.Fatalf("second claim = %+v, want attempts 1", j)
	}
	if attempts, _ = q.Fail(ctx, id, "smtp timeout"); attempts != 2 {
		t.Errorf("Fail() attempts = %d, want 2", attempts)
	}
	advance(2 * time.Second)
	if j := claim(); j != nil {
		t.Fatalf("claim 2s into a 4s backoff = %+v, want nil", j)
	}
	advance(2 * time.Second)

	// Third failure exhausts the attempt budget.
	if j := claim(); j == nil || j.AttemptsMade != 2 {
		t.Fatalf("third claim = %+v, want attempts 2", j)
	}
	if attempts, _ = q.Fail(ctx, id, "smtp timeout"); attempts != 3 {
		t.Errorf("Fail() attempts = %d, want 3", attempts)
	}
	if j := claim(); j != nil {
		t.Fatalf("claim after terminal failure = %+v, want nil", j)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats["failed"] != 1 {
		t.Errorf("failed = %d, want 1", stats["failed"])
	}
	if stats["delayed"] != 0 {
		t.Errorf("delayed = %d, want 0", stats["delayed"])
	}
}

func TestQueue_CompleteRetention(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{CompletedMax: 2, CompletedRetentionHours: 24})
	defer cleanup()
	ctx := context.Background()
	advance := pinClock(q, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	finish := func(recipient string) string {
		t.Helper()
		id, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: recipient}, 0, 0)
		if err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		if j, err := q.Claim(ctx); err != nil || j == nil {
			t.Fatalf("Claim() = %+v, %v", j, err)
		}
		settled, err := q.Complete(ctx, id)
		if err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
		if !settled {
			t.Fatalf("Complete(%s) = false, want true", id)
		}
		return id
	}

	first := finish("a@example.com")
	finish("b@example.com")
	finish("c@example.com")

	// Count cap: the oldest completed job is dropped entirely.
	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats["completed"] != 2 {
		t.Errorf("completed = %d, want 2", stats["completed"])
	}
	if n, _ := q.client.Exists(ctx, q.jobKey(first)).Result(); n != 0 {
		t.Errorf("job %s hash still present after trim", first)
	}
	if ok, _ := q.client.SIsMember(ctx, q.campaignKey("camp-1"), first).Result(); ok {
		t.Errorf("job %s still in campaign index after trim", first)
	}

	// Age cap: completions older than the retention window go too.
	advance(25 * time.Hour)
	finish("d@example.com")

	stats, err = q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats["completed"] != 1 {
		t.Errorf("completed after retention = %d, want 1", stats["completed"])
	}
}

func TestQueue_RemoveByCampaign(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{})
	defer cleanup()
	ctx := context.Background()

	// One finished job, then one active, one waiting and one delayed.
	doneID, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "done@example.com"}, 0, 0)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if j, err := q.Claim(ctx); err != nil || j == nil {
		t.Fatalf("Claim() = %+v, %v", j, err)
	}
	if _, err := q.Complete(ctx, doneID); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	activeID, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "active@example.com"}, 0, 0)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if j, err := q.Claim(ctx); err != nil || j == nil || j.ID != activeID {
		t.Fatalf("Claim() = %+v, %v, want job %s", j, err, activeID)
	}
	if _, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "waiting@example.com"}, 0, 0); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if _, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "delayed@example.com"}, time.Hour, 0); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	otherID, err := q.Enqueue(ctx, &Job{CampaignID: "camp-2", Recipient: "other@example.com"}, 0, 0)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	removed, err := q.RemoveByCampaign(ctx, "camp-1")
	if err != nil {
		t.Fatalf("RemoveByCampaign() error: %v", err)
	}
	if removed != 3 {
		t.Errorf("RemoveByCampaign() = %d, want 3", removed)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats["waiting"] != 1 {
		t.Errorf("waiting = %d, want 1 (other campaign untouched)", stats["waiting"])
	}
	if stats["active"] != 0 || stats["delayed"] != 0 {
		t.Errorf("active = %d, delayed = %d, want 0, 0", stats["active"], stats["delayed"])
	}
	if stats["completed"] != 1 {
		t.Errorf("completed = %d, want 1 (history survives removal)", stats["completed"])
	}

	// The in-flight job settles as a no-op once its campaign is removed.
	settled, err := q.Complete(ctx, activeID)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if settled {
		t.Error("Complete() after removal = true, want false")
	}

	// The other campaign still claims normally.
	j, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if j == nil || j.ID != otherID {
		t.Fatalf("Claim() = %+v, want job %s", j, otherID)
	}
}

func TestQueue_RequeueStalled(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{MaxAttempts: 2})
	defer cleanup()
	ctx := context.Background()
	advance := pinClock(q, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	id, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "a@example.com"}, 0, 0)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if j, err := q.Claim(ctx); err != nil || j == nil {
		t.Fatalf("Claim() = %+v, %v", j, err)
	}

	// Young active jobs are left alone.
	requeued, failed, err := q.RequeueStalled(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("RequeueStalled() error: %v", err)
	}
	if requeued != 0 || failed != 0 {
		t.Errorf("RequeueStalled() = (%d, %d), want (0, 0)", requeued, failed)
	}

	// Past the cutoff the stall costs an attempt and the job waits again.
	advance(10 * time.Minute)
	requeued, failed, err = q.RequeueStalled(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("RequeueStalled() error: %v", err)
	}
	if requeued != 1 || failed != 0 {
		t.Errorf("RequeueStalled() = (%d, %d), want (1, 0)", requeued, failed)
	}

	j, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if j == nil || j.ID != id {
		t.Fatalf("Claim() after requeue = %+v, want job %s", j, id)
	}
	if j.AttemptsMade != 1 {
		t.Errorf("AttemptsMade = %d, want 1", j.AttemptsMade)
	}

	// A second stall exhausts the attempt budget.
	advance(10 * time.Minute)
	requeued, failed, err = q.RequeueStalled(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("RequeueStalled() error: %v", err)
	}
	if requeued != 0 || failed != 1 {
		t.Errorf("RequeueStalled() = (%d, %d), want (0, 1)", requeued, failed)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats["failed"] != 1 {
		t.Errorf("failed = %d, want 1", stats["failed"])
	}
}

func TestQueue_ListByCampaign(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{})
	defer cleanup()
	ctx := context.Background()

	for _, r := range []string{"r1@example.com", "r2@example.com"} {
		if _, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: r}, 0, 0); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
	}
	if _, err := q.Enqueue(ctx, &Job{CampaignID: "camp-1", Recipient: "r3@example.com"}, time.Hour, 0); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if _, err := q.Enqueue(ctx, &Job{CampaignID: "camp-2", Recipient: "r4@example.com"}, 0, 0); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	waiting, err := q.ListByCampaign(ctx, "camp-1", StateWaiting)
	if err != nil {
		t.Fatalf("ListByCampaign() error: %v", err)
	}
	if len(waiting) != 2 {
		t.Fatalf("waiting jobs = %d, want 2", len(waiting))
	}
	if waiting[0].Recipient != "r1@example.com" || waiting[1].Recipient != "r2@example.com" {
		t.Errorf("waiting order = %s, %s, want r1, r2", waiting[0].Recipient, waiting[1].Recipient)
	}

	delayed, err := q.ListByCampaign(ctx, "camp-1", StateDelayed)
	if err != nil {
		t.Fatalf("ListByCampaign() error: %v", err)
	}
	if len(delayed) != 1 || delayed[0].Recipient != "r3@example.com" {
		t.Errorf("delayed jobs = %+v, want r3 only", delayed)
	}

	failed, err := q.ListByCampaign(ctx, "camp-1", StateFailed)
	if err != nil {
		t.Fatalf("ListByCampaign() error: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("failed jobs = %d, want 0", len(failed))
	}
}

func TestQueue_EnqueueBatch(t *testing.T) {
	q, cleanup := setupQueue(t, config.QueueConfig{})
	defer cleanup()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	advance := pinClock(q, base)

	jobs := []*Job{
		{CampaignID: "camp-1", Recipient: "past@example.com", ScheduledFor: base.Add(-time.Hour)},
		{CampaignID: "camp-1", Recipient: "due@example.com", ScheduledFor: base},
		{CampaignID: "camp-1", Recipient: "future@example.com", ScheduledFor: base.Add(time.Hour)},
	}
	n, err := q.EnqueueBatch(ctx, jobs, 0)
	if err != nil {
		t.Fatalf("EnqueueBatch() error: %v", err)
	}
	if n != 3 {
		t.Errorf("EnqueueBatch() = %d, want 3", n)
	}
	for i, j := range jobs {
		if j.ID == "" {
			t.Errorf("job %d has no id", i)
		}
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats["waiting"] != 2 {
		t.Errorf("waiting = %d, want 2 (past-due jobs go straight to waiting)", stats["waiting"])
	}
	if stats["delayed"] != 1 {
		t.Errorf("delayed = %d, want 1", stats["delayed"])
	}

	first, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if first == nil || first.Recipient != "past@example.com" {
		t.Fatalf("first claim = %+v, want past@example.com", first)
	}
	second, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if second == nil || second.Recipient != "due@example.com" {
		t.Fatalf("second claim = %+v, want due@example.com", second)
	}

	advance(time.Hour)
	third, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if third == nil || third.Recipient != "future@example.com" {
		t.Fatalf("third claim = %+v, want future@example.com", third)
	}
}
