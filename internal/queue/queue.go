package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailwarm/internal/config"
)

// State is a job's position in the queue lifecycle.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

const (
	// DefaultConcurrency is the worker pool size.
	DefaultConcurrency = 50
	// DefaultMaxAttempts bounds total processing attempts per job.
	DefaultMaxAttempts = 3
	// DefaultBackoffBase is the first retry delay; it doubles per attempt.
	DefaultBackoffBase = 2 * time.Second

	keyPrefix = "mailwarm:queue"

	// prioritySpan packs (priority, sequence) into one float score. Sequence
	// numbers stay far below it, so scores remain exact in a float64.
	prioritySpan = 1e15

	// promoteLimit caps how many delayed jobs one claim call promotes.
	promoteLimit = 128

	enqueueBatchSize = 1000
)

// Job is one scheduled email delivery. ID and AttemptsMade are queue
// bookkeeping filled on claim, not part of the payload.
type Job struct {
	ID           string `json:"-"`
	AttemptsMade int    `json:"-"`

	CampaignID   string            `json:"campaign_id"`
	Recipient    string            `json:"recipient"`
	Sender       string            `json:"sender"`
	TemplateName string            `json:"template_name"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Day          int               `json:"day"`
	Hour         int               `json:"hour"`
	Minute       int               `json:"minute"`
	Second       int               `json:"second"`
	ScheduledFor time.Time         `json:"scheduled_for"`
}

// Queue is a Redis-backed delayed job queue. Jobs live in one hash each;
// per-state sorted sets order them (waiting by priority+sequence, delayed
// by ready time, active by claim time, completed/failed by finish time). A
// per-campaign set indexes jobs so pause and day transitions can remove
// exactly one campaign's work.
type Queue struct {
	client *redis.Client

	maxAttempts        int
	backoffBase        time.Duration
	completedRetention time.Duration
	completedMax       int
	failedRetention    time.Duration

	now func() time.Time
}

// New creates a queue on an existing Redis client.
func New(client *redis.Client, cfg config.QueueConfig) *Queue {
	q := &Queue{
		client:             client,
		maxAttempts:        cfg.MaxAttempts,
		backoffBase:        time.Duration(cfg.BackoffBaseSeconds) * time.Second,
		completedRetention: time.Duration(cfg.CompletedRetentionHours) * time.Hour,
		completedMax:       cfg.CompletedMax,
		failedRetention:    time.Duration(cfg.FailedRetentionDays) * 24 * time.Hour,
		now:                time.Now,
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = DefaultMaxAttempts
	}
	if q.backoffBase <= 0 {
		q.backoffBase = DefaultBackoffBase
	}
	if q.completedRetention <= 0 {
		q.completedRetention = 24 * time.Hour
	}
	if q.completedMax <= 0 {
		q.completedMax = 1000
	}
	if q.failedRetention <= 0 {
		q.failedRetention = 7 * 24 * time.Hour
	}
	return q
}

func (q *Queue) key(suffix string) string     { return keyPrefix + ":" + suffix }
func (q *Queue) jobKey(id string) string      { return keyPrefix + ":job:" + id }
func (q *Queue) campaignKey(id string) string { return keyPrefix + ":campaign:" + id }

// Enqueue persists one job. A positive delay parks it in the delayed set
// until its ready time; lower priority values pop first, and jobs with
// equal (delay, priority) pop in enqueue order.
func (q *Queue) Enqueue(ctx context.Context, j *Job, delay time.Duration, priority int) (string, error) {
	seq, err := q.client.Incr(ctx, q.key("seq")).Result()
	if err != nil {
		return "", fmt.Errorf("allocate job id: %w", err)
	}
	pipe := q.client.TxPipeline()
	id, err := q.push(ctx, pipe, j, seq, delay, priority)
	if err != nil {
		return "", err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// EnqueueBatch persists jobs in pipeline chunks, deriving each delay from
// the job's ScheduledFor. Returns the number enqueued.
func (q *Queue) EnqueueBatch(ctx context.Context, jobs []*Job, priority int) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	last, err := q.client.IncrBy(ctx, q.key("seq"), int64(len(jobs))).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate job ids: %w", err)
	}
	seq := last - int64(len(jobs))

	now := q.now()
	enqueued := 0
	for start := 0; start < len(jobs); start += enqueueBatchSize {
		end := start + enqueueBatchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		pipe := q.client.TxPipeline()
		for _, j := range jobs[start:end] {
			seq++
			delay := j.ScheduledFor.Sub(now)
			if delay < 0 {
				delay = 0
			}
			if _, err := q.push(ctx, pipe, j, seq, delay, priority); err != nil {
				return enqueued, err
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return enqueued, fmt.Errorf("enqueue batch: %w", err)
		}
		enqueued += end - start
	}
	return enqueued, nil
}

// push queues the writes for one job on pipe; the caller executes it.
func (q *Queue) push(ctx context.Context, pipe redis.Pipeliner, j *Job, seq int64, delay time.Duration, priority int) (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}

	id := strconv.FormatInt(seq, 10)
	now := q.now()
	wscore := float64(priority)*prioritySpan + float64(seq)

	fields := map[string]interface{}{
		"data":        data,
		"campaign_id": j.CampaignID,
		"attempts":    0,
		"wscore":      wscore,
		"created_at":  now.UnixMilli(),
	}
	if delay > 0 {
		readyAt := now.Add(delay)
		fields["state"] = string(StateDelayed)
		fields["ready_at"] = readyAt.UnixMilli()
		pipe.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(readyAt.UnixMilli()), Member: id})
	} else {
		fields["state"] = string(StateWaiting)
		pipe.ZAdd(ctx, q.key("waiting"), redis.Z{Score: wscore, Member: id})
	}
	pipe.HSet(ctx, q.jobKey(id), fields)
	pipe.SAdd(ctx, q.campaignKey(j.CampaignID), id)

	j.ID = id
	return id, nil
}

// Claim promotes due delayed jobs and pops the next waiting job, marking it
// active. Returns nil when nothing is ready.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	res, err := claimCmd.Run(ctx, q.client,
		[]string{q.key("delayed"), q.key("waiting"), q.key("active")},
		q.now().UnixMilli(), q.jobKey(""), promoteLimit).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return nil, fmt.Errorf("claim job: unexpected reply %v", res)
	}
	j := &Job{}
	if err := json.Unmarshal([]byte(vals[1].(string)), j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	j.ID = vals[0].(string)
	j.AttemptsMade, _ = strconv.Atoi(vals[2].(string))
	return j, nil
}

// Complete finishes an active job and trims completed retention. Returns
// false when the job was removed while it ran.
func (q *Queue) Complete(ctx context.Context, id string) (bool, error) {
	res, err := completeCmd.Run(ctx, q.client,
		[]string{q.key("active"), q.key("completed")},
		id, q.now().UnixMilli(), q.completedRetention.Milliseconds(), q.completedMax,
		q.jobKey(""), q.campaignKey("")).Int()
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return res == 1, nil
}

// Fail records a failed attempt. The job is re-delayed with exponential
// backoff while attempts remain, otherwise moved to the failed set.
// Returns the attempt count, or -1 when the job was removed while it ran.
func (q *Queue) Fail(ctx context.Context, id, errMsg string) (int, error) {
	res, err := failCmd.Run(ctx, q.client,
		[]string{q.key("active"), q.key("delayed"), q.key("failed")},
		id, errMsg, q.now().UnixMilli(), q.maxAttempts, q.backoffBase.Milliseconds(),
		q.failedRetention.Milliseconds(), q.jobKey(""), q.campaignKey("")).Int()
	if err != nil {
		return 0, fmt.Errorf("fail job: %w", err)
	}
	return res, nil
}

// RemoveByCampaign drops all waiting, active and delayed jobs for one
// campaign. Completed and failed history stays until retention.
func (q *Queue) RemoveByCampaign(ctx context.Context, campaignID string) (int, error) {
	res, err := removeCmd.Run(ctx, q.client,
		[]string{q.key("waiting"), q.key("active"), q.key("delayed"), q.campaignKey(campaignID)},
		q.jobKey("")).Int()
	if err != nil {
		return 0, fmt.Errorf("remove campaign jobs: %w", err)
	}
	return res, nil
}

// RequeueStalled returns active jobs claimed before now-stalledAfter to the
// waiting set, counting the stall as an attempt. Returns (requeued, failed).
func (q *Queue) RequeueStalled(ctx context.Context, stalledAfter time.Duration) (int, int, error) {
	now := q.now()
	res, err := stalledCmd.Run(ctx, q.client,
		[]string{q.key("active"), q.key("waiting"), q.key("failed")},
		now.UnixMilli(), now.Add(-stalledAfter).UnixMilli(), q.maxAttempts,
		q.jobKey("")).Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("requeue stalled: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("requeue stalled: unexpected reply %v", res)
	}
	return int(res[0].(int64)), int(res[1].(int64)), nil
}

// ListByCampaign returns one campaign's jobs in the given state, in job id
// order.
func (q *Queue) ListByCampaign(ctx context.Context, campaignID string, state State) ([]*Job, error) {
	ids, err := q.client.SMembers(ctx, q.campaignKey(campaignID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list campaign jobs: %w", err)
	}
	sort.Slice(ids, func(i, k int) bool {
		a, _ := strconv.ParseInt(ids[i], 10, 64)
		b, _ := strconv.ParseInt(ids[k], 10, 64)
		return a < b
	})

	pipe := q.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, q.jobKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("load campaign jobs: %w", err)
	}

	var jobs []*Job
	for i, cmd := range cmds {
		fields := cmd.Val()
		if fields["state"] != string(state) {
			continue
		}
		j := &Job{}
		if err := json.Unmarshal([]byte(fields["data"]), j); err != nil {
			continue
		}
		j.ID = ids[i]
		j.AttemptsMade, _ = strconv.Atoi(fields["attempts"])
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Stats returns the size of each queue state set.
func (q *Queue) Stats(ctx context.Context) (map[string]int64, error) {
	pipe := q.client.Pipeline()
	states := []State{StateWaiting, StateActive, StateDelayed, StateCompleted, StateFailed}
	cmds := make(map[State]*redis.IntCmd, len(states))
	for _, s := range states {
		cmds[s] = pipe.ZCard(ctx, q.key(string(s)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	out := make(map[string]int64, len(states))
	for s, cmd := range cmds {
		out[string(s)] = cmd.Val()
	}
	return out, nil
}
