package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/mailwarm/internal/domain"
)

// CampaignStore owns the campaigns table. Lifecycle transitions are
// status-guarded single statements so concurrent API calls cannot race a
// campaign into an illegal state, and counter updates are atomic
// increments, never read-modify-write.
type CampaignStore struct{ db *sql.DB }

// NewCampaignStore creates a Postgres-backed campaign store.
func NewCampaignStore(db *sql.DB) *CampaignStore { return &CampaignStore{db: db} }

const campaignColumns = `id, name, template_names, status, created_by, config,
	current_day, started_on_utc_day, last_day_transition_at,
	total_sent, total_delivered, total_failed, total_bounced,
	total_opened, total_clicked, total_unsubscribed, last_sent_at,
	plan_total_recipients, email_list_stats, daily_plans,
	started_at, started_by, paused_at, completed_at, failed_at,
	error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var (
		templatesJSON, configJSON, statsJSON, plansJSON []byte

		lastDayTransition, lastSent, startedAt, pausedAt, completedAt, failedAt sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.Name, &templatesJSON, &c.Status, &c.CreatedBy, &configJSON,
		&c.Progress.CurrentDay, &c.Progress.StartedOnUTCDay, &lastDayTransition,
		&c.Progress.TotalSent, &c.Progress.TotalDelivered, &c.Progress.TotalFailed, &c.Progress.TotalBounced,
		&c.Progress.TotalOpened, &c.Progress.TotalClicked, &c.Progress.TotalUnsubscribed, &lastSent,
		&c.Plan.TotalRecipients, &statsJSON, &plansJSON,
		&startedAt, &c.StartedBy, &pausedAt, &completedAt, &failedAt,
		&c.ErrorMessage, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(templatesJSON, &c.TemplateNames); err != nil {
		return nil, fmt.Errorf("decode template_names: %w", err)
	}
	if err := json.Unmarshal(configJSON, &c.Configuration); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := json.Unmarshal(statsJSON, &c.Plan.EmailListStats); err != nil {
		return nil, fmt.Errorf("decode email_list_stats: %w", err)
	}
	if err := json.Unmarshal(plansJSON, &c.Plan.DailyPlans); err != nil {
		return nil, fmt.Errorf("decode daily_plans: %w", err)
	}

	c.Progress.LastDayTransitionAt = timePtr(lastDayTransition)
	c.Progress.LastSentAt = timePtr(lastSent)
	c.StartedAt = timePtr(startedAt)
	c.PausedAt = timePtr(pausedAt)
	c.CompletedAt = timePtr(completedAt)
	c.FailedAt = timePtr(failedAt)

	return c, nil
}

// Create inserts a new campaign in draft state.
func (s *CampaignStore) Create(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.CampaignDraft
	}
	if c.Progress.CurrentDay == 0 {
		c.Progress.CurrentDay = 1
	}
	if c.TemplateNames == nil {
		c.TemplateNames = []string{}
	}

	templatesJSON, err := json.Marshal(c.TemplateNames)
	if err != nil {
		return fmt.Errorf("encode template_names: %w", err)
	}
	configJSON, err := json.Marshal(c.Configuration)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, template_names, status, created_by, config, current_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Name, templatesJSON, c.Status, c.CreatedBy, configJSON, c.Progress.CurrentDay)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// Get loads one campaign by id.
func (s *CampaignStore) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)

	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// List returns campaigns, optionally filtered by status, newest first.
func (s *CampaignStore) List(ctx context.Context, status string) ([]domain.Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CampaignUpdate is a partial update of mutable campaign fields. All of
// these are rejected while the campaign is running.
type CampaignUpdate struct {
	Name          *string
	TemplateNames []string
	Configuration *domain.Configuration
}

// Update applies a partial update. Returns ErrConflictingState if the
// campaign is running.
func (s *CampaignStore) Update(ctx context.Context, id string, u CampaignUpdate) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.TemplateNames != nil {
		b, err := json.Marshal(u.TemplateNames)
		if err != nil {
			return fmt.Errorf("encode template_names: %w", err)
		}
		add("template_names", b)
	}
	if u.Configuration != nil {
		b, err := json.Marshal(u.Configuration)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		add("config", b)
	}

	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	q := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d AND status <> 'running'",
		strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// Delete removes a campaign. Rejected while running.
func (s *CampaignStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND status <> 'running'`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// MarkRunning performs the start transition: legal from draft, paused and
// completed. A start is a fresh delivery cycle, so the day position and
// stored plans reset; lifetime counters do not.
func (s *CampaignStore) MarkRunning(ctx context.Context, id, startedBy, utcDay string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'running', started_at = NOW(), started_by = $2,
		    started_on_utc_day = $3, paused_at = NULL, completed_at = NULL,
		    current_day = 1, daily_plans = '[]', plan_total_recipients = 0,
		    error_message = '', updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'paused', 'completed')
	`, id, startedBy, utcDay)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// MarkPaused performs the pause transition. Legal only from running.
func (s *CampaignStore) MarkPaused(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'paused', paused_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, id)
	if err != nil {
		return fmt.Errorf("mark paused: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// MarkResumed performs the resume transition. Legal only from paused; the
// day position and stored plans are preserved.
func (s *CampaignStore) MarkResumed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'running', paused_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'paused'
	`, id)
	if err != nil {
		return fmt.Errorf("mark resumed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// MarkCompleted performs the exhausted transition. Legal only from running.
func (s *CampaignStore) MarkCompleted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// MarkFailed records an unrecoverable error. Legal from running and paused.
func (s *CampaignStore) MarkFailed(ctx context.Context, id, errorMessage string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'failed', failed_at = NOW(), error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('running', 'paused')
	`, id, errorMessage)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// ProgressDelta is a batch of atomic counter increments.
type ProgressDelta struct {
	Sent         int
	Delivered    int
	Failed       int
	Bounced      int
	Opened       int
	Clicked      int
	Unsubscribed int
	// TouchLastSent also stamps progress.last_sent_at.
	TouchLastSent bool
}

// AddProgress increments progress counters in a single statement. Webhook
// events may arrive after a campaign completes, so there is no status guard.
func (s *CampaignStore) AddProgress(ctx context.Context, id string, d ProgressDelta) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	inc := func(col string, n int) {
		if n == 0 {
			return
		}
		sets = append(sets, fmt.Sprintf("%s = %s + $%d", col, col, idx))
		args = append(args, n)
		idx++
	}

	inc("total_sent", d.Sent)
	inc("total_delivered", d.Delivered)
	inc("total_failed", d.Failed)
	inc("total_bounced", d.Bounced)
	inc("total_opened", d.Opened)
	inc("total_clicked", d.Clicked)
	inc("total_unsubscribed", d.Unsubscribed)
	if d.TouchLastSent {
		sets = append(sets, "last_sent_at = NOW()")
	}

	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	q := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("add progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// SetWarmupIndex atomically rewrites configuration.warmup_mode.current_index.
// This is the one configuration field that mutates while running.
func (s *CampaignStore) SetWarmupIndex(ctx context.Context, id string, index int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET config = jsonb_set(config, '{warmup_mode,current_index}', to_jsonb($2::int)),
		    updated_at = NOW()
		WHERE id = $1
	`, id, index)
	if err != nil {
		return fmt.Errorf("set warmup index: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// SetDailyPlan stores the plan for one day, replacing any previous plan
// for that day, and refreshes the eligibility stats of the latest run.
func (s *CampaignStore) SetDailyPlan(ctx context.Context, id string, plan *domain.DailyPlan, totalRecipients int, stats domain.EmailListStats) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode daily plan: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode email_list_stats: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET daily_plans = COALESCE((
		        SELECT jsonb_agg(p) FROM jsonb_array_elements(daily_plans) AS p
		        WHERE (p->>'day')::int <> $2
		    ), '[]'::jsonb) || $3::jsonb,
		    plan_total_recipients = $4,
		    email_list_stats = $5,
		    updated_at = NOW()
		WHERE id = $1
	`, id, plan.Day, planJSON, totalRecipients, statsJSON)
	if err != nil {
		return fmt.Errorf("set daily plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// SetDayTransition atomically moves a running campaign to a new day.
func (s *CampaignStore) SetDayTransition(ctx context.Context, id string, newDay int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET current_day = $2, last_day_transition_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, id, newDay)
	if err != nil {
		return fmt.Errorf("set day transition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// AddSender appends a sender to configuration.sender_emails. Rejected
// while running, like all configuration mutations.
func (s *CampaignStore) AddSender(ctx context.Context, id string, sender domain.SenderEmail) error {
	b, err := json.Marshal(sender)
	if err != nil {
		return fmt.Errorf("encode sender: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET config = jsonb_set(config, '{sender_emails}',
		        COALESCE(config->'sender_emails', '[]'::jsonb) || $2::jsonb),
		    updated_at = NOW()
		WHERE id = $1 AND status <> 'running'
	`, id, b)
	if err != nil {
		return fmt.Errorf("add sender: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// UpdateSender replaces the sender entry whose email matches.
func (s *CampaignStore) UpdateSender(ctx context.Context, id, email string, sender domain.SenderEmail) error {
	b, err := json.Marshal(sender)
	if err != nil {
		return fmt.Errorf("encode sender: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET config = jsonb_set(config, '{sender_emails}', COALESCE((
		        SELECT jsonb_agg(CASE WHEN e->>'email' = $2 THEN $3::jsonb ELSE e END)
		        FROM jsonb_array_elements(config->'sender_emails') AS e
		    ), '[]'::jsonb)),
		    updated_at = NOW()
		WHERE id = $1 AND status <> 'running'
	`, id, email, b)
	if err != nil {
		return fmt.Errorf("update sender: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// RemoveSender drops the sender entry whose email matches.
func (s *CampaignStore) RemoveSender(ctx context.Context, id, email string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET config = jsonb_set(config, '{sender_emails}', COALESCE((
		        SELECT jsonb_agg(e) FROM jsonb_array_elements(config->'sender_emails') AS e
		        WHERE e->>'email' <> $2
		    ), '[]'::jsonb)),
		    updated_at = NOW()
		WHERE id = $1 AND status <> 'running'
	`, id, email)
	if err != nil {
		return fmt.Errorf("remove sender: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.statusConflict(ctx, id)
	}
	return nil
}

// statusConflict turns a zero-rows guard miss into the precise error:
// the campaign either does not exist or is in a state the caller may not
// transition from.
func (s *CampaignStore) statusConflict(ctx context.Context, id string) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM campaigns WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.ErrCampaignNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve status conflict: %w", err)
	}
	return fmt.Errorf("%w: campaign %s is %s", domain.ErrConflictingState, id, status)
}
