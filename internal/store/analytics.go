package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ignite/mailwarm/internal/domain"
)

// AnalyticsStore maintains the per-(campaign, day) rollups. Counter updates
// are single-statement increments so concurrent workers and webhook handlers
// never clobber each other; rates are recomputed from the stored counters
// after every write.
type AnalyticsStore struct {
	db *sql.DB
}

func NewAnalyticsStore(db *sql.DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

// summary column for each breakdown counter.
var summaryColumns = map[string]string{
	"sent":      "total_sent",
	"delivered": "total_delivered",
	"failed":    "total_failed",
}

// EnsureDay upserts the rollup row for (campaign, day) with its 24-hour
// skeleton. Safe to call concurrently.
func (s *AnalyticsStore) EnsureDay(ctx context.Context, campaignID string, day int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_analytics (campaign_id, day)
		VALUES ($1, $2)
		ON CONFLICT (campaign_id, day) DO NOTHING`,
		campaignID, day,
	)
	if err != nil {
		return fmt.Errorf("ensure daily analytics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_analytics_hours (campaign_id, day, hour)
		SELECT $1, $2, h FROM generate_series(0, 23) AS h
		ON CONFLICT (campaign_id, day, hour) DO NOTHING`,
		campaignID, day,
	)
	if err != nil {
		return fmt.Errorf("ensure hourly skeleton: %w", err)
	}
	return nil
}

// RecordSent bumps the sent counters across summary, hour, domain and sender
// breakdowns for one accepted send.
func (s *AnalyticsStore) RecordSent(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain string) error {
	return s.record(ctx, campaignID, day, hour, sender, recipientDomain, "sent")
}

// RecordDelivered bumps the delivered counters.
func (s *AnalyticsStore) RecordDelivered(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain string) error {
	return s.record(ctx, campaignID, day, hour, sender, recipientDomain, "delivered")
}

// RecordFailed bumps the failed counters.
func (s *AnalyticsStore) RecordFailed(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain string) error {
	return s.record(ctx, campaignID, day, hour, sender, recipientDomain, "failed")
}

func (s *AnalyticsStore) record(ctx context.Context, campaignID string, day, hour int, sender, recipientDomain, counter string) error {
	summaryCol, ok := summaryColumns[counter]
	if !ok {
		return fmt.Errorf("record analytics: unknown counter %q", counter)
	}
	if err := s.EnsureDay(ctx, campaignID, day); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE daily_analytics
		SET %s = %s + 1, updated_at = NOW()
		WHERE campaign_id = $1 AND day = $2`, summaryCol, summaryCol),
		campaignID, day,
	)
	if err != nil {
		return fmt.Errorf("record analytics summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE daily_analytics_hours
		SET %s = %s + 1
		WHERE campaign_id = $1 AND day = $2 AND hour = $3`, counter, counter),
		campaignID, day, hour,
	)
	if err != nil {
		return fmt.Errorf("record analytics hour: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO daily_analytics_domains (campaign_id, day, domain, %s)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (campaign_id, day, domain)
		DO UPDATE SET %s = daily_analytics_domains.%s + 1`, counter, counter, counter),
		campaignID, day, recipientDomain,
	)
	if err != nil {
		return fmt.Errorf("record analytics domain: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO daily_analytics_senders (campaign_id, day, sender, %s)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (campaign_id, day, sender)
		DO UPDATE SET %s = daily_analytics_senders.%s + 1`, counter, counter, counter),
		campaignID, day, sender,
	)
	if err != nil {
		return fmt.Errorf("record analytics sender: %w", err)
	}

	return s.recomputeRates(ctx, campaignID, day)
}

// SummaryDelta carries the engagement counters the webhook path adds to a
// day's summary. Breakdown rows are untouched by these events.
type SummaryDelta struct {
	Bounced      int
	Opened       int
	Clicked      int
	UniqueOpens  int
	UniqueClicks int
}

// AddSummary applies engagement increments from provider events to the
// summary counters and recomputes rates.
func (s *AnalyticsStore) AddSummary(ctx context.Context, campaignID string, day int, d SummaryDelta) error {
	if err := s.EnsureDay(ctx, campaignID, day); err != nil {
		return err
	}

	sets := []string{}
	args := []interface{}{}
	inc := func(col string, n int) {
		if n == 0 {
			return
		}
		args = append(args, n)
		sets = append(sets, fmt.Sprintf("%s = %s + $%d", col, col, len(args)))
	}
	inc("total_bounced", d.Bounced)
	inc("total_opened", d.Opened)
	inc("total_clicked", d.Clicked)
	inc("unique_opens", d.UniqueOpens)
	inc("unique_clicks", d.UniqueClicks)
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, campaignID, day)

	query := fmt.Sprintf(`UPDATE daily_analytics SET %s WHERE campaign_id = $%d AND day = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add analytics summary: %w", err)
	}

	return s.recomputeRates(ctx, campaignID, day)
}

// recomputeRates derives the ratio columns from the stored counters in one
// statement. Undefined ratios stay 0.
func (s *AnalyticsStore) recomputeRates(ctx context.Context, campaignID string, day int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_analytics SET
			delivery_rate      = CASE WHEN total_sent > 0 THEN ROUND(total_delivered::numeric / total_sent, 2) ELSE 0 END,
			bounce_rate        = CASE WHEN total_sent > 0 THEN ROUND(total_bounced::numeric / total_sent, 2) ELSE 0 END,
			open_rate          = CASE WHEN total_delivered > 0 THEN ROUND(total_opened::numeric / total_delivered, 2) ELSE 0 END,
			click_rate         = CASE WHEN total_delivered > 0 THEN ROUND(total_clicked::numeric / total_delivered, 2) ELSE 0 END,
			click_to_open_rate = CASE WHEN unique_opens > 0 THEN ROUND(total_clicked::numeric / unique_opens, 2) ELSE 0 END,
			updated_at         = NOW()
		WHERE campaign_id = $1 AND day = $2`,
		campaignID, day,
	)
	if err != nil {
		return fmt.Errorf("recompute analytics rates: %w", err)
	}
	return nil
}

// Get assembles the full rollup for one (campaign, day).
func (s *AnalyticsStore) Get(ctx context.Context, campaignID string, day int) (*domain.DailyAnalytics, error) {
	da := &domain.DailyAnalytics{}
	err := s.db.QueryRowContext(ctx, `
		SELECT campaign_id, day,
			total_sent, total_delivered, total_failed, total_bounced, total_opened, total_clicked,
			unique_opens, unique_clicks,
			delivery_rate, bounce_rate, open_rate, click_rate, click_to_open_rate,
			created_at, updated_at
		FROM daily_analytics
		WHERE campaign_id = $1 AND day = $2`,
		campaignID, day,
	).Scan(
		&da.CampaignID, &da.Day,
		&da.Summary.TotalSent, &da.Summary.TotalDelivered, &da.Summary.TotalFailed,
		&da.Summary.TotalBounced, &da.Summary.TotalOpened, &da.Summary.TotalClicked,
		&da.Summary.UniqueOpens, &da.Summary.UniqueClicks,
		&da.Rates.DeliveryRate, &da.Rates.BounceRate, &da.Rates.OpenRate,
		&da.Rates.ClickRate, &da.Rates.ClickToOpenRate,
		&da.CreatedAt, &da.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("daily analytics day %d: %w", day, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get daily analytics: %w", err)
	}

	if da.Hourly, err = s.hours(ctx, campaignID, day); err != nil {
		return nil, err
	}
	if da.Domains, err = s.domains(ctx, campaignID, day); err != nil {
		return nil, err
	}
	if da.Senders, err = s.senders(ctx, campaignID, day); err != nil {
		return nil, err
	}
	return da, nil
}

// ListByCampaign returns every day's rollup for a campaign in day order.
func (s *AnalyticsStore) ListByCampaign(ctx context.Context, campaignID string) ([]domain.DailyAnalytics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day FROM daily_analytics
		WHERE campaign_id = $1
		ORDER BY day ASC`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily analytics: %w", err)
	}
	var days []int
	for rows.Next() {
		var day int
		if err := rows.Scan(&day); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan analytics day: %w", err)
		}
		days = append(days, day)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []domain.DailyAnalytics
	for _, day := range days {
		da, err := s.Get(ctx, campaignID, day)
		if err != nil {
			return nil, err
		}
		out = append(out, *da)
	}
	return out, nil
}

func (s *AnalyticsStore) hours(ctx context.Context, campaignID string, day int) ([]domain.HourlyStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hour, sent, delivered, failed
		FROM daily_analytics_hours
		WHERE campaign_id = $1 AND day = $2
		ORDER BY hour ASC`,
		campaignID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("get hourly breakdown: %w", err)
	}
	defer rows.Close()

	var hours []domain.HourlyStat
	for rows.Next() {
		var h domain.HourlyStat
		if err := rows.Scan(&h.Hour, &h.Sent, &h.Delivered, &h.Failed); err != nil {
			return nil, fmt.Errorf("scan hourly breakdown: %w", err)
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

func (s *AnalyticsStore) domains(ctx context.Context, campaignID string, day int) ([]domain.DomainStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, sent, delivered, failed
		FROM daily_analytics_domains
		WHERE campaign_id = $1 AND day = $2
		ORDER BY sent DESC, domain ASC`,
		campaignID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("get domain breakdown: %w", err)
	}
	defer rows.Close()

	var stats []domain.DomainStat
	for rows.Next() {
		var d domain.DomainStat
		if err := rows.Scan(&d.Domain, &d.Sent, &d.Delivered, &d.Failed); err != nil {
			return nil, fmt.Errorf("scan domain breakdown: %w", err)
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

func (s *AnalyticsStore) senders(ctx context.Context, campaignID string, day int) ([]domain.SenderStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, sent, delivered, failed
		FROM daily_analytics_senders
		WHERE campaign_id = $1 AND day = $2
		ORDER BY sent DESC, sender ASC`,
		campaignID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("get sender breakdown: %w", err)
	}
	defer rows.Close()

	var stats []domain.SenderStat
	for rows.Next() {
		var st domain.SenderStat
		if err := rows.Scan(&st.Email, &st.Sent, &st.Delivered, &st.Failed); err != nil {
			return nil, fmt.Errorf("scan sender breakdown: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
