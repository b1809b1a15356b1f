package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailwarm/internal/domain"
)

// MessageStore owns the sent_emails table: one row per intended send per
// (campaign, recipient, day), enforced by a unique constraint. Workers and
// webhook handlers mutate rows concurrently, so every update is a partial
// single-statement write.
type MessageStore struct{ db *sql.DB }

// NewMessageStore creates a Postgres-backed sent-email store.
func NewMessageStore(db *sql.DB) *MessageStore { return &MessageStore{db: db} }

const sentEmailColumns = `id, campaign_id, recipient_email, recipient_domain,
	sender_email, sender_domain, template_name, message_id, status,
	day, hour, minute, second, attempt_number, processing_time_ms,
	queued_at, sent_at, delivered_at, opened_at, clicked_at,
	bounced_at, failed_at, unsubscribed_at,
	open_count, click_count, last_opened_at, last_clicked_at,
	user_agent, ip_address, error_details, created_at, updated_at`

func scanSentEmail(row rowScanner) (*domain.SentEmail, error) {
	s := &domain.SentEmail{}
	var (
		queuedAt, sentAt, deliveredAt, openedAt, clickedAt     sql.NullTime
		bouncedAt, failedAt, unsubscribedAt, lastOpen, lastClk sql.NullTime
	)

	err := row.Scan(
		&s.ID, &s.CampaignID, &s.Recipient.Email, &s.Recipient.Domain,
		&s.Sender.Email, &s.Sender.Domain, &s.TemplateName, &s.MessageID, &s.Status,
		&s.Metadata.Day, &s.Metadata.Hour, &s.Metadata.Minute, &s.Metadata.Second,
		&s.Metadata.AttemptNumber, &s.Metadata.ProcessingTimeMs,
		&queuedAt, &sentAt, &deliveredAt, &openedAt, &clickedAt,
		&bouncedAt, &failedAt, &unsubscribedAt,
		&s.Tracking.OpenCount, &s.Tracking.ClickCount, &lastOpen, &lastClk,
		&s.Tracking.UserAgent, &s.Tracking.IPAddress, &s.ErrorDetails,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Delivery.QueuedAt = timePtr(queuedAt)
	s.Delivery.SentAt = timePtr(sentAt)
	s.Delivery.DeliveredAt = timePtr(deliveredAt)
	s.Delivery.OpenedAt = timePtr(openedAt)
	s.Delivery.ClickedAt = timePtr(clickedAt)
	s.Delivery.BouncedAt = timePtr(bouncedAt)
	s.Delivery.FailedAt = timePtr(failedAt)
	s.Delivery.UnsubscribedAt = timePtr(unsubscribedAt)
	s.Metadata.QueuedAt = s.Delivery.QueuedAt
	s.Tracking.LastOpenedAt = timePtr(lastOpen)
	s.Tracking.LastClickedAt = timePtr(lastClk)

	return s, nil
}

// UpsertQueued records the intended send in queued state. On conflict with
// an existing (campaign, recipient, day) row the row is reclaimed only if
// it is still retryable (queued or failed); an already-attempted row
// yields ErrDuplicateEmail so the caller skips the send. The row id and
// status are written back onto s.
func (m *MessageStore) UpsertQueued(ctx context.Context, s *domain.SentEmail) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	err := m.db.QueryRowContext(ctx, `
		INSERT INTO sent_emails (id, campaign_id, recipient_email, recipient_domain,
			sender_email, sender_domain, template_name, status,
			day, hour, minute, second, attempt_number, queued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued', $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (campaign_id, recipient_email, day) DO UPDATE
		SET status = 'queued', attempt_number = $12,
		    sender_email = EXCLUDED.sender_email, sender_domain = EXCLUDED.sender_domain,
		    template_name = EXCLUDED.template_name,
		    queued_at = NOW(), updated_at = NOW()
		WHERE sent_emails.status IN ('queued', 'failed')
		RETURNING id
	`, s.ID, s.CampaignID, s.Recipient.Email, s.Recipient.Domain,
		s.Sender.Email, s.Sender.Domain, s.TemplateName,
		s.Metadata.Day, s.Metadata.Hour, s.Metadata.Minute, s.Metadata.Second,
		s.Metadata.AttemptNumber).Scan(&s.ID)
	if err == sql.ErrNoRows {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("upsert queued: %w", err)
	}

	s.Status = domain.EmailQueued
	return nil
}

// GetByKey looks up the row for (campaign, recipient, day).
func (m *MessageStore) GetByKey(ctx context.Context, campaignID, recipientEmail string, day int) (*domain.SentEmail, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+sentEmailColumns+` FROM sent_emails
		WHERE campaign_id = $1 AND recipient_email = $2 AND day = $3
	`, campaignID, recipientEmail, day)

	s, err := scanSentEmail(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sent email: %w", err)
	}
	return s, nil
}

// GetByMessageID looks up the row carrying a provider message id.
func (m *MessageStore) GetByMessageID(ctx context.Context, messageID string) (*domain.SentEmail, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+sentEmailColumns+` FROM sent_emails
		WHERE message_id = $1
		LIMIT 1
	`, messageID)

	s, err := scanSentEmail(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get by message id: %w", err)
	}
	return s, nil
}

// MarkSent records a successful provider accept.
func (m *MessageStore) MarkSent(ctx context.Context, id, messageID string, processingMs int64) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE sent_emails
		SET status = 'sent', message_id = $2, sent_at = NOW(),
		    processing_time_ms = $3, updated_at = NOW()
		WHERE id = $1
	`, id, messageID, processingMs)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed records a failed send attempt.
func (m *MessageStore) MarkFailed(ctx context.Context, id, errorDetails string) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE sent_emails
		SET status = 'failed', failed_at = NOW(), error_details = $2, updated_at = NOW()
		WHERE id = $1
	`, id, errorDetails)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// eventTimestampCols maps an event's mapped status onto the timestamp
// column it stamps.
var eventTimestampCols = map[domain.SentEmailStatus]string{
	domain.EmailSent:         "sent_at",
	domain.EmailDelivered:    "delivered_at",
	domain.EmailOpened:       "opened_at",
	domain.EmailClicked:      "clicked_at",
	domain.EmailBounced:      "bounced_at",
	domain.EmailFailed:       "failed_at",
	domain.EmailUnsubscribed: "unsubscribed_at",
}

// MarkEvent applies a provider event: stamps the event's timestamp column
// and sets the (already rank-advanced) final status.
func (m *MessageStore) MarkEvent(ctx context.Context, id string, eventStatus, finalStatus domain.SentEmailStatus, at time.Time) error {
	col, ok := eventTimestampCols[eventStatus]
	if !ok {
		return fmt.Errorf("no timestamp column for status %q", eventStatus)
	}

	res, err := m.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE sent_emails
		SET status = $2, %s = $3, updated_at = NOW()
		WHERE id = $1
	`, col), id, finalStatus, at)
	if err != nil {
		return fmt.Errorf("mark event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordOpen applies an Open event: bumps the open counter and engagement
// fields alongside the status/timestamp write.
func (m *MessageStore) RecordOpen(ctx context.Context, id string, finalStatus domain.SentEmailStatus, at time.Time, userAgent, ipAddress string) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE sent_emails
		SET status = $2, opened_at = $3, open_count = open_count + 1,
		    last_opened_at = $3, user_agent = $4, ip_address = $5, updated_at = NOW()
		WHERE id = $1
	`, id, finalStatus, at, userAgent, ipAddress)
	if err != nil {
		return fmt.Errorf("record open: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordClick applies a Click event, symmetric to RecordOpen.
func (m *MessageStore) RecordClick(ctx context.Context, id string, finalStatus domain.SentEmailStatus, at time.Time, userAgent, ipAddress string) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE sent_emails
		SET status = $2, clicked_at = $3, click_count = click_count + 1,
		    last_clicked_at = $3, user_agent = $4, ip_address = $5, updated_at = NOW()
		WHERE id = $1
	`, id, finalStatus, at, userAgent, ipAddress)
	if err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RealtimeStats aggregates one campaign day by status plus total
// engagement counts. Legacy provider status names are folded onto the
// canonical set.
func (m *MessageStore) RealtimeStats(ctx context.Context, campaignID string, day int) (*domain.RealtimeStats, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(open_count), 0), COALESCE(SUM(click_count), 0)
		FROM sent_emails
		WHERE campaign_id = $1 AND day = $2
		GROUP BY status
	`, campaignID, day)
	if err != nil {
		return nil, fmt.Errorf("realtime stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.RealtimeStats{
		CampaignID: campaignID,
		Day:        day,
		ByStatus:   make(map[string]int),
	}
	for rows.Next() {
		var status string
		var count, opens, clicks int
		if err := rows.Scan(&status, &count, &opens, &clicks); err != nil {
			return nil, fmt.Errorf("scan realtime stats: %w", err)
		}
		stats.ByStatus[string(domain.NormalizeStatus(status))] += count
		stats.TotalOpens += opens
		stats.TotalClicks += clicks
		stats.Total += count
	}
	return stats, rows.Err()
}

// SentRecipients returns recipients with an attempted send for one campaign.
func (m *MessageStore) SentRecipients(ctx context.Context, campaignID string) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT DISTINCT recipient_email FROM sent_emails
		WHERE campaign_id = $1 AND status NOT IN ('queued', 'failed')
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("sent recipients: %w", err)
	}
	return collectRecipients(rows)
}

// AllSentRecipients returns recipients with an attempted send in any campaign.
func (m *MessageStore) AllSentRecipients(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT DISTINCT recipient_email FROM sent_emails
		WHERE status NOT IN ('queued', 'failed')
	`)
	if err != nil {
		return nil, fmt.Errorf("all sent recipients: %w", err)
	}
	return collectRecipients(rows)
}

func collectRecipients(rows *sql.Rows) (map[string]bool, error) {
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out[email] = true
	}
	return out, rows.Err()
}

// DeleteByCampaign removes one campaign's sent history. The warm-up
// exhaustion reset is the only legal caller.
func (m *MessageStore) DeleteByCampaign(ctx context.Context, campaignID string) (int64, error) {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM sent_emails WHERE campaign_id = $1`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("delete by campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
