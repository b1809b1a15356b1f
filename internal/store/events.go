package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/ignite/mailwarm/internal/domain"
)

// EventStore is the append-only log of provider events per campaign.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Append records one campaign event. Events are never updated or deleted.
func (s *EventStore) Append(ctx context.Context, e *domain.CampaignEvent) error {
	eventAt := e.Timestamp
	if eventAt.IsZero() {
		eventAt = time.Now().UTC()
	}
	details := e.Details
	if details == "" {
		details = "{}"
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO campaign_events (campaign_id, message_id, event_type, recipient, user_agent, ip_address, link, details, event_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		e.CampaignID, e.MessageID, e.EventType, e.Recipient, e.UserAgent, e.IPAddress, e.Link, details, eventAt,
	).Scan(&id, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append campaign event: %w", err)
	}
	e.ID = strconv.FormatInt(id, 10)
	e.Timestamp = eventAt
	return nil
}

// ListByCampaign returns the most recent events for a campaign, newest first.
func (s *EventStore) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, message_id, event_type, recipient, user_agent, ip_address, link, details, event_at, created_at
		FROM campaign_events
		WHERE campaign_id = $1
		ORDER BY event_at DESC
		LIMIT $2`,
		campaignID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list campaign events: %w", err)
	}
	defer rows.Close()

	var events []domain.CampaignEvent
	for rows.Next() {
		var (
			e  domain.CampaignEvent
			id int64
		)
		if err := rows.Scan(&id, &e.CampaignID, &e.MessageID, &e.EventType, &e.Recipient, &e.UserAgent, &e.IPAddress, &e.Link, &e.Details, &e.Timestamp, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign event: %w", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		events = append(events, e)
	}
	return events, rows.Err()
}
