package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements is the idempotent DDL for all tables this package owns.
// migrations/001_init.sql carries the same statements for cmd/migrate;
// EnsureSchema lets the server come up against a fresh database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		id                     VARCHAR(100) PRIMARY KEY,
		name                   TEXT NOT NULL,
		template_names         JSONB NOT NULL DEFAULT '[]',
		status                 VARCHAR(20) NOT NULL DEFAULT 'draft',
		created_by             VARCHAR(100) NOT NULL DEFAULT '',
		config                 JSONB NOT NULL DEFAULT '{}',
		current_day            INT NOT NULL DEFAULT 1,
		started_on_utc_day     VARCHAR(10) NOT NULL DEFAULT '',
		last_day_transition_at TIMESTAMPTZ,
		total_sent             INT NOT NULL DEFAULT 0,
		total_delivered        INT NOT NULL DEFAULT 0,
		total_failed           INT NOT NULL DEFAULT 0,
		total_bounced          INT NOT NULL DEFAULT 0,
		total_opened           INT NOT NULL DEFAULT 0,
		total_clicked          INT NOT NULL DEFAULT 0,
		total_unsubscribed     INT NOT NULL DEFAULT 0,
		last_sent_at           TIMESTAMPTZ,
		plan_total_recipients  INT NOT NULL DEFAULT 0,
		email_list_stats       JSONB NOT NULL DEFAULT '{}',
		daily_plans            JSONB NOT NULL DEFAULT '[]',
		started_at             TIMESTAMPTZ,
		started_by             VARCHAR(100) NOT NULL DEFAULT '',
		paused_at              TIMESTAMPTZ,
		completed_at           TIMESTAMPTZ,
		failed_at              TIMESTAMPTZ,
		error_message          TEXT NOT NULL DEFAULT '',
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status)`,

	`CREATE TABLE IF NOT EXISTS sent_emails (
		id                 VARCHAR(100) PRIMARY KEY,
		campaign_id        VARCHAR(100) NOT NULL,
		recipient_email    VARCHAR(320) NOT NULL,
		recipient_domain   VARCHAR(255) NOT NULL DEFAULT '',
		sender_email       VARCHAR(320) NOT NULL DEFAULT '',
		sender_domain      VARCHAR(255) NOT NULL DEFAULT '',
		template_name      VARCHAR(200) NOT NULL DEFAULT '',
		message_id         VARCHAR(200) NOT NULL DEFAULT '',
		status             VARCHAR(20) NOT NULL DEFAULT 'queued',
		day                INT NOT NULL DEFAULT 1,
		hour               INT NOT NULL DEFAULT 0,
		minute             INT NOT NULL DEFAULT 0,
		second             INT NOT NULL DEFAULT 0,
		attempt_number     INT NOT NULL DEFAULT 1,
		processing_time_ms BIGINT NOT NULL DEFAULT 0,
		queued_at          TIMESTAMPTZ,
		sent_at            TIMESTAMPTZ,
		delivered_at       TIMESTAMPTZ,
		opened_at          TIMESTAMPTZ,
		clicked_at         TIMESTAMPTZ,
		bounced_at         TIMESTAMPTZ,
		failed_at          TIMESTAMPTZ,
		unsubscribed_at    TIMESTAMPTZ,
		open_count         INT NOT NULL DEFAULT 0,
		click_count        INT NOT NULL DEFAULT 0,
		last_opened_at     TIMESTAMPTZ,
		last_clicked_at    TIMESTAMPTZ,
		user_agent         TEXT NOT NULL DEFAULT '',
		ip_address         VARCHAR(64) NOT NULL DEFAULT '',
		error_details      TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT sent_emails_campaign_recipient_day_key UNIQUE (campaign_id, recipient_email, day)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_emails_campaign_status ON sent_emails(campaign_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_emails_campaign_day ON sent_emails(campaign_id, day)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_emails_message_id ON sent_emails(message_id)`,

	`CREATE TABLE IF NOT EXISTS campaign_events (
		id          BIGSERIAL PRIMARY KEY,
		campaign_id VARCHAR(100) NOT NULL,
		message_id  VARCHAR(200) NOT NULL DEFAULT '',
		event_type  VARCHAR(50) NOT NULL,
		recipient   VARCHAR(320) NOT NULL DEFAULT '',
		user_agent  TEXT NOT NULL DEFAULT '',
		ip_address  VARCHAR(64) NOT NULL DEFAULT '',
		link        TEXT NOT NULL DEFAULT '',
		details     JSONB NOT NULL DEFAULT '{}',
		event_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaign_events_campaign ON campaign_events(campaign_id, event_at)`,

	`CREATE TABLE IF NOT EXISTS daily_analytics (
		campaign_id        VARCHAR(100) NOT NULL,
		day                INT NOT NULL,
		total_sent         INT NOT NULL DEFAULT 0,
		total_delivered    INT NOT NULL DEFAULT 0,
		total_failed       INT NOT NULL DEFAULT 0,
		total_bounced      INT NOT NULL DEFAULT 0,
		total_opened       INT NOT NULL DEFAULT 0,
		total_clicked      INT NOT NULL DEFAULT 0,
		unique_opens       INT NOT NULL DEFAULT 0,
		unique_clicks      INT NOT NULL DEFAULT 0,
		delivery_rate      NUMERIC(6,2) NOT NULL DEFAULT 0,
		bounce_rate        NUMERIC(6,2) NOT NULL DEFAULT 0,
		open_rate          NUMERIC(6,2) NOT NULL DEFAULT 0,
		click_rate         NUMERIC(6,2) NOT NULL DEFAULT 0,
		click_to_open_rate NUMERIC(6,2) NOT NULL DEFAULT 0,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (campaign_id, day)
	)`,

	`CREATE TABLE IF NOT EXISTS daily_analytics_hours (
		campaign_id VARCHAR(100) NOT NULL,
		day         INT NOT NULL,
		hour        INT NOT NULL,
		sent        INT NOT NULL DEFAULT 0,
		delivered   INT NOT NULL DEFAULT 0,
		failed      INT NOT NULL DEFAULT 0,
		PRIMARY KEY (campaign_id, day, hour)
	)`,

	`CREATE TABLE IF NOT EXISTS daily_analytics_domains (
		campaign_id VARCHAR(100) NOT NULL,
		day         INT NOT NULL,
		domain      VARCHAR(255) NOT NULL,
		sent        INT NOT NULL DEFAULT 0,
		delivered   INT NOT NULL DEFAULT 0,
		failed      INT NOT NULL DEFAULT 0,
		PRIMARY KEY (campaign_id, day, domain)
	)`,

	`CREATE TABLE IF NOT EXISTS daily_analytics_senders (
		campaign_id VARCHAR(100) NOT NULL,
		day         INT NOT NULL,
		sender      VARCHAR(320) NOT NULL,
		sent        INT NOT NULL DEFAULT 0,
		delivered   INT NOT NULL DEFAULT 0,
		failed      INT NOT NULL DEFAULT 0,
		PRIMARY KEY (campaign_id, day, sender)
	)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
