package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/mailwarm/internal/domain"
)

func expectEnsureDay(mock sqlmock.Sqlmock, campaignID string, day int) {
	mock.ExpectExec("INSERT INTO daily_analytics ").
		WithArgs(campaignID, day).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO daily_analytics_hours").
		WithArgs(campaignID, day).
		WillReturnResult(sqlmock.NewResult(0, 24))
}

func TestAnalyticsStore_RecordSent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	expectEnsureDay(mock, "camp-1", 2)
	mock.ExpectExec("UPDATE daily_analytics").
		WithArgs("camp-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE daily_analytics_hours").
		WithArgs("camp-1", 2, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO daily_analytics_domains").
		WithArgs("camp-1", 2, "example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO daily_analytics_senders").
		WithArgs("camp-1", 2, "warm@ignite.io").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE daily_analytics SET").
		WithArgs("camp-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewAnalyticsStore(db).RecordSent(context.Background(), "camp-1", 2, 10, "warm@ignite.io", "example.com")
	if err != nil {
		t.Fatalf("RecordSent() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAnalyticsStore_AddSummary(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	expectEnsureDay(mock, "camp-1", 1)
	mock.ExpectExec("UPDATE daily_analytics SET total_opened").
		WithArgs(1, 1, "camp-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE daily_analytics SET").
		WithArgs("camp-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewAnalyticsStore(db).AddSummary(context.Background(), "camp-1", 1,
		SummaryDelta{Opened: 1, UniqueOpens: 1})
	if err != nil {
		t.Fatalf("AddSummary() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAnalyticsStore_AddSummaryEmptyDelta(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// EnsureDay still runs; the counter update and rate recompute do not.
	expectEnsureDay(mock, "camp-1", 1)

	err := NewAnalyticsStore(db).AddSummary(context.Background(), "camp-1", 1, SummaryDelta{})
	if err != nil {
		t.Fatalf("AddSummary() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAnalyticsStore_Get(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2024, 1, 2, 23, 59, 0, 0, time.UTC)
	summary := sqlmock.NewRows([]string{
		"campaign_id", "day",
		"total_sent", "total_delivered", "total_failed", "total_bounced", "total_opened", "total_clicked",
		"unique_opens", "unique_clicks",
		"delivery_rate", "bounce_rate", "open_rate", "click_rate", "click_to_open_rate",
		"created_at", "updated_at",
	}).AddRow("camp-1", 2, 40, 38, 2, 1, 12, 5, 9, 4, 0.95, 0.03, 0.32, 0.13, 0.56, now, now)
	mock.ExpectQuery("SELECT campaign_id, day").
		WithArgs("camp-1", 2).
		WillReturnRows(summary)

	hours := sqlmock.NewRows([]string{"hour", "sent", "delivered", "failed"})
	for h := 0; h < 24; h++ {
		sent := 0
		if h == 10 {
			sent = 40
		}
		hours.AddRow(h, sent, 0, 0)
	}
	mock.ExpectQuery("SELECT hour, sent, delivered, failed").
		WithArgs("camp-1", 2).
		WillReturnRows(hours)

	mock.ExpectQuery("SELECT domain, sent, delivered, failed").
		WithArgs("camp-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"domain", "sent", "delivered", "failed"}).
			AddRow("example.com", 30, 29, 1).
			AddRow("other.net", 10, 9, 1))

	mock.ExpectQuery("SELECT sender, sent, delivered, failed").
		WithArgs("camp-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"sender", "sent", "delivered", "failed"}).
			AddRow("warm@ignite.io", 40, 38, 2))

	da, err := NewAnalyticsStore(db).Get(context.Background(), "camp-1", 2)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if da.Summary.TotalSent != 40 || da.Summary.UniqueOpens != 9 {
		t.Errorf("summary = %+v", da.Summary)
	}
	if da.Rates.DeliveryRate != 0.95 || da.Rates.ClickToOpenRate != 0.56 {
		t.Errorf("rates = %+v", da.Rates)
	}
	if len(da.Hourly) != 24 {
		t.Fatalf("hourly entries = %d, want 24", len(da.Hourly))
	}
	if da.Hourly[10].Sent != 40 {
		t.Errorf("hour 10 sent = %d, want 40", da.Hourly[10].Sent)
	}
	// Opens and clicks never touch the hourly rows.
	if da.Hourly[10].Opened != 0 || da.Hourly[10].Clicked != 0 {
		t.Errorf("hour 10 opened/clicked = %d/%d, want 0/0", da.Hourly[10].Opened, da.Hourly[10].Clicked)
	}
	if len(da.Domains) != 2 || da.Domains[0].Domain != "example.com" {
		t.Errorf("domains = %+v", da.Domains)
	}
	if len(da.Senders) != 1 || da.Senders[0].Email != "warm@ignite.io" {
		t.Errorf("senders = %+v", da.Senders)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAnalyticsStore_GetMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT campaign_id, day").
		WithArgs("camp-1", 9).
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}))

	_, err := NewAnalyticsStore(db).Get(context.Background(), "camp-1", 9)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
