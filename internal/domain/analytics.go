package domain

import "time"

// AnalyticsSummary holds the per-day rollup counters.
type AnalyticsSummary struct {
	TotalSent      int `json:"total_sent"`
	TotalDelivered int `json:"total_delivered"`
	TotalFailed    int `json:"total_failed"`
	TotalBounced   int `json:"total_bounced"`
	TotalOpened    int `json:"total_opened"`
	TotalClicked   int `json:"total_clicked"`
	UniqueOpens    int `json:"unique_opens"`
	UniqueClicks   int `json:"unique_clicks"`
}

// HourlyStat is one hour's slice of a day's analytics.
type HourlyStat struct {
	Hour      int `json:"hour"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Opened    int `json:"opened"`
	Clicked   int `json:"clicked"`
}

// DomainStat breaks a day down by recipient domain.
type DomainStat struct {
	Domain    string `json:"domain"`
	Sent      int    `json:"sent"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// SenderStat breaks a day down by sender identity.
type SenderStat struct {
	Email     string `json:"email"`
	Sent      int    `json:"sent"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// AnalyticsRates are derived ratios, recomputed on every write, rounded to
// two decimals. Undefined ratios are 0.
type AnalyticsRates struct {
	DeliveryRate    float64 `json:"delivery_rate"`
	BounceRate      float64 `json:"bounce_rate"`
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
	ClickToOpenRate float64 `json:"click_to_open_rate"`
}

// DailyAnalytics is the rollup for one (campaign, day) pair, with a 24-entry
// hourly breakdown pre-filled at creation.
type DailyAnalytics struct {
	CampaignID string           `json:"campaign_id"`
	Day        int              `json:"day"`
	Summary    AnalyticsSummary `json:"summary"`
	Hourly     []HourlyStat     `json:"hourly_breakdown"`
	Domains    []DomainStat     `json:"domain_breakdown"`
	Senders    []SenderStat     `json:"sender_breakdown"`
	Rates      AnalyticsRates   `json:"rates"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// RealtimeStats is the live per-status aggregation over the current day's
// SentEmail rows, plus total engagement counts.
type RealtimeStats struct {
	CampaignID  string         `json:"campaign_id"`
	Day         int            `json:"day"`
	ByStatus    map[string]int `json:"by_status"`
	TotalOpens  int            `json:"total_opens"`
	TotalClicks int            `json:"total_clicks"`
	Total       int            `json:"total"`
}
