package domain

import (
	"strings"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// DefaultSendersPerDomain is used when a domain has no configured senders.
const DefaultSendersPerDomain = 5

// SenderEmail is one configured sending identity.
type SenderEmail struct {
	Email  string `json:"email"`
	Domain string `json:"domain"`
	Active bool   `json:"active"`
}

// WarmupMode controls warm-up cycling over the recipient pool.
type WarmupMode struct {
	Enabled      bool `json:"enabled"`
	CurrentIndex int  `json:"current_index"`
}

// EmailListSource selects which recipient list a campaign draws from.
type EmailListSource string

const (
	ListSourceGlobal EmailListSource = "global"
	ListSourceCustom EmailListSource = "custom"
)

// Configuration is the delivery configuration of a campaign. Immutable while
// the campaign is running, except warmup_mode.current_index.
type Configuration struct {
	Domains                []string          `json:"domains"`
	SenderEmails           []SenderEmail     `json:"sender_emails"`
	BaseDailyTotal         int               `json:"base_daily_total"`
	TargetSum              int               `json:"target_sum"`
	QuotaDays              int               `json:"quota_days"`
	MaxEmailPercentage     float64           `json:"max_email_percentage"`
	RandomizationIntensity float64           `json:"randomization_intensity"`
	EmailListSource        EmailListSource   `json:"email_list_source"`
	CustomEmailListID      string            `json:"custom_email_list_id,omitempty"`
	WarmupMode             WarmupMode        `json:"warmup_mode"`
	TemplateData           map[string]string `json:"template_data,omitempty"`
}

// ActiveSenders returns the active configured senders for one domain.
func (c *Configuration) ActiveSenders(domain string) []SenderEmail {
	var out []SenderEmail
	for _, s := range c.SenderEmails {
		if s.Active && strings.EqualFold(s.Domain, domain) {
			out = append(out, s)
		}
	}
	return out
}

// MaxActiveSendersPerDomain returns the sender count used by the plan
// generator: the maximum number of active senders on any configured domain,
// or DefaultSendersPerDomain when none are configured.
func (c *Configuration) MaxActiveSendersPerDomain() int {
	max := 0
	for _, d := range c.Domains {
		if n := len(c.ActiveSenders(d)); n > max {
			max = n
		}
	}
	if max == 0 {
		return DefaultSendersPerDomain
	}
	return max
}

// Progress tracks cumulative delivery counters and day position.
type Progress struct {
	CurrentDay          int        `json:"current_day"`
	StartedOnUTCDay     string     `json:"started_on_utc_day,omitempty"`
	LastDayTransitionAt *time.Time `json:"last_day_transition_at,omitempty"`
	TotalSent           int        `json:"total_sent"`
	TotalDelivered      int        `json:"total_delivered"`
	TotalFailed         int        `json:"total_failed"`
	TotalBounced        int        `json:"total_bounced"`
	TotalOpened         int        `json:"total_opened"`
	TotalClicked        int        `json:"total_clicked"`
	TotalUnsubscribed   int        `json:"total_unsubscribed"`
	LastSentAt          *time.Time `json:"last_sent_at,omitempty"`
}

// EmailListStats summarizes the eligibility filtering of the last plan run.
type EmailListStats struct {
	TotalInList  int `json:"total_in_list"`
	AlreadySent  int `json:"already_sent"`
	Unsubscribed int `json:"unsubscribed"`
	Eligible     int `json:"eligible"`
}

// PlanSummary holds the generated plans, one appended per campaign day.
type PlanSummary struct {
	TotalRecipients int            `json:"total_recipients"`
	EmailListStats  EmailListStats `json:"email_list_stats"`
	DailyPlans      []DailyPlan    `json:"daily_plans"`
}

// PlanForDay returns the stored plan for a day, or nil.
func (p *PlanSummary) PlanForDay(day int) *DailyPlan {
	for i := range p.DailyPlans {
		if p.DailyPlans[i].Day == day {
			return &p.DailyPlans[i]
		}
	}
	return nil
}

// Campaign is the persistent campaign entity.
type Campaign struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	TemplateNames []string       `json:"template_names"`
	Status        CampaignStatus `json:"status"`
	CreatedBy     string         `json:"created_by,omitempty"`
	Configuration Configuration  `json:"configuration"`
	Progress      Progress       `json:"progress"`
	Plan          PlanSummary    `json:"plan"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	StartedBy     string         `json:"started_by,omitempty"`
	PausedAt      *time.Time     `json:"paused_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	FailedAt      *time.Time     `json:"failed_at,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignFailed
}

// CanStart reports whether a start transition is legal from the current state.
func (c *Campaign) CanStart() bool {
	switch c.Status {
	case CampaignDraft, CampaignPaused, CampaignCompleted:
		return true
	}
	return false
}

// UTCDay formats t as the campaign day key (YYYY-MM-DD in UTC).
func UTCDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
