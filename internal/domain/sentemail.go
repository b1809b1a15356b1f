package domain

import (
	"strings"
	"time"
)

// SentEmailStatus enumerates the lifecycle of a single intended send.
type SentEmailStatus string

const (
	EmailQueued       SentEmailStatus = "queued"
	EmailSent         SentEmailStatus = "sent"
	EmailDelivered    SentEmailStatus = "delivered"
	EmailFailed       SentEmailStatus = "failed"
	EmailBounced      SentEmailStatus = "bounced"
	EmailOpened       SentEmailStatus = "opened"
	EmailClicked      SentEmailStatus = "clicked"
	EmailUnsubscribed SentEmailStatus = "unsubscribed"
)

// NormalizeStatus maps legacy provider-style status names onto the canonical
// set. Unknown values pass through unchanged.
func NormalizeStatus(s string) SentEmailStatus {
	switch strings.ToLower(s) {
	case "send":
		return EmailSent
	case "delivery":
		return EmailDelivered
	case "open":
		return EmailOpened
	case "click":
		return EmailClicked
	case "bounce":
		return EmailBounced
	}
	return SentEmailStatus(strings.ToLower(s))
}

// EmailAddress pairs an address with its domain part.
type EmailAddress struct {
	Email  string `json:"email"`
	Domain string `json:"domain"`
}

// NewEmailAddress lowercases addr and derives the domain part.
func NewEmailAddress(addr string) EmailAddress {
	addr = strings.ToLower(strings.TrimSpace(addr))
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return EmailAddress{Email: addr}
	}
	return EmailAddress{Email: addr, Domain: addr[at+1:]}
}

// DeliveryTimestamps records when each lifecycle status was reached.
type DeliveryTimestamps struct {
	QueuedAt       *time.Time `json:"queued_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	OpenedAt       *time.Time `json:"opened_at,omitempty"`
	ClickedAt      *time.Time `json:"clicked_at,omitempty"`
	BouncedAt      *time.Time `json:"bounced_at,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
}

// SendMetadata places a message inside its campaign day schedule.
type SendMetadata struct {
	Day              int        `json:"day"`
	Hour             int        `json:"hour"`
	Minute           int        `json:"minute"`
	Second           int        `json:"second"`
	AttemptNumber    int        `json:"attempt_number"`
	QueuedAt         *time.Time `json:"queued_at,omitempty"`
	ProcessingTimeMs int64      `json:"processing_time_ms,omitempty"`
}

// Tracking accumulates engagement counters for one message.
type Tracking struct {
	OpenCount     int        `json:"open_count"`
	ClickCount    int        `json:"click_count"`
	LastOpenedAt  *time.Time `json:"last_opened_at,omitempty"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty"`
	IPAddress     string     `json:"ip_address,omitempty"`
}

// SentEmail is one intended send per (campaign, recipient, day).
type SentEmail struct {
	ID           string             `json:"id"`
	CampaignID   string             `json:"campaign_id"`
	Recipient    EmailAddress       `json:"recipient"`
	Sender       EmailAddress       `json:"sender"`
	TemplateName string             `json:"template_name,omitempty"`
	MessageID    string             `json:"message_id,omitempty"`
	Status       SentEmailStatus    `json:"status"`
	Delivery     DeliveryTimestamps `json:"delivery_status"`
	Metadata     SendMetadata       `json:"metadata"`
	Tracking     Tracking           `json:"tracking"`
	ErrorDetails string             `json:"error_details,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// WasAttempted reports whether the message already went past the retryable
// states. Workers use this as the idempotence gate: queued and failed rows
// may be retried, anything else is done.
func (s *SentEmail) WasAttempted() bool {
	return s.Status != EmailQueued && s.Status != EmailFailed
}

// statusRank orders the delivery lifecycle so out-of-order provider events
// cannot move a message backwards. Bounce outranks delivered (delayed
// bounces are real) but not an observed open.
var statusRank = map[SentEmailStatus]int{
	EmailQueued:       0,
	EmailSent:         10,
	EmailFailed:       20,
	EmailDelivered:    20,
	EmailBounced:      25,
	EmailOpened:       30,
	EmailClicked:      40,
	EmailUnsubscribed: 50,
}

// AdvanceStatus returns the later of current and next in lifecycle order.
func AdvanceStatus(current, next SentEmailStatus) SentEmailStatus {
	if statusRank[next] > statusRank[current] {
		return next
	}
	return current
}
