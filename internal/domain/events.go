package domain

import "time"

// ProviderEventType enumerates the raw event types the mail provider emits.
type ProviderEventType string

const (
	EventSend             ProviderEventType = "Send"
	EventDelivery         ProviderEventType = "Delivery"
	EventOpen             ProviderEventType = "Open"
	EventClick            ProviderEventType = "Click"
	EventBounce           ProviderEventType = "Bounce"
	EventComplaint        ProviderEventType = "Complaint"
	EventReject           ProviderEventType = "Reject"
	EventRenderingFailure ProviderEventType = "Rendering Failure"
)

// MappedStatus returns the SentEmail status a provider event transitions a
// message into. The second return is false for unrecognized event types.
func (t ProviderEventType) MappedStatus() (SentEmailStatus, bool) {
	switch t {
	case EventSend:
		return EmailSent, true
	case EventDelivery:
		return EmailDelivered, true
	case EventOpen:
		return EmailOpened, true
	case EventClick:
		return EmailClicked, true
	case EventBounce:
		return EmailBounced, true
	case EventComplaint, EventReject, EventRenderingFailure:
		return EmailFailed, true
	}
	return "", false
}

// OpenDetail carries the engagement fields of an Open event.
type OpenDetail struct {
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// ClickDetail carries the engagement fields of a Click event.
type ClickDetail struct {
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	Link      string    `json:"link,omitempty"`
}

// BounceDetail carries the classification fields of a Bounce event.
type BounceDetail struct {
	Timestamp  time.Time `json:"timestamp"`
	BounceType string    `json:"bounce_type,omitempty"`
	SubType    string    `json:"sub_type,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
}

// DeliveryDetail carries the fields of a Delivery event.
type DeliveryDetail struct {
	Timestamp            time.Time `json:"timestamp"`
	ProcessingTimeMillis int64     `json:"processing_time_millis,omitempty"`
	SMTPResponse         string    `json:"smtp_response,omitempty"`
}

// FailureDetail carries the fields of Complaint, Reject and Rendering
// Failure events.
type FailureDetail struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// ProviderEvent is the parsed, tagged form of one raw provider event. Exactly
// the detail field matching Type is non-nil.
type ProviderEvent struct {
	Type        ProviderEventType `json:"type"`
	MessageID   string            `json:"message_id"`
	CampaignID  string            `json:"campaign_id"`
	Destination []string          `json:"destination,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Open        *OpenDetail       `json:"open,omitempty"`
	Click       *ClickDetail      `json:"click,omitempty"`
	Bounce      *BounceDetail     `json:"bounce,omitempty"`
	Delivery    *DeliveryDetail   `json:"delivery,omitempty"`
	Failure     *FailureDetail    `json:"failure,omitempty"`
}

// Recipient returns the first destination address, lowercased, or "".
func (e *ProviderEvent) Recipient() string {
	if len(e.Destination) == 0 {
		return ""
	}
	return NewEmailAddress(e.Destination[0]).Email
}

// UserAgent returns the user agent of an engagement event, or "".
func (e *ProviderEvent) UserAgent() string {
	switch {
	case e.Open != nil:
		return e.Open.UserAgent
	case e.Click != nil:
		return e.Click.UserAgent
	case e.Failure != nil:
		return e.Failure.UserAgent
	}
	return ""
}

// IPAddress returns the source address of an engagement event, or "".
func (e *ProviderEvent) IPAddress() string {
	switch {
	case e.Open != nil:
		return e.Open.IPAddress
	case e.Click != nil:
		return e.Click.IPAddress
	}
	return ""
}

// Link returns the clicked link of a Click event, or "".
func (e *ProviderEvent) Link() string {
	if e.Click != nil {
		return e.Click.Link
	}
	return ""
}

// CampaignEvent is the append-only audit record of one provider event.
// Never mutated or deleted.
type CampaignEvent struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	MessageID  string    `json:"message_id,omitempty"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	Recipient  string    `json:"recipient,omitempty"`
	Details    string    `json:"details,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Link       string    `json:"link,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
