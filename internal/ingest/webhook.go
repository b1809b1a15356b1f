package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/mail"
)

// snsMessageTypeHeader selects the envelope branch; SNS sets it on every
// request it makes.
const snsMessageTypeHeader = "x-amz-sns-message-type"

// snsEnvelope is the SNS wrapper around a provider event.
type snsEnvelope struct {
	Type         string `json:"Type"`
	MessageId    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	SubscribeURL string `json:"SubscribeURL"`
	Message      string `json:"Message"`
}

// EventSink consumes parsed provider events.
type EventSink interface {
	Apply(ctx context.Context, e *domain.ProviderEvent) error
}

// Receiver handles the provider webhook endpoint: SNS envelope handling,
// event parsing and hand-off to the applier.
type Receiver struct {
	sink EventSink
}

// NewReceiver creates the webhook receiver.
func NewReceiver(sink EventSink) *Receiver {
	return &Receiver{sink: sink}
}

// HandleSES processes one webhook request. Subscription confirmations are
// confirmed inline; notifications carry the event in the Message field;
// anything else is tried as a bare provider event. Events that cannot be
// attributed to a campaign are acknowledged and dropped so the provider
// does not redeliver them.
func (rc *Receiver) HandleSES(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var envelope snsEnvelope
	_ = json.Unmarshal(body, &envelope)

	msgType := r.Header.Get(snsMessageTypeHeader)
	if msgType == "" {
		msgType = envelope.Type
	}

	switch msgType {
	case "SubscriptionConfirmation":
		rc.confirmSubscription(w, &envelope)
		return
	case "UnsubscribeConfirmation":
		log.Printf("[Ingest] Topic %s unsubscribed", envelope.TopicArn)
		writeResult(w, 0, 1)
		return
	case "Notification":
		body = []byte(envelope.Message)
	}

	event, err := parseEvent(body)
	if err != nil {
		log.Printf("[Ingest] Dropping event: %v", err)
		writeResult(w, 0, 1)
		return
	}

	if err := rc.sink.Apply(r.Context(), event); err != nil {
		log.Printf("[Ingest] Failed to apply %s event for campaign %s: %v", event.Type, event.CampaignID, err)
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}
	writeResult(w, 1, 0)
}

// confirmSubscription completes the SNS handshake by fetching the
// subscribe URL. A failed fetch returns 500 so SNS redelivers the
// confirmation.
func (rc *Receiver) confirmSubscription(w http.ResponseWriter, envelope *snsEnvelope) {
	if envelope.SubscribeURL == "" {
		http.Error(w, "missing SubscribeURL", http.StatusBadRequest)
		return
	}
	resp, err := http.Get(envelope.SubscribeURL)
	if err != nil {
		log.Printf("[Ingest] Failed to confirm subscription for topic %s: %v", envelope.TopicArn, err)
		http.Error(w, "confirmation failed", http.StatusInternalServerError)
		return
	}
	resp.Body.Close()
	log.Printf("[Ingest] Confirmed subscription for topic %s", envelope.TopicArn)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "confirmed"})
}

func writeResult(w http.ResponseWriter, processed, ignored int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int{"processed": processed, "ignored": ignored})
}

// Raw provider event shapes, as SES event publishing emits them.
type sesEvent struct {
	EventType        string       `json:"eventType"`
	NotificationType string       `json:"notificationType"`
	Mail             sesMail      `json:"mail"`
	Open             *sesOpen     `json:"open"`
	Click            *sesClick    `json:"click"`
	Bounce           *sesBounce   `json:"bounce"`
	Delivery         *sesDelivery `json:"delivery"`
	Complaint        *sesFailure  `json:"complaint"`
	Reject           *sesFailure  `json:"reject"`
	Failure          *sesFailure  `json:"failure"`
}

type sesMail struct {
	MessageID   string              `json:"messageId"`
	Timestamp   time.Time           `json:"timestamp"`
	Source      string              `json:"source"`
	Destination []string            `json:"destination"`
	Tags        map[string][]string `json:"tags"`
}

type sesOpen struct {
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"userAgent"`
	IPAddress string    `json:"ipAddress"`
}

type sesClick struct {
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"userAgent"`
	IPAddress string    `json:"ipAddress"`
	Link      string    `json:"link"`
}

type sesBounce struct {
	Timestamp         time.Time `json:"timestamp"`
	BounceType        string    `json:"bounceType"`
	BounceSubType     string    `json:"bounceSubType"`
	BouncedRecipients []struct {
		EmailAddress   string `json:"emailAddress"`
		DiagnosticCode string `json:"diagnosticCode"`
	} `json:"bouncedRecipients"`
}

type sesDelivery struct {
	Timestamp            time.Time `json:"timestamp"`
	ProcessingTimeMillis int64     `json:"processingTimeMillis"`
	SMTPResponse         string    `json:"smtpResponse"`
}

type sesFailure struct {
	Timestamp             time.Time `json:"timestamp"`
	Reason                string    `json:"reason"`
	ErrorMessage          string    `json:"errorMessage"`
	ComplaintFeedbackType string    `json:"complaintFeedbackType"`
	UserAgent             string    `json:"userAgent"`
}

// parseEvent decodes a raw provider event and tags it with its campaign.
// Events without the campaign tag, with an unknown type, or without a
// message id are malformed: they cannot be attributed and are dropped by
// the caller.
func parseEvent(body []byte) (*domain.ProviderEvent, error) {
	var raw sesEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	eventType := raw.EventType
	if eventType == "" {
		eventType = raw.NotificationType
	}
	t := domain.ProviderEventType(eventType)
	if _, ok := t.MappedStatus(); !ok {
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrMalformedEvent, eventType)
	}

	tags := raw.Mail.Tags[mail.CampaignTag]
	if len(tags) == 0 || tags[0] == "" {
		return nil, fmt.Errorf("%w: no campaign tag on %s event", domain.ErrMalformedEvent, eventType)
	}
	if raw.Mail.MessageID == "" {
		return nil, fmt.Errorf("%w: no message id on %s event", domain.ErrMalformedEvent, eventType)
	}

	e := &domain.ProviderEvent{
		Type:        t,
		MessageID:   raw.Mail.MessageID,
		CampaignID:  tags[0],
		Destination: raw.Mail.Destination,
		Timestamp:   raw.Mail.Timestamp,
	}

	switch t {
	case domain.EventOpen:
		if raw.Open != nil {
			e.Open = &domain.OpenDetail{
				Timestamp: raw.Open.Timestamp,
				UserAgent: raw.Open.UserAgent,
				IPAddress: raw.Open.IPAddress,
			}
			e.Timestamp = pick(raw.Open.Timestamp, e.Timestamp)
		}
	case domain.EventClick:
		if raw.Click != nil {
			e.Click = &domain.ClickDetail{
				Timestamp: raw.Click.Timestamp,
				UserAgent: raw.Click.UserAgent,
				IPAddress: raw.Click.IPAddress,
				Link:      raw.Click.Link,
			}
			e.Timestamp = pick(raw.Click.Timestamp, e.Timestamp)
		}
	case domain.EventBounce:
		if raw.Bounce != nil {
			detail := &domain.BounceDetail{
				Timestamp:  raw.Bounce.Timestamp,
				BounceType: raw.Bounce.BounceType,
				SubType:    raw.Bounce.BounceSubType,
			}
			if len(raw.Bounce.BouncedRecipients) > 0 {
				detail.Diagnostic = raw.Bounce.BouncedRecipients[0].DiagnosticCode
			}
			e.Bounce = detail
			e.Timestamp = pick(raw.Bounce.Timestamp, e.Timestamp)
		}
	case domain.EventDelivery:
		if raw.Delivery != nil {
			e.Delivery = &domain.DeliveryDetail{
				Timestamp:            raw.Delivery.Timestamp,
				ProcessingTimeMillis: raw.Delivery.ProcessingTimeMillis,
				SMTPResponse:         raw.Delivery.SMTPResponse,
			}
			e.Timestamp = pick(raw.Delivery.Timestamp, e.Timestamp)
		}
	case domain.EventComplaint, domain.EventReject, domain.EventRenderingFailure:
		f := raw.Complaint
		if f == nil {
			f = raw.Reject
		}
		if f == nil {
			f = raw.Failure
		}
		if f != nil {
			reason := f.Reason
			if reason == "" {
				reason = f.ErrorMessage
			}
			if reason == "" {
				reason = f.ComplaintFeedbackType
			}
			e.Failure = &domain.FailureDetail{
				Timestamp: f.Timestamp,
				Reason:    reason,
				UserAgent: f.UserAgent,
			}
			e.Timestamp = pick(f.Timestamp, e.Timestamp)
		}
	}
	return e, nil
}

// pick returns primary unless it is zero.
func pick(primary, fallback time.Time) time.Time {
	if primary.IsZero() {
		return fallback
	}
	return primary
}
