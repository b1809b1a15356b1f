package bus

import (
	"sync"
	"time"
)

// Event type names pushed on the bus.
const (
	EventEmailSent         = "email_sent"
	EventEmailFailed       = "email_failed"
	EventEmailDelivered    = "email_delivered"
	EventEmailBounced      = "email_bounced"
	EventEmailOpened       = "email_opened"
	EventEmailClicked      = "email_clicked"
	EventCampaignStarted   = "campaign_started"
	EventCampaignPaused    = "campaign_paused"
	EventCampaignResumed   = "campaign_resumed"
	EventCampaignCompleted = "campaign_completed"
	EventCampaignFailed    = "campaign_failed"
	EventDayTransition     = "day_transition"
)

// Event is one real-time notification for stream subscribers.
type Event struct {
	Type       string                 `json:"type"`
	CampaignID string                 `json:"campaign_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// EventBus fans events out to stream subscribers. Publish never blocks; a
// subscriber that falls behind its buffer misses events.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

func New() *EventBus {
	return &EventBus{subscribers: make(map[string]chan Event)}
}

// Subscribe registers a stream client. The channel is closed by
// Unsubscribe, never by Publish.
func (b *EventBus) Subscribe(id string) <-chan Event {
	ch := make(chan Event, 200)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a stream client and closes its channel.
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish stamps the event and fans it out to every subscriber.
func (b *EventBus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}
