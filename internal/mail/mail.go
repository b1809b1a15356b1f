package mail

import "context"

// CampaignTag is the message tag carrying the campaign id through the
// provider and back in on every webhook event.
const CampaignTag = "X-Campaign-ID"

// Message is one templated send. TemplateData arrives fully substituted;
// the provider only fills placeholders in the stored template.
type Message struct {
	From         string
	To           string
	TemplateName string
	TemplateData map[string]string
	CampaignID   string
}

// Transport delivers one message through the outbound provider and returns
// the provider-assigned message id, the join key for later webhook events.
type Transport interface {
	Send(ctx context.Context, msg *Message) (string, error)
}
