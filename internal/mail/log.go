package mail

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ignite/mailwarm/internal/pkg/logger"
)

// LogTransport is the dry-run provider: it logs each send and fabricates a
// message id. Selected with `mail.provider: log`.
type LogTransport struct{}

func NewLogTransport() *LogTransport { return &LogTransport{} }

func (t *LogTransport) Send(ctx context.Context, msg *Message) (string, error) {
	id := fmt.Sprintf("log-%s", uuid.NewString())
	log.Printf("[MailLog] Would send %s to %s from %s (campaign %s, id %s)",
		msg.TemplateName, logger.RedactEmail(msg.To), msg.From, msg.CampaignID, id)
	return id, nil
}
