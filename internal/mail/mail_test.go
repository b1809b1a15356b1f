package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ignite/mailwarm/internal/config"
)

func TestLogTransport_Send(t *testing.T) {
	tr := NewLogTransport()
	id, err := tr.Send(context.Background(), &Message{
		From:         "warm1@sender.example.com",
		To:           "alice@example.com",
		TemplateName: "intro",
		CampaignID:   "camp-1",
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !strings.HasPrefix(id, "log-") {
		t.Errorf("Send() id = %s, want log- prefix", id)
	}

	// Ids are the webhook join key, so even the dry-run provider must not
	// repeat them.
	id2, err := tr.Send(context.Background(), &Message{To: "bob@example.com"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if id2 == id {
		t.Error("Send() returned duplicate message ids")
	}
}

func TestNewSESTransport_Defaults(t *testing.T) {
	tr, err := NewSESTransport(config.MailConfig{})
	if err != nil {
		t.Fatalf("NewSESTransport() error: %v", err)
	}
	if tr.client == nil {
		t.Fatal("client not initialized")
	}
	if tr.timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", tr.timeout)
	}
}
