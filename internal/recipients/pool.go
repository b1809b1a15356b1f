// Package recipients produces the eligible recipient list for a campaign:
// the configured email list minus everyone already contacted and everyone
// unsubscribed. Lists live in the object store as CSV; sent history comes
// from the message store.
package recipients

import (
	"context"
	"log"
	"time"

	"github.com/ignite/mailwarm/internal/config"
	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/storage"
)

// SentLookup is the slice of the message store the pool needs.
type SentLookup interface {
	// SentRecipients returns recipients with an attempted send for one campaign.
	SentRecipients(ctx context.Context, campaignID string) (map[string]bool, error)
	// AllSentRecipients returns recipients with an attempted send across all campaigns.
	AllSentRecipients(ctx context.Context) (map[string]bool, error)
	// DeleteByCampaign removes one campaign's sent records. Only the
	// warm-up exhaustion reset may call this.
	DeleteByCampaign(ctx context.Context, campaignID string) (int64, error)
}

// Pool computes campaign eligibility.
type Pool struct {
	store    storage.ObjectStore
	messages SentLookup
	cfg      config.StorageConfig
}

// NewPool creates a recipient pool over the given object store and sent history.
func NewPool(store storage.ObjectStore, messages SentLookup, cfg config.StorageConfig) *Pool {
	return &Pool{store: store, messages: messages, cfg: cfg}
}

// Result is the outcome of an eligibility run.
type Result struct {
	// Recipients in source-list order after all filters.
	Recipients []string
	Stats      domain.EmailListStats
	// WarmupReset reports that warm-up exhaustion cleared the campaign's
	// sent history. The caller must persist the rewound warm-up index.
	WarmupReset bool
}

// Eligible computes the filtered recipient list for a campaign.
//
// Warm-up campaigns deduplicate against their own sent history only and,
// when that history has consumed the whole list, the history is cleared
// and the list becomes eligible again from the top. Non-warm-up campaigns
// deduplicate against sends from every campaign.
func (p *Pool) Eligible(ctx context.Context, c *domain.Campaign) (*Result, error) {
	emails, err := LoadEmailList(ctx, p.store, p.listKey(&c.Configuration))
	if err != nil {
		return nil, err
	}

	unsubscribed, err := LoadUnsubscribed(ctx, p.store, p.cfg.UnsubscribeListKey)
	if err != nil {
		return nil, err
	}

	warmup := c.Configuration.WarmupMode.Enabled

	var sent map[string]bool
	if warmup {
		sent, err = p.messages.SentRecipients(ctx, c.ID)
	} else {
		sent, err = p.messages.AllSentRecipients(ctx)
	}
	if err != nil {
		return nil, err
	}

	result := filter(emails, sent, unsubscribed)

	if warmup && len(result.Recipients) == 0 && len(emails) > 0 {
		removed, err := p.messages.DeleteByCampaign(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		log.Printf("[RecipientPool] Warm-up exhausted for campaign %s: cleared %d sent records, restarting list", c.ID, removed)
		c.Configuration.WarmupMode.CurrentIndex = 0

		result = filter(emails, nil, unsubscribed)
		result.WarmupReset = true
	}

	return result, nil
}

func (p *Pool) listKey(cfg *domain.Configuration) string {
	if cfg.EmailListSource == domain.ListSourceCustom {
		return CustomListKey(p.cfg.CustomListPrefix, cfg.CustomEmailListID)
	}
	return p.cfg.GlobalListKey
}

func filter(emails []string, sent map[string]bool, unsubscribed map[string]time.Time) *Result {
	r := &Result{Stats: domain.EmailListStats{TotalInList: len(emails)}}
	for _, addr := range emails {
		if _, ok := unsubscribed[addr]; ok {
			r.Stats.Unsubscribed++
			continue
		}
		if sent[addr] {
			r.Stats.AlreadySent++
			continue
		}
		r.Recipients = append(r.Recipients, addr)
	}
	r.Stats.Eligible = len(r.Recipients)
	return r
}

// Window slices quota recipients out of the eligible list starting at
// currentIndex. The slice never wraps within a day; the returned next
// index wraps to 0 once the end of the list is reached.
func Window(list []string, currentIndex, quota int) ([]string, int) {
	if len(list) == 0 || quota <= 0 {
		return nil, currentIndex
	}
	if currentIndex < 0 || currentIndex >= len(list) {
		currentIndex = 0
	}
	end := currentIndex + quota
	if end >= len(list) {
		return list[currentIndex:], 0
	}
	return list[currentIndex:end], end
}
