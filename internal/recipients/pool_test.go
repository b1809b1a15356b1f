package recipients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailwarm/internal/config"
	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/storage"
)

type fakeSent struct {
	byCampaign map[string]map[string]bool
	all        map[string]bool
	deleted    []string
}

func (f *fakeSent) SentRecipients(ctx context.Context, campaignID string) (map[string]bool, error) {
	return f.byCampaign[campaignID], nil
}

func (f *fakeSent) AllSentRecipients(ctx context.Context) (map[string]bool, error) {
	return f.all, nil
}

func (f *fakeSent) DeleteByCampaign(ctx context.Context, campaignID string) (int64, error) {
	f.deleted = append(f.deleted, campaignID)
	n := len(f.byCampaign[campaignID])
	delete(f.byCampaign, campaignID)
	return int64(n), nil
}

func storageConfig() config.StorageConfig {
	return config.StorageConfig{
		GlobalListKey:      "lists/global.csv",
		UnsubscribeListKey: "lists/unsubscribes.csv",
		CustomListPrefix:   "lists/custom/",
	}
}

func warmupCampaign(enabled bool) *domain.Campaign {
	return &domain.Campaign{
		ID: "camp-1",
		Configuration: domain.Configuration{
			EmailListSource: domain.ListSourceGlobal,
			WarmupMode:      domain.WarmupMode{Enabled: enabled},
		},
	}
}

func TestEligibleGlobalDedup(t *testing.T) {
	store := storage.NewMemoryStore()
	putObject(t, store, "lists/global.csv", "email\na@x.com\nb@x.com\nc@x.com\nd@x.com\n")
	putObject(t, store, "lists/unsubscribes.csv", "d@x.com,1700000000\n")

	sent := &fakeSent{all: map[string]bool{"b@x.com": true}}
	pool := NewPool(store, sent, storageConfig())

	res, err := pool.Eligible(context.Background(), warmupCampaign(false))
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com", "c@x.com"}, res.Recipients)
	assert.Equal(t, 4, res.Stats.TotalInList)
	assert.Equal(t, 1, res.Stats.AlreadySent)
	assert.Equal(t, 1, res.Stats.Unsubscribed)
	assert.Equal(t, 2, res.Stats.Eligible)
	assert.False(t, res.WarmupReset)
}

func TestEligibleWarmupScopedDedup(t *testing.T) {
	store := storage.NewMemoryStore()
	putObject(t, store, "lists/global.csv", "email\na@x.com\nb@x.com\n")

	// b was sent by a different campaign; warm-up dedup must ignore it
	sent := &fakeSent{
		byCampaign: map[string]map[string]bool{"camp-2": {"b@x.com": true}},
		all:        map[string]bool{"b@x.com": true},
	}
	pool := NewPool(store, sent, storageConfig())

	res, err := pool.Eligible(context.Background(), warmupCampaign(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, res.Recipients)
}

func TestEligibleWarmupExhaustionReset(t *testing.T) {
	store := storage.NewMemoryStore()
	putObject(t, store, "lists/global.csv", "email\na@x.com\nb@x.com\nc@x.com\n")
	putObject(t, store, "lists/unsubscribes.csv", "c@x.com,1700000000\n")

	sent := &fakeSent{byCampaign: map[string]map[string]bool{
		"camp-1": {"a@x.com": true, "b@x.com": true},
	}}
	pool := NewPool(store, sent, storageConfig())

	c := warmupCampaign(true)
	c.Configuration.WarmupMode.CurrentIndex = 2

	res, err := pool.Eligible(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, []string{"camp-1"}, sent.deleted)
	assert.True(t, res.WarmupReset)
	assert.Equal(t, 0, c.Configuration.WarmupMode.CurrentIndex)
	// recompute keeps only the unsubscribe filter
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, res.Recipients)
	assert.Equal(t, 0, res.Stats.AlreadySent)
	assert.Equal(t, 1, res.Stats.Unsubscribed)
}

func TestEligibleNonWarmupNeverResets(t *testing.T) {
	store := storage.NewMemoryStore()
	putObject(t, store, "lists/global.csv", "email\na@x.com\n")

	sent := &fakeSent{all: map[string]bool{"a@x.com": true}}
	pool := NewPool(store, sent, storageConfig())

	res, err := pool.Eligible(context.Background(), warmupCampaign(false))
	require.NoError(t, err)
	assert.Empty(t, res.Recipients)
	assert.Empty(t, sent.deleted)
	assert.False(t, res.WarmupReset)
}

func TestEligibleCustomListSource(t *testing.T) {
	store := storage.NewMemoryStore()
	putObject(t, store, "lists/custom/list-9.csv", "email\ncustom@x.com\n")

	pool := NewPool(store, &fakeSent{}, storageConfig())

	c := warmupCampaign(false)
	c.Configuration.EmailListSource = domain.ListSourceCustom
	c.Configuration.CustomEmailListID = "list-9"

	res, err := pool.Eligible(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom@x.com"}, res.Recipients)
}

func TestEligibleMissingListFails(t *testing.T) {
	store := storage.NewMemoryStore()
	pool := NewPool(store, &fakeSent{}, storageConfig())

	_, err := pool.Eligible(context.Background(), warmupCampaign(false))
	require.Error(t, err)
}

func TestWindow(t *testing.T) {
	list := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name     string
		start    int
		quota    int
		want     []string
		wantNext int
	}{
		{"from start", 0, 2, []string{"a", "b"}, 2},
		{"middle", 2, 2, []string{"c", "d"}, 4},
		{"tail truncates and wraps", 3, 4, []string{"d", "e"}, 0},
		{"exact end wraps", 3, 2, []string{"d", "e"}, 0},
		{"stale index clamps to start", 9, 2, []string{"a", "b"}, 2},
		{"quota covers all", 0, 10, []string{"a", "b", "c", "d", "e"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, next := Window(list, tt.start, tt.quota)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantNext, next)
		})
	}
}

func TestWindowDegenerate(t *testing.T) {
	got, next := Window(nil, 3, 5)
	assert.Nil(t, got)
	assert.Equal(t, 3, next)

	got, next = Window([]string{"a"}, 0, 0)
	assert.Nil(t, got)
	assert.Equal(t, 0, next)
}
