package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-reports/internal/config"
	"pulse-reports/internal/models"
)

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{APIKey: "test-key", FromEmail: "reports@example.com"}
}

func subscriptionFor(userID string) models.DigestSubscription {
	return models.DigestSubscription{
		UserID:       userID,
		Email:        userID + "@example.com",
		SubscribedAt: time.Now(),
	}
}

func newDigestFixture(t *testing.T) (*DigestService, *fakeDB) {
	t.Helper()
	fixture := newOrchestratorFixture(t, &fakeLLM{response: orchestratorResponse}, &fakeMetricsSource{})
	email := NewEmailService(testEmailConfig())
	digest := NewDigestService(fixture.store, fixture.orchestrator, email, fixture.db, "service-token")
	return digest, fixture.db
}

func TestDigestSubscribeStoresAndSchedules(t *testing.T) {
	digest, db := newDigestFixture(t)

	require.NoError(t, digest.Subscribe(context.Background(), "u1", "u1@example.com", nil))

	sub, err := digest.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "u1@example.com", sub.Email)

	assert.Contains(t, digest.entries, "u1")
	assert.Len(t, db.subs, 1)
}

func TestDigestSubscribeReplacesExistingSchedule(t *testing.T) {
	digest, db := newDigestFixture(t)

	require.NoError(t, digest.Subscribe(context.Background(), "u1", "old@example.com", nil))
	firstEntry := digest.entries["u1"]

	trigger := time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)
	require.NoError(t, digest.Subscribe(context.Background(), "u1", "new@example.com", &trigger))

	assert.Len(t, db.subs, 1)
	assert.Equal(t, "new@example.com", db.subs["u1"].Email)
	assert.NotEqual(t, firstEntry, digest.entries["u1"], "rescheduling replaces the cron entry")
}

func TestDigestUnsubscribeRemovesEntry(t *testing.T) {
	digest, db := newDigestFixture(t)

	require.NoError(t, digest.Subscribe(context.Background(), "u1", "u1@example.com", nil))
	require.NoError(t, digest.Unsubscribe(context.Background(), "u1"))

	sub, err := digest.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.NotContains(t, digest.entries, "u1")
	assert.Empty(t, db.subs)

	// Unsubscribing again is a no-op
	require.NoError(t, digest.Unsubscribe(context.Background(), "u1"))
}

func TestDigestConcurrentSubscribeUnsubscribe(t *testing.T) {
	digest, db := newDigestFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		userID := fmt.Sprintf("u%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				require.NoError(t, digest.Subscribe(context.Background(), userID, userID+"@example.com", nil))
				require.NoError(t, digest.Unsubscribe(context.Background(), userID))
			}
			require.NoError(t, digest.Subscribe(context.Background(), userID, userID+"@example.com", nil))
		}()
	}
	wg.Wait()

	digest.mu.Lock()
	defer digest.mu.Unlock()
	assert.Len(t, digest.entries, 16)
	assert.Len(t, db.subs, 16)
}

func TestDigestLoadAndScheduleSubscriptions(t *testing.T) {
	digest, db := newDigestFixture(t)

	require.NoError(t, db.AddSubscription(context.Background(), subscriptionFor("u1")))
	require.NoError(t, db.AddSubscription(context.Background(), subscriptionFor("u2")))

	require.NoError(t, digest.LoadAndScheduleSubscriptions(context.Background()))
	assert.Len(t, digest.entries, 2)
}
