//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kindfund/kindfund/internal/testutil"
)

func TestIntegrationWorker_ConsumesPublishedEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	opt, err := redis.ParseURL(testutil.RequireEnv(t, "REDIS_URL"))
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	pub := NewPublisher(client, discardLogger(), nil)
	if _, err := pub.Publish(ctx, DonationEvent{Type: EventDonationCreated, DonationID: 1, CampaignID: 42, OrganizationID: 7}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{"payload": "not json"},
	}).Err(); err != nil {
		t.Fatalf("xadd poison: %v", err)
	}

	inv := &fakeInvalidator{}
	w := NewWorker(client, inv, discardLogger(), NewConsumerID(), nil)
	w.SetBlockTimeout(100 * time.Millisecond)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = w.Run(runCtx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(inv.Calls()) > 0 {
			p, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
			if err == nil && p.Count == 0 {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	shutdownCtx, stop := context.WithTimeout(ctx, 2*time.Second)
	defer stop()
	if err := w.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	calls := inv.Calls()
	if len(calls) != 1 || calls[0].campaign != 42 || calls[0].org != 7 {
		t.Fatalf("invalidations = %+v, want one for campaign 42", calls)
	}

	dlq, err := client.XLen(ctx, DeadLetterStreamKey).Result()
	if err != nil {
		t.Fatalf("xlen dlq: %v", err)
	}
	if dlq != 1 {
		t.Errorf("dead-letter length = %d, want 1", dlq)
	}

	pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("pending = %d, want 0", pending.Count)
	}
}
