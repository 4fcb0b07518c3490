package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
	"claimguard/internal/platform/messaging"
)

func TestOutboxRelayKeepsRowWhenSubscriberIsFull(t *testing.T) {
	f := newWorkerFixture(newRecordingExecutor(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	insertClaim(t, f.store, f.clock, "100000", "quest:relay")
	if err := f.worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	bus := messaging.NewBus(1, nil)
	entered := make(chan struct{}, 1)
	block := make(chan struct{})
	delivered := make(chan ports.EventEnvelope, 4)
	bus.Subscribe(ctx, application.SettlementTopic, "notifier", func(_ context.Context, event ports.EventEnvelope) error {
		if event.EventType == "filler" {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-block
			return nil
		}
		delivered <- event
		return nil
	})

	// one filler held by the handler, one filling the buffer
	if err := bus.Publish(ctx, application.SettlementTopic, ports.EventEnvelope{EventID: "f1", EventType: "filler"}); err != nil {
		t.Fatalf("filler publish failed: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected subscriber to hold the filler")
	}
	if err := bus.Publish(ctx, application.SettlementTopic, ports.EventEnvelope{EventID: "f2", EventType: "noop"}); err != nil {
		t.Fatalf("filler publish failed: %v", err)
	}

	relay := OutboxRelay{Outbox: f.store, Publisher: bus, Clock: f.clock}
	if err := relay.RunOnce(ctx); !errors.Is(err, messaging.ErrSubscriberFull) {
		t.Fatalf("expected full subscriber error, got %v", err)
	}
	pending, _ := f.store.ListPendingOutbox(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("expected outbox row to stay pending, got %d", len(pending))
	}

	close(block)
	deadline := time.After(2 * time.Second)
	for {
		err := relay.RunOnce(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, messaging.ErrSubscriberFull) {
			t.Fatalf("unexpected relay error: %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("relay never drained after subscriber recovered")
		case <-time.After(10 * time.Millisecond):
		}
	}
	pending, _ = f.store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained, got %d", len(pending))
	}

	for {
		select {
		case event := <-delivered:
			if event.EventType == application.EventTypeClaimCompleted {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("expected claim.completed delivery")
		}
	}
}
