package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "claimguard/contexts/rewards-settlement/claim-settlement/application"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
)

// OutboxRelay publishes settlement outbox rows in creation order. A failed
// publish stops the cycle so later rows are not sent ahead of it.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = application.SettlementTopic
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "claim_outbox_list_failed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, message := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox payload decode failed",
				"event", "claim_outbox_decode_failed",
				"module", "rewards-settlement/claim-settlement",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "claim_outbox_publish_failed",
				"module", "rewards-settlement/claim-settlement",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}

		sentAt := time.Now().UTC()
		if r.Clock != nil {
			sentAt = r.Clock.Now().UTC()
		}
		if err := r.Outbox.MarkOutboxSent(ctx, message.OutboxID, sentAt); err != nil {
			logger.Error("outbox mark sent failed",
				"event", "claim_outbox_mark_sent_failed",
				"module", "rewards-settlement/claim-settlement",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "claim_outbox_relay_completed",
			"module", "rewards-settlement/claim-settlement",
			"layer", "worker",
			"sent_count", len(pending),
		)
	}
	return nil
}
