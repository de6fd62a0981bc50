package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/sharedtab/sharedtab/pkg"
)

// KitchenSubmitter hands accepted rounds to the kitchen service and fans the
// event out on NATS. The HTTP call is the operation the retry executor
// guards; the event publish is best-effort.
type KitchenSubmitter struct {
	client    *apt.ServiceClient
	publisher events.Publisher
	logger    apt.Logger
}

func NewKitchenSubmitter(client *apt.ServiceClient, publisher events.Publisher, logger apt.Logger) *KitchenSubmitter {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &KitchenSubmitter{
		client:    client,
		publisher: publisher,
		logger:    logger,
	}
}

func (k *KitchenSubmitter) SubmitRound(ctx context.Context, session *TableSession, record *OrderRecord) error {
	if k.client == nil {
		return fmt.Errorf("kitchen client not configured")
	}

	payload := map[string]interface{}{
		"order_id":     record.ID.String(),
		"session_id":   session.ID.String(),
		"table_number": session.TableNumber,
		"round_number": record.RoundNumber,
		"items":        record.Items,
		"subtotal":     record.Subtotal,
		"submitted_by": record.SubmittedByName,
	}

	if _, err := k.client.Create(ctx, "rounds", payload); err != nil {
		return fmt.Errorf("cannot deliver round to kitchen: %w", err)
	}

	k.publishRoundSubmitted(ctx, session, record)
	return nil
}

func (k *KitchenSubmitter) publishRoundSubmitted(ctx context.Context, session *TableSession, record *OrderRecord) {
	if k.publisher == nil {
		return
	}

	event := pkg.RoundSubmittedEvent{
		EventType:   pkg.EventRoundSubmitted,
		SessionID:   session.ID.String(),
		TableNumber: session.TableNumber,
		RoundNumber: record.RoundNumber,
		ItemCount:   len(record.Items),
		Subtotal:    record.Subtotal,
		SubmittedBy: record.SubmittedByName,
		OccurredAt:  time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		k.logger.Error("cannot serialize round submitted event", "error", err)
		return
	}

	if err := k.publisher.Publish(ctx, pkg.SessionRoundTopic, data); err != nil {
		k.logger.Info("cannot publish round submitted event", "error", err)
	}
}
