package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/sharedtab/sharedtab/pkg"
)

// KitchenStatusSubscriber advances committed round records as their tickets
// move through the kitchen.
type KitchenStatusSubscriber struct {
	subscriber events.Subscriber
	store      *Store
	logger     apt.Logger
}

func NewKitchenStatusSubscriber(sub events.Subscriber, store *Store, logger apt.Logger) *KitchenStatusSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &KitchenStatusSubscriber{
		subscriber: sub,
		store:      store,
		logger:     logger,
	}
}

func (s *KitchenStatusSubscriber) Start(ctx context.Context) error {
	s.log().Info("starting kitchen status subscriber", "topic", pkg.KitchenTicketTopic)
	if s.subscriber == nil {
		return fmt.Errorf("kitchen status subscriber not configured")
	}
	return s.subscriber.Subscribe(ctx, pkg.KitchenTicketTopic, s.handleEvent)
}

func (s *KitchenStatusSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var metadata pkg.KitchenEventMetadata
	if err := json.Unmarshal(msg, &metadata); err != nil {
		s.log().Info("invalid kitchen ticket event", "error", err)
		return nil
	}

	switch metadata.EventType {
	case pkg.EventKitchenStatusChanged:
		return s.handleStatusChange(ctx, msg)
	default:
		s.log().Debug("unhandled kitchen ticket event type", "event_type", metadata.EventType)
		return nil
	}
}

func (s *KitchenStatusSubscriber) handleStatusChange(ctx context.Context, msg []byte) error {
	var evt pkg.KitchenStatusChangedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.log().Info("invalid status change event", "error", err)
		return nil
	}

	if evt.OrderID == "" {
		s.logger.Debug("status change event missing order_id", "ticket_id", evt.TicketID)
		return nil
	}
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		s.logger.Info("invalid order_id in event", "order_id", evt.OrderID)
		return nil
	}

	status := mapKitchenStatus(evt.NewStatus)
	if status == "" {
		s.logger.Debug("no status mapping for kitchen status", "status", evt.NewStatus)
		return nil
	}

	if s.store.ApplyOrderStatus(ctx, orderID, status) {
		s.logger.Info("round status updated from kitchen event",
			"order_id", orderID.String(),
			"new_status", status,
			"ticket_id", evt.TicketID)
	}
	return nil
}

// mapKitchenStatus translates kitchen ticket status codes into round record
// statuses. Unknown codes map to "" and are ignored.
func mapKitchenStatus(kitchenStatus string) string {
	switch kitchenStatus {
	case "created", "started":
		return "confirmed"
	case "ready":
		return "ready"
	case "delivered":
		return "delivered"
	default:
		return ""
	}
}

func (s *KitchenStatusSubscriber) log() apt.Logger {
	return s.logger.With("component", "KitchenStatusSubscriber")
}

// ApplyOrderStatus advances the matching round record to status. Backward
// and unknown transitions are dropped, so replayed or out-of-order kitchen
// events cannot regress a record. Returns whether anything changed.
func (s *Store) ApplyOrderStatus(ctx context.Context, orderID uuid.UUID, status string) bool {
	s.mu.Lock()

	index := -1
	for i := range s.state.Orders {
		if s.state.Orders[i].ID == orderID {
			index = i
			break
		}
	}
	if index < 0 {
		s.mu.Unlock()
		return false
	}

	record := &s.state.Orders[index]
	var changed bool
	switch status {
	case "confirmed":
		changed = record.MarkConfirmed()
	case "ready":
		changed = record.MarkReady()
	case "delivered":
		changed = record.MarkDelivered()
	}
	if !changed {
		s.mu.Unlock()
		return false
	}

	s.persistLocked(ctx)
	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	dispatch(listeners, snapshot)
	return true
}
