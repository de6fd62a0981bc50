package session

import (
	"time"

	"github.com/google/uuid"
)

// OrderRecord is an immutable snapshot of one submitted round. Records are
// append-only: once committed they are never removed and their status only
// moves forward.
type OrderRecord struct {
	ID              uuid.UUID  `json:"id" bson:"id"`
	RoundNumber     int        `json:"round_number" bson:"round_number"`
	Items           []CartItem `json:"items" bson:"items"`
	Subtotal        float64    `json:"subtotal" bson:"subtotal"`
	Status          string     `json:"status" bson:"status"`
	SubmittedBy     uuid.UUID  `json:"submitted_by" bson:"submitted_by"`
	SubmittedByName string     `json:"submitted_by_name" bson:"submitted_by_name"`
	SubmittedAt     time.Time  `json:"submitted_at" bson:"submitted_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	ReadyAt         *time.Time `json:"ready_at,omitempty" bson:"ready_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
}

func (o *OrderRecord) GetID() uuid.UUID {
	return o.ID
}

func (o *OrderRecord) ResourceType() string {
	return "order-record"
}

// orderStatusRank orders the forward-only status progression.
var orderStatusRank = map[string]int{
	"submitted": 0,
	"confirmed": 1,
	"ready":     2,
	"delivered": 3,
}

// advanceStatus moves the record to status when that is a forward step.
// Backward transitions are ignored.
func (o *OrderRecord) advanceStatus(status string, at time.Time) bool {
	next, ok := orderStatusRank[status]
	if !ok || next <= orderStatusRank[o.Status] {
		return false
	}
	o.Status = status
	switch status {
	case "confirmed":
		o.ConfirmedAt = &at
	case "ready":
		o.ReadyAt = &at
	case "delivered":
		o.DeliveredAt = &at
	}
	return true
}

func (o *OrderRecord) MarkConfirmed() bool {
	return o.advanceStatus("confirmed", time.Now())
}

func (o *OrderRecord) MarkReady() bool {
	return o.advanceStatus("ready", time.Now())
}

func (o *OrderRecord) MarkDelivered() bool {
	return o.advanceStatus("delivered", time.Now())
}
