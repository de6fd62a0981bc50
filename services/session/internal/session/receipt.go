package session

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

// Receipt is the archived outcome of a closed table: the full round history
// plus the computed split, written once and never mutated.
type Receipt struct {
	ID           uuid.UUID      `json:"id" bson:"_id"`
	SessionID    uuid.UUID      `json:"session_id" bson:"session_id"`
	TableNumber  string         `json:"table_number" bson:"table_number"`
	RestaurantID string         `json:"restaurant_id" bson:"restaurant_id"`
	Rounds       []OrderRecord  `json:"rounds" bson:"rounds"`
	Total        float64        `json:"total" bson:"total"`
	SplitMethod  SplitMethod    `json:"split_method" bson:"split_method"`
	Shares       []PaymentShare `json:"shares" bson:"shares"`
	ClosedBy     string         `json:"closed_by" bson:"closed_by"`
	ClosedAt     time.Time      `json:"closed_at" bson:"closed_at"`
}

func (r *Receipt) GetID() uuid.UUID {
	return r.ID
}

func (r *Receipt) ResourceType() string {
	return "receipt"
}

// NewReceipt snapshots a session's history and split into an archive record.
func NewReceipt(session *TableSession, orders []OrderRecord, method SplitMethod, shares []PaymentShare, closedBy string) *Receipt {
	return &Receipt{
		ID:           apt.GenerateNewID(),
		SessionID:    session.ID,
		TableNumber:  session.TableNumber,
		RestaurantID: session.RestaurantID,
		Rounds:       orders,
		Total:        OrdersTotal(orders),
		SplitMethod:  method,
		Shares:       shares,
		ClosedBy:     closedBy,
		ClosedAt:     time.Now(),
	}
}
