package pkg

import "time"

const (
	// SessionRoundTopic delivers rounds accepted by the submission machine.
	SessionRoundTopic = "sessions.rounds"
	// SessionTableTopic groups table occupancy events emitted by the session service.
	SessionTableTopic = "sessions.tables"

	// EventRoundSubmitted identifies a submitted round payload.
	EventRoundSubmitted = "session.round.submitted"
	// EventTableVacated identifies a table vacated payload.
	EventTableVacated = "session.table.vacated"
	// EventTableClosed identifies a table closed (paid and archived) payload.
	EventTableClosed = "session.table.closed"

	// KitchenTicketTopic carries ticket lifecycle events published by the
	// kitchen service.
	KitchenTicketTopic = "kitchen.tickets"
	// EventKitchenStatusChanged identifies a ticket status change payload.
	EventKitchenStatusChanged = "kitchen.ticket.status_changed"
)

// KitchenEventMetadata is the minimal envelope shared by every kitchen
// ticket event, parsed first to dispatch on event type.
type KitchenEventMetadata struct {
	EventType string `json:"event_type"`
}

// KitchenStatusChangedEvent reports a ticket moving through the kitchen.
// OrderID references the round record the ticket was opened for.
type KitchenStatusChangedEvent struct {
	EventType  string    `json:"event_type"`
	TicketID   string    `json:"ticket_id"`
	OrderID    string    `json:"order_id"`
	NewStatus  string    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoundSubmittedEvent captures the minimal information downstream services
// (kitchen, operations) need about an accepted round.
type RoundSubmittedEvent struct {
	EventType   string    `json:"event_type"`
	SessionID   string    `json:"session_id"`
	TableNumber string    `json:"table_number"`
	RoundNumber int       `json:"round_number"`
	ItemCount   int       `json:"item_count"`
	Subtotal    float64   `json:"subtotal"`
	SubmittedBy string    `json:"submitted_by"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// TableVacatedEvent communicates that a table session ended without payment,
// either by an explicit leave or by expiry cleanup.
type TableVacatedEvent struct {
	EventType   string    `json:"event_type"`
	SessionID   string    `json:"session_id"`
	TableNumber string    `json:"table_number"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// TableClosedEvent communicates that a table was closed, its bill split and
// the receipt archived.
type TableClosedEvent struct {
	EventType   string    `json:"event_type"`
	SessionID   string    `json:"session_id"`
	TableNumber string    `json:"table_number"`
	ReceiptID   string    `json:"receipt_id"`
	Total       float64   `json:"total"`
	SplitMethod string    `json:"split_method"`
	ClosedBy    string    `json:"closed_by"`
	OccurredAt  time.Time `json:"occurred_at"`
}
