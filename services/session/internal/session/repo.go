package session

import (
	"context"

	"github.com/google/uuid"
)

type ReceiptRepo interface {
	Create(ctx context.Context, receipt *Receipt) error
	Get(ctx context.Context, id uuid.UUID) (*Receipt, error)
	ListByTable(ctx context.Context, tableNumber string) ([]*Receipt, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StateStore is the shared persistence medium for session state: a string
// key-value store with last-writer-wins semantics. Read returns "" for an
// absent key. Change notification is the watcher's concern (see
// RemoteStateSubscriber).
type StateStore interface {
	Read(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, key string, value string) error
}

// RoundSubmitter delivers an accepted round to the backend (kitchen). The
// store treats it as an opaque awaitable; transport details live elsewhere.
type RoundSubmitter interface {
	SubmitRound(ctx context.Context, session *TableSession, record *OrderRecord) error
}

// TableCloser settles a closed table: archiving the receipt and announcing
// the table is free again.
type TableCloser interface {
	CloseTable(ctx context.Context, receipt *Receipt) error
}
