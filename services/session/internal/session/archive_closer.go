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

// ArchiveTableCloser settles a table by writing the receipt to the archive
// and announcing the closure. Archiving is the guarded operation; the event
// publish is best-effort.
type ArchiveTableCloser struct {
	receipts  ReceiptRepo
	publisher events.Publisher
	logger    apt.Logger
}

func NewArchiveTableCloser(receipts ReceiptRepo, publisher events.Publisher, logger apt.Logger) *ArchiveTableCloser {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &ArchiveTableCloser{
		receipts:  receipts,
		publisher: publisher,
		logger:    logger,
	}
}

func (c *ArchiveTableCloser) CloseTable(ctx context.Context, receipt *Receipt) error {
	if c.receipts == nil {
		return fmt.Errorf("receipt archive not configured")
	}

	if err := c.receipts.Create(ctx, receipt); err != nil {
		return fmt.Errorf("cannot archive receipt: %w", err)
	}

	c.publishTableClosed(ctx, receipt)
	return nil
}

func (c *ArchiveTableCloser) publishTableClosed(ctx context.Context, receipt *Receipt) {
	if c.publisher == nil {
		return
	}

	event := pkg.TableClosedEvent{
		EventType:   pkg.EventTableClosed,
		SessionID:   receipt.SessionID.String(),
		TableNumber: receipt.TableNumber,
		ReceiptID:   receipt.ID.String(),
		Total:       receipt.Total,
		SplitMethod: string(receipt.SplitMethod),
		ClosedBy:    receipt.ClosedBy,
		OccurredAt:  time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("cannot serialize table closed event", "error", err)
		return
	}

	if err := c.publisher.Publish(ctx, pkg.SessionTableTopic, data); err != nil {
		c.logger.Info("cannot publish table closed event", "error", err)
	}
}
