package session

import (
	"context"
	"fmt"
)

// CloseTable settles the table: computes the split, archives a receipt
// through the TableCloser, and vacates the session. The cart must be empty
// (pending items are not yet consumed and would otherwise vanish unpaid)
// and at least one round must have been submitted.
func (s *Store) CloseTable(ctx context.Context, method SplitMethod) (*Receipt, error) {
	if !method.Valid() {
		return nil, newValidationError("unknown split method")
	}

	s.mu.Lock()

	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if s.state.Session == nil || s.state.CurrentDiner == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	if len(s.state.Session.SharedCart) > 0 {
		s.mu.Unlock()
		return nil, ErrCartNotEmpty
	}
	if len(s.state.Orders) == 0 {
		s.mu.Unlock()
		return nil, ErrNoRounds
	}

	if vacated, expired := s.expireIfNeededLocked(ctx); expired {
		listeners, snapshot := s.pendingNotifyLocked()
		s.mu.Unlock()
		s.publishVacated(ctx, vacated)
		dispatch(listeners, snapshot)
		return nil, ErrSessionExpired
	}

	shares := CalculatePaymentShares(s.state.Session.Diners, s.state.Orders, method)
	receipt := NewReceipt(s.state.Session, append([]OrderRecord(nil), s.state.Orders...), method, shares, s.state.CurrentDiner.Name)
	s.submitting = true
	s.mu.Unlock()

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.closer.CloseTable(ctx, receipt)
	})

	s.mu.Lock()
	s.submitting = false

	if err != nil {
		// The table stays open; the caller may try closing again.
		s.mu.Unlock()
		return nil, fmt.Errorf("table close failed: %w", err)
	}

	if s.state.Session != nil {
		s.state.Session.Close()
	}
	s.logger.Info("table closed",
		"table_number", receipt.TableNumber,
		"total", receipt.Total,
		"split_method", string(receipt.SplitMethod))
	s.clearLocked()
	s.persistLocked(ctx)

	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	dispatch(listeners, snapshot)
	return receipt, nil
}
