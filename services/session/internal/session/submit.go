package session

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"

	"github.com/sharedtab/sharedtab/pkg"
)

// SubmitOrder moves the current cart through the submitting → committed
// lifecycle, rolling back on any failure. Exactly one submission may be in
// flight per store; a second attempt is rejected outright, not queued.
//
// Items stay in the live cart flagged as in-flight rather than being
// removed, so nothing is ever lost and items added while the round is in
// flight are neither swept into it nor dropped by the commit.
func (s *Store) SubmitOrder(ctx context.Context) (*OrderRecord, error) {
	s.mu.Lock()

	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if s.state.Session == nil || s.state.CurrentDiner == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	if len(s.state.Session.SharedCart) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}

	if vacated, expired := s.expireIfNeededLocked(ctx); expired {
		listeners, snapshot := s.pendingNotifyLocked()
		s.mu.Unlock()
		s.publishVacated(ctx, vacated)
		dispatch(listeners, snapshot)
		return nil, ErrSessionExpired
	}

	// Everything the round needs is captured here, before any suspension
	// point: a rolled-back and retried submission reuses the same previous
	// round and so produces the same round number it would have the first
	// time.
	submitter := *s.state.CurrentDiner
	previousRound := s.state.CurrentRound
	snapshot := make([]CartItem, len(s.state.Session.SharedCart))
	copy(snapshot, s.state.Session.SharedCart)
	for i := range snapshot {
		snapshot[i].submitting = false
	}

	// Last look before flagging: the expiry guard window between validation
	// and the flag write.
	if vacated, expired := s.expireIfNeededLocked(ctx); expired {
		listeners, state := s.pendingNotifyLocked()
		s.mu.Unlock()
		s.publishVacated(ctx, vacated)
		dispatch(listeners, state)
		return nil, ErrSessionExpired
	}

	flagged := make(map[string]bool, len(snapshot))
	for _, item := range snapshot {
		flagged[item.ID.String()] = true
	}
	cart := s.state.Session.SharedCart
	for i := range cart {
		if flagged[cart[i].ID.String()] {
			cart[i].submitting = true
		}
	}
	s.submitting = true

	record := &OrderRecord{
		ID:              apt.GenerateNewID(),
		RoundNumber:     previousRound + 1,
		Items:           snapshot,
		Subtotal:        cartSubtotal(snapshot),
		Status:          "submitted",
		SubmittedBy:     submitter.ID,
		SubmittedByName: submitter.Name,
		SubmittedAt:     s.now(),
	}
	sessionCopy := cloneSession(s.state.Session)
	s.mu.Unlock()

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.submitter.SubmitRound(ctx, sessionCopy, record)
	})

	s.mu.Lock()
	s.submitting = false

	if s.state.Session == nil {
		// Cleared while the round was in flight (expiry or a remote
		// vacate). The local aggregate must stay consistent with what
		// callers can observe, nominal backend success notwithstanding.
		s.mu.Unlock()
		return nil, ErrSessionExpired
	}

	expired := SessionExpired(s.state.Session.CreatedAt, s.state.Session.LastActivity, s.expiryWindow, s.now())

	if err != nil || expired {
		s.rollbackLocked()
		var vacated *pkg.TableVacatedEvent
		if expired {
			vacated = s.vacatedLocked(s.state.Session, "expired")
			s.clearLocked()
			s.persistLocked(ctx)
		}
		listeners, state := s.pendingNotifyLocked()
		s.mu.Unlock()
		s.publishVacated(ctx, vacated)
		dispatch(listeners, state)
		if expired {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("order submission failed: %w", err)
	}

	// Commit: append the record, advance the round, and drop only the
	// lines still flagged in flight. Items added during the window stay.
	kept := s.state.Session.SharedCart[:0]
	for _, item := range s.state.Session.SharedCart {
		if !item.submitting {
			kept = append(kept, item)
		}
	}
	s.state.Session.SharedCart = kept
	s.state.Orders = append(s.state.Orders, *record)
	s.state.CurrentRound = record.RoundNumber
	s.state.LastOrderID = record.ID
	s.state.Session.Touch(s.now())
	s.persistLocked(ctx)

	s.logger.Info("order round committed",
		"round", record.RoundNumber,
		"items", len(record.Items),
		"subtotal", record.Subtotal,
		"submitted_by", record.SubmittedByName)

	listeners, state := s.pendingNotifyLocked()
	s.mu.Unlock()
	dispatch(listeners, state)
	return record, nil
}

// rollbackLocked returns in-flight lines to normal editable cart lines.
// A re-add of an in-flight product sits on a separate line while the round
// is pending, so unflagging merges lines back together by product and
// owner, summing quantities under the cap. Caller holds the lock.
func (s *Store) rollbackLocked() {
	if s.state.Session == nil {
		return
	}
	cart := s.state.Session.SharedCart
	kept := cart[:0]
	index := make(map[string]int, len(cart))
	for _, item := range cart {
		item.submitting = false
		key := item.ProductID + "/" + item.DinerID.String()
		if at, ok := index[key]; ok {
			quantity := kept[at].Quantity + item.Quantity
			if quantity > MaxItemQuantity {
				quantity = MaxItemQuantity
			}
			kept[at].Quantity = quantity
			if item.Notes != "" {
				kept[at].Notes = item.Notes
			}
			continue
		}
		index[key] = len(kept)
		kept = append(kept, item)
	}
	s.state.Session.SharedCart = kept
}

// expireIfNeededLocked clears the aggregate when the session has outlived
// the expiry window, persisting the cleared state. It returns the captured
// vacated event for the caller to publish once the lock is released. Caller
// holds the lock.
func (s *Store) expireIfNeededLocked(ctx context.Context) (*pkg.TableVacatedEvent, bool) {
	if s.state.Session == nil {
		return nil, false
	}
	if !SessionExpired(s.state.Session.CreatedAt, s.state.Session.LastActivity, s.expiryWindow, s.now()) {
		return nil, false
	}
	s.logger.Info("table session expired mid-operation, clearing",
		"table_number", s.state.Session.TableNumber)
	vacated := s.vacatedLocked(s.state.Session, "expired")
	s.clearLocked()
	s.persistLocked(ctx)
	return vacated, true
}
