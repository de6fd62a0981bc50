package session

import (
	"context"

	"github.com/google/uuid"
)

// AddToCart validates the input and either merges it into the diner's
// existing line for the same product or appends a new line. Calls for the
// same product arriving faster than AddToCartInterval are silently dropped.
// A nil return with no visible change therefore means either "no session"
// or "throttled", both of which are non-errors by design.
func (s *Store) AddToCart(ctx context.Context, in AddToCartInput) error {
	if in.ProductID == "" {
		return newValidationError("product id is required")
	}
	if !validPrice(in.Price) {
		return newValidationError("price must be a positive number")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 || in.Quantity > MaxItemQuantity {
		return newValidationError("quantity must be between 1 and 99")
	}

	s.mu.Lock()
	if s.state.Session == nil || s.state.CurrentDiner == nil {
		s.mu.Unlock()
		return nil
	}

	if !s.addGuard.Allow("add:" + in.ProductID) {
		s.mu.Unlock()
		return nil
	}

	diner := s.state.CurrentDiner
	cart := s.state.Session.SharedCart
	merged := false
	for i := range cart {
		// An in-flight line belongs to the pending round and must not
		// absorb new quantity. The re-add lands on its own line; the two
		// fold back into one on rollback.
		if cart[i].submitting {
			continue
		}
		if cart[i].ProductID == in.ProductID && cart[i].DinerID == diner.ID {
			quantity := cart[i].Quantity + in.Quantity
			if quantity > MaxItemQuantity {
				quantity = MaxItemQuantity
			}
			cart[i].Quantity = quantity
			if in.Notes != "" {
				cart[i].Notes = in.Notes
			}
			merged = true
			break
		}
	}
	if !merged {
		s.state.Session.SharedCart = append(cart, newCartItem(in, diner))
	}

	s.state.Session.Touch(s.now())
	s.persistLocked(ctx)

	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	dispatch(listeners, snapshot)
	return nil
}

// UpdateQuantity changes a cart line's quantity. Quantity zero or below
// removes the line; values above the cap clamp. Lines not owned by the
// current diner are left untouched, as are unknown ids. Updates for the same
// line arriving faster than UpdateQuantityInterval are silently dropped.
func (s *Store) UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	s.mu.Lock()
	if s.state.Session == nil || s.state.CurrentDiner == nil {
		s.mu.Unlock()
		return nil
	}

	if !s.qtyGuard.Allow("qty:" + itemID.String()) {
		s.mu.Unlock()
		return nil
	}

	cart := s.state.Session.SharedCart
	index := -1
	for i := range cart {
		if cart[i].ID == itemID {
			index = i
			break
		}
	}
	if index < 0 || cart[index].DinerID != s.state.CurrentDiner.ID {
		s.mu.Unlock()
		return nil
	}

	if quantity <= 0 {
		s.state.Session.SharedCart = append(cart[:index], cart[index+1:]...)
	} else {
		if quantity > MaxItemQuantity {
			quantity = MaxItemQuantity
		}
		cart[index].Quantity = quantity
	}

	s.state.Session.Touch(s.now())
	s.persistLocked(ctx)

	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	dispatch(listeners, snapshot)
	return nil
}

// RemoveItem is sugar for UpdateQuantity(itemID, 0).
func (s *Store) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	return s.UpdateQuantity(ctx, itemID, 0)
}

// ClearCart empties the shared cart unconditionally. Internal plumbing: it
// is not ownership-scoped.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Session == nil {
		s.mu.Unlock()
		return nil
	}

	s.state.Session.SharedCart = []CartItem{}
	s.persistLocked(ctx)

	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	dispatch(listeners, snapshot)
	return nil
}

// CanModifyItem reports whether the current diner owns the cart line. Pure
// predicate for gating controls; not itself a mutation.
func (s *Store) CanModifyItem(item CartItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentDiner != nil && item.DinerID == s.state.CurrentDiner.ID
}
