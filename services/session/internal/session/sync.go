package session

import (
	"context"
	"encoding/json"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
)

// StateWatcher delivers change notifications for a key in the shared state
// medium, one raw persisted blob per change.
type StateWatcher interface {
	Watch(ctx context.Context, key string, handler events.HandlerFunc) error
}

// RemoteStateSubscriber reconciles this store with writes made by other
// replicas sharing the same state key. The medium is the source of truth to
// merge FROM; the only thing that always wins locally is the current diner
// identity.
type RemoteStateSubscriber struct {
	watcher StateWatcher
	store   *Store
	logger  apt.Logger
}

func NewRemoteStateSubscriber(watcher StateWatcher, store *Store, logger apt.Logger) *RemoteStateSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &RemoteStateSubscriber{
		watcher: watcher,
		store:   store,
		logger:  logger,
	}
}

func (s *RemoteStateSubscriber) Start(ctx context.Context) error {
	s.logger.Info("starting remote state subscriber", "key", s.store.StateKey())
	return s.watcher.Watch(ctx, s.store.StateKey(), s.handleChange)
}

// handleChange is best-effort and never destructive on failure: a corrupt
// blob is logged and local state stands.
func (s *RemoteStateSubscriber) handleChange(ctx context.Context, raw []byte) error {
	var ps persistedState
	if err := json.Unmarshal(raw, &ps); err != nil {
		s.logger.Error("corrupt remote session state, ignoring", "error", err)
		return nil
	}

	if ps.WriterID == s.store.ID() {
		return nil
	}

	s.store.ApplyRemoteState(ps)
	return nil
}

// ApplyRemoteState merges a remote replica's persisted aggregate into this
// store.
//
//   - no remote session: the other replica vacated the table; clear local
//     state too.
//   - shared cart: union with per-item override. The remote copy of an item
//     id wins, locally-added items the remote does not know about survive,
//     and the local in-flight flag (never persisted) is carried over.
//   - orders and current round: taken wholesale. They are append-only and
//     monotonic, so whichever replica is ahead is authoritative.
//   - current diner: never touched.
func (s *Store) ApplyRemoteState(ps persistedState) {
	s.mu.Lock()

	if ps.Session == nil {
		if s.state.Session != nil {
			s.logger.Info("table vacated by another replica, clearing local state")
			s.clearLocked()
		} else {
			s.mu.Unlock()
			return
		}
	} else {
		local := map[uuid.UUID]CartItem{}
		var localOrder []uuid.UUID
		if s.state.Session != nil {
			for _, item := range s.state.Session.SharedCart {
				local[item.ID] = item
				localOrder = append(localOrder, item.ID)
			}
		}

		remote := map[uuid.UUID]CartItem{}
		for _, item := range ps.Session.SharedCart {
			if held, ok := local[item.ID]; ok {
				item.submitting = held.submitting
			}
			remote[item.ID] = item
		}

		merged := make([]CartItem, 0, len(local)+len(remote))
		for _, id := range localOrder {
			if item, ok := remote[id]; ok {
				merged = append(merged, item)
				delete(remote, id)
			} else {
				merged = append(merged, local[id])
			}
		}
		for _, item := range ps.Session.SharedCart {
			if kept, ok := remote[item.ID]; ok {
				merged = append(merged, kept)
				delete(remote, item.ID)
			}
		}

		session := cloneSession(ps.Session)
		session.SharedCart = merged

		currentID := uuid.Nil
		if s.state.CurrentDiner != nil {
			currentID = s.state.CurrentDiner.ID
		}
		session.MarkCurrentDiner(currentID)

		s.state.Session = session
		s.state.Orders = ps.Orders
		s.state.CurrentRound = ps.CurrentRound
		s.state.LastOrderID = ps.LastOrderID
	}

	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	dispatch(listeners, snapshot)
}
