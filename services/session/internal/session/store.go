package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/sharedtab/sharedtab/pkg"
)

// DefaultStateKey is the key the session aggregate lives under in the
// shared state medium.
const DefaultStateKey = "table-session"

// State is the session aggregate owned by a Store. Orders are append-only
// and CurrentRound is monotonic; Stale is a non-fatal warning derived at
// rehydration.
type State struct {
	Session      *TableSession
	CurrentDiner *Diner
	Orders       []OrderRecord
	CurrentRound int
	LastOrderID  uuid.UUID
	Stale        bool
}

// persistedState is the wire shape written to the state medium. Runtime
// flags (submitting, loading) are deliberately absent: they reset to
// inactive on every process start.
type persistedState struct {
	WriterID     uuid.UUID     `json:"writer_id"`
	Session      *TableSession `json:"session"`
	CurrentDiner *Diner        `json:"current_diner"`
	Orders       []OrderRecord `json:"orders"`
	CurrentRound int           `json:"current_round"`
	LastOrderID  uuid.UUID     `json:"last_order_id"`
}

type StoreDeps struct {
	StateStore StateStore
	Submitter  RoundSubmitter
	Closer     TableCloser
	Publisher  events.Publisher
}

type StoreOptions struct {
	StateKey     string
	ExpiryWindow time.Duration
	StaleAfter   time.Duration
}

// Store is the single owner of the session/cart/orders aggregate. All
// mutations go through its entry points; replicas sharing the same state
// medium reconcile through ApplyRemoteState, never by writing the aggregate
// directly.
type Store struct {
	mu         sync.Mutex
	id         uuid.UUID
	state      State
	submitting bool

	store     StateStore
	submitter RoundSubmitter
	closer    TableCloser
	publisher events.Publisher
	logger    apt.Logger
	now       func() time.Time

	stateKey     string
	expiryWindow time.Duration
	staleAfter   time.Duration

	addGuard *ThrottleGuard
	qtyGuard *ThrottleGuard
	retry    *RetryExecutor

	listenerSeq int
	listeners   map[int]func(State)
}

func NewStore(deps StoreDeps, opts StoreOptions, logger apt.Logger) *Store {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if opts.StateKey == "" {
		opts.StateKey = DefaultStateKey
	}
	if opts.ExpiryWindow <= 0 {
		opts.ExpiryWindow = DefaultExpiryWindow
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}

	return &Store{
		id:           apt.GenerateNewID(),
		store:        deps.StateStore,
		submitter:    deps.Submitter,
		closer:       deps.Closer,
		publisher:    deps.Publisher,
		logger:       logger,
		now:          time.Now,
		stateKey:     opts.StateKey,
		expiryWindow: opts.ExpiryWindow,
		staleAfter:   opts.StaleAfter,
		addGuard:     NewThrottleGuard(AddToCartInterval),
		qtyGuard:     NewThrottleGuard(UpdateQuantityInterval),
		retry:        NewRetryExecutor(),
		listeners:    map[int]func(State){},
	}
}

// ID identifies this store instance as a writer in the shared medium so its
// own change notifications can be told apart from other replicas'.
func (s *Store) ID() uuid.UUID {
	return s.id
}

func (s *Store) StateKey() string {
	return s.stateKey
}

// State returns a snapshot of the aggregate safe to hand to callers.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener notified with a snapshot after every
// committed mutation. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenerSeq++
	id := s.listenerSeq
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Rehydrate loads the persisted aggregate on process start, clearing it when
// expired and flagging it when stale. A corrupt blob is logged and ignored;
// the store simply starts empty.
func (s *Store) Rehydrate(ctx context.Context) error {
	raw, err := s.store.Read(ctx, s.stateKey)
	if err != nil {
		return err
	}
	if raw == "" {
		return nil
	}

	var ps persistedState
	if err := json.Unmarshal([]byte(raw), &ps); err != nil {
		s.logger.Error("cannot parse persisted session state", "error", err)
		return nil
	}

	s.mu.Lock()
	if ps.Session == nil {
		s.mu.Unlock()
		return nil
	}

	now := s.now()
	if SessionExpired(ps.Session.CreatedAt, ps.Session.LastActivity, s.expiryWindow, now) {
		s.logger.Info("table session expired, clearing persisted state",
			"session_id", ps.Session.ID.String(),
			"table_number", ps.Session.TableNumber)
		vacated := s.vacatedLocked(ps.Session, "expired")
		s.clearLocked()
		s.persistLocked(ctx)
		listeners, snapshot := s.pendingNotifyLocked()
		s.mu.Unlock()
		s.publishVacated(ctx, vacated)
		dispatch(listeners, snapshot)
		return nil
	}

	s.state = State{
		Session:      ps.Session,
		CurrentDiner: ps.CurrentDiner,
		Orders:       ps.Orders,
		CurrentRound: ps.CurrentRound,
		LastOrderID:  ps.LastOrderID,
		Stale:        SessionStale(ps.Session.CreatedAt, s.staleAfter, s.expiryWindow, now),
	}
	if s.state.CurrentDiner != nil {
		s.state.CurrentDiner.IsCurrentUser = true
		s.state.Session.MarkCurrentDiner(s.state.CurrentDiner.ID)
	} else {
		s.state.Session.MarkCurrentDiner(uuid.Nil)
	}

	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	dispatch(listeners, snapshot)
	return nil
}

type JoinTableInput struct {
	TableNumber  string
	RestaurantID string
	Name         string
	Auth         *AuthContext
}

// JoinTable joins the diner to the table's session, creating the session on
// the first join for that table number. Joining a different table while one
// is active vacates the old one first.
func (s *Store) JoinTable(ctx context.Context, in JoinTableInput) (*Diner, error) {
	if in.TableNumber == "" {
		return nil, newValidationError("table number is required")
	}

	name := in.Name
	if name == "" && in.Auth != nil {
		name = in.Auth.FullName
	}

	s.mu.Lock()

	var vacated *pkg.TableVacatedEvent

	if s.state.Session != nil &&
		SessionExpired(s.state.Session.CreatedAt, s.state.Session.LastActivity, s.expiryWindow, s.now()) {
		s.logger.Info("table session expired on join, clearing", "table_number", s.state.Session.TableNumber)
		vacated = s.vacatedLocked(s.state.Session, "expired")
		s.clearLocked()
	}

	if s.state.Session != nil && s.state.Session.TableNumber != in.TableNumber {
		s.logger.Info("switching tables, vacating previous session",
			"previous", s.state.Session.TableNumber, "next", in.TableNumber)
		vacated = s.vacatedLocked(s.state.Session, "switched")
		s.clearLocked()
	}

	if s.state.Session == nil {
		s.state = State{Session: NewTableSession(in.TableNumber, in.RestaurantID)}
	}

	joined := s.state.Session.AddDiner(name)
	diner := *joined
	diner.IsCurrentUser = true
	s.state.CurrentDiner = &diner
	s.state.Session.MarkCurrentDiner(diner.ID)
	s.state.Session.Touch(s.now())
	s.persistLocked(ctx)

	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	s.publishVacated(ctx, vacated)
	dispatch(listeners, snapshot)

	result := diner
	return &result, nil
}

// LeaveTable vacates the session locally and in the shared medium so other
// replicas observe the table as free.
func (s *Store) LeaveTable(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Session == nil {
		s.mu.Unlock()
		return nil
	}

	s.logger.Info("leaving table", "table_number", s.state.Session.TableNumber)
	vacated := s.vacatedLocked(s.state.Session, "left")
	s.clearLocked()
	s.persistLocked(ctx)

	listeners, snapshot := s.pendingNotifyLocked()
	s.mu.Unlock()
	s.publishVacated(ctx, vacated)
	dispatch(listeners, snapshot)
	return nil
}

// snapshotLocked deep-copies the aggregate. Caller holds the lock.
func (s *Store) snapshotLocked() State {
	out := State{
		CurrentRound: s.state.CurrentRound,
		LastOrderID:  s.state.LastOrderID,
		Stale:        s.state.Stale,
	}
	if s.state.Session != nil {
		out.Session = cloneSession(s.state.Session)
	}
	if s.state.CurrentDiner != nil {
		diner := *s.state.CurrentDiner
		out.CurrentDiner = &diner
	}
	if s.state.Orders != nil {
		out.Orders = append([]OrderRecord(nil), s.state.Orders...)
	}
	return out
}

// clearLocked drops the whole aggregate. Caller holds the lock.
func (s *Store) clearLocked() {
	s.state = State{}
}

// vacatedLocked captures the payload for a table vacated announcement just
// before the session is dropped. The broker call itself happens after the
// lock is released, through publishVacated, so a slow broker never stalls
// the store. Caller holds the lock.
func (s *Store) vacatedLocked(session *TableSession, reason string) *pkg.TableVacatedEvent {
	if s.publisher == nil || session == nil {
		return nil
	}
	return &pkg.TableVacatedEvent{
		EventType:   pkg.EventTableVacated,
		SessionID:   session.ID.String(),
		TableNumber: session.TableNumber,
		Reason:      reason,
		OccurredAt:  s.now(),
	}
}

// publishVacated sends a captured vacated event best-effort. Must be called
// without the lock held; a nil event is a no-op.
func (s *Store) publishVacated(ctx context.Context, event *pkg.TableVacatedEvent) {
	if event == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("cannot serialize table vacated event", "error", err)
		return
	}

	if err := s.publisher.Publish(ctx, pkg.SessionTableTopic, data); err != nil {
		s.logger.Info("cannot publish table vacated event", "error", err)
	}
}

// persistLocked writes the aggregate to the shared medium. Persistence is
// best-effort: a write failure is logged and local state stands.
func (s *Store) persistLocked(ctx context.Context) {
	ps := persistedState{
		WriterID:     s.id,
		Session:      s.state.Session,
		CurrentDiner: s.state.CurrentDiner,
		Orders:       s.state.Orders,
		CurrentRound: s.state.CurrentRound,
		LastOrderID:  s.state.LastOrderID,
	}

	raw, err := json.Marshal(ps)
	if err != nil {
		s.logger.Error("cannot serialize session state", "error", err)
		return
	}

	if err := s.store.Write(ctx, s.stateKey, string(raw)); err != nil {
		s.logger.Error("cannot persist session state", "error", err)
	}
}

// pendingNotifyLocked collects the listeners and a snapshot to dispatch
// after the lock is released.
func (s *Store) pendingNotifyLocked() ([]func(State), State) {
	if len(s.listeners) == 0 {
		return nil, State{}
	}
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return listeners, s.snapshotLocked()
}

func dispatch(listeners []func(State), snapshot State) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}

func cloneSession(src *TableSession) *TableSession {
	out := *src
	out.Diners = append([]Diner(nil), src.Diners...)
	out.SharedCart = append([]CartItem(nil), src.SharedCart...)
	return &out
}
