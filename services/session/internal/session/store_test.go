package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sharedtab/sharedtab/pkg"
)

func TestStoreJoinTableCreatesSession(t *testing.T) {
	env := newTestEnv()

	diner := env.join(t, "12", "Alice")

	state := env.store.State()
	if state.Session == nil {
		t.Fatal("State().Session = nil after join")
	}
	if state.Session.TableNumber != "12" {
		t.Errorf("TableNumber = %q, want %q", state.Session.TableNumber, "12")
	}
	if !diner.IsCurrentUser {
		t.Error("joined diner should be flagged as current user")
	}
	if state.CurrentDiner == nil || state.CurrentDiner.ID != diner.ID {
		t.Error("State().CurrentDiner should be the joined diner")
	}
	if env.state.Writes() == 0 {
		t.Error("join should persist the aggregate")
	}
}

func TestStoreJoinTableRequiresTableNumber(t *testing.T) {
	env := newTestEnv()

	_, err := env.store.JoinTable(context.Background(), JoinTableInput{Name: "Alice"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("JoinTable() error = %v, want ValidationError", err)
	}
	if env.store.State().Session != nil {
		t.Error("rejected join should not create a session")
	}
}

func TestStoreJoinTableSecondDinerSharesSession(t *testing.T) {
	env := newTestEnv()

	env.join(t, "12", "Alice")
	first := env.store.State().Session.ID

	bob := env.join(t, "12", "Bob")

	state := env.store.State()
	if state.Session.ID != first {
		t.Error("joining the same table should reuse the session")
	}
	if len(state.Session.Diners) != 2 {
		t.Fatalf("Diners len = %d, want 2", len(state.Session.Diners))
	}
	if state.CurrentDiner.ID != bob.ID {
		t.Error("CurrentDiner should follow the most recent join")
	}
}

func TestStoreJoinTableSwitchingTablesVacatesOld(t *testing.T) {
	env := newTestEnv()

	env.join(t, "12", "Alice")
	old := env.store.State().Session.ID
	env.add(t, AddToCartInput{ProductID: "burger", Name: "Burger", Price: 12})

	env.join(t, "7", "Alice")

	state := env.store.State()
	if state.Session.ID == old {
		t.Error("switching tables should start a fresh session")
	}
	if state.Session.TableNumber != "7" {
		t.Errorf("TableNumber = %q, want %q", state.Session.TableNumber, "7")
	}
	if len(state.Session.SharedCart) != 0 {
		t.Error("old table's cart should not follow to the new table")
	}
}

func TestStoreJoinTableAuthNameFallback(t *testing.T) {
	env := newTestEnv()

	diner, err := env.store.JoinTable(context.Background(), JoinTableInput{
		TableNumber: "3",
		Auth:        &AuthContext{FullName: "Carol Jones"},
	})
	if err != nil {
		t.Fatalf("JoinTable() error = %v", err)
	}

	if diner.Name != "Carol Jones" {
		t.Errorf("Name = %q, want %q", diner.Name, "Carol Jones")
	}
}

func TestStoreLeaveTable(t *testing.T) {
	env := newTestEnv()

	env.join(t, "12", "Alice")
	if err := env.store.LeaveTable(context.Background()); err != nil {
		t.Fatalf("LeaveTable() error = %v", err)
	}

	if env.store.State().Session != nil {
		t.Error("LeaveTable() should clear the session")
	}

	var ps persistedState
	if err := json.Unmarshal([]byte(env.state.Value(DefaultStateKey)), &ps); err != nil {
		t.Fatalf("persisted blob unparseable: %v", err)
	}
	if ps.Session != nil {
		t.Error("LeaveTable() should persist the vacated table")
	}

	msgs := env.publisher.Messages(pkg.SessionTableTopic)
	if len(msgs) != 1 {
		t.Fatalf("vacated events published = %d, want 1", len(msgs))
	}
	var evt pkg.TableVacatedEvent
	if err := json.Unmarshal(msgs[0], &evt); err != nil {
		t.Fatalf("vacated event unparseable: %v", err)
	}
	if evt.EventType != pkg.EventTableVacated || evt.Reason != "left" {
		t.Errorf("vacated event = %q/%q, want %q/left", evt.EventType, evt.Reason, pkg.EventTableVacated)
	}
}

func TestStoreVacatedEventPublishedOutsideLock(t *testing.T) {
	env := newTestEnv()
	env.join(t, "12", "Alice")

	// A publisher that reads back through the store would deadlock if the
	// broker call ran inside the store's critical section.
	env.publisher.PublishFunc = func(ctx context.Context, topic string, msg []byte) error {
		env.store.State()
		return nil
	}

	if err := env.store.LeaveTable(context.Background()); err != nil {
		t.Fatalf("LeaveTable() error = %v", err)
	}
	if len(env.publisher.Messages(pkg.SessionTableTopic)) != 1 {
		t.Error("vacated event should still be published")
	}
}

func TestStoreLeaveTableNoSession(t *testing.T) {
	env := newTestEnv()

	if err := env.store.LeaveTable(context.Background()); err != nil {
		t.Fatalf("LeaveTable() with no session error = %v, want nil", err)
	}
	if env.state.Writes() != 0 {
		t.Error("LeaveTable() with no session should not write")
	}
}

func TestStoreSubscribe(t *testing.T) {
	env := newTestEnv()

	var got []State
	unsubscribe := env.store.Subscribe(func(s State) {
		got = append(got, s)
	})

	env.join(t, "12", "Alice")
	if len(got) != 1 {
		t.Fatalf("notifications after join = %d, want 1", len(got))
	}
	if got[0].Session == nil || got[0].Session.TableNumber != "12" {
		t.Error("notification should carry the committed snapshot")
	}

	unsubscribe()
	env.add(t, AddToCartInput{ProductID: "burger", Name: "Burger", Price: 12})
	if len(got) != 1 {
		t.Errorf("notifications after unsubscribe = %d, want 1", len(got))
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	env := newTestEnv()

	env.join(t, "12", "Alice")
	env.add(t, AddToCartInput{ProductID: "burger", Name: "Burger", Price: 12})

	snapshot := env.store.State()
	snapshot.Session.SharedCart[0].Quantity = 42
	snapshot.Session.TableNumber = "hacked"

	state := env.store.State()
	if state.Session.SharedCart[0].Quantity == 42 {
		t.Error("mutating a snapshot cart should not affect the store")
	}
	if state.Session.TableNumber != "12" {
		t.Error("mutating a snapshot session should not affect the store")
	}
}

func persistBlob(t *testing.T, writer uuid.UUID, mutate func(*persistedState)) string {
	t.Helper()
	session := NewTableSession("12", "rest-1")
	session.AddDiner("Alice")
	diner := session.Diners[0]
	ps := persistedState{
		WriterID:     writer,
		Session:      session,
		CurrentDiner: &diner,
	}
	if mutate != nil {
		mutate(&ps)
	}
	raw, err := json.Marshal(ps)
	if err != nil {
		t.Fatalf("cannot marshal fixture state: %v", err)
	}
	return string(raw)
}

func TestStoreRehydrateRestoresState(t *testing.T) {
	env := newTestEnv()
	now := env.clock.Now()

	env.state.Seed(DefaultStateKey, persistBlob(t, uuid.New(), func(ps *persistedState) {
		ps.Session.CreatedAt = now.Add(-time.Hour)
		ps.Session.LastActivity = now.Add(-30 * time.Minute)
		ps.CurrentRound = 2
		ps.Orders = []OrderRecord{{RoundNumber: 1}, {RoundNumber: 2}}
	}))

	if err := env.store.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate() error = %v", err)
	}

	state := env.store.State()
	if state.Session == nil {
		t.Fatal("Rehydrate() should restore the session")
	}
	if state.CurrentRound != 2 {
		t.Errorf("CurrentRound = %d, want 2", state.CurrentRound)
	}
	if len(state.Orders) != 2 {
		t.Errorf("Orders len = %d, want 2", len(state.Orders))
	}
	if state.Stale {
		t.Error("one hour old session should not be stale")
	}
	if state.CurrentDiner == nil || !state.CurrentDiner.IsCurrentUser {
		t.Error("Rehydrate() should re-flag the current diner")
	}
}

func TestStoreRehydrateFlagsStaleSession(t *testing.T) {
	env := newTestEnv()
	now := env.clock.Now()

	env.state.Seed(DefaultStateKey, persistBlob(t, uuid.New(), func(ps *persistedState) {
		ps.Session.CreatedAt = now.Add(-3 * time.Hour)
		ps.Session.LastActivity = now.Add(-time.Minute)
	}))

	if err := env.store.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate() error = %v", err)
	}

	state := env.store.State()
	if state.Session == nil {
		t.Fatal("stale session should survive rehydration")
	}
	if !state.Stale {
		t.Error("three hour old session should carry the stale flag")
	}
}

func TestStoreRehydrateClearsExpiredSession(t *testing.T) {
	env := newTestEnv()
	now := env.clock.Now()

	env.state.Seed(DefaultStateKey, persistBlob(t, uuid.New(), func(ps *persistedState) {
		ps.Session.CreatedAt = now.Add(-10 * time.Hour)
		ps.Session.LastActivity = now.Add(-9 * time.Hour)
	}))

	if err := env.store.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate() error = %v", err)
	}

	if env.store.State().Session != nil {
		t.Error("expired session should be cleared on rehydration")
	}
	if len(env.publisher.Messages(pkg.SessionTableTopic)) != 1 {
		t.Error("rehydration expiry should announce the vacated table")
	}

	var ps persistedState
	if err := json.Unmarshal([]byte(env.state.Value(DefaultStateKey)), &ps); err != nil {
		t.Fatalf("persisted blob unparseable: %v", err)
	}
	if ps.Session != nil {
		t.Error("cleared expiry should be written back to the shared medium")
	}
}

func TestStoreRehydrateIgnoresCorruptBlob(t *testing.T) {
	env := newTestEnv()
	env.state.Seed(DefaultStateKey, "{not json")

	if err := env.store.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate() with corrupt blob error = %v, want nil", err)
	}
	if env.store.State().Session != nil {
		t.Error("corrupt blob should leave the store empty")
	}
}

func TestStoreRehydrateEmptyMedium(t *testing.T) {
	env := newTestEnv()

	if err := env.store.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate() on empty medium error = %v, want nil", err)
	}
	if env.store.State().Session != nil {
		t.Error("empty medium should leave the store empty")
	}
}

func TestStoreRehydratePropagatesReadError(t *testing.T) {
	env := newTestEnv()
	boom := errors.New("bucket offline")
	env.state.ReadFunc = func(ctx context.Context, key string) (string, error) {
		return "", boom
	}

	if err := env.store.Rehydrate(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Rehydrate() error = %v, want %v", err, boom)
	}
}

func TestStorePersistSkipsRuntimeFlags(t *testing.T) {
	env := newTestEnv()

	env.join(t, "12", "Alice")
	env.add(t, AddToCartInput{ProductID: "burger", Name: "Burger", Price: 12})

	raw := env.state.Value(DefaultStateKey)
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("persisted blob unparseable: %v", err)
	}
	if _, ok := decoded["writer_id"]; !ok {
		t.Error("persisted blob should carry the writer id")
	}

	var ps persistedState
	if err := json.Unmarshal([]byte(raw), &ps); err != nil {
		t.Fatalf("persisted blob unparseable: %v", err)
	}
	if ps.WriterID != env.store.ID() {
		t.Errorf("WriterID = %v, want the store's own id %v", ps.WriterID, env.store.ID())
	}
}
