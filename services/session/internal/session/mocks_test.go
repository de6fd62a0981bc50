package session

import (
	"context"
	"sync"
	"time"
)

// fakeClock drives store and throttle time in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// MockStateStore is a map-backed StateStore for testing
type MockStateStore struct {
	mu        sync.Mutex
	data      map[string]string
	writes    int
	ReadFunc  func(ctx context.Context, key string) (string, error)
	WriteFunc func(ctx context.Context, key string, value string) error
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) Read(ctx context.Context, key string) (string, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MockStateStore) Write(ctx context.Context, key string, value string) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.writes++
	return nil
}

func (m *MockStateStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MockStateStore) Value(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func (m *MockStateStore) Seed(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// MockSubmitter is a mock implementation of RoundSubmitter for testing
type MockSubmitter struct {
	mu              sync.Mutex
	calls           int
	SubmitRoundFunc func(ctx context.Context, session *TableSession, record *OrderRecord) error
}

func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{}
}

func (m *MockSubmitter) SubmitRound(ctx context.Context, session *TableSession, record *OrderRecord) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.SubmitRoundFunc != nil {
		return m.SubmitRoundFunc(ctx, session, record)
	}
	return nil
}

func (m *MockSubmitter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockCloser is a mock implementation of TableCloser for testing
type MockCloser struct {
	mu             sync.Mutex
	receipts       []*Receipt
	CloseTableFunc func(ctx context.Context, receipt *Receipt) error
}

func NewMockCloser() *MockCloser {
	return &MockCloser{}
}

func (m *MockCloser) CloseTable(ctx context.Context, receipt *Receipt) error {
	if m.CloseTableFunc != nil {
		return m.CloseTableFunc(ctx, receipt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, receipt)
	return nil
}

func (m *MockCloser) Receipts() []*Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Receipt(nil), m.receipts...)
}

// MockPublisher records every published message by topic.
type MockPublisher struct {
	mu          sync.Mutex
	messages    map[string][][]byte
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[topic] = append(m.messages[topic], msg)
	return nil
}

func (m *MockPublisher) Messages(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.messages[topic]...)
}

// testEnv bundles a store wired to mocks with a controllable clock.
type testEnv struct {
	store     *Store
	clock     *fakeClock
	state     *MockStateStore
	submitter *MockSubmitter
	closer    *MockCloser
	publisher *MockPublisher
}

func newTestEnv() *testEnv {
	clock := newFakeClock()
	state := NewMockStateStore()
	submitter := NewMockSubmitter()
	closer := NewMockCloser()
	publisher := NewMockPublisher()

	store := NewStore(StoreDeps{
		StateStore: state,
		Submitter:  submitter,
		Closer:     closer,
		Publisher:  publisher,
	}, StoreOptions{}, nil)

	store.now = clock.Now
	store.addGuard.now = clock.Now
	store.qtyGuard.now = clock.Now
	store.retry = &RetryExecutor{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}

	return &testEnv{
		store:     store,
		clock:     clock,
		state:     state,
		submitter: submitter,
		closer:    closer,
		publisher: publisher,
	}
}

// join puts a diner at the table and returns it.
func (e *testEnv) join(t interface{ Fatalf(string, ...interface{}) }, table, name string) *Diner {
	diner, err := e.store.JoinTable(context.Background(), JoinTableInput{
		TableNumber: table,
		Name:        name,
	})
	if err != nil {
		t.Fatalf("JoinTable(%s, %s) error = %v", table, name, err)
	}
	return diner
}

// add drops a product into the cart, spacing calls out past the throttle
// window first.
func (e *testEnv) add(t interface{ Fatalf(string, ...interface{}) }, in AddToCartInput) {
	e.clock.Advance(AddToCartInterval + 10*time.Millisecond)
	if err := e.store.AddToCart(context.Background(), in); err != nil {
		t.Fatalf("AddToCart(%s) error = %v", in.ProductID, err)
	}
}

func (e *testEnv) cart() []CartItem {
	state := e.store.State()
	if state.Session == nil {
		return nil
	}
	return state.Session.SharedCart
}
