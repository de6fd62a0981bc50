package session

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

const (
	// DefaultExpiryWindow is how long a session survives without activity.
	DefaultExpiryWindow = 8 * time.Hour
	// DefaultStaleAfter is the age at which a session enters the warning
	// band without being cleared.
	DefaultStaleAfter = 2 * time.Hour
)

type TableSession struct {
	ID           uuid.UUID  `json:"id" bson:"_id"`
	TableNumber  string     `json:"table_number" bson:"table_number"`
	RestaurantID string     `json:"restaurant_id" bson:"restaurant_id"`
	Status       string     `json:"status" bson:"status"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	LastActivity time.Time  `json:"last_activity" bson:"last_activity"`
	Diners       []Diner    `json:"diners" bson:"diners"`
	SharedCart   []CartItem `json:"shared_cart" bson:"shared_cart"`
}

type Diner struct {
	ID            uuid.UUID `json:"id" bson:"id"`
	Name          string    `json:"name" bson:"name"`
	AvatarColor   string    `json:"avatar_color" bson:"avatar_color"`
	JoinedAt      time.Time `json:"joined_at" bson:"joined_at"`
	IsCurrentUser bool      `json:"is_current_user" bson:"-"`
}

// AuthContext carries optional identity fields handed in by an external
// authentication collaborator. The session service never validates these.
type AuthContext struct {
	UserID   string `json:"user_id,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
}

func (s *TableSession) GetID() uuid.UUID {
	return s.ID
}

func (s *TableSession) ResourceType() string {
	return "table-session"
}

func (s *TableSession) SetID(id uuid.UUID) {
	s.ID = id
}

func NewTableSession(tableNumber, restaurantID string) *TableSession {
	session := &TableSession{
		ID:           apt.GenerateNewID(),
		TableNumber:  tableNumber,
		RestaurantID: restaurantID,
		Status:       "active",
		Diners:       []Diner{},
		SharedCart:   []CartItem{},
	}
	session.BeforeCreate()
	return session
}

func (s *TableSession) EnsureID() {
	if s.ID == uuid.Nil {
		s.ID = apt.GenerateNewID()
	}
}

func (s *TableSession) BeforeCreate() {
	s.EnsureID()
	s.CreatedAt = time.Now()
	s.LastActivity = s.CreatedAt
}

// Touch records cart or order activity; expiry is measured from here.
func (s *TableSession) Touch(now time.Time) {
	s.LastActivity = now
}

func (s *TableSession) Close() {
	s.Status = "closed"
}

// AddDiner appends a new participant colored by join order and returns it.
// Diners are never removed within a session.
func (s *TableSession) AddDiner(name string) *Diner {
	index := len(s.Diners)
	if name == "" {
		name = FallbackDinerName(index)
	}
	diner := Diner{
		ID:          apt.GenerateNewID(),
		Name:        name,
		AvatarColor: ColorForIndex(index),
		JoinedAt:    time.Now(),
	}
	s.Diners = append(s.Diners, diner)
	return &s.Diners[index]
}

// MarkCurrentDiner re-derives every diner's is_current_user flag against the
// locally owned diner id. Flags persisted by another replica must not leak
// into this one's view.
func (s *TableSession) MarkCurrentDiner(dinerID uuid.UUID) {
	for i := range s.Diners {
		s.Diners[i].IsCurrentUser = s.Diners[i].ID == dinerID
	}
}

// SessionExpired reports whether a session has outlived the expiry window.
// The reference point is the last recorded activity, falling back to the
// creation time when no activity ever happened, so an actively used session
// never expires mid-shift.
func SessionExpired(createdAt, lastActivity time.Time, window time.Duration, now time.Time) bool {
	ref := lastActivity
	if ref.IsZero() {
		ref = createdAt
	}
	return now.Sub(ref) > window
}

// SessionStale reports whether a session sits in the non-fatal warning band
// between the staleness threshold and the expiry window.
func SessionStale(createdAt time.Time, staleAfter, window time.Duration, now time.Time) bool {
	age := now.Sub(createdAt)
	return age > staleAfter && age <= window
}
