package session

import (
	"math"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

const (
	// MaxItemQuantity caps a single cart line.
	MaxItemQuantity = 99

	// AddToCartInterval is the minimum spacing between accepted AddToCart
	// calls for the same product.
	AddToCartInterval = 200 * time.Millisecond
	// UpdateQuantityInterval is the minimum spacing between accepted
	// quantity updates for the same cart line.
	UpdateQuantityInterval = 100 * time.Millisecond
)

type CartItem struct {
	ID        uuid.UUID `json:"id" bson:"id"`
	ProductID string    `json:"product_id" bson:"product_id"`
	Name      string    `json:"name" bson:"name"`
	Price     float64   `json:"price" bson:"price"`
	Image     string    `json:"image,omitempty" bson:"image,omitempty"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	DinerID   uuid.UUID `json:"diner_id" bson:"diner_id"`
	DinerName string    `json:"diner_name" bson:"diner_name"`
	Notes     string    `json:"notes,omitempty" bson:"notes,omitempty"`

	// submitting marks a line currently in flight during order submission.
	// It never reaches the persisted state or an order record.
	submitting bool
}

// AddToCartInput is the payload for adding a product to the shared cart.
// Quantity zero means "one".
type AddToCartInput struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

func newCartItem(in AddToCartInput, diner *Diner) CartItem {
	return CartItem{
		ID:        apt.GenerateNewID(),
		ProductID: in.ProductID,
		Name:      in.Name,
		Price:     in.Price,
		Image:     in.Image,
		Quantity:  in.Quantity,
		DinerID:   diner.ID,
		DinerName: diner.Name,
		Notes:     in.Notes,
	}
}

// validPrice accepts positive finite numbers only.
func validPrice(price float64) bool {
	return price > 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}

// cartSubtotal sums price*quantity over items, rounded to cents.
func cartSubtotal(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return roundToCents(total)
}

func roundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}
