package session

import "github.com/google/uuid"

type JoinTableRequest struct {
	TableNumber  string       `json:"table_number"`
	RestaurantID string       `json:"restaurant_id,omitempty"`
	Name         string       `json:"name,omitempty"`
	Auth         *AuthContext `json:"auth,omitempty"`
}

type AddCartItemRequest struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CloseTableRequest struct {
	SplitMethod string `json:"split_method"`
}

// SessionStateResponse is the snapshot handed to clients.
type SessionStateResponse struct {
	Session      *TableSession `json:"session"`
	CurrentDiner *Diner        `json:"current_diner"`
	Orders       []OrderRecord `json:"orders"`
	CurrentRound int           `json:"current_round"`
	LastOrderID  uuid.UUID     `json:"last_order_id,omitempty"`
	Stale        bool          `json:"stale"`
}

func stateResponse(state State) SessionStateResponse {
	orders := state.Orders
	if orders == nil {
		orders = []OrderRecord{}
	}
	return SessionStateResponse{
		Session:      state.Session,
		CurrentDiner: state.CurrentDiner,
		Orders:       orders,
		CurrentRound: state.CurrentRound,
		LastOrderID:  state.LastOrderID,
		Stale:        state.Stale,
	}
}
