package session

import "github.com/google/uuid"

// SplitMethod selects how the bill total is divided among diners.
type SplitMethod string

const (
	SplitEqual         SplitMethod = "equal"
	SplitByConsumption SplitMethod = "by_consumption"
	SplitCustom        SplitMethod = "custom"
)

func (m SplitMethod) Valid() bool {
	switch m {
	case SplitEqual, SplitByConsumption, SplitCustom:
		return true
	}
	return false
}

// PaymentShare is one diner's slice of the bill. Shares are derived on
// demand from the order history and never persisted with the session.
type PaymentShare struct {
	DinerID   uuid.UUID `json:"diner_id" bson:"diner_id"`
	DinerName string    `json:"diner_name" bson:"diner_name"`
	Amount    float64   `json:"amount" bson:"amount"`
	Paid      bool      `json:"paid" bson:"paid"`
}

// CalculatePaymentShares computes per-diner amounts over every submitted
// round. Each share is rounded to cents independently; the sum of shares may
// drift from the grand total by a rounding epsilon, which is accepted rather
// than reconciled. An empty diner list yields an empty result.
func CalculatePaymentShares(diners []Diner, orders []OrderRecord, method SplitMethod) []PaymentShare {
	if len(diners) == 0 {
		return []PaymentShare{}
	}

	shares := make([]PaymentShare, 0, len(diners))

	switch method {
	case SplitByConsumption:
		for _, diner := range diners {
			var amount float64
			for _, order := range orders {
				for _, item := range order.Items {
					if item.DinerID == diner.ID {
						amount += item.Price * float64(item.Quantity)
					}
				}
			}
			shares = append(shares, PaymentShare{
				DinerID:   diner.ID,
				DinerName: diner.Name,
				Amount:    roundToCents(amount),
			})
		}

	case SplitCustom:
		// Starting point for manual adjustment by the caller.
		for _, diner := range diners {
			shares = append(shares, PaymentShare{
				DinerID:   diner.ID,
				DinerName: diner.Name,
				Amount:    0,
			})
		}

	default: // SplitEqual
		var total float64
		for _, order := range orders {
			total += order.Subtotal
		}
		each := roundToCents(total / float64(len(diners)))
		for _, diner := range diners {
			shares = append(shares, PaymentShare{
				DinerID:   diner.ID,
				DinerName: diner.Name,
				Amount:    each,
			})
		}
	}

	return shares
}

// OrdersTotal sums the subtotals of every submitted round.
func OrdersTotal(orders []OrderRecord) float64 {
	var total float64
	for _, order := range orders {
		total += order.Subtotal
	}
	return roundToCents(total)
}
