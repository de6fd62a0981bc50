package session

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func splitFixture() ([]Diner, []OrderRecord) {
	alice := Diner{ID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440001"), Name: "Alice"}
	bob := Diner{ID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440002"), Name: "Bob"}

	orders := []OrderRecord{
		{
			RoundNumber: 1,
			Subtotal:    20.00,
			Items: []CartItem{
				{ProductID: "burger", Price: 12.00, Quantity: 1, DinerID: alice.ID},
				{ProductID: "soda", Price: 4.00, Quantity: 2, DinerID: bob.ID},
			},
		},
		{
			RoundNumber: 2,
			Subtotal:    10.00,
			Items: []CartItem{
				{ProductID: "fries", Price: 5.00, Quantity: 2, DinerID: alice.ID},
			},
		},
	}

	return []Diner{alice, bob}, orders
}

func shareByName(shares []PaymentShare, name string) (PaymentShare, bool) {
	for _, s := range shares {
		if s.DinerName == name {
			return s, true
		}
	}
	return PaymentShare{}, false
}

func TestCalculatePaymentSharesEqual(t *testing.T) {
	diners, orders := splitFixture()

	shares := CalculatePaymentShares(diners, orders, SplitEqual)

	if len(shares) != 2 {
		t.Fatalf("CalculatePaymentShares() len = %d, want 2", len(shares))
	}
	for _, share := range shares {
		if share.Amount != 15.00 {
			t.Errorf("equal share for %s = %.2f, want 15.00", share.DinerName, share.Amount)
		}
		if share.Paid {
			t.Errorf("share for %s starts paid, want unpaid", share.DinerName)
		}
	}
}

func TestCalculatePaymentSharesEqualRounding(t *testing.T) {
	diners := []Diner{
		{ID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440001"), Name: "Alice"},
		{ID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440002"), Name: "Bob"},
		{ID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440003"), Name: "Cara"},
	}
	orders := []OrderRecord{{Subtotal: 10.00}}

	shares := CalculatePaymentShares(diners, orders, SplitEqual)

	for _, share := range shares {
		if share.Amount != 3.33 {
			t.Errorf("share for %s = %.2f, want 3.33", share.DinerName, share.Amount)
		}
	}

	// 3 * 3.33 = 9.99: the cent of drift is accepted, not reconciled.
	var sum float64
	for _, share := range shares {
		sum += share.Amount
	}
	if math.Abs(sum-9.99) > 1e-9 {
		t.Errorf("sum of shares = %.2f, want 9.99", sum)
	}
}

func TestCalculatePaymentSharesByConsumption(t *testing.T) {
	diners, orders := splitFixture()

	shares := CalculatePaymentShares(diners, orders, SplitByConsumption)

	alice, ok := shareByName(shares, "Alice")
	if !ok {
		t.Fatal("no share computed for Alice")
	}
	if alice.Amount != 22.00 {
		t.Errorf("Alice consumption share = %.2f, want 22.00", alice.Amount)
	}

	bob, ok := shareByName(shares, "Bob")
	if !ok {
		t.Fatal("no share computed for Bob")
	}
	if bob.Amount != 8.00 {
		t.Errorf("Bob consumption share = %.2f, want 8.00", bob.Amount)
	}
}

func TestCalculatePaymentSharesByConsumptionIgnoresOthersItems(t *testing.T) {
	diners, orders := splitFixture()

	// A diner who joined but ordered nothing owes nothing.
	ghost := Diner{ID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440099"), Name: "Ghost"}
	shares := CalculatePaymentShares(append(diners, ghost), orders, SplitByConsumption)

	share, ok := shareByName(shares, "Ghost")
	if !ok {
		t.Fatal("no share computed for Ghost")
	}
	if share.Amount != 0 {
		t.Errorf("Ghost consumption share = %.2f, want 0", share.Amount)
	}
}

func TestCalculatePaymentSharesCustom(t *testing.T) {
	diners, orders := splitFixture()

	shares := CalculatePaymentShares(diners, orders, SplitCustom)

	if len(shares) != 2 {
		t.Fatalf("CalculatePaymentShares() len = %d, want 2", len(shares))
	}
	for _, share := range shares {
		if share.Amount != 0 {
			t.Errorf("custom share for %s = %.2f, want 0", share.DinerName, share.Amount)
		}
	}
}

func TestCalculatePaymentSharesNoDiners(t *testing.T) {
	_, orders := splitFixture()

	shares := CalculatePaymentShares(nil, orders, SplitEqual)

	if shares == nil {
		t.Fatal("CalculatePaymentShares() = nil, want empty slice")
	}
	if len(shares) != 0 {
		t.Errorf("CalculatePaymentShares() len = %d, want 0", len(shares))
	}
}

func TestSplitMethodValid(t *testing.T) {
	tests := []struct {
		name   string
		method SplitMethod
		want   bool
	}{
		{name: "equal", method: SplitEqual, want: true},
		{name: "byConsumption", method: SplitByConsumption, want: true},
		{name: "custom", method: SplitCustom, want: true},
		{name: "empty", method: SplitMethod(""), want: false},
		{name: "unknown", method: SplitMethod("roulette"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.method.Valid(); got != tt.want {
				t.Errorf("SplitMethod(%q).Valid() = %v, want %v", string(tt.method), got, tt.want)
			}
		})
	}
}

func TestOrdersTotal(t *testing.T) {
	_, orders := splitFixture()

	if got := OrdersTotal(orders); got != 30.00 {
		t.Errorf("OrdersTotal() = %.2f, want 30.00", got)
	}
	if got := OrdersTotal(nil); got != 0 {
		t.Errorf("OrdersTotal(nil) = %.2f, want 0", got)
	}
}
