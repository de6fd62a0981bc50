package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sharedtab/sharedtab/services/session/internal/session"
)

// SeedDemo inserts a sample closed-table receipt history so dashboards and
// the receipts API have something to show on a fresh install.
func SeedDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo seeding process...")

	mongoURL, _ := config.GetString("mongo.url")
	if mongoURL == "" {
		mongoURL = "mongodb://localhost:27017"
	}
	dbName := config.GetStringOrDef("mongo.name", "sharedtab_session")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB")

	receipts := client.Database(dbName).Collection("receipts")

	for _, receipt := range demoReceipts() {
		if _, err := receipts.InsertOne(ctx, receipt); err != nil {
			return fmt.Errorf("insert demo receipt for table %s: %w", receipt.TableNumber, err)
		}
		logger.Info("Seeded demo receipt", "table_number", receipt.TableNumber, "total", receipt.Total)
	}

	return nil
}

func demoReceipts() []*session.Receipt {
	tables := []struct {
		number string
		diners []string
		dishes []struct {
			name  string
			price float64
			qty   int
		}
	}{
		{
			number: "7",
			diners: []string{"Ava", "Ben"},
			dishes: []struct {
				name  string
				price float64
				qty   int
			}{
				{"Margherita", 12.50, 1},
				{"Carbonara", 14.00, 1},
				{"Sparkling Water", 3.00, 2},
			},
		},
		{
			number: "12",
			diners: []string{"Chloe", "Dan", "Eli"},
			dishes: []struct {
				name  string
				price float64
				qty   int
			}{
				{"Ramen", 11.00, 3},
				{"Gyoza", 6.50, 2},
			},
		},
	}

	var result []*session.Receipt
	for _, t := range tables {
		s := session.NewTableSession(t.number, "demo")
		var diners []*session.Diner
		for _, name := range t.diners {
			diners = append(diners, s.AddDiner(name))
		}

		var items []session.CartItem
		for i, dish := range t.dishes {
			owner := diners[i%len(diners)]
			items = append(items, session.CartItem{
				ID:        apt.GenerateNewID(),
				ProductID: fmt.Sprintf("demo-%s-%d", t.number, i),
				Name:      dish.name,
				Price:     dish.price,
				Quantity:  dish.qty,
				DinerID:   owner.ID,
				DinerName: owner.Name,
			})
		}

		var subtotal float64
		for _, item := range items {
			subtotal += item.Price * float64(item.Quantity)
		}

		orders := []session.OrderRecord{{
			ID:              apt.GenerateNewID(),
			RoundNumber:     1,
			Items:           items,
			Subtotal:        subtotal,
			Status:          "delivered",
			SubmittedBy:     diners[0].ID,
			SubmittedByName: diners[0].Name,
			SubmittedAt:     time.Now().Add(-2 * time.Hour),
		}}

		shares := session.CalculatePaymentShares(s.Diners, orders, session.SplitByConsumption)
		result = append(result, session.NewReceipt(s, orders, session.SplitByConsumption, shares, diners[0].Name))
	}

	return result
}
