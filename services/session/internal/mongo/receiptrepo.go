package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sharedtab/sharedtab/services/session/internal/session"
)

type ReceiptRepo struct {
	collection *mongo.Collection
}

func NewReceiptRepo(db *mongo.Database) *ReceiptRepo {
	return &ReceiptRepo{
		collection: db.Collection("receipts"),
	}
}

func (r *ReceiptRepo) Create(ctx context.Context, receipt *session.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("receipt is nil")
	}

	if _, err := r.collection.InsertOne(ctx, receipt); err != nil {
		return fmt.Errorf("cannot create receipt: %w", err)
	}

	return nil
}

func (r *ReceiptRepo) Get(ctx context.Context, id uuid.UUID) (*session.Receipt, error) {
	var receipt session.Receipt
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&receipt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get receipt: %w", err)
	}
	return &receipt, nil
}

func (r *ReceiptRepo) ListByTable(ctx context.Context, tableNumber string) ([]*session.Receipt, error) {
	opts := options.Find().SetSort(bson.M{"closed_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{"table_number": tableNumber}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list receipts by table: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*session.Receipt
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode receipts: %w", err)
	}

	return result, nil
}

func (r *ReceiptRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("cannot delete receipt: %w", err)
	}
	return nil
}
