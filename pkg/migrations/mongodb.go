package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureTransactionIndexes creates the secondary indexes the transaction
// collection is queried by. The primary key (_id = transactionId) needs no
// index of its own.
func EnsureTransactionIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "bankId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_transactions_bank_created"),
		},
		{
			Keys:    bson.D{{Key: "inspectedAt", Value: -1}},
			Options: options.Index().SetName("idx_transactions_inspected_at"),
		},
	}

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
