package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"txfanout/internal/constants"
	"txfanout/internal/logger"
	"txfanout/pkg/models"
)

// mongoRecord maps an enriched record onto a document keyed by _id, so the
// collection's mandatory unique index enforces the conditional write.
type mongoRecord struct {
	ID               string `bson:"_id"`
	Name             string `bson:"name"`
	City             string `bson:"city"`
	Transaction      int64  `bson:"transaction"`
	BankID           string `bson:"bankId"`
	CreatedAt        string `bson:"createdAt"`
	CustomEnrichment int64  `bson:"customEnrichment"`
	InspectedAt      string `bson:"inspectedAt"`
}

type MongoStore struct {
	collection *mongo.Collection
	logger     logger.Logger
}

func NewMongoStore(db *mongo.Database, collection string, log logger.Logger) *MongoStore {
	return &MongoStore{
		collection: db.Collection(collection),
		logger:     log,
	}
}

func (s *MongoStore) PutIfAbsent(ctx context.Context, rec *models.EnrichedRecord) (bool, error) {
	doc := mongoRecord{
		ID:               rec.TransactionID,
		Name:             rec.Name,
		City:             rec.City,
		Transaction:      rec.Transaction,
		BankID:           rec.BankID,
		CreatedAt:        rec.CreatedAt,
		CustomEnrichment: rec.CustomEnrichment,
		InspectedAt:      rec.InspectedAt,
	}

	_, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			s.logger.DebugwCtx(ctx, "Record already present",
				"transaction_id", rec.TransactionID,
			)
			return false, nil
		}
		return false, fmt.Errorf("mongo insert failed for record %s: %w", rec.TransactionID, err)
	}

	return true, nil
}

func (s *MongoStore) Backend() string {
	return constants.StoreBackendMongo
}
