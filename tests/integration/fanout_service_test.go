package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"txfanout/internal/config"
	"txfanout/internal/fanout"
	"txfanout/internal/store"
	"txfanout/pkg/models"
)

type recordingNotifier struct {
	keys   []string
	bodies [][]byte
}

func (n *recordingNotifier) Notify(ctx context.Context, transactionID string, body []byte) error {
	n.keys = append(n.keys, transactionID)
	n.bodies = append(n.bodies, body)
	return nil
}

func TestFanoutService_ProcessAndNotify(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	st := store.NewMongoStore(infra.MongoDB, "transactions", createTestLogger())
	notifier := &recordingNotifier{}
	service := fanout.NewService(st, notifier, createTestLogger())

	res, err := service.Process(ctx, createTestEvent(t, "txn-100"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Duplicate)

	ack := res.Ack()
	assert.Equal(t, 200, ack.StatusCode)

	var enriched models.EnrichedRecord
	require.NoError(t, json.Unmarshal([]byte(ack.Body), &enriched))
	assert.Equal(t, "txn-100", enriched.TransactionID)
	assert.EqualValues(t, 1500, enriched.CustomEnrichment)
	assert.NotEmpty(t, enriched.InspectedAt)

	require.Len(t, notifier.keys, 1)
	assert.Equal(t, "txn-100", notifier.keys[0])
	assert.Equal(t, res.Body, notifier.bodies[0])

	var doc bson.M
	err = infra.MongoDB.Collection("transactions").FindOne(ctx, bson.M{"_id": "txn-100"}).Decode(&doc)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, doc["customEnrichment"])
}

func TestFanoutService_DuplicateDelivery(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	st := store.NewMongoStore(infra.MongoDB, "transactions", createTestLogger())
	notifier := &recordingNotifier{}
	service := fanout.NewService(st, notifier, createTestLogger())

	first, err := service.Process(ctx, createTestEvent(t, "txn-200"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := service.Process(ctx, createTestEvent(t, "txn-200"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	// The duplicate acknowledges like the first delivery but is not
	// re-published.
	assert.Equal(t, 200, second.Ack().StatusCode)
	assert.NotEmpty(t, second.Ack().Body)
	assert.Len(t, notifier.keys, 1)

	count, err := infra.MongoDB.Collection("transactions").CountDocuments(ctx, bson.M{"_id": "txn-200"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestFanoutService_PostgresBackend(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	st := store.NewPostgresStore(infra.PostgresDB, "transactions", createTestLogger())
	notifier := &recordingNotifier{}
	service := fanout.NewService(st, notifier, createTestLogger())

	first, err := service.Process(ctx, createTestEvent(t, "txn-300"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := service.Process(ctx, createTestEvent(t, "txn-300"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assert.Len(t, notifier.keys, 1)

	var count int
	err = infra.PostgresDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE transaction_id = $1", "txn-300",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFanoutService_RedisBackend(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)

	ctx := context.Background()
	st := store.NewRedisStore(infra.RedisClient, "transactions", 0, createTestLogger())
	notifier := &recordingNotifier{}
	service := fanout.NewService(st, notifier, createTestLogger())

	first, err := service.Process(ctx, createTestEvent(t, "txn-400"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := service.Process(ctx, createTestEvent(t, "txn-400"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assert.Len(t, notifier.keys, 1)
}

func TestFanoutService_CircuitBreakerStore(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	st := store.NewMongoStore(infra.MongoDB, "transactions", createTestLogger())
	wrapped := store.NewCircuitBreakerStore(st, config.CircuitBreakerConfig{Enabled: true})
	notifier := &recordingNotifier{}
	service := fanout.NewService(wrapped, notifier, createTestLogger())

	first, err := service.Process(ctx, createTestEvent(t, "txn-500"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := service.Process(ctx, createTestEvent(t, "txn-500"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assert.Len(t, notifier.keys, 1)
	assert.Equal(t, "closed", wrapped.State())
}

func TestFanoutService_DistinctTransactions(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	st := store.NewMongoStore(infra.MongoDB, "transactions", createTestLogger())
	notifier := &recordingNotifier{}
	service := fanout.NewService(st, notifier, createTestLogger())

	for i := 0; i < 3; i++ {
		res, err := service.Process(ctx, createTestEvent(t, fmt.Sprintf("txn-60%d", i)))
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
	}

	assert.Len(t, notifier.keys, 3)

	count, err := infra.MongoDB.Collection("transactions").CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
