package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"txfanout/internal/constants"
	"txfanout/internal/logger"
	"txfanout/pkg/models"
)

// RedisStore keeps records under "<prefix>:<transactionId>". A zero TTL
// means records never expire.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: log,
	}
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, rec *models.EnrichedRecord) (bool, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal record %s: %w", rec.TransactionID, err)
	}

	created, err := s.client.SetNX(ctx, s.Key(rec.TransactionID), body, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed for record %s: %w", rec.TransactionID, err)
	}

	if !created {
		s.logger.DebugwCtx(ctx, "Record already present",
			"transaction_id", rec.TransactionID,
		)
	}

	return created, nil
}

func (s *RedisStore) Key(transactionID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, transactionID)
}

func (s *RedisStore) Backend() string {
	return constants.StoreBackendRedis
}
