package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"context"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"txfanout/internal/config"
	"txfanout/internal/constants"
	"txfanout/internal/logger"
	"txfanout/pkg/models"
)

// Store persists inspected records keyed by transaction ID. PutIfAbsent is
// the pipeline's only write path; the backend's atomic conditional write is
// what makes at-least-once redelivery safe.
type Store interface {
	// PutIfAbsent writes the record unless one with the same transaction ID
	// already exists. It returns true when this call created the record, and
	// false with a nil error when the key was already present.
	PutIfAbsent(ctx context.Context, rec *models.EnrichedRecord) (bool, error)
	Backend() string
}

// Clients carries the candidate backend connections. Only the client
// matching the configured backend needs to be set; lifecycle stays with the
// caller.
type Clients struct {
	Redis    *redis.Client
	Mongo    *mongo.Database
	Postgres *sql.DB
}

func New(cfg config.StoreConfig, clients Clients, log logger.Logger) (Store, error) {
	table := cfg.Table
	if table == "" {
		table = constants.DefaultStoreTable
	}

	switch strings.ToLower(cfg.Backend) {
	case constants.StoreBackendMongo:
		if clients.Mongo == nil {
			return nil, fmt.Errorf("store backend is mongo but no MongoDB connection is configured")
		}
		return NewMongoStore(clients.Mongo, table, log), nil
	case constants.StoreBackendPostgres:
		if clients.Postgres == nil {
			return nil, fmt.Errorf("store backend is postgres but no PostgreSQL connection is configured")
		}
		return NewPostgresStore(clients.Postgres, table, log), nil
	case constants.StoreBackendRedis:
		if clients.Redis == nil {
			return nil, fmt.Errorf("store backend is redis but no Redis connection is configured")
		}
		ttl := time.Duration(cfg.TTLSeconds) * time.Second
		return NewRedisStore(clients.Redis, table, ttl, log), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: mongo, postgres, redis)", cfg.Backend)
	}
}
