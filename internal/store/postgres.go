package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"txfanout/internal/constants"
	"txfanout/internal/logger"
	"txfanout/pkg/models"
)

type PostgresStore struct {
	db          *sql.DB
	insertQuery string
	logger      logger.Logger
}

func NewPostgresStore(db *sql.DB, table string, log logger.Logger) *PostgresStore {
	query := fmt.Sprintf(`
		INSERT INTO %s (transaction_id, name, city, transaction, bank_id, created_at, custom_enrichment, inspected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_id) DO NOTHING`,
		pq.QuoteIdentifier(table),
	)

	return &PostgresStore{
		db:          db,
		insertQuery: query,
		logger:      log,
	}
}

func (s *PostgresStore) PutIfAbsent(ctx context.Context, rec *models.EnrichedRecord) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.insertQuery,
		rec.TransactionID,
		rec.Name,
		rec.City,
		rec.Transaction,
		rec.BankID,
		rec.CreatedAt,
		rec.CustomEnrichment,
		rec.InspectedAt,
	)
	if err != nil {
		return false, fmt.Errorf("postgres insert failed for record %s: %w", rec.TransactionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for record %s: %w", rec.TransactionID, err)
	}

	if affected == 0 {
		s.logger.DebugwCtx(ctx, "Record already present",
			"transaction_id", rec.TransactionID,
		)
		return false, nil
	}

	return true, nil
}

func (s *PostgresStore) Backend() string {
	return constants.StoreBackendPostgres
}
