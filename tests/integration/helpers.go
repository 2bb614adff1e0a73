package integration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"txfanout/internal/logger"
	"txfanout/pkg/models"
)

const containerStartupTimeout = 60

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestRecord(transactionID string) *models.EnrichedRecord {
	return &models.EnrichedRecord{
		DomainRecord: models.DomainRecord{
			TransactionID: transactionID,
			Name:          "Alice Johnson",
			City:          "New York",
			Transaction:   1000,
			BankID:        "BOFAUS3N",
			CreatedAt:     "2024-05-01T10:00:00Z",
		},
		CustomEnrichment: 1500,
		InspectedAt:      "2024-05-01T10:30:00Z",
	}
}

func createTestEvent(t *testing.T, transactionID string) models.InvocationEvent {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"transactionId": transactionID,
		"name":          "Alice Johnson",
		"city":          "New York",
		"transaction":   1000,
		"bankId":        "BOFAUS3N",
		"createdAt":     "2024-05-01T10:00:00Z",
	})
	require.NoError(t, err)

	return models.NewInvocationEvent(payload)
}
