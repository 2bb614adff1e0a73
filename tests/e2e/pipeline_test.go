package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txfanout/pkg/models"
)

const (
	kafkaBroker        = "localhost:29092"
	inputTopic         = "analytics_output"
	notificationTopic  = "transaction_notifications"
	fanoutServiceURL   = "http://localhost:8080"
	messageWaitTimeout = 30 * time.Second
)

// These tests drive a running stack (Kafka plus the fan-out service) and
// skip when it is not up.
func requireKafka(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", kafkaBroker, 2*time.Second)
	if err != nil {
		t.Skipf("kafka broker %s not reachable: %v", kafkaBroker, err)
	}
	conn.Close()
}

func requireFanoutService(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s/health", fanoutServiceURL))
	if err != nil {
		t.Skipf("fanout service %s not reachable: %v", fanoutServiceURL, err)
	}
	resp.Body.Close()
}

func TestPipelineEndToEnd(t *testing.T) {
	requireKafka(t)
	requireFanoutService(t)

	transactionID := uuid.New().String()
	sendInvocationEvent(t, transactionID, 7800)

	key, enriched := waitForNotification(t, transactionID)
	require.NotNil(t, enriched, "notification should arrive for transaction %s", transactionID)

	assert.Equal(t, transactionID, key, "notification should be keyed by transaction ID")
	assert.Equal(t, transactionID, enriched.TransactionID)
	assert.Equal(t, "Alice Johnson", enriched.Name)
	assert.Equal(t, "New York", enriched.City)
	assert.EqualValues(t, 7800, enriched.Transaction)
	assert.Equal(t, "BOFAUS3N", enriched.BankID)
	assert.EqualValues(t, 8300, enriched.CustomEnrichment)

	inspected, err := time.Parse(time.RFC3339Nano, enriched.InspectedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), inspected, 5*time.Minute)
}

func TestPipelineDuplicateDelivery(t *testing.T) {
	requireKafka(t)
	requireFanoutService(t)

	transactionID := uuid.New().String()
	sendInvocationEvent(t, transactionID, 2500)

	_, first := waitForNotification(t, transactionID)
	require.NotNil(t, first, "first delivery should be notified")

	// Redeliver the exact same event and give the pipeline time to
	// process it.
	sendInvocationEvent(t, transactionID, 2500)
	time.Sleep(3 * time.Second)

	count := countNotifications(t, transactionID)
	assert.Equal(t, 1, count, "duplicate delivery must not be re-published")
}

func TestInvokeEndpoint(t *testing.T) {
	requireFanoutService(t)

	transactionID := uuid.New().String()
	event := models.NewInvocationEvent(transactionPayload(t, transactionID, 4200))

	ack := invokeFanout(t, event)
	assert.Equal(t, http.StatusOK, ack.StatusCode)

	var enriched models.EnrichedRecord
	require.NoError(t, json.Unmarshal([]byte(ack.Body), &enriched))
	assert.Equal(t, transactionID, enriched.TransactionID)
	assert.EqualValues(t, 4700, enriched.CustomEnrichment)

	// A duplicate invocation acknowledges exactly like the first.
	dup := invokeFanout(t, event)
	assert.Equal(t, http.StatusOK, dup.StatusCode)
	assert.NotEmpty(t, dup.Body)
}

func TestInvokeEndpoint_MalformedRecord(t *testing.T) {
	requireFanoutService(t)

	event := models.InvocationEvent{
		Records: []models.RecordPayload{{Data: "not base64!!!"}},
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	resp, err := http.Post(fmt.Sprintf("%s/v1/invoke", fanoutServiceURL), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "DECODE_ERROR", errResp["error_code"])
}

func TestFanoutServiceHealth(t *testing.T) {
	requireFanoutService(t)

	resp, err := http.Get(fmt.Sprintf("%s/health", fanoutServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.NotNil(t, health["status"])
}

func TestFanoutServiceMetrics(t *testing.T) {
	requireFanoutService(t)

	resp, err := http.Get(fmt.Sprintf("%s/metrics", fanoutServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "# HELP")
}

func transactionPayload(t *testing.T, transactionID string, amount int64) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"transactionId": transactionID,
		"name":          "Alice Johnson",
		"city":          "New York",
		"transaction":   amount,
		"bankId":        "BOFAUS3N",
		"createdAt":     time.Now().UTC().Format(time.RFC3339Nano),
		"age":           42,
		"address":       "1200 Main Street",
		"state":         "New York",
	})
	require.NoError(t, err)
	return payload
}

func sendInvocationEvent(t *testing.T, transactionID string, amount int64) {
	t.Helper()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaBroker),
		Topic:        inputTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	event := models.NewInvocationEvent(transactionPayload(t, transactionID, amount))
	body, err := json.Marshal(event)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte("abc"),
		Value: body,
		Time:  time.Now(),
	})
	require.NoError(t, err, "failed to write invocation event")
}

func waitForNotification(t *testing.T, transactionID string) (string, *models.EnrichedRecord) {
	t.Helper()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{kafkaBroker},
		Topic:          notificationTopic,
		GroupID:        fmt.Sprintf("e2e-waiter-%s", uuid.New().String()),
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        2 * time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), messageWaitTimeout)
	defer cancel()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", nil
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var enriched models.EnrichedRecord
		if err := json.Unmarshal(msg.Value, &enriched); err != nil {
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		_ = reader.CommitMessages(ctx, msg)

		if enriched.TransactionID == transactionID {
			return string(msg.Key), &enriched
		}
	}
}

func countNotifications(t *testing.T, transactionID string) int {
	t.Helper()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{kafkaBroker},
		Topic:          notificationTopic,
		GroupID:        fmt.Sprintf("e2e-counter-%s", uuid.New().String()),
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        2 * time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count := 0
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return count
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var enriched models.EnrichedRecord
		if err := json.Unmarshal(msg.Value, &enriched); err == nil && enriched.TransactionID == transactionID {
			count++
		}

		_ = reader.CommitMessages(ctx, msg)
	}
}

func invokeFanout(t *testing.T, event models.InvocationEvent) models.InvocationAck {
	t.Helper()

	body, err := json.Marshal(event)
	require.NoError(t, err)

	resp, err := http.Post(fmt.Sprintf("%s/v1/invoke", fanoutServiceURL), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "invoke failed: %s", strings.TrimSpace(string(raw)))

	var ack models.InvocationAck
	require.NoError(t, json.Unmarshal(raw, &ack))
	return ack
}
