package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txfanout/internal/logger"
	"txfanout/pkg/errors"
	"txfanout/pkg/models"
)

type fakeStore struct {
	records   []*models.EnrichedRecord
	duplicate bool
	err       error
}

func (s *fakeStore) PutIfAbsent(ctx context.Context, rec *models.EnrichedRecord) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.duplicate {
		return false, nil
	}
	s.records = append(s.records, rec)
	return true, nil
}

func (s *fakeStore) Backend() string {
	return "fake"
}

type fakeNotifier struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (n *fakeNotifier) Notify(ctx context.Context, transactionID string, body []byte) error {
	if n.err != nil {
		return n.err
	}
	n.keys = append(n.keys, transactionID)
	n.bodies = append(n.bodies, body)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
}

func newTestService(st *fakeStore, n *fakeNotifier) *Service {
	return NewServiceWithClock(st, n, logger.NopLogger(), fixedClock)
}

func testRecordJSON() []byte {
	return []byte(`{
		"transactionId": "t1",
		"name": "Alice Johnson",
		"city": "New York",
		"transaction": 1000,
		"bankId": "BOFAUS3N",
		"createdAt": "2024-05-01T10:00:00Z"
	}`)
}

func TestProcess_InsertsAndNotifies(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{}
	svc := newTestService(st, n)

	res, err := svc.Process(context.Background(), models.NewInvocationEvent(testRecordJSON()))
	require.NoError(t, err)

	assert.False(t, res.Duplicate)
	assert.Equal(t, "inserted", res.Status())

	require.Len(t, st.records, 1)
	stored := st.records[0]
	assert.Equal(t, "t1", stored.TransactionID)
	assert.Equal(t, int64(1000), stored.Transaction)
	assert.Equal(t, int64(1500), stored.CustomEnrichment)
	assert.Equal(t, "2024-05-01T10:30:00Z", stored.InspectedAt)

	require.Len(t, n.keys, 1)
	assert.Equal(t, "t1", n.keys[0])
	assert.Equal(t, res.Body, n.bodies[0])
}

func TestProcess_EnrichedBody(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st, &fakeNotifier{})

	res, err := svc.Process(context.Background(), models.NewInvocationEvent(testRecordJSON()))
	require.NoError(t, err)

	var enriched models.EnrichedRecord
	require.NoError(t, json.Unmarshal(res.Body, &enriched))

	assert.Equal(t, "t1", enriched.TransactionID)
	assert.Equal(t, "Alice Johnson", enriched.Name)
	assert.Equal(t, "New York", enriched.City)
	assert.Equal(t, "BOFAUS3N", enriched.BankID)
	assert.Equal(t, "2024-05-01T10:00:00Z", enriched.CreatedAt)
	assert.Equal(t, int64(1500), enriched.CustomEnrichment)
	assert.NotEmpty(t, enriched.InspectedAt)

	ack := res.Ack()
	assert.Equal(t, 200, ack.StatusCode)
	assert.Equal(t, string(res.Body), ack.Body)
}

func TestProcess_DuplicateSkipsNotification(t *testing.T) {
	st := &fakeStore{duplicate: true}
	n := &fakeNotifier{}
	svc := newTestService(st, n)

	res, err := svc.Process(context.Background(), models.NewInvocationEvent(testRecordJSON()))
	require.NoError(t, err)

	assert.True(t, res.Duplicate)
	assert.Equal(t, "duplicate", res.Status())
	assert.Empty(t, n.keys)

	// Duplicates acknowledge exactly like first deliveries.
	ack := res.Ack()
	assert.Equal(t, 200, ack.StatusCode)
	assert.NotEmpty(t, ack.Body)
}

func TestProcess_EmptyEvent(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeNotifier{})

	_, err := svc.Process(context.Background(), models.InvocationEvent{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestProcess_OnlyFirstRecordProcessed(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{}
	svc := newTestService(st, n)

	second := []byte(`{"transactionId":"t2","name":"Bob","city":"Boston","transaction":2000,"bankId":"B2","createdAt":"2024-05-01T11:00:00Z"}`)

	res, err := svc.Process(context.Background(), models.NewInvocationEvent(testRecordJSON(), second))
	require.NoError(t, err)

	assert.Equal(t, "t1", res.Record.TransactionID)
	require.Len(t, st.records, 1)
	assert.Equal(t, "t1", st.records[0].TransactionID)
}

func TestProcess_DecodeError(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st, &fakeNotifier{})

	event := models.InvocationEvent{Records: []models.RecordPayload{{Data: "!!!not-base64!!!"}}}

	_, err := svc.Process(context.Background(), event)
	require.Error(t, err)
	assert.True(t, errors.IsDecode(err))
	assert.Empty(t, st.records)
}

func TestProcess_ValidationError(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{}
	svc := newTestService(st, n)

	missingBank := []byte(`{"transactionId":"t1","name":"Alice","city":"NYC","transaction":1000,"createdAt":"2024-01-01T00:00:00Z"}`)

	_, err := svc.Process(context.Background(), models.NewInvocationEvent(missingBank))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Empty(t, st.records)
	assert.Empty(t, n.keys)
}

func TestProcess_StoreError(t *testing.T) {
	st := &fakeStore{err: fmt.Errorf("connection refused")}
	n := &fakeNotifier{}
	svc := newTestService(st, n)

	_, err := svc.Process(context.Background(), models.NewInvocationEvent(testRecordJSON()))
	require.Error(t, err)
	assert.True(t, errors.IsDownstream(err))
	assert.Empty(t, n.keys)
}

func TestProcess_NotifyError(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{err: fmt.Errorf("broker unreachable")}
	svc := newTestService(st, n)

	_, err := svc.Process(context.Background(), models.NewInvocationEvent(testRecordJSON()))
	require.Error(t, err)
	assert.True(t, errors.IsDownstream(err))

	// The record was persisted before the publish failed; a redelivery will
	// see it as a duplicate.
	require.Len(t, st.records, 1)
}

func TestProcess_FatalErrorsAreNotRetryable(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeNotifier{})

	incomplete := []byte(`{"name":"Alice"}`)
	_, err := svc.Process(context.Background(), models.NewInvocationEvent(incomplete))
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsFatal())
	assert.False(t, appErr.IsRetryable())
}

func TestProcess_DownstreamErrorsAreRetryable(t *testing.T) {
	st := &fakeStore{err: fmt.Errorf("connection refused")}
	svc := newTestService(st, &fakeNotifier{})

	_, err := svc.Process(context.Background(), models.NewInvocationEvent(testRecordJSON()))
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsRetryable())
	assert.False(t, appErr.IsFatal())
}

func TestProcess_CancelledContext(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Process(ctx, models.NewInvocationEvent(testRecordJSON()))
	assert.Error(t, err)
}
