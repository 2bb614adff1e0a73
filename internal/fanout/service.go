package fanout

import (
	"context"
	"encoding/json"
	"time"

	"txfanout/internal/constants"
	"txfanout/internal/logger"
	"txfanout/internal/store"
	"txfanout/pkg/errors"
	"txfanout/pkg/logging"
	"txfanout/pkg/metrics"
	"txfanout/pkg/models"
	"txfanout/pkg/tracing"
)

// Service runs the fan-out pipeline: decode the delivered record, validate
// and enrich it, write it to the store, and notify subscribers. Writes are
// conditional on the transaction ID, so redelivered events settle into the
// same stored row and produce at most one notification.
type Service struct {
	store    store.Store
	notifier Notifier
	logger   logger.Logger
	now      func() time.Time
}

// NewService creates a new fan-out service instance.
func NewService(st store.Store, notifier Notifier, log logger.Logger) *Service {
	return NewServiceWithClock(st, notifier, log, time.Now)
}

// NewServiceWithClock creates a service with an injectable clock for the
// inspection timestamp.
func NewServiceWithClock(st store.Store, notifier Notifier, log logger.Logger, now func() time.Time) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   log,
		now:      now,
	}
}

// Process handles a single invocation event end to end. A duplicate write is
// a success: the result carries Duplicate=true and no notification is sent.
func (s *Service) Process(ctx context.Context, event models.InvocationEvent) (*Result, error) {
	ctx, span := tracing.GetTracer("fanout-service").Start(ctx, "fanout.process")
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := firstRecord(event)
	if err != nil {
		return s.fail(start, "validation_error", err)
	}

	raw, err := decodeRecordData(payload.Data)
	if err != nil {
		return s.fail(start, "decode_error", err)
	}

	record, err := parseRecord(raw)
	if err != nil {
		return s.fail(start, recordErrorStatus(err), err)
	}

	ctx = logging.WithTransactionID(ctx, record.TransactionID)

	enriched := s.enrich(record)

	body, err := json.Marshal(enriched)
	if err != nil {
		return s.fail(start, "internal_error", errors.ErrInternal.WithCause(err))
	}

	created, err := s.putRecord(ctx, enriched)
	if err != nil {
		return s.fail(start, "store_error",
			errors.ErrDownstream.WithCause(err).WithDetail("message", "store write failed"))
	}

	res := &Result{Record: enriched, Body: body, Duplicate: !created}

	if res.Duplicate {
		metrics.IncFanoutNotification("skipped_duplicate")
		s.logger.InfowCtx(ctx, "Transaction already recorded, skipping notification",
			"backend", s.store.Backend(),
		)
		return s.finish(start, res)
	}

	if err := s.notifier.Notify(ctx, enriched.TransactionID, body); err != nil {
		metrics.IncFanoutNotification("error")
		return s.fail(start, "publish_error",
			errors.ErrDownstream.WithCause(err).WithDetail("message", "notification publish failed"))
	}

	metrics.IncFanoutNotification("published")
	s.logger.InfowCtx(ctx, "Transaction recorded and notification published",
		"backend", s.store.Backend(),
		"bank_id", enriched.BankID,
	)

	return s.finish(start, res)
}

// firstRecord extracts the record payload carried by the event. Batched
// deliveries are not supported, so only the first entry is inspected.
func firstRecord(event models.InvocationEvent) (models.RecordPayload, error) {
	if len(event.Records) == 0 {
		return models.RecordPayload{}, errors.ErrValidation.
			WithDetail("message", "invocation event carries no records")
	}
	return event.Records[0], nil
}

func (s *Service) enrich(record *models.DomainRecord) *models.EnrichedRecord {
	return &models.EnrichedRecord{
		DomainRecord:     *record,
		CustomEnrichment: record.Transaction + constants.EnrichmentOffset,
		InspectedAt:      s.now().UTC().Format(time.RFC3339Nano),
	}
}

func (s *Service) putRecord(ctx context.Context, rec *models.EnrichedRecord) (bool, error) {
	backend := s.store.Backend()

	opStart := time.Now()
	created, err := s.store.PutIfAbsent(ctx, rec)
	duration := time.Since(opStart)

	status := "inserted"
	switch {
	case err != nil:
		status = "error"
	case !created:
		status = "duplicate"
	}

	metrics.IncStoreOperation(backend, "put_if_absent", status)
	metrics.ObserveStoreDuration(backend, "put_if_absent", duration)

	return created, err
}

func recordErrorStatus(err error) string {
	if errors.IsValidation(err) {
		return "validation_error"
	}
	return "parse_error"
}

func (s *Service) fail(start time.Time, status string, err error) (*Result, error) {
	metrics.IncFanoutRecord(status)
	metrics.ObserveFanoutDuration(time.Since(start), status)
	return nil, err
}

func (s *Service) finish(start time.Time, res *Result) (*Result, error) {
	status := res.Status()
	metrics.IncFanoutRecord(status)
	metrics.ObserveFanoutDuration(time.Since(start), status)
	return res, nil
}
