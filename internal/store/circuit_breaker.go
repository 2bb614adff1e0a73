package store

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"txfanout/internal/config"
	"txfanout/pkg/circuitbreaker"
	"txfanout/pkg/models"
)

// CircuitBreakerStore shields the pipeline from a struggling backend: once
// the breaker opens, writes fail fast instead of piling up on the store.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(st Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{
			store: st,
			cb:    nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig(fmt.Sprintf("%s-store", st.Backend()))
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerStore{
		store: st,
		cb:    circuitbreaker.NewWrapper(cbConfig),
	}
}

func (s *CircuitBreakerStore) PutIfAbsent(ctx context.Context, rec *models.EnrichedRecord) (bool, error) {
	if s.cb == nil {
		return s.store.PutIfAbsent(ctx, rec)
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.store.PutIfAbsent(ctx, rec)
	})

	s.cb.RecordRequest(err == nil)

	if err != nil {
		if s.cb.IsOpen() {
			return false, fmt.Errorf("circuit breaker is open for %s store: %w", s.store.Backend(), err)
		}
		return false, err
	}

	created, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("store returned invalid result type")
	}

	return created, nil
}

func (s *CircuitBreakerStore) Backend() string {
	return s.store.Backend()
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

func (s *CircuitBreakerStore) IsOpen() bool {
	if s.cb == nil {
		return false
	}
	return s.cb.IsOpen()
}
