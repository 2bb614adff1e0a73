package generator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"txfanout/internal/broker"
	"txfanout/internal/config"
	"txfanout/internal/constants"
	"txfanout/internal/logger"
	"txfanout/pkg/errors"
	"txfanout/pkg/metrics"
	"txfanout/pkg/models"
	"txfanout/pkg/tracing"
)

// Generator emits synthetic transaction records to the raw stream topic at a
// fixed cadence. All records share one partition key, so the stream behaves
// like a single ordered shard.
type Generator struct {
	producer broker.Producer
	clock    Clock
	faker    *gofakeit.Faker
	banks    []string
	logger   logger.Logger

	topic    string
	key      string
	interval time.Duration
	count    int
}

// NewGenerator creates a generator publishing to the given topic. A zero
// seed randomizes the synthesizer, any other value makes the generated
// values reproducible.
func NewGenerator(producer broker.Producer, cfg config.GeneratorConfig, topic string, log logger.Logger) *Generator {
	return NewGeneratorWithClock(producer, cfg, topic, log, NewSystemClock())
}

// NewGeneratorWithClock creates a generator with an injectable clock for the
// emit cadence and record timestamps.
func NewGeneratorWithClock(producer broker.Producer, cfg config.GeneratorConfig, topic string, log logger.Logger, clock Clock) *Generator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = constants.DefaultEmitInterval
	}

	key := cfg.PartitionKey
	if key == "" {
		key = constants.DefaultPartitionKey
	}

	poolSize := cfg.BankPoolSize
	if poolSize <= 0 {
		poolSize = constants.DefaultBankPoolSize
	}

	faker := gofakeit.New(cfg.Seed)

	return &Generator{
		producer: producer,
		clock:    clock,
		faker:    faker,
		banks:    newBankPool(faker, poolSize),
		logger:   log,
		topic:    topic,
		key:      key,
		interval: interval,
		count:    cfg.Count,
	}
}

// Banks returns the bank identifier pool the generator draws from.
func (g *Generator) Banks() []string {
	banks := make([]string, len(g.banks))
	copy(banks, g.banks)
	return banks
}

// Run emits records until the context is cancelled or, when a count is
// configured, until that many records have been published. A publish failure
// stops the run: the stream is the sole output, so there is nothing useful
// to do without it.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Infow("Starting data generator",
		"topic", g.topic,
		"partition_key", g.key,
		"interval", g.interval.String(),
		"count", g.count,
		"bank_pool", len(g.banks),
	)

	for emitted := 0; g.count == 0 || emitted < g.count; emitted++ {
		if err := ctx.Err(); err != nil {
			g.logger.Infow("Data generator stopping", "emitted", emitted)
			return nil
		}

		if err := g.emit(ctx, emitted+1); err != nil {
			return err
		}

		if err := g.clock.Sleep(ctx, g.interval); err != nil {
			g.logger.Infow("Data generator stopping", "emitted", emitted+1)
			return nil
		}
	}

	g.logger.Infow("Data generator finished", "emitted", g.count)
	return nil
}

func (g *Generator) emit(ctx context.Context, seq int) error {
	ctx, span := tracing.GetTracer("generator-service").Start(ctx, "generator.emit")
	defer span.End()

	record := g.synthesize()

	body, err := json.Marshal(record)
	if err != nil {
		metrics.IncGeneratorRecord("error")
		return errors.ErrInternal.WithCause(err)
	}

	start := time.Now()
	err = g.producer.Publish(ctx, g.topic, g.key, body)
	metrics.ObserveGeneratorEmitDuration(time.Since(start))

	if err != nil {
		metrics.IncGeneratorRecord("error")
		return errors.ErrDownstream.WithCause(err).WithDetail("message", "stream append failed")
	}

	metrics.IncGeneratorRecord("published")
	g.logger.InfowCtx(ctx, "Record published",
		"sequence", seq,
		"transaction_id", record.TransactionID,
		"bank_id", record.BankID,
		"transaction", record.Transaction,
	)
	return nil
}

func (g *Generator) synthesize() *models.SyntheticRecord {
	return &models.SyntheticRecord{
		DomainRecord: models.DomainRecord{
			TransactionID: uuid.New().String(),
			Name:          g.faker.Name(),
			City:          g.faker.City(),
			Transaction:   int64(g.faker.Number(constants.MinTransactionAmount, constants.MaxTransactionAmount)),
			BankID:        g.banks[g.faker.Number(0, len(g.banks)-1)],
			CreatedAt:     g.clock.Now().UTC().Format(time.RFC3339Nano),
		},
		Age:     g.faker.Number(constants.MinCustomerAge, constants.MaxCustomerAge),
		Address: g.faker.Street(),
		State:   g.faker.State(),
	}
}
