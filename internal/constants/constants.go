package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

// EnrichmentOffset is the fixed amount added to a record's transaction value
// before it is persisted and republished. Downstream consumers depend on the
// exact value, so it is a constant rather than configuration.
const EnrichmentOffset int64 = 500

const (
	MinTransactionAmount = 1000
	MaxTransactionAmount = 10000
	MinCustomerAge       = 18
	MaxCustomerAge       = 85
)

const (
	DefaultInputTopic        = "analytics_output"
	DefaultNotificationTopic = "transaction_notifications"
	DefaultStreamTopic       = "transactions_raw"
)

const (
	DefaultPartitionKey = "abc"
	DefaultBankPoolSize = 10
	DefaultEmitInterval = 1 * time.Second
)

const (
	DefaultMongoDBName = "txfanout"
	DefaultStoreTable  = "transactions"
)

const (
	StoreBackendMongo    = "mongo"
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
)

const BrokerTypeKafka = "kafka"

const (
	DefaultSettleTime       = 30 * time.Second
	StartingPositionNow     = "NOW"
	StartingPositionTrimmed = "TRIM_HORIZON"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultTruncateLen = 100
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)
