package models

// DomainRecord is the transaction payload shared by the generator, the
// fan-out pipeline, and the durable store. Field names follow the wire
// contract; timestamps are RFC 3339 strings in UTC.
type DomainRecord struct {
	TransactionID string `json:"transactionId"`
	Name          string `json:"name"`
	City          string `json:"city"`
	Transaction   int64  `json:"transaction"`
	BankID        string `json:"bankId"`
	CreatedAt     string `json:"createdAt"`
}

// SyntheticRecord is what the generator emits: a DomainRecord plus the
// demographic fields consumed by the analytics stage. The fan-out contract
// ignores the extras.
type SyntheticRecord struct {
	DomainRecord
	Age     int    `json:"age"`
	Address string `json:"address"`
	State   string `json:"state"`
}

// EnrichedRecord is a DomainRecord after fan-out processing: the derived
// customEnrichment amount plus the inspection timestamp that marks the
// record as seen.
type EnrichedRecord struct {
	DomainRecord
	CustomEnrichment int64  `json:"customEnrichment"`
	InspectedAt      string `json:"inspectedAt"`
}
