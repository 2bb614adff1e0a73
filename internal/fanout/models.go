package fanout

import (
	"net/http"

	"txfanout/pkg/models"
)

// Result is the outcome of one processed record. Body holds the enriched
// record serialized once, shared by the acknowledgement and the
// notification.
type Result struct {
	Record    *models.EnrichedRecord
	Body      []byte
	Duplicate bool
}

// Status returns the metric label for the outcome.
func (r *Result) Status() string {
	if r.Duplicate {
		return "duplicate"
	}
	return "inserted"
}

// Ack builds the acknowledgement returned to the invoker. Duplicates
// acknowledge exactly like first deliveries.
func (r *Result) Ack() models.InvocationAck {
	return models.InvocationAck{
		StatusCode: http.StatusOK,
		Body:       string(r.Body),
	}
}
