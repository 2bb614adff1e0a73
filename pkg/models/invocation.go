package models

import "encoding/base64"

// RecordPayload carries one base64-encoded record, mirroring how stream
// sources hand batches to downstream handlers.
type RecordPayload struct {
	Data string `json:"data"`
}

// InvocationEvent is the batch envelope delivered to the fan-out handler,
// either over HTTP or from the analytics output topic.
type InvocationEvent struct {
	Records []RecordPayload `json:"records"`
}

// InvocationAck is the handler's acknowledgement. Body carries the enriched
// record that was persisted, serialized as JSON.
type InvocationAck struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// NewInvocationEvent wraps raw record payloads in a transport envelope,
// base64-encoding each one.
func NewInvocationEvent(payloads ...[]byte) InvocationEvent {
	records := make([]RecordPayload, 0, len(payloads))
	for _, p := range payloads {
		records = append(records, RecordPayload{Data: base64.StdEncoding.EncodeToString(p)})
	}
	return InvocationEvent{Records: records}
}
