package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// RequiredRecordFields are the keys a transaction payload must carry before
// the fan-out pipeline will process it.
var RequiredRecordFields = []string{"transactionId", "name", "city", "transaction", "bankId", "createdAt"}

var jsonNull = []byte("null")

// ValidateRecordDocument checks that every required field is present and
// non-null in a decoded JSON document. A JSON null counts as absent; extra
// fields are allowed and ignored.
func ValidateRecordDocument(doc map[string]json.RawMessage) error {
	for _, field := range RequiredRecordFields {
		value, ok := doc[field]
		if !ok || bytes.Equal(bytes.TrimSpace(value), jsonNull) {
			return &ValidationError{
				Field:   field,
				Message: "required field is missing",
			}
		}
	}
	return nil
}
