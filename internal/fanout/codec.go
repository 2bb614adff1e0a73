package fanout

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	stderrors "errors"

	"txfanout/pkg/errors"
	"txfanout/pkg/models"
)

// decodeRecordData reverses the transport encoding: base64 over a UTF-8
// JSON document.
func decodeRecordData(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.ErrDecode.WithCause(err).WithDetail("message", "record data is not valid base64")
	}

	if !utf8.Valid(raw) {
		return nil, errors.ErrDecode.WithDetail("message", "record data is not valid UTF-8")
	}

	return raw, nil
}

// parseRecord unmarshals a decoded payload, checking the contract fields are
// all present before binding the struct. Unknown fields are ignored.
func parseRecord(raw []byte) (*models.DomainRecord, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.ErrParse.WithCause(err).WithDetail("message", "record payload is not a JSON object")
	}

	if err := models.ValidateRecordDocument(doc); err != nil {
		appErr := errors.ErrValidation.WithCause(err)
		var vErr *models.ValidationError
		if stderrors.As(err, &vErr) {
			appErr = appErr.WithDetail("field", vErr.Field)
		}
		return nil, appErr
	}

	var rec models.DomainRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.ErrParse.WithCause(err).WithDetail("message", "record fields have unexpected types")
	}

	return &rec, nil
}
