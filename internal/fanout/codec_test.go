package fanout

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txfanout/pkg/errors"
)

func encode(payload string) string {
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestDecodeRecordData(t *testing.T) {
	raw, err := decodeRecordData(encode(`{"transactionId":"t1"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"transactionId":"t1"}`, string(raw))
}

func TestDecodeRecordData_InvalidBase64(t *testing.T) {
	_, err := decodeRecordData("not base64!!!")
	require.Error(t, err)
	assert.True(t, errors.IsDecode(err))
}

func TestDecodeRecordData_InvalidUTF8(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd})

	_, err := decodeRecordData(data)
	require.Error(t, err)
	assert.True(t, errors.IsDecode(err))
}

func TestParseRecord(t *testing.T) {
	raw := []byte(`{
		"transactionId": "t1",
		"name": "Alice Johnson",
		"city": "New York",
		"transaction": 1000,
		"bankId": "BOFAUS3N",
		"createdAt": "2024-05-01T10:00:00Z",
		"age": 42,
		"state": "NY"
	}`)

	rec, err := parseRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, "t1", rec.TransactionID)
	assert.Equal(t, "Alice Johnson", rec.Name)
	assert.Equal(t, "New York", rec.City)
	assert.Equal(t, int64(1000), rec.Transaction)
	assert.Equal(t, "BOFAUS3N", rec.BankID)
	assert.Equal(t, "2024-05-01T10:00:00Z", rec.CreatedAt)
}

func TestParseRecord_Errors(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		isParse      bool
		isValidation bool
	}{
		{
			name:    "not json",
			raw:     `{{{`,
			isParse: true,
		},
		{
			name:    "json array",
			raw:     `[1,2,3]`,
			isParse: true,
		},
		{
			name:         "missing field",
			raw:          `{"transactionId":"t1","name":"Alice","city":"NYC","transaction":1000,"bankId":"B1"}`,
			isValidation: true,
		},
		{
			name:         "null field",
			raw:          `{"transactionId":"t1","name":null,"city":"NYC","transaction":1000,"bankId":"B1","createdAt":"2024-05-01T10:00:00Z"}`,
			isValidation: true,
		},
		{
			name:    "wrong field type",
			raw:     `{"transactionId":"t1","name":"Alice","city":"NYC","transaction":"lots","bankId":"B1","createdAt":"2024-05-01T10:00:00Z"}`,
			isParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRecord([]byte(tt.raw))
			require.Error(t, err)
			assert.Equal(t, tt.isParse, errors.IsParse(err))
			assert.Equal(t, tt.isValidation, errors.IsValidation(err))
		})
	}
}

func TestParseRecord_ValidationNamesFirstMissingField(t *testing.T) {
	_, err := parseRecord([]byte(`{"name":"Alice"}`))
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "transactionId", appErr.Details["field"])
}
