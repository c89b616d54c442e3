package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparisonResult_Label(t *testing.T) {
	tests := map[ComparisonResult]string{
		"passed":  "Approved",
		"PASSED":  "Approved",
		"failed":  "Failed",
		"pending": "Pending",
		"review":  "review",
	}
	for in, want := range tests {
		assert.Equal(t, want, in.Label(), "label for %q", in)
	}
}

func TestComparisonResult_Buckets(t *testing.T) {
	assert.True(t, ComparisonPassed.Approved())
	assert.False(t, ComparisonPassed.NeedsAttention())
	assert.True(t, ComparisonFailed.NeedsAttention())
	assert.True(t, ComparisonPending.NeedsAttention())
	assert.False(t, ComparisonResult("unknown").NeedsAttention())
}

func TestInvoiceResult_OpaqueID(t *testing.T) {
	var numeric InvoiceResult
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"invoice_id":42,"invoice_number":"INV-1001"}`), &numeric))
	assert.Equal(t, OpaqueID("42"), numeric.InvoiceID)
	assert.True(t, numeric.Success)

	var quoted InvoiceResult
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"invoice_id":"inv_7"}`), &quoted))
	assert.Equal(t, OpaqueID("inv_7"), quoted.InvoiceID)

	var missing InvoiceResult
	require.NoError(t, json.Unmarshal([]byte(`{"success":false,"invoice_id":null,"error":"boom"}`), &missing))
	assert.Empty(t, missing.InvoiceID)
	assert.Equal(t, "boom", missing.Error)
}
