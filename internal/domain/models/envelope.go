package models

import (
	"bytes"
	"encoding/json"
)

// Envelope is the wrapper every backend response carries.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the backend flagged the call as successful.
func (e Envelope) OK() bool { return e.Success }

// Failure returns the most specific failure text the envelope carries.
func (e Envelope) Failure() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	default:
		return "request was not successful"
	}
}

// ProcessResult is returned when the backend processes an inbox email.
type ProcessResult struct {
	Envelope
	ComparisonResult string          `json:"comparison_result,omitempty"`
	Discrepancies    json.RawMessage `json:"discrepancies,omitempty"`
}

// InvoiceResult is returned when the backend generates an invoice.
type InvoiceResult struct {
	Envelope
	InvoiceID     OpaqueID `json:"invoice_id,omitempty"`
	InvoiceNumber string   `json:"invoice_number,omitempty"`
}

// ValidationResult is returned when the backend validates an invoice against timesheets.
type ValidationResult struct {
	Envelope
	Valid  bool            `json:"valid"`
	Issues json.RawMessage `json:"issues,omitempty"`
}

// OpaqueID is an identifier the backend may send either as a JSON string or a number.
type OpaqueID string

// UnmarshalJSON accepts both quoted and bare identifiers.
func (id *OpaqueID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = OpaqueID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = OpaqueID(n.String())
	return nil
}
