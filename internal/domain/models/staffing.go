package models

import "strings"

// Email is an unprocessed timesheet email waiting in the backend inbox.
type Email struct {
	ID              string `json:"id"`
	Subject         string `json:"subject"`
	From            string `json:"from"`
	Date            string `json:"date"`
	HasAttachments  bool   `json:"has_attachments"`
	AttachmentCount int    `json:"attachment_count"`
}

// ComparisonResult is the backend's verdict on a timesheet versus the agreed rate.
type ComparisonResult string

const (
	ComparisonPassed  ComparisonResult = "passed"
	ComparisonFailed  ComparisonResult = "failed"
	ComparisonPending ComparisonResult = "pending"
)

// Label returns the operator-facing status text.
func (c ComparisonResult) Label() string {
	switch ComparisonResult(strings.ToLower(string(c))) {
	case ComparisonPassed:
		return "Approved"
	case ComparisonFailed:
		return "Failed"
	case ComparisonPending:
		return "Pending"
	default:
		return string(c)
	}
}

// Approved reports whether the timesheet passed comparison.
func (c ComparisonResult) Approved() bool {
	return ComparisonResult(strings.ToLower(string(c))) == ComparisonPassed
}

// NeedsAttention reports whether the timesheet is still pending or failed comparison.
func (c ComparisonResult) NeedsAttention() bool {
	switch ComparisonResult(strings.ToLower(string(c))) {
	case ComparisonPending, ComparisonFailed:
		return true
	}
	return false
}

// Timesheet is a processed contractor timesheet.
type Timesheet struct {
	ID               int64            `json:"id"`
	EmployeeName     string           `json:"employee_name"`
	ProjectCode      string           `json:"project_code"`
	PeriodStart      string           `json:"period_start"`
	PeriodEnd        string           `json:"period_end"`
	TotalHours       float64          `json:"total_hours"`
	ComparisonResult ComparisonResult `json:"comparison_result"`
	ProcessedAt      string           `json:"processed_at"`
	FilePath         string           `json:"file_path,omitempty"`
}

// TimesheetEntry is one day's worth of hours on a timesheet.
type TimesheetEntry struct {
	Date        string  `json:"date"`
	Hours       float64 `json:"hours"`
	ProjectCode string  `json:"project_code"`
	Notes       string  `json:"notes,omitempty"`
}

// Rate pairs what a contractor is paid with what the client is billed.
type Rate struct {
	ID               int64   `json:"id"`
	ContractorName   string  `json:"contractor_name"`
	ProjectCode      string  `json:"project_code"`
	ContractorRate   float64 `json:"contractor_rate"`
	ClientRate       float64 `json:"client_rate"`
	MarkupPercentage float64 `json:"markup_percentage"`
	EffectiveDate    string  `json:"effective_date"`
	Active           bool    `json:"active"`
}

// RateInput is the payload for creating or replacing a rate.
type RateInput struct {
	ContractorName string  `json:"contractor_name"`
	ProjectCode    string  `json:"project_code"`
	ContractorRate float64 `json:"contractor_rate"`
	ClientRate     float64 `json:"client_rate"`
}

// RateUpdate is a partial rate update; nil fields are left untouched by the backend.
type RateUpdate struct {
	ContractorName *string  `json:"contractor_name,omitempty"`
	ProjectCode    *string  `json:"project_code,omitempty"`
	ContractorRate *float64 `json:"contractor_rate,omitempty"`
	ClientRate     *float64 `json:"client_rate,omitempty"`
	Active         *bool    `json:"active,omitempty"`
}

// RatePayload is a body accepted by the rate update endpoint: a full
// RateInput or a partial RateUpdate.
type RatePayload interface {
	ratePayload()
}

func (RateInput) ratePayload()  {}
func (RateUpdate) ratePayload() {}

// UninvoicedTimesheet is an approved timesheet that has not been billed yet.
type UninvoicedTimesheet struct {
	ID               int64   `json:"id"`
	EmployeeName     string  `json:"employee_name"`
	ProjectCode      string  `json:"project_code"`
	PeriodStart      string  `json:"period_start"`
	PeriodEnd        string  `json:"period_end"`
	TotalHours       float64 `json:"total_hours"`
	ContractorRate   float64 `json:"contractor_rate"`
	ClientRate       float64 `json:"client_rate"`
	ContractorAmount float64 `json:"contractor_amount"`
	ClientAmount     float64 `json:"client_amount"`
	Profit           float64 `json:"profit"`
}

// Comparison is the stored outcome of checking a timesheet against its rate.
type Comparison struct {
	ID            int64    `json:"id"`
	TimesheetID   int64    `json:"timesheet_id"`
	Passed        bool     `json:"passed"`
	Discrepancies []string `json:"discrepancies,omitempty"`
	ComparedAt    string   `json:"compared_at"`
}
