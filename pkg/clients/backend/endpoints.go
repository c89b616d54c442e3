package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mamadbah2/staffops/internal/domain/models"
)

// DefaultSubjectFilter is the inbox subject filter used when none is given.
const DefaultSubjectFilter = "timesheet"

// EmailList is the unprocessed inbox as reported by the backend.
type EmailList struct {
	Emails []models.Email
	Count  int
}

// UninvoicedList is the set of billable timesheets not yet invoiced.
type UninvoicedList struct {
	Timesheets []models.UninvoicedTimesheet
	Count      int
}

// TimesheetQuery filters the timesheet listing. Zero values are omitted.
type TimesheetQuery struct {
	Employee string
	Project  string
	Limit    int
	Offset   int
}

// ComparisonQuery filters stored comparisons.
type ComparisonQuery struct {
	TimesheetID int64
	Passed      *bool
}

// RateQuery filters the rate listing.
type RateQuery struct {
	Contractor string
	Project    string
	ActiveOnly *bool
}

// UninvoicedQuery filters uninvoiced timesheets.
type UninvoicedQuery struct {
	Employee string
	Project  string
}

type emailsResponse struct {
	models.Envelope
	Emails []models.Email `json:"emails"`
	Count  int            `json:"count"`
}

type timesheetsResponse struct {
	models.Envelope
	Timesheets []models.Timesheet `json:"timesheets"`
}

type timesheetResponse struct {
	models.Envelope
	Timesheet models.Timesheet `json:"timesheet"`
}

type entriesResponse struct {
	models.Envelope
	Entries []models.TimesheetEntry `json:"entries"`
}

type comparisonsResponse struct {
	models.Envelope
	Comparisons []models.Comparison `json:"comparisons"`
}

type ratesResponse struct {
	models.Envelope
	Rates []models.Rate `json:"rates"`
}

type uninvoicedResponse struct {
	models.Envelope
	Timesheets []models.UninvoicedTimesheet `json:"timesheets"`
	Count      int                          `json:"count"`
}

type invoiceRequest struct {
	TimesheetIDs []int64 `json:"timesheet_ids"`
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// Health checks that the backend is alive.
func (c *Client) Health(ctx context.Context) error {
	var out models.Envelope
	if err := c.call(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	return nil
}

// UnprocessedEmails lists inbox emails whose subject matches subject.
func (c *Client) UnprocessedEmails(ctx context.Context, subject string) (*EmailList, error) {
	if subject == "" {
		subject = DefaultSubjectFilter
	}

	var out emailsResponse
	endpoint := withQuery("/api/emails/unprocessed", url.Values{"subject": {subject}})
	if err := c.call(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("list unprocessed emails: %w", err)
	}

	count := out.Count
	if count == 0 {
		count = len(out.Emails)
	}
	return &EmailList{Emails: out.Emails, Count: count}, nil
}

// ProcessEmail asks the backend to parse and compare the timesheet attached to
// an email. The result is returned even when the backend reports failure.
func (c *Client) ProcessEmail(ctx context.Context, emailID string) (*models.ProcessResult, error) {
	var out models.ProcessResult
	endpoint := fmt.Sprintf("/api/emails/%s/process", url.PathEscape(emailID))
	if err := c.call(ctx, http.MethodPost, endpoint, nil, &out); err != nil {
		return &out, fmt.Errorf("process email %s: %w", emailID, err)
	}
	return &out, nil
}

// Timesheets lists processed timesheets.
func (c *Client) Timesheets(ctx context.Context, q TimesheetQuery) ([]models.Timesheet, error) {
	params := url.Values{}
	if q.Employee != "" {
		params.Set("employee", q.Employee)
	}
	if q.Project != "" {
		params.Set("project", q.Project)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var out timesheetsResponse
	if err := c.call(ctx, http.MethodGet, withQuery("/api/timesheets", params), nil, &out); err != nil {
		return nil, fmt.Errorf("list timesheets: %w", err)
	}
	return out.Timesheets, nil
}

// Timesheet fetches a single timesheet.
func (c *Client) Timesheet(ctx context.Context, id int64) (*models.Timesheet, error) {
	var out timesheetResponse
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/timesheets/%d", id), nil, &out); err != nil {
		return nil, fmt.Errorf("get timesheet %d: %w", id, err)
	}
	return &out.Timesheet, nil
}

// TimesheetEntries fetches the daily entries of a timesheet.
func (c *Client) TimesheetEntries(ctx context.Context, id int64) ([]models.TimesheetEntry, error) {
	var out entriesResponse
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/timesheets/%d/entries", id), nil, &out); err != nil {
		return nil, fmt.Errorf("list entries for timesheet %d: %w", id, err)
	}
	if out.Entries == nil {
		out.Entries = []models.TimesheetEntry{}
	}
	return out.Entries, nil
}

// Comparisons lists stored rate comparisons.
func (c *Client) Comparisons(ctx context.Context, q ComparisonQuery) ([]models.Comparison, error) {
	params := url.Values{}
	if q.TimesheetID != 0 {
		params.Set("timesheet_id", strconv.FormatInt(q.TimesheetID, 10))
	}
	if q.Passed != nil {
		params.Set("passed", strconv.FormatBool(*q.Passed))
	}

	var out comparisonsResponse
	if err := c.call(ctx, http.MethodGet, withQuery("/api/comparisons", params), nil, &out); err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}
	return out.Comparisons, nil
}

// Rates lists contractor/client rates.
func (c *Client) Rates(ctx context.Context, q RateQuery) ([]models.Rate, error) {
	params := url.Values{}
	if q.Contractor != "" {
		params.Set("contractor", q.Contractor)
	}
	if q.Project != "" {
		params.Set("project", q.Project)
	}
	if q.ActiveOnly != nil {
		params.Set("active_only", strconv.FormatBool(*q.ActiveOnly))
	}

	var out ratesResponse
	if err := c.call(ctx, http.MethodGet, withQuery("/api/rates", params), nil, &out); err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	return out.Rates, nil
}

// CreateRate stores a new rate.
func (c *Client) CreateRate(ctx context.Context, in models.RateInput) error {
	var out models.Envelope
	if err := c.call(ctx, http.MethodPost, "/api/rates", in, &out); err != nil {
		return fmt.Errorf("create rate: %w", err)
	}
	return nil
}

// UpdateRate changes an existing rate with a full RateInput or a partial RateUpdate.
func (c *Client) UpdateRate(ctx context.Context, id int64, update models.RatePayload) error {
	var out models.Envelope
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/api/rates/%d", id), update, &out); err != nil {
		return fmt.Errorf("update rate %d: %w", id, err)
	}
	return nil
}

// DeleteRate removes a rate.
func (c *Client) DeleteRate(ctx context.Context, id int64) error {
	var out models.Envelope
	if err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/api/rates/%d", id), nil, &out); err != nil {
		return fmt.Errorf("delete rate %d: %w", id, err)
	}
	return nil
}

// UninvoicedTimesheets lists approved timesheets that are still billable.
func (c *Client) UninvoicedTimesheets(ctx context.Context, q UninvoicedQuery) (*UninvoicedList, error) {
	params := url.Values{}
	if q.Employee != "" {
		params.Set("employee", q.Employee)
	}
	if q.Project != "" {
		params.Set("project", q.Project)
	}

	var out uninvoicedResponse
	if err := c.call(ctx, http.MethodGet, withQuery("/api/invoices/uninvoiced", params), nil, &out); err != nil {
		return nil, fmt.Errorf("list uninvoiced timesheets: %w", err)
	}

	count := out.Count
	if count == 0 {
		count = len(out.Timesheets)
	}
	return &UninvoicedList{Timesheets: out.Timesheets, Count: count}, nil
}

// GenerateInvoice bills the given timesheets. The result is returned even when
// the backend reports failure.
func (c *Client) GenerateInvoice(ctx context.Context, timesheetIDs []int64) (*models.InvoiceResult, error) {
	var out models.InvoiceResult
	if err := c.call(ctx, http.MethodPost, "/api/invoices/generate", invoiceRequest{TimesheetIDs: timesheetIDs}, &out); err != nil {
		return &out, fmt.Errorf("generate invoice: %w", err)
	}
	return &out, nil
}

// ValidateInvoice checks a generated invoice against the timesheets it covers.
func (c *Client) ValidateInvoice(ctx context.Context, invoiceID string, timesheetIDs []int64) (*models.ValidationResult, error) {
	var out models.ValidationResult
	endpoint := fmt.Sprintf("/api/invoices/%s/validate", url.PathEscape(invoiceID))
	if err := c.call(ctx, http.MethodPost, endpoint, invoiceRequest{TimesheetIDs: timesheetIDs}, &out); err != nil {
		return &out, fmt.Errorf("validate invoice %s: %w", invoiceID, err)
	}
	return &out, nil
}
