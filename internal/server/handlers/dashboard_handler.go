package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/internal/service/activity"
	"github.com/mamadbah2/staffops/internal/service/inbox"
	"github.com/mamadbah2/staffops/internal/service/invoices"
	"github.com/mamadbah2/staffops/internal/service/overview"
	"github.com/mamadbah2/staffops/internal/service/rates"
	"github.com/mamadbah2/staffops/internal/service/reporting"
	"github.com/mamadbah2/staffops/internal/service/timesheets"
	"github.com/mamadbah2/staffops/internal/workflow"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

const (
	dateLayout      = "2006-01-02"
	defaultActivity = 50
)

// Backend is the part of the operations backend queried directly, outside any view.
type Backend interface {
	Health(ctx context.Context) error
	Timesheet(ctx context.Context, id int64) (*models.Timesheet, error)
	Comparisons(ctx context.Context, q backend.ComparisonQuery) ([]models.Comparison, error)
	ValidateInvoice(ctx context.Context, invoiceID string, timesheetIDs []int64) (*models.ValidationResult, error)
}

// Dependencies are the views served over HTTP.
type Dependencies struct {
	Backend    Backend
	Overview   *overview.View
	Inbox      *inbox.View
	Timesheets *timesheets.View
	Rates      *rates.View
	Invoices   *invoices.View
	Reports    *reporting.Service
	Activity   *activity.Service
}

// DashboardHandler exposes the dashboard views as JSON.
type DashboardHandler struct {
	deps Dependencies
	// base outlives single requests; background batches run under it.
	base   context.Context
	logger *zap.Logger
}

// NewDashboardHandler constructs the HTTP handler adapter.
func NewDashboardHandler(base context.Context, deps Dependencies, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if base == nil {
		base = context.Background()
	}
	return &DashboardHandler{deps: deps, base: base, logger: logger}
}

// BackendHealth reports whether the operations backend answers.
func (h *DashboardHandler) BackendHealth(c *gin.Context) {
	if err := h.deps.Backend.Health(c.Request.Context()); err != nil {
		h.logger.Warn("backend health check failed", zap.Error(err))
		h.fail(c, err, "Failed to connect to API")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Overview returns the dashboard counters.
func (h *DashboardHandler) Overview(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Overview.State())
}

// RefreshOverview recomputes the counters.
func (h *DashboardHandler) RefreshOverview(c *gin.Context) {
	if err := h.deps.Overview.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err, "Failed to fetch dashboard statistics")
		return
	}
	c.JSON(http.StatusOK, h.deps.Overview.State())
}

// Inbox returns the unprocessed emails and processing results.
func (h *DashboardHandler) Inbox(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Inbox.State())
}

// RefreshInbox reloads the inbox.
func (h *DashboardHandler) RefreshInbox(c *gin.Context) {
	if err := h.deps.Inbox.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err, "Failed to fetch emails")
		return
	}
	c.JSON(http.StatusOK, h.deps.Inbox.State())
}

// ProcessEmail processes a single email and returns its result.
func (h *DashboardHandler) ProcessEmail(c *gin.Context) {
	res, err := h.deps.Inbox.Process(c.Request.Context(), c.Param("id"))
	if errors.Is(err, workflow.ErrInFlight) {
		h.fail(c, err, "Email is already being processed")
		return
	}
	if err != nil {
		c.JSON(statusFor(err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ProcessAllEmails starts a sequential batch over the listed emails and
// returns immediately. Progress is visible through Inbox.
func (h *DashboardHandler) ProcessAllEmails(c *gin.Context) {
	count, err := h.deps.Inbox.StartProcessAll(h.base)
	if err != nil {
		h.fail(c, err, "Emails are already being processed")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "emails": count})
}

// Timesheets lists timesheets filtered by the search and status query params.
func (h *DashboardHandler) Timesheets(c *gin.Context) {
	status := timesheets.ParseStatus(c.Query("status"))
	c.JSON(http.StatusOK, h.deps.Timesheets.Filter(c.Query("search"), status))
}

// RefreshTimesheets reloads the timesheet listing.
func (h *DashboardHandler) RefreshTimesheets(c *gin.Context) {
	if err := h.deps.Timesheets.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err, "Failed to fetch timesheets")
		return
	}
	c.JSON(http.StatusOK, h.deps.Timesheets.Filter("", timesheets.StatusAll))
}

// TimesheetEntries returns the daily entries of one timesheet.
func (h *DashboardHandler) TimesheetEntries(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	entries, err := h.deps.Timesheets.Entries(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to fetch timesheet entries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"timesheet_id": id, "entries": entries})
}

// TimesheetDetail returns one timesheet with its stored rate comparisons.
func (h *DashboardHandler) TimesheetDetail(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var (
		sheet       *models.Timesheet
		comparisons []models.Comparison
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		sheet, err = h.deps.Backend.Timesheet(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		comparisons, err = h.deps.Backend.Comparisons(ctx, backend.ComparisonQuery{TimesheetID: id})
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(c, err, "Failed to fetch timesheet")
		return
	}
	if comparisons == nil {
		comparisons = []models.Comparison{}
	}

	c.JSON(http.StatusOK, gin.H{
		"timesheet":   sheet,
		"status":      timesheets.StatusLabel(sheet.ComparisonResult),
		"comparisons": comparisons,
	})
}

// Rates lists every rate.
func (h *DashboardHandler) Rates(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Rates.State())
}

// RefreshRates reloads the rates.
func (h *DashboardHandler) RefreshRates(c *gin.Context) {
	if err := h.deps.Rates.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err, "Failed to fetch rates")
		return
	}
	c.JSON(http.StatusOK, h.deps.Rates.State())
}

// CreateRate validates and stores a new rate.
func (h *DashboardHandler) CreateRate(c *gin.Context) {
	h.saveRate(c, 0, http.StatusCreated)
}

// UpdateRate validates and replaces an existing rate.
func (h *DashboardHandler) UpdateRate(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	h.saveRate(c, id, http.StatusOK)
}

func (h *DashboardHandler) saveRate(c *gin.Context, id int64, okStatus int) {
	var form rates.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		h.logger.Warn("invalid rate payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if err := h.deps.Rates.Save(c.Request.Context(), form, id); err != nil {
		h.fail(c, err, "Failed to save rate")
		return
	}
	c.JSON(okStatus, h.deps.Rates.State())
}

// DeleteRate removes a rate.
func (h *DashboardHandler) DeleteRate(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if err := h.deps.Rates.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to delete rate")
		return
	}
	c.JSON(http.StatusOK, h.deps.Rates.State())
}

// PreviewRate computes the markup of an unsaved rate.
func (h *DashboardHandler) PreviewRate(c *gin.Context) {
	var form rates.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	c.JSON(http.StatusOK, rates.PreviewOf(form))
}

// Invoices returns the uninvoiced timesheets, selection and last result.
func (h *DashboardHandler) Invoices(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Invoices.State())
}

// RefreshInvoices reloads the uninvoiced timesheets.
func (h *DashboardHandler) RefreshInvoices(c *gin.Context) {
	if err := h.deps.Invoices.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err, "Failed to fetch uninvoiced timesheets")
		return
	}
	c.JSON(http.StatusOK, h.deps.Invoices.State())
}

// ToggleInvoiceSelection flips one timesheet in the selection.
func (h *DashboardHandler) ToggleInvoiceSelection(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	h.deps.Invoices.Toggle(id)
	c.JSON(http.StatusOK, h.deps.Invoices.State())
}

// SelectAllInvoices selects every timesheet, or clears a full selection.
func (h *DashboardHandler) SelectAllInvoices(c *gin.Context) {
	h.deps.Invoices.SelectAll()
	c.JSON(http.StatusOK, h.deps.Invoices.State())
}

// ClearInvoiceSelection empties the selection.
func (h *DashboardHandler) ClearInvoiceSelection(c *gin.Context) {
	h.deps.Invoices.Clear()
	c.JSON(http.StatusOK, h.deps.Invoices.State())
}

// GenerateInvoice bills the selected timesheets.
func (h *DashboardHandler) GenerateInvoice(c *gin.Context) {
	res, err := h.deps.Invoices.Generate(c.Request.Context())
	switch {
	case errors.Is(err, invoices.ErrEmptySelection), errors.Is(err, workflow.ErrInFlight):
		h.fail(c, err, "Failed to generate invoice")
	case err != nil:
		c.JSON(statusFor(err), res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

type validateRequest struct {
	TimesheetIDs []int64 `json:"timesheet_ids"`
}

// ValidateInvoice asks the backend to check a generated invoice against its timesheets.
func (h *DashboardHandler) ValidateInvoice(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.TimesheetIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "timesheet_ids are required"})
		return
	}

	res, err := h.deps.Backend.ValidateInvoice(c.Request.Context(), c.Param("id"), req.TimesheetIDs)
	if err != nil {
		h.fail(c, err, "Failed to validate invoice")
		return
	}
	c.JSON(http.StatusOK, res)
}

// Activities returns the latest operator actions.
func (h *DashboardHandler) Activities(c *gin.Context) {
	limit := int64(defaultActivity)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	items, err := h.deps.Activity.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load activities", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load activities"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": items})
}

// InvoiceReport totals exported invoices between from and to (default: last 7 days).
func (h *DashboardHandler) InvoiceReport(c *gin.Context) {
	to := time.Now()
	from := to.AddDate(0, 0, -6)

	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(dateLayout, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "from must be YYYY-MM-DD"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(dateLayout, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "to must be YYYY-MM-DD"})
			return
		}
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "to must not be before from"})
		return
	}

	summary, err := h.deps.Reports.SummarizeInvoices(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to summarize invoices", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "failed to read invoice sheet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "text": reporting.FormatSummary(summary), "enabled": h.deps.Reports.Enabled()})
}

func (h *DashboardHandler) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *DashboardHandler) fail(c *gin.Context, err error, fallback string) {
	c.JSON(statusFor(err), gin.H{"success": false, "error": messageFor(err, fallback)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rates.ErrInvalidRate), errors.Is(err, invoices.ErrEmptySelection):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrInFlight), errors.Is(err, workflow.ErrBatchRunning):
		return http.StatusConflict
	case backend.IsNetwork(err), backend.IsServer(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, fallback string) string {
	var invalid *rates.ValidationError
	switch {
	case errors.As(err, &invalid):
		return invalid.Message
	case errors.Is(err, invoices.ErrEmptySelection):
		return invoices.EmptySelectionMessage
	case errors.Is(err, workflow.ErrInFlight), errors.Is(err, workflow.ErrBatchRunning):
		return fallback
	default:
		return backend.Message(err, fallback)
	}
}
