// Package invoices lets the operator pick uninvoiced timesheets and bill them.
package invoices

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/collection"
	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/internal/pricing"
	"github.com/mamadbah2/staffops/internal/selection"
	"github.com/mamadbah2/staffops/internal/service/export"
	"github.com/mamadbah2/staffops/internal/service/whatsapp"
	"github.com/mamadbah2/staffops/internal/workflow"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

// ErrEmptySelection is returned by Generate when nothing is selected.
var ErrEmptySelection = errors.New("no timesheet selected")

// EmptySelectionMessage is shown when Generate is called without a selection.
const EmptySelectionMessage = "Please select at least one timesheet"

const (
	msgGenerated     = "Invoice generated successfully"
	msgGenerateError = "Failed to generate invoice. Please check your API configuration."
	refetchTimeout   = 30 * time.Second

	// generateKey is the single workflow id of invoice generation: one
	// generation runs at a time whatever the selection.
	generateKey = "generate"
)

// Backend is the subset of the backend client the invoices screen needs.
type Backend interface {
	UninvoicedTimesheets(ctx context.Context, q backend.UninvoicedQuery) (*backend.UninvoicedList, error)
	GenerateInvoice(ctx context.Context, timesheetIDs []int64) (*models.InvoiceResult, error)
}

// Exporter publishes a generated invoice outside the backend.
type Exporter interface {
	ExportInvoice(ctx context.Context, inv export.Invoice) error
}

// Notifier tells finance about a generated invoice.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// ActivityLogger receives invoice generation outcomes.
type ActivityLogger interface {
	Log(ctx context.Context, kind, entityID string, success bool, message string)
}

// Config tunes the invoices view. Exporter, Notifier and Activity may be nil.
type Config struct {
	RefreshDelay time.Duration
	Exporter     Exporter
	Notifier     Notifier
	Activity     ActivityLogger
}

// Invoice identifies what the backend generated.
type Invoice struct {
	InvoiceID     string  `json:"invoice_id,omitempty"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
	TimesheetIDs  []int64 `json:"timesheet_ids,omitempty"`
}

// Result is the workflow result of the last Generate call with the invoice
// it produced. While generation runs it is the in-flight placeholder.
type Result struct {
	workflow.Result
	Invoice
}

func resultOf(r workflow.Result) *Result {
	if r.Phase == workflow.PhaseNotStarted {
		return nil
	}
	out := &Result{Result: r}
	if inv, ok := r.Details.(Invoice); ok {
		out.Invoice = inv
		out.Result.Details = nil
	}
	return out
}

// Row is an uninvoiced timesheet as shown in the table.
type Row struct {
	models.UninvoicedTimesheet
	Selected  bool    `json:"selected"`
	MarginPct float64 `json:"margin_percentage"`
}

// State is what the invoices screen renders.
type State struct {
	Items        []Row          `json:"items"`
	Loading      bool           `json:"loading"`
	ErrorMessage string         `json:"error,omitempty"`
	SelectedIDs  []int64        `json:"selected_ids"`
	AllSelected  bool           `json:"all_selected"`
	Summary      pricing.Totals `json:"summary"`
	Generating   bool           `json:"generating"`
	Result       *Result        `json:"result,omitempty"`
}

// View owns the uninvoiced list, the selection over it and the last
// generation result.
type View struct {
	backend  Backend
	store    *collection.Store[int64, models.UninvoicedTimesheet]
	selected *selection.Model[int64]
	flow     *workflow.Workflow[string]
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	errMsg string
}

// NewView wires a new invoices view instance.
func NewView(b Backend, cfg Config, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &View{
		backend:  b,
		selected: selection.New[int64](),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	v.store = collection.New("uninvoiced timesheets", func(ctx context.Context) ([]models.UninvoicedTimesheet, error) {
		list, err := b.UninvoicedTimesheets(ctx, backend.UninvoicedQuery{})
		if err != nil {
			return nil, err
		}
		return list.Timesheets, nil
	}, rowID, collection.Options{
		FallbackError: "Failed to fetch uninvoiced timesheets",
		Logger:        logger,
	})
	selection.Bind(v.selected, v.store)

	// The invoiced rows leave through a refetch, not a local removal.
	v.flow = workflow.New(workflow.Options[string]{
		Kind:           models.ActivityInvoiceGenerated,
		SuccessMessage: msgGenerated,
		FailureMessage: msgGenerateError,
		RemovalDelay:   cfg.RefreshDelay,
		Settled:        func(string) { v.refetchAfterInvoice() },
		Logger:         logger,
	})
	return v
}

func rowID(t models.UninvoicedTimesheet) int64 { return t.ID }

func lineOf(t models.UninvoicedTimesheet) pricing.Line {
	return pricing.Line{
		Hours:            t.TotalHours,
		ContractorAmount: t.ContractorAmount,
		ClientAmount:     t.ClientAmount,
		Profit:           t.Profit,
	}
}

// Refresh reloads the uninvoiced timesheets. Selected ids that disappear are
// dropped from the selection.
func (v *View) Refresh(ctx context.Context) error {
	return v.store.Fetch(ctx)
}

// Toggle flips the selection of one timesheet. Unknown ids are ignored.
func (v *View) Toggle(id int64) bool {
	if _, ok := v.store.Get(id); !ok {
		return false
	}
	return v.selected.Toggle(id)
}

// SelectAll selects every listed timesheet, or clears the selection when all
// of them are already selected.
func (v *View) SelectAll() {
	v.selected.SelectAll(v.store.IDs())
}

// Clear empties the selection.
func (v *View) Clear() {
	v.selected.Clear()
}

// Summary totals the selected timesheets.
func (v *View) Summary() pricing.Totals {
	var totals pricing.Totals
	for _, t := range selection.Selected(v.selected, v.store.Items(), rowID) {
		totals.Add(lineOf(t))
	}
	return totals
}

// Generate bills the selected timesheets. On success the selection is cleared
// and the list refetched after RefreshDelay, leaving the result visible.
func (v *View) Generate(ctx context.Context) (Result, error) {
	ids := v.selected.IDs()
	if len(ids) == 0 {
		v.setError(EmptySelectionMessage)
		return Result{}, ErrEmptySelection
	}
	v.setError("")

	summary := v.Summary()
	res, err := v.flow.Run(ctx, generateKey, func(ctx context.Context, _ string) (workflow.Outcome, error) {
		return v.generate(ctx, ids)
	})
	if errors.Is(err, workflow.ErrInFlight) {
		return Result{}, err
	}
	result := *resultOf(res)

	entity := result.InvoiceNumber
	if entity == "" {
		entity = "pending"
	}
	if v.cfg.Activity != nil {
		v.cfg.Activity.Log(ctx, models.ActivityInvoiceGenerated, entity, result.Success, result.Message)
	}

	if err != nil {
		v.logger.Warn("invoice generation failed", zap.Int64s("timesheet_ids", ids), zap.Error(err))
		return result, err
	}
	v.logger.Info("invoice generated", zap.String("invoice_number", result.InvoiceNumber), zap.Int64s("timesheet_ids", ids))

	if v.cfg.Exporter != nil {
		inv := export.Invoice{
			Number:       result.InvoiceNumber,
			TimesheetIDs: ids,
			Totals:       summary,
			GeneratedAt:  v.now(),
		}
		if xerr := v.cfg.Exporter.ExportInvoice(context.WithoutCancel(ctx), inv); xerr != nil {
			v.logger.Error("invoice export failed", zap.String("invoice_number", result.InvoiceNumber), zap.Error(xerr))
		}
	}
	if v.cfg.Notifier != nil {
		msg := whatsapp.InvoiceMessage(result.InvoiceNumber, summary)
		if nerr := v.cfg.Notifier.Notify(context.WithoutCancel(ctx), msg); nerr != nil {
			v.logger.Warn("invoice notification failed", zap.String("invoice_number", result.InvoiceNumber), zap.Error(nerr))
		}
	}
	return result, nil
}

// generate posts ids to the backend. Network failures get the generic
// message; backend-reported failures keep the backend's text.
func (v *View) generate(ctx context.Context, ids []int64) (workflow.Outcome, error) {
	res, err := v.backend.GenerateInvoice(ctx, ids)

	inv := Invoice{TimesheetIDs: ids}
	var msg string
	if res != nil {
		inv.InvoiceID = string(res.InvoiceID)
		inv.InvoiceNumber = res.InvoiceNumber
		msg = res.Message
	}
	if err != nil {
		msg = msgGenerateError
		if backend.IsServer(err) {
			msg = backend.Message(err, msgGenerateError)
		}
	}
	return workflow.Outcome{Message: msg, Details: inv}, err
}

func (v *View) refetchAfterInvoice() {
	v.selected.Clear()
	ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
	defer cancel()
	if err := v.store.Fetch(ctx); err != nil {
		v.logger.Warn("refetch after invoice failed", zap.Error(err))
	}
}

func (v *View) setError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errMsg = msg
}

// DismissError clears the view error.
func (v *View) DismissError() {
	v.setError("")
}

// State returns the table, the selection summary and the last result.
func (v *View) State() State {
	snapshot := v.store.Snapshot()
	selectedIDs := v.selected.IDs()

	rows := make([]Row, len(snapshot.Items))
	var summary pricing.Totals
	for i, t := range snapshot.Items {
		selected := v.selected.Has(t.ID)
		rows[i] = Row{
			UninvoicedTimesheet: t,
			Selected:            selected,
			MarginPct:           pricing.Round2(pricing.MarginPct(t.Profit, t.ContractorAmount)),
		}
		if selected {
			summary.Add(lineOf(t))
		}
	}

	generating := v.flow.InFlight(generateKey)
	result := resultOf(v.flow.Result(generateKey))

	v.mu.Lock()
	errMsg := v.errMsg
	v.mu.Unlock()
	if errMsg == "" {
		errMsg = snapshot.ErrorMessage
	}

	return State{
		Items:        rows,
		Loading:      snapshot.Loading,
		ErrorMessage: errMsg,
		SelectedIDs:  selectedIDs,
		AllSelected:  len(rows) > 0 && len(selectedIDs) == len(rows),
		Summary:      summary,
		Generating:   generating,
		Result:       result,
	}
}

// Close stops a pending refetch.
func (v *View) Close() {
	v.flow.Close()
}
