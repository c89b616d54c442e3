package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/pricing"
	repo "github.com/mamadbah2/staffops/internal/repository/sheets"
)

const (
	invoicesRange = "Invoices!A:H"
	dateLayout    = "2006-01-02"
)

var invoiceHeader = []interface{}{
	"Date", "Invoice", "Timesheets", "Hours", "Contractor", "Client", "Profit", "Margin %",
}

// ErrAlreadyExported indicates the invoice number is already in the sheet.
var ErrAlreadyExported = errors.New("invoice already exported")

// Invoice is what gets written for one generated invoice.
type Invoice struct {
	Number       string
	TimesheetIDs []int64
	Totals       pricing.Totals
	GeneratedAt  time.Time
}

// Exporter appends generated invoices to the finance spreadsheet. A nil
// repository makes every export a no-op.
type Exporter struct {
	repo   repo.Repository
	logger *zap.Logger
}

// NewExporter wires a new exporter instance.
func NewExporter(repository repo.Repository, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{repo: repository, logger: logger}
}

// Enabled reports whether exports reach a spreadsheet.
func (e *Exporter) Enabled() bool {
	return e != nil && e.repo != nil
}

// ExportInvoice writes one row for inv unless its number is already present.
func (e *Exporter) ExportInvoice(ctx context.Context, inv Invoice) error {
	if !e.Enabled() {
		return nil
	}
	if inv.Number == "" {
		return fmt.Errorf("export invoice: missing invoice number")
	}

	if err := e.repo.EnsureHeader(ctx, invoicesRange, invoiceHeader); err != nil {
		return fmt.Errorf("prepare invoices sheet: %w", err)
	}

	rows, err := e.repo.ReadRange(ctx, invoicesRange)
	if err != nil {
		return fmt.Errorf("load invoices range: %w", err)
	}
	for _, row := range rows {
		if len(row) > 1 && fmt.Sprint(row[1]) == inv.Number {
			return fmt.Errorf("%s: %w", inv.Number, ErrAlreadyExported)
		}
	}

	generated := inv.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	values := []interface{}{
		generated.Format(dateLayout),
		inv.Number,
		joinIDs(inv.TimesheetIDs),
		pricing.Round2(inv.Totals.Hours),
		pricing.Round2(inv.Totals.ContractorAmount),
		pricing.Round2(inv.Totals.ClientAmount),
		pricing.Round2(inv.Totals.Profit),
		pricing.Round2(inv.Totals.MarginPct),
	}

	if err := e.repo.AppendRow(ctx, invoicesRange, values); err != nil {
		return fmt.Errorf("append invoice %s: %w", inv.Number, err)
	}

	e.logger.Info("invoice exported", zap.String("invoice_number", inv.Number), zap.Int("timesheets", len(inv.TimesheetIDs)))
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
