package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/staffops/internal/pricing"
)

type memorySheet struct {
	rows [][]interface{}
}

func (m *memorySheet) AppendRow(_ context.Context, _ string, values []interface{}) error {
	m.rows = append(m.rows, values)
	return nil
}

func (m *memorySheet) ReadRange(_ context.Context, _ string) ([][]interface{}, error) {
	return m.rows, nil
}

func (m *memorySheet) EnsureHeader(_ context.Context, _ string, header []interface{}) error {
	if len(m.rows) == 0 {
		m.rows = append(m.rows, header)
	}
	return nil
}

func TestExportInvoice_WritesRow(t *testing.T) {
	sheet := &memorySheet{}
	exporter := NewExporter(sheet, nil)

	err := exporter.ExportInvoice(context.Background(), Invoice{
		Number:       "INV-1001",
		TimesheetIDs: []int64{5, 7},
		Totals:       pricing.Sum(pricing.Line{Hours: 40, ContractorAmount: 4000, ClientAmount: 4800, Profit: 800}),
		GeneratedAt:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, sheet.rows, 2, "header plus one invoice row")
	assert.Equal(t, invoiceHeader, sheet.rows[0])
	assert.Equal(t, []interface{}{"2026-10-19", "INV-1001", "5,7", 40.0, 4000.0, 4800.0, 800.0, 20.0}, sheet.rows[1])
}

func TestExportInvoice_SkipsDuplicates(t *testing.T) {
	sheet := &memorySheet{}
	exporter := NewExporter(sheet, nil)
	inv := Invoice{Number: "INV-1", TimesheetIDs: []int64{1}}

	require.NoError(t, exporter.ExportInvoice(context.Background(), inv))
	err := exporter.ExportInvoice(context.Background(), inv)
	assert.ErrorIs(t, err, ErrAlreadyExported)
	assert.Len(t, sheet.rows, 2)
}

func TestExportInvoice_Disabled(t *testing.T) {
	exporter := NewExporter(nil, nil)
	assert.False(t, exporter.Enabled())
	assert.NoError(t, exporter.ExportInvoice(context.Background(), Invoice{}))
}

func TestExportInvoice_RequiresNumber(t *testing.T) {
	exporter := NewExporter(&memorySheet{}, nil)
	assert.Error(t, exporter.ExportInvoice(context.Background(), Invoice{}))
}
