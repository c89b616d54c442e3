package invoices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/internal/service/export"
	"github.com/mamadbah2/staffops/internal/workflow"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

type fakeBackend struct {
	mu         sync.Mutex
	timesheets []models.UninvoicedTimesheet
	fetches    int
	generated  [][]int64
	genErr     error
	// started and release, when set, hold GenerateInvoice until release is closed.
	started chan struct{}
	release chan struct{}
}

func (f *fakeBackend) UninvoicedTimesheets(context.Context, backend.UninvoicedQuery) (*backend.UninvoicedList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	items := append([]models.UninvoicedTimesheet(nil), f.timesheets...)
	return &backend.UninvoicedList{Timesheets: items, Count: len(items)}, nil
}

func (f *fakeBackend) GenerateInvoice(_ context.Context, ids []int64) (*models.InvoiceResult, error) {
	if f.release != nil {
		close(f.started)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, ids)
	if f.genErr != nil {
		return &models.InvoiceResult{Envelope: models.Envelope{Success: false, Error: backend.Message(f.genErr, "")}}, f.genErr
	}
	return &models.InvoiceResult{
		Envelope:      models.Envelope{Success: true, Message: "Invoice INV-0042 created"},
		InvoiceID:     "42",
		InvoiceNumber: "INV-0042",
	}, nil
}

func (f *fakeBackend) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBackend) setTimesheets(items []models.UninvoicedTimesheet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timesheets = items
}

type fakeExporter struct {
	mu       sync.Mutex
	invoices []export.Invoice
}

func (e *fakeExporter) ExportInvoice(_ context.Context, inv export.Invoice) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invoices = append(e.invoices, inv)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

type fakeActivity struct {
	kinds []string
}

func (a *fakeActivity) Log(_ context.Context, kind, _ string, _ bool, _ string) {
	a.kinds = append(a.kinds, kind)
}

var sample = []models.UninvoicedTimesheet{
	{ID: 1, TotalHours: 40, ContractorAmount: 4000, ClientAmount: 4800, Profit: 800},
	{ID: 2, TotalHours: 10, ContractorAmount: 500, ClientAmount: 700, Profit: 200},
	{ID: 3, TotalHours: 8, ContractorAmount: 800, ClientAmount: 800, Profit: 0},
}

func newView(t *testing.T, fb *fakeBackend, cfg Config) *View {
	t.Helper()
	v := NewView(fb, cfg, nil)
	t.Cleanup(v.Close)
	require.NoError(t, v.Refresh(context.Background()))
	return v
}

func TestSummary_OverSelection(t *testing.T) {
	v := newView(t, &fakeBackend{timesheets: sample}, Config{})

	assert.Zero(t, v.Summary().MarginPct)

	assert.True(t, v.Toggle(1))
	assert.True(t, v.Toggle(2))
	assert.False(t, v.Toggle(99), "unknown ids are ignored")

	summary := v.Summary()
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 50.0, summary.Hours)
	assert.Equal(t, 4500.0, summary.ContractorAmount)
	assert.Equal(t, 5500.0, summary.ClientAmount)
	assert.Equal(t, 1000.0, summary.Profit)
	assert.InDelta(t, 22.22, summary.MarginPct, 0.01)

	state := v.State()
	assert.Equal(t, []int64{1, 2}, state.SelectedIDs)
	assert.False(t, state.AllSelected)
	assert.Equal(t, summary, state.Summary)
	assert.Equal(t, 20.0, state.Items[0].MarginPct)
	assert.True(t, state.Items[0].Selected)
	assert.False(t, state.Items[2].Selected)
}

func TestSelectAll_Toggles(t *testing.T) {
	v := newView(t, &fakeBackend{timesheets: sample}, Config{})

	v.SelectAll()
	assert.True(t, v.State().AllSelected)
	v.SelectAll()
	assert.Empty(t, v.State().SelectedIDs)

	v.Toggle(3)
	v.Clear()
	assert.Empty(t, v.State().SelectedIDs)
}

func TestRefresh_DropsVanishedSelection(t *testing.T) {
	fb := &fakeBackend{timesheets: sample}
	v := newView(t, fb, Config{})
	v.SelectAll()

	fb.setTimesheets(sample[1:])
	require.NoError(t, v.Refresh(context.Background()))
	assert.Equal(t, []int64{2, 3}, v.State().SelectedIDs)
}

func TestGenerate_EmptySelection(t *testing.T) {
	fb := &fakeBackend{timesheets: sample}
	v := newView(t, fb, Config{})

	_, err := v.Generate(context.Background())
	require.ErrorIs(t, err, ErrEmptySelection)
	assert.Empty(t, fb.generated)
	assert.Equal(t, EmptySelectionMessage, v.State().ErrorMessage)
}

func TestGenerate_SuccessRefetchesAndClears(t *testing.T) {
	fb := &fakeBackend{timesheets: sample}
	exporter := &fakeExporter{}
	activity := &fakeActivity{}
	notifier := &fakeNotifier{}
	v := newView(t, fb, Config{RefreshDelay: 40 * time.Millisecond, Exporter: exporter, Notifier: notifier, Activity: activity})

	v.Toggle(2)
	v.Toggle(1)
	fb.setTimesheets(sample[2:])
	res, err := v.Generate(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, workflow.PhaseSucceeded, res.Phase)
	assert.Equal(t, "Invoice INV-0042 created", res.Message)
	assert.Equal(t, "INV-0042", res.InvoiceNumber)
	assert.Equal(t, [][]int64{{1, 2}}, fb.generated)
	assert.Equal(t, []string{models.ActivityInvoiceGenerated}, activity.kinds)

	require.Len(t, exporter.invoices, 1)
	assert.Equal(t, "INV-0042", exporter.invoices[0].Number)
	assert.Equal(t, 1000.0, exporter.invoices[0].Totals.Profit)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Invoice INV-0042 generated: 2 timesheets")

	state := v.State()
	assert.Equal(t, []int64{1, 2}, state.SelectedIDs, "selection kept until the delayed refresh")
	require.NotNil(t, state.Result)
	assert.True(t, state.Result.Success)

	require.Eventually(t, func() bool { return fb.Fetches() == 2 && v.store.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, v.State().SelectedIDs)
	assert.NotNil(t, v.State().Result, "result stays visible")
}

func TestGenerate_ServerFailure(t *testing.T) {
	fb := &fakeBackend{
		timesheets: sample,
		genErr:     &backend.APIError{Kind: backend.ServerError, Status: 200, Message: "Timesheet 1 already invoiced"},
	}
	exporter := &fakeExporter{}
	v := newView(t, fb, Config{RefreshDelay: time.Millisecond, Exporter: exporter})
	v.Toggle(1)

	res, err := v.Generate(context.Background())
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, workflow.PhaseFailed, res.Phase)
	assert.Equal(t, "Timesheet 1 already invoiced", res.Message)
	assert.Empty(t, exporter.invoices)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fb.Fetches(), "no refetch after failure")
	assert.Equal(t, []int64{1}, v.State().SelectedIDs)
}

func TestGenerate_NetworkFailure(t *testing.T) {
	fb := &fakeBackend{
		timesheets: sample,
		genErr:     &backend.APIError{Kind: backend.NetworkError, Message: "context deadline exceeded", Err: errors.New("timeout")},
	}
	v := newView(t, fb, Config{})
	v.Toggle(1)

	res, err := v.Generate(context.Background())
	require.Error(t, err)
	assert.Equal(t, msgGenerateError, res.Message)
	assert.False(t, v.State().Generating)
}

func TestGenerate_InFlightPlaceholder(t *testing.T) {
	fb := &fakeBackend{timesheets: sample, started: make(chan struct{}), release: make(chan struct{})}
	v := newView(t, fb, Config{RefreshDelay: time.Hour})
	v.Toggle(1)

	done := make(chan Result, 1)
	go func() {
		res, _ := v.Generate(context.Background())
		done <- res
	}()
	<-fb.started

	state := v.State()
	assert.True(t, state.Generating)
	require.NotNil(t, state.Result)
	assert.Equal(t, workflow.PhaseInFlight, state.Result.Phase)
	assert.Equal(t, workflow.ProcessingMessage, state.Result.Message)
	assert.False(t, state.Result.Success)

	_, err := v.Generate(context.Background())
	assert.ErrorIs(t, err, workflow.ErrInFlight)

	close(fb.release)
	res := <-done
	assert.Equal(t, workflow.PhaseSucceeded, res.Phase)
	assert.Equal(t, "INV-0042", res.InvoiceNumber)
	assert.Equal(t, []int64{1}, res.TimesheetIDs)

	state = v.State()
	assert.False(t, state.Generating)
	require.NotNil(t, state.Result)
	assert.Equal(t, workflow.PhaseSucceeded, state.Result.Phase)
	assert.Nil(t, state.Result.Details, "invoice fields are flattened, not repeated under details")
	assert.Len(t, fb.generated, 1)
}
