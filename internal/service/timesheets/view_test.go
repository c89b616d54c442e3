package timesheets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

type fakeBackend struct {
	timesheets []models.Timesheet
	limit      int
	entryCalls int
	entriesErr error
}

func (f *fakeBackend) Timesheets(_ context.Context, q backend.TimesheetQuery) ([]models.Timesheet, error) {
	f.limit = q.Limit
	return f.timesheets, nil
}

func (f *fakeBackend) TimesheetEntries(_ context.Context, id int64) ([]models.TimesheetEntry, error) {
	f.entryCalls++
	if f.entriesErr != nil {
		return nil, f.entriesErr
	}
	return []models.TimesheetEntry{{Date: "2026-10-13", Hours: 8, ProjectCode: "PRJ-1"}}, nil
}

var sample = []models.Timesheet{
	{ID: 1, EmployeeName: "Jane Doe", ProjectCode: "ACME-01", ComparisonResult: models.ComparisonPassed},
	{ID: 2, EmployeeName: "John Smith", ProjectCode: "GLOBEX", ComparisonResult: models.ComparisonFailed},
	{ID: 3, EmployeeName: "Ana Lima", ProjectCode: "acme-02", ComparisonResult: models.ComparisonPending},
	{ID: 4, EmployeeName: "Bo Chen", ProjectCode: "INITECH", ComparisonResult: "manual_review"},
}

func ids(rows []Row) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		search string
		status StatusFilter
		want   []int64
	}{
		{name: "everything", status: StatusAll, want: []int64{1, 2, 3, 4}},
		{name: "project search ignores case", search: "ACME", status: StatusAll, want: []int64{1, 3}},
		{name: "employee search", search: "smith", status: StatusAll, want: []int64{2}},
		{name: "approved only", status: StatusApproved, want: []int64{1}},
		{name: "pending includes failed", status: StatusPending, want: []int64{2, 3}},
		{name: "search and status combine", search: "acme", status: StatusPending, want: []int64{3}},
		{name: "no match", search: "zzz", status: StatusAll, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(sample, tt.search, tt.status)))
		})
	}
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Approved", StatusLabel(models.ComparisonPassed))
	assert.Equal(t, "Failed", StatusLabel(models.ComparisonFailed))
	assert.Equal(t, "Pending", StatusLabel(models.ComparisonPending))
	assert.Equal(t, "manual_review", StatusLabel("manual_review"))
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusApproved, ParseStatus("Approved"))
	assert.Equal(t, StatusPending, ParseStatus(" pending "))
	assert.Equal(t, StatusAll, ParseStatus(""))
	assert.Equal(t, StatusAll, ParseStatus("failed"))
}

func TestView_FilterUsesStore(t *testing.T) {
	fb := &fakeBackend{timesheets: sample}
	v := NewView(fb, nil)
	require.NoError(t, v.Refresh(context.Background()))

	assert.Equal(t, listLimit, fb.limit)
	state := v.Filter("", StatusApproved)
	assert.Equal(t, 4, state.Total)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "Approved", state.Items[0].Status)
	assert.False(t, state.Loading)
}

func TestEntries_Cached(t *testing.T) {
	fb := &fakeBackend{}
	v := NewView(fb, nil)

	first, err := v.Entries(context.Background(), 1)
	require.NoError(t, err)
	second, err := v.Entries(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fb.entryCalls)
}

func TestEntries_ErrorNotCached(t *testing.T) {
	fb := &fakeBackend{entriesErr: &backend.APIError{Kind: backend.ServerError, Message: "Timesheet not found"}}
	v := NewView(fb, nil)

	_, err := v.Entries(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, backend.IsServer(err))

	fb.entriesErr = nil
	entries, err := v.Entries(context.Background(), 9)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, fb.entryCalls)
}
