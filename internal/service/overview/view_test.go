package overview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

type fakeBackend struct {
	emails     *backend.EmailList
	timesheets []models.Timesheet
	uninvoiced *backend.UninvoicedList
	err        error
	limit      int
}

func (f *fakeBackend) UnprocessedEmails(context.Context, string) (*backend.EmailList, error) {
	return f.emails, nil
}

func (f *fakeBackend) Timesheets(_ context.Context, q backend.TimesheetQuery) ([]models.Timesheet, error) {
	f.limit = q.Limit
	if f.err != nil {
		return nil, f.err
	}
	return f.timesheets, nil
}

func (f *fakeBackend) UninvoicedTimesheets(context.Context, backend.UninvoicedQuery) (*backend.UninvoicedList, error) {
	return f.uninvoiced, nil
}

func TestRefresh_ComputesStats(t *testing.T) {
	fb := &fakeBackend{
		emails: &backend.EmailList{Count: 3},
		timesheets: []models.Timesheet{
			{ID: 9, ComparisonResult: models.ComparisonPassed, ProcessedAt: "2026-10-18T09:00:00"},
			{ID: 8, ComparisonResult: models.ComparisonFailed},
			{ID: 7, ComparisonResult: models.ComparisonPending},
			{ID: 6, ComparisonResult: models.ComparisonPassed},
		},
		uninvoiced: &backend.UninvoicedList{Count: 2},
	}
	v := NewView(fb, "timesheet", nil)
	assert.True(t, v.State().Loading, "never refreshed")

	require.NoError(t, v.Refresh(context.Background()))
	assert.Equal(t, timesheetLimit, fb.limit)

	state := v.State()
	assert.False(t, state.Loading)
	assert.Empty(t, state.ErrorMessage)
	assert.Equal(t, Stats{
		UnprocessedEmails:    3,
		PendingTimesheets:    2,
		ApprovedTimesheets:   2,
		UninvoicedTimesheets: 2,
		LastProcessed:        "2026-10-18T09:00:00",
	}, state.Stats)
}

func TestRefresh_FailureKeepsStats(t *testing.T) {
	fb := &fakeBackend{
		emails:     &backend.EmailList{Count: 1},
		timesheets: []models.Timesheet{},
		uninvoiced: &backend.UninvoicedList{Count: 4},
	}
	v := NewView(fb, "timesheet", nil)
	require.NoError(t, v.Refresh(context.Background()))

	fb.err = &backend.APIError{Kind: backend.NetworkError, Message: "dial tcp: connection refused"}
	require.Error(t, v.Refresh(context.Background()))

	state := v.State()
	assert.Equal(t, "dial tcp: connection refused", state.ErrorMessage)
	assert.Equal(t, 1, state.Stats.UnprocessedEmails)
	assert.Equal(t, 4, state.Stats.UninvoicedTimesheets)
}

func TestRefresh_FallbackMessage(t *testing.T) {
	fb := &fakeBackend{
		emails:     &backend.EmailList{},
		uninvoiced: &backend.UninvoicedList{},
		err:        errors.New("boom"),
	}
	v := NewView(fb, "", nil)
	require.Error(t, v.Refresh(context.Background()))
	assert.Equal(t, fallbackMessage, v.State().ErrorMessage)
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, Compute(0, nil, 0))
}
