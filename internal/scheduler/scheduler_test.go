package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/staffops/internal/domain/models"
)

type countingRefresher struct {
	calls    atomic.Int32
	err      error
	deadline atomic.Bool
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	_, ok := ctx.Deadline()
	r.deadline.Store(ok)
	return r.err
}

type stubReporter struct {
	report string
	err    error
}

func (r stubReporter) WeeklyReport(context.Context, time.Time) (string, error) {
	return r.report, r.err
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

type entry struct {
	kind    string
	success bool
	message string
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []entry
}

func (a *recordingActivity) Log(_ context.Context, kind, _ string, success bool, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry{kind: kind, success: success, message: message})
}

func TestRefreshAll_RunsEveryJobWithTimeout(t *testing.T) {
	inbox := &countingRefresher{}
	overview := &countingRefresher{err: errors.New("backend down")}
	s := NewScheduler("@every 1m", []Job{{Name: "inbox", Target: inbox}, {Name: "overview", Target: overview}}, nil, nil, nil, nil)

	s.refreshAll()

	assert.Equal(t, int32(1), inbox.calls.Load())
	assert.Equal(t, int32(1), overview.calls.Load(), "a failing job does not stop the others")
	assert.True(t, inbox.deadline.Load())
}

func TestStart_InvalidSpec(t *testing.T) {
	s := NewScheduler("every minute", []Job{{Name: "inbox", Target: &countingRefresher{}}}, nil, nil, nil, nil)
	require.Error(t, s.Start())
}

func TestStart_TicksRefresh(t *testing.T) {
	inbox := &countingRefresher{}
	s := NewScheduler("@every 1s", []Job{{Name: "inbox", Target: inbox}}, nil, nil, nil, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return inbox.calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestSendWeeklyReport_RecordsActivity(t *testing.T) {
	activity := &recordingActivity{}
	notifier := &recordingNotifier{}
	s := NewScheduler("@every 1m", nil, stubReporter{report: "Invoices: none generated."}, notifier, activity, nil)
	s.sendWeeklyReport()

	s.reporter = stubReporter{err: errors.New("sheet unavailable")}
	s.sendWeeklyReport()

	assert.Equal(t, []entry{
		{kind: models.ActivityWeeklyReport, success: true, message: "Invoices: none generated."},
		{kind: models.ActivityWeeklyReport, success: false, message: "sheet unavailable"},
	}, activity.entries)
	assert.Equal(t, []string{"Invoices: none generated."}, notifier.messages, "failed reports are not sent")
}
