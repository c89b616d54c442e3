// Package overview computes the headline counters of the dashboard.
package overview

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

const (
	timesheetLimit  = 100
	fallbackMessage = "Failed to fetch dashboard statistics"
)

// Backend is the subset of the backend client the overview reads from.
type Backend interface {
	UnprocessedEmails(ctx context.Context, subject string) (*backend.EmailList, error)
	Timesheets(ctx context.Context, q backend.TimesheetQuery) ([]models.Timesheet, error)
	UninvoicedTimesheets(ctx context.Context, q backend.UninvoicedQuery) (*backend.UninvoicedList, error)
}

// Stats are the dashboard counters.
type Stats struct {
	UnprocessedEmails    int    `json:"unprocessed_emails"`
	PendingTimesheets    int    `json:"pending_timesheets"`
	ApprovedTimesheets   int    `json:"approved_timesheets"`
	UninvoicedTimesheets int    `json:"uninvoiced_timesheets"`
	LastProcessed        string `json:"last_processed,omitempty"`
}

// State is what the overview screen renders.
type State struct {
	Stats        Stats  `json:"stats"`
	Loading      bool   `json:"loading"`
	ErrorMessage string `json:"error,omitempty"`
}

// View holds the latest stats. A failed refresh keeps the previous numbers.
type View struct {
	backend Backend
	subject string
	logger  *zap.Logger

	mu      sync.Mutex
	stats   Stats
	errMsg  string
	issued  uint64
	applied uint64
}

// NewView wires a new overview view instance.
func NewView(b Backend, subject string, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{backend: b, subject: subject, logger: logger}
}

// Refresh fetches the three listings in parallel and recomputes the stats.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.issued++
	seq := v.issued
	v.mu.Unlock()

	stats, err := v.compute(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq <= v.applied {
		return err
	}
	v.applied = seq

	if err != nil {
		v.errMsg = backend.Message(err, fallbackMessage)
		v.logger.Warn("overview refresh failed", zap.Error(err))
		return err
	}
	v.stats = stats
	v.errMsg = ""
	return nil
}

func (v *View) compute(ctx context.Context) (Stats, error) {
	var (
		emails     *backend.EmailList
		timesheets []models.Timesheet
		uninvoiced *backend.UninvoicedList
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := v.backend.UnprocessedEmails(gctx, v.subject)
		if err != nil {
			return err
		}
		emails = list
		return nil
	})
	g.Go(func() error {
		list, err := v.backend.Timesheets(gctx, backend.TimesheetQuery{Limit: timesheetLimit})
		if err != nil {
			return err
		}
		timesheets = list
		return nil
	})
	g.Go(func() error {
		list, err := v.backend.UninvoicedTimesheets(gctx, backend.UninvoicedQuery{})
		if err != nil {
			return err
		}
		uninvoiced = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("refresh overview: %w", err)
	}

	return Compute(emails.Count, timesheets, uninvoiced.Count), nil
}

// Compute derives the counters from already fetched data. LastProcessed is
// taken from the first timesheet, which the backend lists newest first.
func Compute(unprocessed int, timesheets []models.Timesheet, uninvoiced int) Stats {
	stats := Stats{
		UnprocessedEmails:    unprocessed,
		UninvoicedTimesheets: uninvoiced,
	}
	for _, ts := range timesheets {
		switch {
		case ts.ComparisonResult.Approved():
			stats.ApprovedTimesheets++
		case ts.ComparisonResult.NeedsAttention():
			stats.PendingTimesheets++
		}
	}
	if len(timesheets) > 0 {
		stats.LastProcessed = timesheets[0].ProcessedAt
	}
	return stats
}

// State returns the current stats.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return State{
		Stats:        v.stats,
		Loading:      v.issued == 0 || v.applied < v.issued,
		ErrorMessage: v.errMsg,
	}
}
