// Package timesheets backs the processed-timesheets screen.
package timesheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/collection"
	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

const listLimit = 100

// StatusFilter narrows the listing by comparison outcome.
type StatusFilter string

const (
	StatusAll      StatusFilter = "all"
	StatusApproved StatusFilter = "approved"
	StatusPending  StatusFilter = "pending"
)

// ParseStatus maps a query value onto a filter; unknown values mean all.
func ParseStatus(value string) StatusFilter {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(value))) {
	case StatusApproved:
		return StatusApproved
	case StatusPending:
		return StatusPending
	default:
		return StatusAll
	}
}

// Backend is the subset of the backend client the timesheets screen needs.
type Backend interface {
	Timesheets(ctx context.Context, q backend.TimesheetQuery) ([]models.Timesheet, error)
	TimesheetEntries(ctx context.Context, id int64) ([]models.TimesheetEntry, error)
}

// Row is a timesheet decorated with its display status.
type Row struct {
	models.Timesheet
	Status string `json:"status"`
}

// State is what the timesheets screen renders.
type State struct {
	Items        []Row  `json:"items"`
	Total        int    `json:"total"`
	Loading      bool   `json:"loading"`
	ErrorMessage string `json:"error,omitempty"`
}

// View owns the timesheet list and a cache of loaded daily entries.
type View struct {
	backend Backend
	store   *collection.Store[int64, models.Timesheet]
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[int64][]models.TimesheetEntry
}

// NewView wires a new timesheets view instance.
func NewView(b Backend, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &View{
		backend: b,
		logger:  logger,
		entries: make(map[int64][]models.TimesheetEntry),
	}
	v.store = collection.New("timesheets", func(ctx context.Context) ([]models.Timesheet, error) {
		return b.Timesheets(ctx, backend.TimesheetQuery{Limit: listLimit})
	}, func(ts models.Timesheet) int64 { return ts.ID }, collection.Options{
		FallbackError: "Failed to fetch timesheets",
		Logger:        logger,
	})
	return v
}

// Refresh reloads the listing. Cached entries are kept; they do not change
// once a timesheet is processed.
func (v *View) Refresh(ctx context.Context) error {
	return v.store.Fetch(ctx)
}

// Filter returns the listed timesheets matching search and status, in server order.
func (v *View) Filter(search string, status StatusFilter) State {
	snapshot := v.store.Snapshot()
	rows := Filter(snapshot.Items, search, status)
	return State{
		Items:        rows,
		Total:        len(snapshot.Items),
		Loading:      snapshot.Loading,
		ErrorMessage: snapshot.ErrorMessage,
	}
}

// Filter applies the search and status filters. Search matches the employee
// name or the project code, ignoring case.
func Filter(items []models.Timesheet, search string, status StatusFilter) []Row {
	needle := strings.ToLower(strings.TrimSpace(search))
	rows := make([]Row, 0, len(items))
	for _, ts := range items {
		if needle != "" &&
			!strings.Contains(strings.ToLower(ts.EmployeeName), needle) &&
			!strings.Contains(strings.ToLower(ts.ProjectCode), needle) {
			continue
		}
		switch status {
		case StatusApproved:
			if !ts.ComparisonResult.Approved() {
				continue
			}
		case StatusPending:
			if !ts.ComparisonResult.NeedsAttention() {
				continue
			}
		}
		rows = append(rows, Row{Timesheet: ts, Status: StatusLabel(ts.ComparisonResult)})
	}
	return rows
}

// StatusLabel is the text shown for a comparison result.
func StatusLabel(result models.ComparisonResult) string {
	return result.Label()
}

// Entries returns the daily entries of a timesheet, loading them on first use.
func (v *View) Entries(ctx context.Context, id int64) ([]models.TimesheetEntry, error) {
	v.mu.Lock()
	cached, ok := v.entries[id]
	v.mu.Unlock()
	if ok {
		return cached, nil
	}

	entries, err := v.backend.TimesheetEntries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load entries for timesheet %d: %w", id, err)
	}

	v.mu.Lock()
	v.entries[id] = entries
	v.mu.Unlock()
	return entries, nil
}
