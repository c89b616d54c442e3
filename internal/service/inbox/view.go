// Package inbox lists unprocessed timesheet emails and drives their processing.
package inbox

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/collection"
	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/internal/sanitize"
	"github.com/mamadbah2/staffops/internal/workflow"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

// Backend is the subset of the backend client the inbox needs.
type Backend interface {
	UnprocessedEmails(ctx context.Context, subject string) (*backend.EmailList, error)
	ProcessEmail(ctx context.Context, emailID string) (*models.ProcessResult, error)
}

// Config tunes the inbox.
type Config struct {
	SubjectFilter string
	BatchGap      time.Duration
	RemovalDelay  time.Duration
	Recorder      workflow.Recorder[string]
}

// State is what the inbox screen renders.
type State struct {
	collection.State[models.Email]
	Results    map[string]workflow.Result `json:"results"`
	Processing []string                   `json:"processing"`
}

// View owns the email list and the per-email processing results.
type View struct {
	backend Backend
	emails  *collection.Store[string, models.Email]
	flow    *workflow.Workflow[string]
	logger  *zap.Logger
}

// NewView wires a new inbox view instance.
func NewView(b Backend, cfg Config, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	subject := cfg.SubjectFilter
	if subject == "" {
		subject = backend.DefaultSubjectFilter
	}

	v := &View{backend: b, logger: logger}
	v.emails = collection.New("emails", func(ctx context.Context) ([]models.Email, error) {
		list, err := b.UnprocessedEmails(ctx, subject)
		if err != nil {
			return nil, err
		}
		for i := range list.Emails {
			list.Emails[i].Subject = sanitize.Text(list.Emails[i].Subject)
		}
		return list.Emails, nil
	}, func(e models.Email) string { return e.ID }, collection.Options{
		FallbackError: "Failed to fetch emails",
		Logger:        logger,
	})

	v.flow = workflow.New(workflow.Options[string]{
		Kind:           models.ActivityEmailProcessed,
		SuccessMessage: "Email processed successfully",
		FailureMessage: "Failed to process email",
		BatchGap:       cfg.BatchGap,
		Remove:         v.emails,
		RemovalDelay:   cfg.RemovalDelay,
		Recorder:       cfg.Recorder,
		Logger:         logger,
	})
	return v
}

// Refresh reloads the inbox.
func (v *View) Refresh(ctx context.Context) error {
	return v.emails.Fetch(ctx)
}

// Process runs the backend processing for one email.
func (v *View) Process(ctx context.Context, emailID string) (workflow.Result, error) {
	return v.flow.Run(ctx, emailID, v.process)
}

// ProcessAll processes every email currently listed, one at a time. It returns
// workflow.ErrBatchRunning while another batch is still going.
func (v *View) ProcessAll(ctx context.Context) (workflow.BatchReport[string], error) {
	return v.flow.RunAll(ctx, v.emails.IDs(), v.process)
}

// StartProcessAll starts ProcessAll in the background and returns how many
// emails it covers. The batch is claimed before returning.
func (v *View) StartProcessAll(ctx context.Context) (int, error) {
	ids := v.emails.IDs()
	err := v.flow.StartAll(ctx, ids, v.process, func(report workflow.BatchReport[string], err error) {
		if err != nil {
			v.logger.Warn("process all interrupted", zap.String("run_id", report.RunID), zap.Error(err))
		}
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (v *View) process(ctx context.Context, emailID string) (workflow.Outcome, error) {
	res, err := v.backend.ProcessEmail(ctx, emailID)
	var outcome workflow.Outcome
	if res != nil {
		outcome.Message = res.Message
		if err != nil && res.Error != "" {
			outcome.Message = res.Error
		}
		if res.ComparisonResult != "" || len(res.Discrepancies) > 0 {
			outcome.Details = Details{
				ComparisonResult: models.ComparisonResult(res.ComparisonResult),
				Discrepancies:    res.Discrepancies,
			}
		}
	}
	return outcome, err
}

// Details carries what the backend found while comparing the timesheet.
type Details struct {
	ComparisonResult models.ComparisonResult `json:"comparison_result,omitempty"`
	Discrepancies    json.RawMessage         `json:"discrepancies,omitempty"`
}

// Busy reports whether an email or a batch is being processed.
func (v *View) Busy() bool {
	return v.flow.Busy()
}

// Emails exposes the underlying store.
func (v *View) Emails() *collection.Store[string, models.Email] {
	return v.emails
}

// State returns the list together with the processing results.
func (v *View) State() State {
	snapshot := v.emails.Snapshot()
	processing := []string{}
	results := v.flow.Results()
	for id, res := range results {
		if res.Phase == workflow.PhaseInFlight {
			processing = append(processing, id)
		}
	}
	slices.Sort(processing)
	return State{State: snapshot, Results: results, Processing: processing}
}

// Close stops pending removals.
func (v *View) Close() {
	v.flow.Close()
}
