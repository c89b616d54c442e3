// Package workflow runs operator actions against single entities and records
// one result per entity id.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

var (
	// ErrInFlight is returned when an action is already running for the id.
	ErrInFlight = errors.New("action already in progress")
	// ErrBatchRunning is returned when a batch is started before the previous one returned.
	ErrBatchRunning = errors.New("batch already running")
)

// ProcessingMessage is shown while an action is running.
const ProcessingMessage = "Processing..."

// Phase is the observable stage of an action on one id.
type Phase string

const (
	// PhaseNotStarted is reported for ids that never ran.
	PhaseNotStarted Phase = "not_started"
	// PhaseInFlight is reported while the action is running.
	PhaseInFlight Phase = "in_flight"
	// PhaseSucceeded and PhaseFailed are terminal until the id runs again.
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Result is the latest outcome recorded for an id. A retry overwrites it.
type Result struct {
	Phase   Phase  `json:"phase"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Outcome is what an action reports back. Message and Details are kept even
// when the action also returns an error.
type Outcome struct {
	Message string
	Details any
}

// Action performs the mutation for one id.
type Action[K comparable] func(ctx context.Context, id K) (Outcome, error)

// Remover drops an entity from the collection it was listed in.
type Remover[K comparable] interface {
	Remove(id K) bool
}

// Recorder receives every completed result.
type Recorder[K comparable] interface {
	Record(ctx context.Context, kind string, id K, res Result)
}

// Options configures a Workflow.
type Options[K comparable] struct {
	// Kind names the action in logs and the activity trail, e.g. "email.process".
	Kind string
	// SuccessMessage and FailureMessage are used when the backend sends no message.
	SuccessMessage string
	FailureMessage string
	// BatchGap is the pause between two items of a batch.
	BatchGap time.Duration
	// Remove, when set, drops succeeded ids after RemovalDelay.
	Remove       Remover[K]
	RemovalDelay time.Duration
	// Settled, when set, runs for succeeded ids after RemovalDelay, once Remove is done.
	Settled  func(id K)
	Recorder Recorder[K]
	Logger   *zap.Logger
}

// Workflow tracks actions on the entities of one collection.
type Workflow[K comparable] struct {
	opts   Options[K]
	logger *zap.Logger

	mu       sync.Mutex
	results  map[K]Result
	inFlight map[K]struct{}
	timers   map[K]*time.Timer
	batching bool
	closed   bool
}

// New builds a Workflow.
func New[K comparable](opts Options[K]) *Workflow[K] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SuccessMessage == "" {
		opts.SuccessMessage = "Completed successfully"
	}
	if opts.FailureMessage == "" {
		opts.FailureMessage = "Action failed"
	}
	return &Workflow[K]{
		opts:     opts,
		logger:   logger,
		results:  make(map[K]Result),
		inFlight: make(map[K]struct{}),
		timers:   make(map[K]*time.Timer),
	}
}

// Run executes action for id, recording InFlight first and the outcome after.
// It returns ErrInFlight without calling action if id is already running.
func (w *Workflow[K]) Run(ctx context.Context, id K, action Action[K]) (Result, error) {
	w.mu.Lock()
	if _, busy := w.inFlight[id]; busy {
		w.mu.Unlock()
		return Result{}, ErrInFlight
	}
	w.inFlight[id] = struct{}{}
	w.results[id] = Result{Phase: PhaseInFlight, Message: ProcessingMessage}
	w.mu.Unlock()

	outcome, err := action(ctx, id)

	res := Result{Phase: PhaseSucceeded, Success: true, Message: outcome.Message, Details: outcome.Details}
	if err != nil {
		res.Phase = PhaseFailed
		res.Success = false
		if res.Message == "" {
			res.Message = backend.Message(err, w.opts.FailureMessage)
		}
	} else if res.Message == "" {
		res.Message = w.opts.SuccessMessage
	}

	w.mu.Lock()
	w.results[id] = res
	delete(w.inFlight, id)
	if res.Success {
		w.scheduleRemovalLocked(id)
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("action failed", zap.String("kind", w.opts.Kind), zap.Any("id", id), zap.Error(err))
	} else {
		w.logger.Info("action succeeded", zap.String("kind", w.opts.Kind), zap.Any("id", id))
	}

	if w.opts.Recorder != nil {
		w.opts.Recorder.Record(context.WithoutCancel(ctx), w.opts.Kind, id, res)
	}

	return res, err
}

// BatchReport summarizes a RunAll call.
type BatchReport[K comparable] struct {
	RunID     string       `json:"run_id"`
	Results   map[K]Result `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// RunAll runs action for every id strictly one after another, pausing BatchGap
// between items. Failures never stop the batch; only ctx cancellation does.
// Only one batch runs at a time: ErrBatchRunning is returned otherwise.
func (w *Workflow[K]) RunAll(ctx context.Context, ids []K, action Action[K]) (BatchReport[K], error) {
	if err := w.claimBatch(); err != nil {
		return BatchReport[K]{}, err
	}
	defer w.releaseBatch()
	return w.runBatch(ctx, ids, action)
}

// StartAll is RunAll in a new goroutine. The batch slot is claimed before
// StartAll returns, so a concurrent caller gets ErrBatchRunning. done, when
// set, receives the report once the batch returns.
func (w *Workflow[K]) StartAll(ctx context.Context, ids []K, action Action[K], done func(BatchReport[K], error)) error {
	if err := w.claimBatch(); err != nil {
		return err
	}
	go func() {
		report, err := w.runBatch(ctx, ids, action)
		w.releaseBatch()
		if done != nil {
			done(report, err)
		}
	}()
	return nil
}

// BatchRunning reports whether a batch has been started and not yet returned,
// including the pauses between its items.
func (w *Workflow[K]) BatchRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batching
}

func (w *Workflow[K]) claimBatch() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batching {
		return ErrBatchRunning
	}
	w.batching = true
	return nil
}

func (w *Workflow[K]) releaseBatch() {
	w.mu.Lock()
	w.batching = false
	w.mu.Unlock()
}

func (w *Workflow[K]) runBatch(ctx context.Context, ids []K, action Action[K]) (BatchReport[K], error) {
	report := BatchReport[K]{
		RunID:   uuid.NewString(),
		Results: make(map[K]Result, len(ids)),
	}
	logger := w.logger.With(zap.String("run_id", report.RunID), zap.String("kind", w.opts.Kind))
	logger.Info("batch started", zap.Int("items", len(ids)))

	for i, id := range ids {
		if i > 0 && w.opts.BatchGap > 0 {
			if err := sleep(ctx, w.opts.BatchGap); err != nil {
				logger.Warn("batch interrupted", zap.Int("done", i), zap.Error(err))
				return report, fmt.Errorf("batch %s interrupted: %w", report.RunID, err)
			}
		} else if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("batch %s interrupted: %w", report.RunID, err)
		}

		res, err := w.Run(ctx, id, action)
		if errors.Is(err, ErrInFlight) {
			res = Result{Phase: PhaseFailed, Message: ErrInFlight.Error()}
		}
		report.Results[id] = res
		if res.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	logger.Info("batch finished", zap.Int("succeeded", report.Succeeded), zap.Int("failed", report.Failed))
	return report, nil
}

// Result returns the latest result for id.
func (w *Workflow[K]) Result(id K) Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	if res, ok := w.results[id]; ok {
		return res
	}
	return Result{Phase: PhaseNotStarted}
}

// Results returns a copy of every recorded result.
func (w *Workflow[K]) Results() map[K]Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return maps.Clone(w.results)
}

// InFlight reports whether an action is running for id.
func (w *Workflow[K]) InFlight(id K) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.inFlight[id]
	return ok
}

// Busy reports whether any action or batch is running.
func (w *Workflow[K]) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inFlight) > 0 || w.batching
}

// Close stops pending removals and Settled calls. Results stay readable.
func (w *Workflow[K]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

func (w *Workflow[K]) scheduleRemovalLocked(id K) {
	if (w.opts.Remove == nil && w.opts.Settled == nil) || w.closed {
		return
	}
	if t, ok := w.timers[id]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.opts.RemovalDelay, func() {
		w.mu.Lock()
		if w.timers[id] == t {
			delete(w.timers, id)
		}
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		if w.opts.Remove != nil {
			w.opts.Remove.Remove(id)
		}
		if w.opts.Settled != nil {
			w.opts.Settled(id)
		}
	})
	w.timers[id] = t
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
