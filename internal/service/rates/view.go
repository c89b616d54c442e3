// Package rates manages contractor and client rates.
package rates

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/collection"
	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/internal/pricing"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

// ErrInvalidRate matches every form validation failure.
var ErrInvalidRate = errors.New("invalid rate")

// ValidationError carries the operator-facing reason a form was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrInvalidRate) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRate }

const (
	msgMissingFields = "Contractor name and project code are required"
	msgNotPositive   = "Please enter valid positive numbers for rates"
	msgClientBelow   = "Client rate must be greater than or equal to contractor rate"
	msgSaveFailed    = "Failed to save rate"
	msgDeleteFailed  = "Failed to delete rate"
)

// Backend is the subset of the backend client the rates screen needs.
type Backend interface {
	Rates(ctx context.Context, q backend.RateQuery) ([]models.Rate, error)
	CreateRate(ctx context.Context, in models.RateInput) error
	UpdateRate(ctx context.Context, id int64, update models.RatePayload) error
	DeleteRate(ctx context.Context, id int64) error
}

// ActivityLogger receives rate mutations for the audit trail.
type ActivityLogger interface {
	Log(ctx context.Context, kind, entityID string, success bool, message string)
}

// Form is the rate editor input.
type Form struct {
	ContractorName string  `json:"contractor_name"`
	ProjectCode    string  `json:"project_code"`
	ContractorRate float64 `json:"contractor_rate"`
	ClientRate     float64 `json:"client_rate"`
}

// Validate checks the form and returns the trimmed payload.
func (f Form) Validate() (models.RateInput, error) {
	in := models.RateInput{
		ContractorName: strings.TrimSpace(f.ContractorName),
		ProjectCode:    strings.TrimSpace(f.ProjectCode),
		ContractorRate: f.ContractorRate,
		ClientRate:     f.ClientRate,
	}
	if in.ContractorName == "" || in.ProjectCode == "" {
		return in, &ValidationError{Message: msgMissingFields}
	}
	if !positive(in.ContractorRate) || !positive(in.ClientRate) {
		return in, &ValidationError{Message: msgNotPositive}
	}
	if in.ClientRate < in.ContractorRate {
		return in, &ValidationError{Message: msgClientBelow}
	}
	return in, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Preview is the live markup shown while editing.
type Preview struct {
	Markup        float64 `json:"markup_percentage"`
	ProfitPerHour float64 `json:"profit_per_hour"`
}

// PreviewOf computes the preview for a form; non-positive contractor rates give 0 markup.
func PreviewOf(f Form) Preview {
	return Preview{
		Markup:        pricing.Round2(pricing.Markup(f.ContractorRate, f.ClientRate)),
		ProfitPerHour: pricing.Round2(pricing.Profit(f.ClientRate, f.ContractorRate)),
	}
}

// Row is a rate with its derived figures recomputed locally.
type Row struct {
	models.Rate
	Markup        float64 `json:"markup"`
	ProfitPerHour float64 `json:"profit_per_hour"`
}

// State is what the rates screen renders.
type State struct {
	Items        []Row  `json:"items"`
	Loading      bool   `json:"loading"`
	ErrorMessage string `json:"error,omitempty"`
}

// View owns the rate list and the editor error.
type View struct {
	backend  Backend
	store    *collection.Store[int64, models.Rate]
	activity ActivityLogger
	logger   *zap.Logger

	mu     sync.Mutex
	errMsg string
}

// NewView wires a new rates view instance. activity may be nil.
func NewView(b Backend, activity ActivityLogger, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	activeOnly := false
	v := &View{backend: b, activity: activity, logger: logger}
	v.store = collection.New("rates", func(ctx context.Context) ([]models.Rate, error) {
		return b.Rates(ctx, backend.RateQuery{ActiveOnly: &activeOnly})
	}, func(r models.Rate) int64 { return r.ID }, collection.Options{
		FallbackError: "Failed to fetch rates",
		Logger:        logger,
	})
	return v
}

// Refresh reloads every rate, inactive ones included.
func (v *View) Refresh(ctx context.Context) error {
	return v.store.Fetch(ctx)
}

// Save creates a rate, or replaces rate editingID when it is non-zero. The list
// is refetched after a successful save.
func (v *View) Save(ctx context.Context, form Form, editingID int64) error {
	in, err := form.Validate()
	if err != nil {
		v.setError(err.Error())
		return err
	}

	kind := models.ActivityRateCreated
	entity := in.ContractorName + "/" + in.ProjectCode
	if editingID != 0 {
		kind = models.ActivityRateUpdated
		entity = strconv.FormatInt(editingID, 10)
		err = v.backend.UpdateRate(ctx, editingID, in)
	} else {
		err = v.backend.CreateRate(ctx, in)
	}

	return v.finish(ctx, kind, entity, err, msgSaveFailed, "Rate saved")
}

// Delete removes a rate and refetches the list.
func (v *View) Delete(ctx context.Context, id int64) error {
	err := v.backend.DeleteRate(ctx, id)
	return v.finish(ctx, models.ActivityRateDeleted, strconv.FormatInt(id, 10), err, msgDeleteFailed, "Rate deleted")
}

func (v *View) finish(ctx context.Context, kind, entity string, err error, fallback, okMessage string) error {
	if err != nil {
		msg := backend.Message(err, fallback)
		v.setError(msg)
		v.record(ctx, kind, entity, false, msg)
		v.logger.Warn("rate mutation failed", zap.String("kind", kind), zap.String("entity", entity), zap.Error(err))
		return err
	}

	v.setError("")
	v.record(ctx, kind, entity, true, okMessage)
	if ferr := v.store.Fetch(ctx); ferr != nil {
		v.logger.Warn("refetch after rate mutation failed", zap.Error(ferr))
	}
	return nil
}

func (v *View) record(ctx context.Context, kind, entity string, success bool, message string) {
	if v.activity != nil {
		v.activity.Log(ctx, kind, entity, success, message)
	}
}

func (v *View) setError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errMsg = msg
}

// DismissError clears the editor error.
func (v *View) DismissError() {
	v.setError("")
}

// State returns the rows with locally computed markup. An editor error takes
// precedence over a listing error.
func (v *View) State() State {
	snapshot := v.store.Snapshot()
	rows := make([]Row, len(snapshot.Items))
	for i, r := range snapshot.Items {
		rows[i] = Row{
			Rate:          r,
			Markup:        pricing.Round2(pricing.Markup(r.ContractorRate, r.ClientRate)),
			ProfitPerHour: pricing.Round2(pricing.Profit(r.ClientRate, r.ContractorRate)),
		}
	}

	v.mu.Lock()
	errMsg := v.errMsg
	v.mu.Unlock()
	if errMsg == "" {
		errMsg = snapshot.ErrorMessage
	}

	return State{Items: rows, Loading: snapshot.Loading, ErrorMessage: errMsg}
}
