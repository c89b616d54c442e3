package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/internal/repository/mongodb"
	"github.com/mamadbah2/staffops/internal/workflow"
)

const writeTimeout = 5 * time.Second

// Service writes the operator activity trail. A nil repository turns it into a
// logger-only recorder.
type Service struct {
	repo   mongodb.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a new activity service instance.
func NewService(repo mongodb.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Log records one action outcome. Storage failures are logged, never returned.
func (s *Service) Log(ctx context.Context, kind, entityID string, success bool, message string) {
	if s == nil {
		return
	}

	createdAt := s.now().UTC()
	// ULIDs sort by creation time, matching the created_at index.
	entry := models.Activity{
		ID:        ulid.MustNew(ulid.Timestamp(createdAt), ulid.DefaultEntropy()).String(),
		Kind:      kind,
		EntityID:  entityID,
		Success:   success,
		Message:   message,
		CreatedAt: createdAt,
	}

	s.logger.Info("activity",
		zap.String("kind", kind),
		zap.String("entity_id", entityID),
		zap.Bool("success", success),
		zap.String("message", message))

	if s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.repo.SaveActivity(ctx, entry); err != nil {
		s.logger.Error("failed to store activity", zap.String("kind", kind), zap.Error(err))
	}
}

// Recent returns the latest stored activities, or none when storage is disabled.
func (s *Service) Recent(ctx context.Context, limit int64) ([]models.Activity, error) {
	if s == nil || s.repo == nil {
		return []models.Activity{}, nil
	}
	return s.repo.RecentActivities(ctx, limit)
}

// recorder adapts Service to workflow.Recorder for any id type.
type recorder[K comparable] struct {
	svc *Service
}

// For returns a workflow.Recorder that writes into svc.
func For[K comparable](svc *Service) workflow.Recorder[K] {
	return recorder[K]{svc: svc}
}

func (r recorder[K]) Record(ctx context.Context, kind string, id K, res workflow.Result) {
	r.svc.Log(ctx, kind, fmt.Sprint(id), res.Success, res.Message)
}
