package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/staffops/internal/domain/models"
	"github.com/mamadbah2/staffops/internal/workflow"
)

type memoryRepo struct {
	mu      sync.Mutex
	saved   []models.Activity
	saveErr error
}

func (m *memoryRepo) SaveActivity(_ context.Context, a models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, a)
	return nil
}

func (m *memoryRepo) RecentActivities(_ context.Context, limit int64) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Activity(nil), m.saved...), nil
}

func TestLog_StoresActivity(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil)
	fixed := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	svc.Log(context.Background(), models.ActivityRateDeleted, "12", true, "Rate deleted")

	require.Len(t, repo.saved, 1)
	got := repo.saved[0]
	id, err := ulid.Parse(got.ID)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(fixed), id.Time())
	assert.Equal(t, models.ActivityRateDeleted, got.Kind)
	assert.Equal(t, "12", got.EntityID)
	assert.True(t, got.Success)
	assert.Equal(t, fixed, got.CreatedAt)
}

func TestLog_StorageFailureIsSwallowed(t *testing.T) {
	svc := NewService(&memoryRepo{saveErr: errors.New("mongo down")}, nil)
	assert.NotPanics(t, func() {
		svc.Log(context.Background(), models.ActivityEmailProcessed, "m-1", false, "boom")
	})
}

func TestNilRepository(t *testing.T) {
	svc := NewService(nil, nil)
	svc.Log(context.Background(), models.ActivityEmailProcessed, "m-1", true, "ok")

	recent, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestFor_AdaptsWorkflowResults(t *testing.T) {
	repo := &memoryRepo{}
	rec := For[int64](NewService(repo, nil))

	rec.Record(context.Background(), models.ActivityInvoiceGenerated, 42, workflow.Result{Success: false, Message: "No rate"})

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "42", repo.saved[0].EntityID)
	assert.False(t, repo.saved[0].Success)
	assert.Equal(t, "No rate", repo.saved[0].Message)
}
