package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-collector/internal/collector"
	"github.com/garyjia/invoice-collector/internal/models"
	"github.com/garyjia/invoice-collector/pkg/database"
)

func newTestRepo(t *testing.T) *RunRepository {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRunRepository(db, zap.NewNop())
	require.NoError(t, err)
	return repo
}

func TestRecordRun_AndListRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &collector.RunResult{
		Date: time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
		Drafts: []models.DraftCreated{
			{InvoiceID: "INV-1", Stage: 7, ClientEmail: "a@acme.test", Subject: "Reminder", DraftID: "d-1", DaysOverdue: 7},
			{InvoiceID: "INV-2", Stage: 14, ClientEmail: "b@acme.test", Subject: "Reminder", DraftID: "d-2", DaysOverdue: 15},
		},
		Errors: []*collector.RunError{
			{Kind: collector.KindDraftFailure, InvoiceID: "INV-3", Err: errors.New("status 500")},
		},
		RowsUpdated: 2,
	}
	require.NoError(t, repo.RecordRun(ctx, first))

	second := &collector.RunResult{
		Date:   time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
		DryRun: true,
	}
	require.NoError(t, repo.RecordRun(ctx, second))

	records, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.True(t, records[0].DryRun)
	assert.Equal(t, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), records[0].RunDate)
	assert.Zero(t, records[0].DraftsCreated)

	assert.False(t, records[1].DryRun)
	assert.Equal(t, 2, records[1].DraftsCreated)
	assert.Equal(t, 1, records[1].ErrorCount)
	assert.Equal(t, 2, records[1].RowsUpdated)
}

func TestListRecent_RespectsLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		result := &collector.RunResult{Date: time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)}
		require.NoError(t, repo.RecordRun(ctx, result))
	}

	records, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 5, records[0].RunDate.Day())
}

func TestNewRunRepository_MigrationsAreIdempotent(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	_, err = NewRunRepository(db, zap.NewNop())
	require.NoError(t, err)
	_, err = NewRunRepository(db, zap.NewNop())
	require.NoError(t, err)
}
