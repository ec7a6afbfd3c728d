package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/adjudex/internal/model"
)

func dossier(claimID string, decision model.Decision, payout float64) *model.Dossier {
	return &model.Dossier{
		ID:            "d-" + claimID,
		ClaimID:       claimID,
		CreatedAt:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		ConfigVersion: "test",
		Verdict:       model.ClaimVerdict{Decision: decision, Payout: payout},
	}
}

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dossiers.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]DecisionStore {
	return map[string]DecisionStore{
		"memory": NewMemoryStore(),
		"sqlite": newSQLite(t),
	}
}

func TestStore_VersionsAreAppendOnly(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			v1, err := s.Save(ctx, dossier("CLM-1", model.DecisionRefer, 100))
			require.NoError(t, err)
			v2, err := s.Save(ctx, dossier("CLM-1", model.DecisionApprove, 931))
			require.NoError(t, err)
			other, err := s.Save(ctx, dossier("CLM-2", model.DecisionDeny, 0))
			require.NoError(t, err)

			assert.Equal(t, 1, v1)
			assert.Equal(t, 2, v2)
			assert.Equal(t, 1, other)

			first, err := s.Get(ctx, "CLM-1", 1)
			require.NoError(t, err)
			assert.Equal(t, model.DecisionRefer, first.Verdict.Decision)
			assert.Equal(t, 1, first.Version)

			latest, err := s.Latest(ctx, "CLM-1")
			require.NoError(t, err)
			assert.Equal(t, 2, latest.Version)
			assert.InDelta(t, 931.0, latest.Verdict.Payout, 1e-9)

			all, err := s.List(ctx, "CLM-1")
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, 1, all[0].Version)
			assert.Equal(t, 2, all[1].Version)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Latest(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.Get(ctx, "missing", 1)
			assert.ErrorIs(t, err, ErrNotFound)

			list, err := s.List(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestStore_RejectsInvalidDossier(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(context.Background(), &model.Dossier{})
			assert.Error(t, err)
			_, err = s.Save(context.Background(), nil)
			assert.Error(t, err)
		})
	}
}

func TestMemoryStore_SavedCopyIsImmutable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	d := dossier("CLM-1", model.DecisionApprove, 10)
	_, err := s.Save(ctx, d)
	require.NoError(t, err)

	d.Verdict.Payout = 99999
	got, err := s.Latest(ctx, "CLM-1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got.Verdict.Payout, 1e-9)
}

func TestMemoryStore_ConcurrentSaves(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Save(ctx, dossier("CLM-1", model.DecisionApprove, 1))
		}()
	}
	wg.Wait()

	all, err := s.List(ctx, "CLM-1")
	require.NoError(t, err)
	require.Len(t, all, 20)
	for i, d := range all {
		assert.Equal(t, i+1, d.Version)
	}
}

func TestSQLiteStore_FailedSaveKeepsCallerVersion(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		CREATE TRIGGER reject_dossiers BEFORE INSERT ON dossiers
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	d := dossier("CLM-9", model.DecisionRefer, 931)
	_, err = s.Save(ctx, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, d.Version, "version must not be assigned when nothing was stored")

	_, err = s.db.ExecContext(ctx, `DROP TRIGGER reject_dossiers`)
	require.NoError(t, err)

	v, err := s.Save(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, d.Version)
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s := newSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, model.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, model.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "a.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, model.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)
}
