package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"questbudget/internal/core"
	"questbudget/internal/storage"
)

// testNow is the frozen clock every service test runs at: a Monday in
// March 2025.
var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *storage.Repository) int64 {
	t.Helper()
	ctx := context.Background()
	u, err := repo.Queries().CreateUser(ctx, "test@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := repo.Queries().CreateSettings(ctx, core.DefaultSettings(u.ID)); err != nil {
		t.Fatalf("CreateSettings: %v", err)
	}
	return u.ID
}

func startTestMonth(t *testing.T, repo *storage.Repository, userID int64, income, ratio float64) core.MonthState {
	t.Helper()
	ms := NewMonthService(repo)
	ms.now = fixedClock
	state, err := ms.StartMonth(context.Background(), userID, 0, 0, income, ratio)
	if err != nil {
		t.Fatalf("StartMonth: %v", err)
	}
	return state
}

func intPtr(v int) *int { return &v }
