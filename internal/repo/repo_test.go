package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/db"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/models"
)

func setupTestRepo(t *testing.T) (*Repo, func()) {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	if err := db.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	r := New(pool)
	return r, func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	}
}

func seedAccount(t *testing.T, r *Repo) string {
	t.Helper()
	ctx := context.Background()
	userID, err := r.CreateUser(ctx, fmt.Sprintf("u%d@test.local", time.Now().UnixNano()), "x")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	accountID, err := r.CreateAccount(ctx, userID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	return accountID
}

func TestAppendTransactionReconciliation(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, r)

	amounts := []int{73, 87, 10, -20, 5}
	want := 0
	for _, amount := range amounts {
		if _, err := r.AppendTransaction(ctx, accountID, models.SourceManual, nil, amount, "test", nil); err != nil {
			t.Fatalf("append %d: %v", amount, err)
		}
		want += amount
	}

	sum, err := r.SumTransactions(ctx, accountID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	account, err := r.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if sum != want || account.TotalGems != want {
		t.Fatalf("ledger sum=%d total=%d, want both %d", sum, account.TotalGems, want)
	}
}

func TestDuplicateCheckinRejected(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, r)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if _, err := r.CreateCheckin(ctx, accountID, date, 7); err != nil {
		t.Fatalf("first checkin: %v", err)
	}
	// Same calendar date, different clock time: still one row per day.
	if _, err := r.CreateCheckin(ctx, accountID, date.Add(5*time.Hour), 9); err == nil || !errors.Is(err, ErrDuplicateCheckin) {
		t.Fatalf("expected ErrDuplicateCheckin, got %v", err)
	}

	count, err := r.CheckinCount(ctx, accountID, nil)
	if err != nil || count != 1 {
		t.Fatalf("count=%d err=%v, want 1", count, err)
	}
}

func TestCompleteWorkItemOnce(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, r)

	id, err := r.CreateWorkItem(ctx, models.WorkItem{
		AccountID:  accountID,
		Title:      "Quarterly report",
		Category:   models.CategoryImportantUrgent,
		Difficulty: models.DifficultyMedium,
		Priority:   models.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	now := time.Now().UTC()
	item, err := r.CompleteWorkItem(ctx, id, accountID, now, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if item.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}

	if _, err := r.CompleteWorkItem(ctx, id, accountID, now, nil); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestCreateUnlockIdempotent(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, r)

	ruleID, err := r.CreateRule(ctx, models.BadgeRule{
		Name: "First Five", Kind: models.RuleTasksCompleted, Target: 5, Window: models.WindowAllTime, Active: true,
	})
	if err != nil {
		t.Fatalf("rule: %v", err)
	}

	inserted, err := r.CreateUnlock(ctx, accountID, ruleID)
	if err != nil || !inserted {
		t.Fatalf("first unlock: inserted=%v err=%v", inserted, err)
	}
	inserted, err = r.CreateUnlock(ctx, accountID, ruleID)
	if err != nil || inserted {
		t.Fatalf("second unlock should be a no-op: inserted=%v err=%v", inserted, err)
	}

	unlocks, err := r.ListUnlocks(ctx, accountID)
	if err != nil || len(unlocks) != 1 {
		t.Fatalf("unlocks=%d err=%v, want 1", len(unlocks), err)
	}
}

func TestUrgentTaskCountFilter(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()
	accountID := seedAccount(t, r)

	now := time.Now().UTC()
	for _, category := range []models.Category{
		models.CategoryImportantUrgent,
		models.CategoryNotImportantUrgent,
		models.CategoryImportantNotUrgent,
	} {
		id, err := r.CreateWorkItem(ctx, models.WorkItem{
			AccountID: accountID, Title: string(category),
			Category: category, Difficulty: models.DifficultySimple, Priority: models.PriorityLow,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := r.CompleteWorkItem(ctx, id, accountID, now, nil); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	all, err := r.CompletedTaskCount(ctx, accountID, nil, false)
	if err != nil || all != 3 {
		t.Fatalf("all=%d err=%v, want 3", all, err)
	}
	urgent, err := r.CompletedTaskCount(ctx, accountID, nil, true)
	if err != nil || urgent != 2 {
		t.Fatalf("urgent=%d err=%v, want 2", urgent, err)
	}
}
