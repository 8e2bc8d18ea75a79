package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/auth"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/db"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/models"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/repo"
)

func setupTestService(t *testing.T) (*Service, func()) {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("svc_test_%d", time.Now().UnixNano())
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
	// Retire the stock catalog so each test controls exactly which rules
	// are in play.
	if _, err := pool.Exec(ctx, `UPDATE badge_rules SET active=false`); err != nil {
		pool.Close()
		t.Fatalf("reset catalog: %v", err)
	}
	svc := New(repo.New(pool), auth.NewManager("test-secret"))
	return svc, func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	}
}

func registerAccount(t *testing.T, svc *Service) string {
	t.Helper()
	ctx := context.Background()
	userID, err := svc.Register(ctx, fmt.Sprintf("u%d@test.local", time.Now().UnixNano()), "password1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	account, err := svc.Repo.GetAccountByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("lookup account: %v", err)
	}
	return account.ID
}

func createTask(t *testing.T, svc *Service, accountID string) string {
	t.Helper()
	id, err := svc.Repo.CreateWorkItem(context.Background(), models.WorkItem{
		AccountID:  accountID,
		Title:      "task",
		Category:   models.CategoryImportantUrgent,
		Difficulty: models.DifficultyMedium,
		Priority:   models.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return id
}

func TestGrantFlowUnlocksBadgeExactlyOnce(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	accountID := registerAccount(t, svc)

	ruleID, err := svc.Repo.CreateRule(ctx, models.BadgeRule{
		Name: "First Five", Kind: models.RuleTasksCompleted, Target: 5, Window: models.WindowAllTime, Active: true,
	})
	if err != nil {
		t.Fatalf("rule: %v", err)
	}

	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		taskID := createTask(t, svc, accountID)
		result, err := svc.GrantForCompletion(ctx, accountID, taskID, now, nil)
		if err != nil {
			t.Fatalf("grant %d: %v", i, err)
		}
		if result.Amount != 73 {
			t.Fatalf("grant %d amount=%d, want 73", i, result.Amount)
		}
		if len(result.Unlocked) != 0 {
			t.Fatalf("badge unlocked after %d completions", i+1)
		}
	}

	taskID := createTask(t, svc, accountID)
	result, err := svc.GrantForCompletion(ctx, accountID, taskID, now, nil)
	if err != nil {
		t.Fatalf("fifth grant: %v", err)
	}
	if len(result.Unlocked) != 1 || result.Unlocked[0].ID != ruleID {
		t.Fatalf("expected fifth completion to unlock the badge, got %v", result.Unlocked)
	}

	// Reconciliation after the whole sequence.
	sum, err := svc.Repo.SumTransactions(ctx, accountID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	account, err := svc.Repo.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if sum != account.TotalGems || sum != 5*73 {
		t.Fatalf("sum=%d total=%d, want 365", sum, account.TotalGems)
	}

	unlocks, err := svc.Repo.ListUnlocks(ctx, accountID)
	if err != nil || len(unlocks) != 1 {
		t.Fatalf("unlocks=%d err=%v, want exactly 1", len(unlocks), err)
	}
}

func TestGrantReplayRejected(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	accountID := registerAccount(t, svc)
	taskID := createTask(t, svc, accountID)

	now := time.Now().UTC()
	if _, err := svc.GrantForCompletion(ctx, accountID, taskID, now, nil); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := svc.GrantForCompletion(ctx, accountID, taskID, now, nil); !errors.Is(err, repo.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted on replay, got %v", err)
	}

	sum, err := svc.Repo.SumTransactions(ctx, accountID)
	if err != nil || sum != 73 {
		t.Fatalf("sum=%d err=%v, want one grant only", sum, err)
	}
}

func TestCheckinStreakAndBonus(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	accountID := registerAccount(t, svc)

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	// Seed a 6-day streak ending yesterday.
	if err := svc.Repo.UpdateStreak(ctx, accountID, 6, 6, yesterday); err != nil {
		t.Fatalf("seed streak: %v", err)
	}

	result, err := svc.RecordCheckin(ctx, accountID, today, 8)
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if result.NewStreak != 7 || result.BonusAwarded != 10 {
		t.Fatalf("streak=%d bonus=%d, want 7/10", result.NewStreak, result.BonusAwarded)
	}

	account, err := svc.Repo.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.TotalGems != 10 || account.LongestStreak != 7 {
		t.Fatalf("total=%d longest=%d, want 10/7", account.TotalGems, account.LongestStreak)
	}

	// Second check-in the same day is rejected and changes nothing.
	if _, err := svc.RecordCheckin(ctx, accountID, today, 5); !errors.Is(err, repo.ErrDuplicateCheckin) {
		t.Fatalf("expected ErrDuplicateCheckin, got %v", err)
	}
	account, err = svc.Repo.GetAccount(ctx, accountID)
	if err != nil || account.CurrentStreak != 7 || account.TotalGems != 10 {
		t.Fatalf("duplicate checkin mutated state: %+v err=%v", account, err)
	}
}

func TestCheckinAfterGapResets(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	accountID := registerAccount(t, svc)

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	lastWeek := today.AddDate(0, 0, -6)
	if err := svc.Repo.UpdateStreak(ctx, accountID, 12, 12, lastWeek); err != nil {
		t.Fatalf("seed streak: %v", err)
	}

	result, err := svc.RecordCheckin(ctx, accountID, today, 6)
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if result.NewStreak != 1 || result.BonusAwarded != 0 {
		t.Fatalf("streak=%d bonus=%d, want reset to 1 with no bonus", result.NewStreak, result.BonusAwarded)
	}
	if result.LongestStreak != 12 {
		t.Fatalf("longest=%d, want 12 preserved", result.LongestStreak)
	}
}

func TestAdjustGemsGuardsNegativeTotal(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	accountID := registerAccount(t, svc)

	if _, err := svc.AdjustGems(ctx, accountID, 50, "welcome grant"); err != nil {
		t.Fatalf("adjust up: %v", err)
	}
	if _, err := svc.AdjustGems(ctx, accountID, -30, "correction"); err != nil {
		t.Fatalf("adjust down: %v", err)
	}
	if _, err := svc.AdjustGems(ctx, accountID, -30, "overdraw"); !errors.Is(err, ErrInsufficientGems) {
		t.Fatalf("expected ErrInsufficientGems, got %v", err)
	}

	sum, err := svc.Repo.SumTransactions(ctx, accountID)
	if err != nil || sum != 20 {
		t.Fatalf("sum=%d err=%v, want 20", sum, err)
	}
	account, err := svc.Repo.GetAccount(ctx, accountID)
	if err != nil || account.TotalGems != 20 {
		t.Fatalf("total=%d err=%v, want 20", account.TotalGems, err)
	}
}
