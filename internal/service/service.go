package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/auth"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/badges"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/gems"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/models"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/repo"
)

var ErrInsufficientGems = errors.New("insufficient gems")

// Service wires the pure engine (calculator, progression, streak, rule
// evaluator) to persistence. Each flow that moves gems runs inside one
// repo transaction: ledger append, total update and badge evaluation
// commit together or not at all.
type Service struct {
	Repo       *repo.Repo
	Auth       *auth.Manager
	TokenTTL   time.Duration
	strategies map[string]badges.Strategy
	now        func() time.Time
}

func New(r *repo.Repo, authManager *auth.Manager) *Service {
	return &Service{
		Repo:       r,
		Auth:       authManager,
		TokenTTL:   24 * time.Hour,
		strategies: make(map[string]badges.Strategy),
		now:        time.Now,
	}
}

// RegisterBadgeStrategy installs a custom-rule strategy. Custom rules with
// no registered strategy never unlock.
func (s *Service) RegisterBadgeStrategy(ruleName string, strategy badges.Strategy) {
	s.strategies[ruleName] = strategy
}

func (s *Service) evaluator(tx *repo.Repo) *badges.Evaluator {
	ev := badges.NewEvaluator(tx, tx)
	for name, strategy := range s.strategies {
		ev.RegisterStrategy(name, strategy)
	}
	return ev
}

// --- auth ---

func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	hash, err := s.Auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	var userID string
	err = s.Repo.WithTx(ctx, func(tx *repo.Repo) error {
		userID, err = tx.CreateUser(ctx, email, hash)
		if err != nil {
			return err
		}
		_, err = tx.CreateAccount(ctx, userID)
		return err
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	userID, hash, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := s.Auth.ComparePassword(hash, password); err != nil {
		return "", errors.New("invalid credentials")
	}
	return s.Auth.GenerateToken(userID, s.TokenTTL)
}

// --- grant flow ---

type GrantResult struct {
	Amount    int                `json:"amount"`
	Breakdown gems.Breakdown     `json:"breakdown"`
	TotalGems int                `json:"total_gems"`
	Level     int                `json:"level"`
	Unlocked  []models.BadgeRule `json:"unlocked_badges"`
}

// GrantForCompletion marks a work item completed, values it and appends the
// reward to the ledger. The caller must not re-submit a completed item; the
// item's own not-yet-completed guard turns a replay into ErrAlreadyCompleted.
func (s *Service) GrantForCompletion(ctx context.Context, accountID, workItemID string, completedAt time.Time, actualMinutes *int) (*GrantResult, error) {
	var result GrantResult
	err := s.Repo.WithTx(ctx, func(tx *repo.Repo) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		item, err := tx.CompleteWorkItem(ctx, workItemID, accountID, completedAt, actualMinutes)
		if err != nil {
			return err
		}
		breakdown, err := gems.ComputeReward(*item, &completedAt)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(breakdown)
		if err != nil {
			return fmt.Errorf("marshal breakdown: %w", err)
		}
		if _, err := tx.AppendTransaction(ctx, accountID, models.SourceTaskCompletion, &item.ID,
			breakdown.TotalGems, "completed: "+item.Title, raw); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		unlocked, err := s.evaluator(tx).EvaluateAndUnlock(ctx, accountID)
		if err != nil {
			return err
		}
		result = GrantResult{
			Amount:    breakdown.TotalGems,
			Breakdown: breakdown,
			TotalGems: account.TotalGems + breakdown.TotalGems,
			Level:     gems.LevelFor(account.TotalGems + breakdown.TotalGems),
			Unlocked:  unlocked,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// --- check-in flow ---

type CheckinResult struct {
	NewStreak     int                `json:"new_streak"`
	LongestStreak int                `json:"longest_streak"`
	BonusAwarded  int                `json:"streak_bonus_awarded"`
	Unlocked      []models.BadgeRule `json:"unlocked_badges"`
}

// RecordCheckin stores the daily check-in and applies the streak transition.
// A second check-in on the same date fails with repo.ErrDuplicateCheckin,
// which also makes the streak increment idempotent under retried requests.
func (s *Service) RecordCheckin(ctx context.Context, accountID string, date time.Time, energyLevel int) (*CheckinResult, error) {
	if energyLevel < 1 || energyLevel > 10 {
		return nil, fmt.Errorf("energy level must be 1..10, got %d", energyLevel)
	}
	var result CheckinResult
	err := s.Repo.WithTx(ctx, func(tx *repo.Repo) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		checkinID, err := tx.CreateCheckin(ctx, accountID, date, energyLevel)
		if err != nil {
			return err
		}
		newStreak, _ := gems.NextStreak(account.LastActivityDate, account.CurrentStreak, date)
		longest := account.LongestStreak
		if newStreak > longest {
			longest = newStreak
		}
		if err := tx.UpdateStreak(ctx, accountID, newStreak, longest, date); err != nil {
			return fmt.Errorf("update streak: %w", err)
		}
		bonus := gems.StreakBonus(newStreak)
		if bonus > 0 {
			if _, err := tx.AppendTransaction(ctx, accountID, models.SourceCheckin, &checkinID,
				bonus, fmt.Sprintf("streak bonus (day %d)", newStreak), nil); err != nil {
				return fmt.Errorf("append bonus: %w", err)
			}
		}
		unlocked, err := s.evaluator(tx).EvaluateAndUnlock(ctx, accountID)
		if err != nil {
			return err
		}
		result = CheckinResult{NewStreak: newStreak, LongestStreak: longest, BonusAwarded: bonus, Unlocked: unlocked}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// --- manual adjustment flow ---

// AdjustGems appends a caller-supplied signed amount to the ledger. No
// multiplier logic applies; the total can never go below zero.
func (s *Service) AdjustGems(ctx context.Context, accountID string, amount int, description string) (*models.GemTransaction, error) {
	if amount == 0 {
		return nil, errors.New("amount must be non-zero")
	}
	var txn models.GemTransaction
	err := s.Repo.WithTx(ctx, func(tx *repo.Repo) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if account.TotalGems+amount < 0 {
			return ErrInsufficientGems
		}
		id, err := tx.AppendTransaction(ctx, accountID, models.SourceManual, nil, amount, description, nil)
		if err != nil {
			return err
		}
		txn = models.GemTransaction{
			ID:          id,
			AccountID:   accountID,
			SourceKind:  models.SourceManual,
			Amount:      amount,
			Description: description,
			CreatedAt:   s.now(),
		}
		_, err = s.evaluator(tx).EvaluateAndUnlock(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// --- read models ---

type AccountSummary struct {
	models.Account
	Level         int `json:"level"`
	NextLevel     int `json:"next_level"`
	GemsToNext    int `json:"gems_to_next_level"`
	CurrentBonus  int `json:"current_streak_bonus"`
	BadgeUnlocked int `json:"badges_unlocked"`
}

func (s *Service) Summary(ctx context.Context, accountID string) (*AccountSummary, error) {
	account, err := s.Repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.Repo.UnlockedRuleIDs(ctx, accountID)
	if err != nil {
		return nil, err
	}
	remaining, next := gems.NextLevelAt(account.TotalGems)
	return &AccountSummary{
		Account:       *account,
		Level:         gems.LevelFor(account.TotalGems),
		NextLevel:     next,
		GemsToNext:    remaining,
		CurrentBonus:  gems.StreakBonus(account.CurrentStreak),
		BadgeUnlocked: len(unlocked),
	}, nil
}

type RuleStatus struct {
	models.BadgeRule
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// BadgeBoard joins the catalog with the account's unlock log.
func (s *Service) BadgeBoard(ctx context.Context, accountID string) ([]RuleStatus, error) {
	rules, err := s.Repo.ListRules(ctx, true)
	if err != nil {
		return nil, err
	}
	unlocks, err := s.Repo.ListUnlocks(ctx, accountID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.RuleID] = u.UnlockedAt
	}
	statuses := make([]RuleStatus, 0, len(rules))
	for _, rule := range rules {
		st := RuleStatus{BadgeRule: rule}
		if at, ok := unlockedAt[rule.ID]; ok {
			st.Unlocked = true
			t := at
			st.UnlockedAt = &t
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
