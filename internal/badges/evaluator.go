package badges

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/models"
)

// History exposes the read-only aggregates rules are evaluated against.
// The repo implements it; tests use an in-memory fake.
type History interface {
	CompletedTaskCount(ctx context.Context, accountID string, since *time.Time, urgentOnly bool) (int, error)
	CheckinCount(ctx context.Context, accountID string, since *time.Time) (int, error)
	AverageEnergy(ctx context.Context, accountID string, since *time.Time) (float64, error)
	EarnedGemSum(ctx context.Context, accountID string, since *time.Time) (int, error)
	CurrentStreak(ctx context.Context, accountID string) (int, error)
}

// Catalog provides the rule set and the per-account unlock log.
type Catalog interface {
	ActiveRules(ctx context.Context) ([]models.BadgeRule, error)
	UnlockedRuleIDs(ctx context.Context, accountID string) (map[string]bool, error)
	CreateUnlock(ctx context.Context, accountID, ruleID string) (bool, error)
}

// Strategy implements a custom rule kind. The catalog carries no executable
// code, so custom rules stay locked until a strategy is registered for them
// by name.
type Strategy interface {
	Satisfied(ctx context.Context, accountID string, rule models.BadgeRule) (bool, error)
}

type Evaluator struct {
	history    History
	catalog    Catalog
	strategies map[string]Strategy
	now        func() time.Time
}

func NewEvaluator(history History, catalog Catalog) *Evaluator {
	return &Evaluator{
		history:    history,
		catalog:    catalog,
		strategies: make(map[string]Strategy),
		now:        time.Now,
	}
}

// RegisterStrategy binds a custom-rule strategy to a rule name.
func (e *Evaluator) RegisterStrategy(ruleName string, s Strategy) {
	e.strategies[ruleName] = s
}

// EvaluateAndUnlock re-checks every active, not-yet-unlocked rule for the
// account and returns the rules unlocked by this pass. Unlocks are permanent:
// already-unlocked rules are skipped outright, and the insert is guarded by
// a unique constraint so concurrent passes cannot double-grant.
func (e *Evaluator) EvaluateAndUnlock(ctx context.Context, accountID string) ([]models.BadgeRule, error) {
	rules, err := e.catalog.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	unlocked, err := e.catalog.UnlockedRuleIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load unlocks: %w", err)
	}

	var fresh []models.BadgeRule
	for _, rule := range rules {
		if unlocked[rule.ID] {
			continue
		}
		if rule.Target <= 0 && rule.Kind != models.RuleCustom {
			log.Printf("badge rule %s (%s) has non-positive target %v, skipping", rule.ID, rule.Name, rule.Target)
			continue
		}
		satisfied, err := e.satisfied(ctx, accountID, rule)
		if err != nil {
			return fresh, fmt.Errorf("evaluate rule %s: %w", rule.ID, err)
		}
		if !satisfied {
			continue
		}
		inserted, err := e.catalog.CreateUnlock(ctx, accountID, rule.ID)
		if err != nil {
			return fresh, fmt.Errorf("unlock rule %s: %w", rule.ID, err)
		}
		if inserted {
			fresh = append(fresh, rule)
		}
	}
	return fresh, nil
}

func (e *Evaluator) satisfied(ctx context.Context, accountID string, rule models.BadgeRule) (bool, error) {
	since := e.windowStart(rule.Window)

	switch rule.Kind {
	case models.RuleTasksCompleted:
		count, err := e.history.CompletedTaskCount(ctx, accountID, since, false)
		return err == nil && float64(count) >= rule.Target, err
	case models.RuleUrgentTasks:
		count, err := e.history.CompletedTaskCount(ctx, accountID, since, true)
		return err == nil && float64(count) >= rule.Target, err
	case models.RuleCheckinsCount:
		count, err := e.history.CheckinCount(ctx, accountID, since)
		return err == nil && float64(count) >= rule.Target, err
	case models.RuleAverageEnergy:
		avg, err := e.history.AverageEnergy(ctx, accountID, since)
		return err == nil && avg >= rule.Target, err
	case models.RuleCumulativeGems:
		sum, err := e.history.EarnedGemSum(ctx, accountID, since)
		return err == nil && float64(sum) >= rule.Target, err
	case models.RuleStreakLength:
		// Reflects current state, the window does not apply.
		streak, err := e.history.CurrentStreak(ctx, accountID)
		return err == nil && float64(streak) >= rule.Target, err
	case models.RuleCustom:
		strategy, ok := e.strategies[rule.Name]
		if !ok {
			return false, nil
		}
		return strategy.Satisfied(ctx, accountID, rule)
	default:
		log.Printf("badge rule %s has unknown kind %q, skipping", rule.ID, rule.Kind)
		return false, nil
	}
}

// windowStart converts a rule window into the aggregate's lower time bound.
// Windows are anchored on evaluation time, not calendar boundaries.
func (e *Evaluator) windowStart(window models.RuleWindow) *time.Time {
	now := e.now().UTC()
	var since time.Time
	switch window {
	case models.WindowWeek:
		since = now.AddDate(0, 0, -7)
	case models.WindowMonth:
		since = now.AddDate(0, -1, 0)
	case models.WindowYear:
		since = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &since
}
