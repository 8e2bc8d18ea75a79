package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/models"
)

// --- badge rule catalog (admin surface writes, engine reads) ---

const ruleColumns = `id, name, description, icon, kind, target, "window", active, created_at, updated_at`

func scanRule(row pgx.Row) (*models.BadgeRule, error) {
	var br models.BadgeRule
	err := row.Scan(&br.ID, &br.Name, &br.Description, &br.Icon, &br.Kind, &br.Target, &br.Window, &br.Active, &br.CreatedAt, &br.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &br, nil
}

func (r *Repo) CreateRule(ctx context.Context, rule models.BadgeRule) (string, error) {
	var id string
	err := r.q.QueryRow(ctx, `INSERT INTO badge_rules (name, description, icon, kind, target, "window", active)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		rule.Name, rule.Description, rule.Icon, rule.Kind, rule.Target, rule.Window, rule.Active).Scan(&id)
	return id, err
}

func (r *Repo) UpdateRule(ctx context.Context, rule models.BadgeRule) error {
	cmd, err := r.q.Exec(ctx, `UPDATE badge_rules SET name=$1, description=$2, icon=$3, kind=$4, target=$5, "window"=$6, active=$7, updated_at=now() WHERE id=$8`,
		rule.Name, rule.Description, rule.Icon, rule.Kind, rule.Target, rule.Window, rule.Active, rule.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateRule retires a rule from evaluation without touching existing
// unlocks.
func (r *Repo) DeactivateRule(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `UPDATE badge_rules SET active=false, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListRules(ctx context.Context, activeOnly bool) ([]models.BadgeRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM badge_rules ORDER BY created_at`
	if activeOnly {
		query = `SELECT ` + ruleColumns + ` FROM badge_rules WHERE active ORDER BY created_at`
	}
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []models.BadgeRule
	for rows.Next() {
		br, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *br)
	}
	return rules, rows.Err()
}

func (r *Repo) ActiveRules(ctx context.Context) ([]models.BadgeRule, error) {
	return r.ListRules(ctx, true)
}

// --- unlocks ---

func (r *Repo) UnlockedRuleIDs(ctx context.Context, accountID string) (map[string]bool, error) {
	rows, err := r.q.Query(ctx, `SELECT rule_id FROM badge_unlocks WHERE account_id=$1`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	unlocked := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		unlocked[id] = true
	}
	return unlocked, rows.Err()
}

// CreateUnlock grants a badge at most once. The unique constraint on
// (account_id, rule_id) absorbs races between concurrent evaluations; the
// bool reports whether this call actually inserted the row.
func (r *Repo) CreateUnlock(ctx context.Context, accountID, ruleID string) (bool, error) {
	cmd, err := r.q.Exec(ctx, `INSERT INTO badge_unlocks (account_id, rule_id) VALUES ($1, $2)
		ON CONFLICT (account_id, rule_id) DO NOTHING`, accountID, ruleID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *Repo) ListUnlocks(ctx context.Context, accountID string) ([]models.BadgeUnlock, error) {
	rows, err := r.q.Query(ctx, `SELECT id, account_id, rule_id, unlocked_at FROM badge_unlocks WHERE account_id=$1 ORDER BY unlocked_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var unlocks []models.BadgeUnlock
	for rows.Next() {
		var u models.BadgeUnlock
		if err := rows.Scan(&u.ID, &u.AccountID, &u.RuleID, &u.UnlockedAt); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}

// --- history aggregates consumed by the rule evaluator ---

// CompletedTaskCount counts completed work items, optionally restricted to
// the urgent quadrants and to completions at or after since.
func (r *Repo) CompletedTaskCount(ctx context.Context, accountID string, since *time.Time, urgentOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM work_items WHERE account_id=$1 AND completed_at IS NOT NULL
		AND ($2::timestamptz IS NULL OR completed_at >= $2)`
	if urgentOnly {
		query += ` AND category IN ('important_urgent', 'not_important_urgent')`
	}
	var count int
	err := r.q.QueryRow(ctx, query, accountID, since).Scan(&count)
	return count, err
}

func (r *Repo) CheckinCount(ctx context.Context, accountID string, since *time.Time) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM daily_checkins WHERE account_id=$1
		AND ($2::date IS NULL OR checkin_date >= $2::date)`, accountID, since).Scan(&count)
	return count, err
}

func (r *Repo) AverageEnergy(ctx context.Context, accountID string, since *time.Time) (float64, error) {
	var avg float64
	err := r.q.QueryRow(ctx, `SELECT COALESCE(AVG(energy_level), 0)::float8 FROM daily_checkins WHERE account_id=$1
		AND ($2::date IS NULL OR checkin_date >= $2::date)`, accountID, since).Scan(&avg)
	return avg, err
}

// EarnedGemSum totals task-completion rewards in the window.
func (r *Repo) EarnedGemSum(ctx context.Context, accountID string, since *time.Time) (int, error) {
	var sum int
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::bigint FROM gem_transactions
		WHERE account_id=$1 AND source_kind='task_completion'
		AND ($2::timestamptz IS NULL OR created_at >= $2)`, accountID, since).Scan(&sum)
	return sum, err
}

func (r *Repo) CurrentStreak(ctx context.Context, accountID string) (int, error) {
	var streak int
	err := r.q.QueryRow(ctx, `SELECT current_streak FROM accounts WHERE id=$1`, accountID).Scan(&streak)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return streak, err
}
