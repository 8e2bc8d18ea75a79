package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCompleted = errors.New("work item already completed")
	ErrDuplicateCheckin = errors.New("checkin already recorded for date")
)

const uniqueViolation = "23505"

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// so every repo method works inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct {
	Pool *pgxpool.Pool
	q    Querier
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool, q: pool}
}

// WithTx runs fn with a repo bound to a single transaction. The grant and
// check-in flows use this so the ledger append, the total update and the
// badge evaluation commit or roll back together.
func (r *Repo) WithTx(ctx context.Context, fn func(tx *Repo) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repo{Pool: r.Pool, q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- users ---

func (r *Repo) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	var id string
	err := r.q.QueryRow(ctx, `INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`, email, passwordHash).Scan(&id)
	return id, err
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := r.q.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, hash, err
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (string, string, error) {
	var id, email string
	err := r.q.QueryRow(ctx, `SELECT id, email FROM users WHERE id=$1`, userID).Scan(&id, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, email, err
}

// --- accounts ---

func (r *Repo) CreateAccount(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.q.QueryRow(ctx, `INSERT INTO accounts (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	return id, err
}

const accountColumns = `id, user_id, total_gems, current_streak, longest_streak, last_activity_date, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserID, &a.TotalGems, &a.CurrentStreak, &a.LongestStreak, &a.LastActivityDate, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, accountID))
}

func (r *Repo) GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id=$1`, userID))
}

// GetAccountForUpdate locks the account row for the remainder of the
// transaction so concurrent grants for one account serialize.
func (r *Repo) GetAccountForUpdate(ctx context.Context, accountID string) (*models.Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, accountID))
}

// UpdateStreak persists the streak transition result.
func (r *Repo) UpdateStreak(ctx context.Context, accountID string, streak, longest int, lastActivity time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE accounts SET current_streak=$1, longest_streak=$2, last_activity_date=$3, updated_at=now() WHERE id=$4`,
		streak, longest, lastActivity, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- work items ---

const workItemColumns = `id, account_id, title, description, category, difficulty, priority, due_at, completed_at, estimated_minutes, actual_minutes, created_at, updated_at`

func scanWorkItem(row pgx.Row) (*models.WorkItem, error) {
	var w models.WorkItem
	err := row.Scan(&w.ID, &w.AccountID, &w.Title, &w.Description, &w.Category, &w.Difficulty, &w.Priority,
		&w.DueAt, &w.CompletedAt, &w.EstimatedMinutes, &w.ActualMinutes, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repo) CreateWorkItem(ctx context.Context, item models.WorkItem) (string, error) {
	var id string
	err := r.q.QueryRow(ctx, `INSERT INTO work_items (account_id, title, description, category, difficulty, priority, due_at, estimated_minutes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		item.AccountID, item.Title, item.Description, item.Category, item.Difficulty, item.Priority, item.DueAt, item.EstimatedMinutes).Scan(&id)
	return id, err
}

func (r *Repo) ListWorkItems(ctx context.Context, accountID string) ([]models.WorkItem, error) {
	rows, err := r.q.Query(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE account_id=$1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *w)
	}
	return items, rows.Err()
}

// CompleteWorkItem marks an item done exactly once and returns it with the
// completion data filled in. A second call yields ErrAlreadyCompleted.
func (r *Repo) CompleteWorkItem(ctx context.Context, id, accountID string, completedAt time.Time, actualMinutes *int) (*models.WorkItem, error) {
	item, err := scanWorkItem(r.q.QueryRow(ctx, `UPDATE work_items
		SET completed_at=$1, actual_minutes=COALESCE($2, actual_minutes), updated_at=now()
		WHERE id=$3 AND account_id=$4 AND completed_at IS NULL
		RETURNING `+workItemColumns, completedAt, actualMinutes, id, accountID))
	if errors.Is(err, ErrNotFound) {
		var done *time.Time
		checkErr := r.q.QueryRow(ctx, `SELECT completed_at FROM work_items WHERE id=$1 AND account_id=$2`, id, accountID).Scan(&done)
		if errors.Is(checkErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if checkErr != nil {
			return nil, checkErr
		}
		return nil, ErrAlreadyCompleted
	}
	return item, err
}

// --- gem ledger ---

// AppendTransaction writes one ledger entry and moves the account total by
// the same amount. The two statements always travel together so the
// reconciliation invariant (sum of ledger == total) cannot be broken.
func (r *Repo) AppendTransaction(ctx context.Context, accountID string, kind models.SourceKind, sourceID *string, amount int, description string, breakdown []byte) (string, error) {
	var id string
	err := r.q.QueryRow(ctx, `INSERT INTO gem_transactions (account_id, source_kind, source_id, amount, description, breakdown)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		accountID, kind, sourceID, amount, description, breakdown).Scan(&id)
	if err != nil {
		return "", err
	}
	cmd, err := r.q.Exec(ctx, `UPDATE accounts SET total_gems = total_gems + $1, updated_at=now() WHERE id=$2`, amount, accountID)
	if err != nil {
		return "", err
	}
	if cmd.RowsAffected() == 0 {
		return "", ErrNotFound
	}
	return id, nil
}

func (r *Repo) ListTransactions(ctx context.Context, accountID string, limit int) ([]models.GemTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `SELECT id, account_id, source_kind, source_id, amount, description, breakdown, created_at
		FROM gem_transactions WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []models.GemTransaction
	for rows.Next() {
		var t models.GemTransaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.SourceKind, &t.SourceID, &t.Amount, &t.Description, &t.Breakdown, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// SumTransactions is the reconciliation probe: it must always equal the
// account's total_gems.
func (r *Repo) SumTransactions(ctx context.Context, accountID string) (int, error) {
	var sum int
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::bigint FROM gem_transactions WHERE account_id=$1`, accountID).Scan(&sum)
	return sum, err
}

// --- check-ins ---

func (r *Repo) CreateCheckin(ctx context.Context, accountID string, date time.Time, energy int) (string, error) {
	var id string
	err := r.q.QueryRow(ctx, `INSERT INTO daily_checkins (account_id, checkin_date, energy_level) VALUES ($1,$2,$3) RETURNING id`,
		accountID, date, energy).Scan(&id)
	if isUniqueViolation(err) {
		return "", ErrDuplicateCheckin
	}
	return id, err
}

func (r *Repo) ListCheckins(ctx context.Context, accountID string, limit int) ([]models.DailyCheckin, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.q.Query(ctx, `SELECT id, account_id, checkin_date, energy_level, created_at
		FROM daily_checkins WHERE account_id=$1 ORDER BY checkin_date DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var checkins []models.DailyCheckin
	for rows.Next() {
		var c models.DailyCheckin
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CheckinDate, &c.EnergyLevel, &c.CreatedAt); err != nil {
			return nil, err
		}
		checkins = append(checkins, c)
	}
	return checkins, rows.Err()
}
