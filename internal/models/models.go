package models

import (
	"encoding/json"
	"time"
)

// Category classifies a work item by importance x urgency (Eisenhower quadrant).
type Category string

const (
	CategoryImportantUrgent       Category = "important_urgent"
	CategoryImportantNotUrgent    Category = "important_not_urgent"
	CategoryNotImportantUrgent    Category = "not_important_urgent"
	CategoryNotImportantNotUrgent Category = "not_important_not_urgent"
)

type Difficulty string

const (
	DifficultySimple      Difficulty = "simple"
	DifficultyMedium      Difficulty = "medium"
	DifficultyComplicated Difficulty = "complicated"
	DifficultyComplex     Difficulty = "complex"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account holds the per-user gamification state. TotalGems is the sum of
// all gem transactions; the level is always derived from it, never stored.
type Account struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	TotalGems        int        `json:"total_gems"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type WorkItem struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         Category   `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	Priority         Priority   `json:"priority"`
	DueAt            *time.Time `json:"due_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	EstimatedMinutes *int       `json:"estimated_minutes"`
	ActualMinutes    *int       `json:"actual_minutes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// SourceKind tags a gem transaction with what produced it.
type SourceKind string

const (
	SourceTaskCompletion SourceKind = "task_completion"
	SourceCheckin        SourceKind = "checkin"
	SourceManual         SourceKind = "manual"
)

// GemTransaction is an immutable ledger entry. The sum of amounts for an
// account always equals Account.TotalGems.
type GemTransaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	SourceKind  SourceKind      `json:"source_kind"`
	SourceID    *string         `json:"source_id"`
	Amount      int             `json:"amount"`
	Description string          `json:"description"`
	Breakdown   json.RawMessage `json:"breakdown,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RuleKind is the closed set of aggregates a badge rule can measure.
type RuleKind string

const (
	RuleTasksCompleted RuleKind = "tasks_completed"
	RuleCheckinsCount  RuleKind = "checkins_count"
	RuleStreakLength   RuleKind = "streak_length"
	RuleAverageEnergy  RuleKind = "average_energy"
	RuleUrgentTasks    RuleKind = "urgent_tasks"
	RuleCumulativeGems RuleKind = "cumulative_gems"
	RuleCustom         RuleKind = "custom"
)

// RuleWindow restricts the history a rule aggregates over.
type RuleWindow string

const (
	WindowAllTime RuleWindow = "all_time"
	WindowWeek    RuleWindow = "week"
	WindowMonth   RuleWindow = "month"
	WindowYear    RuleWindow = "year"
)

// BadgeRule is a catalog entry. Rules are authored through the admin
// surface; the engine only reads them.
type BadgeRule struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Kind        RuleKind   `json:"kind"`
	Target      float64    `json:"target"`
	Window      RuleWindow `json:"window"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BadgeUnlock records that an account satisfied a rule. At most one per
// (account, rule), permanent once created.
type BadgeUnlock struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	RuleID     string    `json:"rule_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// DailyCheckin is one row per account per calendar date.
type DailyCheckin struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	CheckinDate time.Time `json:"checkin_date"`
	EnergyLevel int       `json:"energy_level"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c Category) Valid() bool {
	switch c {
	case CategoryImportantUrgent, CategoryImportantNotUrgent, CategoryNotImportantUrgent, CategoryNotImportantNotUrgent:
		return true
	}
	return false
}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultySimple, DifficultyMedium, DifficultyComplicated, DifficultyComplex:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

func (k RuleKind) Valid() bool {
	switch k {
	case RuleTasksCompleted, RuleCheckinsCount, RuleStreakLength, RuleAverageEnergy, RuleUrgentTasks, RuleCumulativeGems, RuleCustom:
		return true
	}
	return false
}

func (w RuleWindow) Valid() bool {
	switch w {
	case WindowAllTime, WindowWeek, WindowMonth, WindowYear:
		return true
	}
	return false
}
