package gems

import (
	"fmt"
	"math"
	"time"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/models"
)

// Multiplier and base tables. Initialized once, never mutated.
var (
	categoryMultipliers = map[models.Category]int{
		models.CategoryImportantUrgent:       4,
		models.CategoryImportantNotUrgent:    3,
		models.CategoryNotImportantUrgent:    2,
		models.CategoryNotImportantNotUrgent: 1,
	}

	categoryBaseGems = map[models.Category]int{
		models.CategoryImportantUrgent:       25,
		models.CategoryImportantNotUrgent:    20,
		models.CategoryNotImportantUrgent:    15,
		models.CategoryNotImportantNotUrgent: 10,
	}

	difficultyMultipliers = map[models.Difficulty]int{
		models.DifficultySimple:      1,
		models.DifficultyMedium:      2,
		models.DifficultyComplicated: 3,
		models.DifficultyComplex:     4,
	}

	priorityMultipliers = map[models.Priority]int{
		models.PriorityLow:      1,
		models.PriorityMedium:   2,
		models.PriorityHigh:     3,
		models.PriorityCritical: 4,
	}
)

// TimelinessFlag describes how a completion related to its due date.
type TimelinessFlag string

const (
	TimelinessEarly  TimelinessFlag = "early"
	TimelinessOnTime TimelinessFlag = "on_time"
	TimelinessLate   TimelinessFlag = "late"
	TimelinessNone   TimelinessFlag = ""
)

// Breakdown is the full computation record for one reward. It is persisted
// alongside the ledger entry so every grant can be audited and displayed.
type Breakdown struct {
	BaseGems             int            `json:"base_gems"`
	CategoryMultiplier   int            `json:"category_multiplier"`
	DifficultyMultiplier int            `json:"difficulty_multiplier"`
	PriorityMultiplier   int            `json:"priority_multiplier"`
	CoreGems             int            `json:"core_gems"`
	Timeliness           TimelinessFlag `json:"timeliness,omitempty"`
	TimeAdjustment       int            `json:"time_adjustment"`
	Efficiency           float64        `json:"efficiency,omitempty"`
	QualityAdjustment    int            `json:"quality_adjustment"`
	TotalGems            int            `json:"total_gems"`
}

// ComputeReward values a completed work item. It is a pure function: the
// caller persists the resulting transaction. completedAt overrides the
// item's own completion timestamp when given.
func ComputeReward(item models.WorkItem, completedAt *time.Time) (Breakdown, error) {
	catMult, ok := categoryMultipliers[item.Category]
	if !ok {
		return Breakdown{}, &ValidationError{Field: "category", Value: string(item.Category)}
	}
	diffMult, ok := difficultyMultipliers[item.Difficulty]
	if !ok {
		return Breakdown{}, &ValidationError{Field: "difficulty", Value: string(item.Difficulty)}
	}
	prioMult, ok := priorityMultipliers[item.Priority]
	if !ok {
		return Breakdown{}, &ValidationError{Field: "priority", Value: string(item.Priority)}
	}

	base := categoryBaseGems[item.Category]
	core := base + 2*catMult*diffMult*prioMult

	b := Breakdown{
		BaseGems:             base,
		CategoryMultiplier:   catMult,
		DifficultyMultiplier: diffMult,
		PriorityMultiplier:   prioMult,
		CoreGems:             core,
	}

	done := item.CompletedAt
	if completedAt != nil {
		done = completedAt
	}
	if item.DueAt != nil && done != nil {
		b.Timeliness, b.TimeAdjustment = timeAdjustment(core, *item.DueAt, *done)
	}
	if item.EstimatedMinutes != nil && item.ActualMinutes != nil && *item.ActualMinutes > 0 {
		b.Efficiency = float64(*item.EstimatedMinutes) / float64(*item.ActualMinutes)
		b.QualityAdjustment = qualityAdjustment(core, b.Efficiency)
	}

	total := core + b.TimeAdjustment + b.QualityAdjustment
	if total < 1 {
		total = 1
	}
	b.TotalGems = total
	return b, nil
}

// timeAdjustment rewards early completion and docks gems only when the item
// is more than a day overdue. elapsed > 0 means finished before the due date.
func timeAdjustment(core int, due, completed time.Time) (TimelinessFlag, int) {
	elapsed := due.Sub(completed).Hours() / 24

	switch {
	case elapsed > 1:
		return TimelinessEarly, int(math.Floor(float64(core) * 0.20))
	case elapsed >= 0:
		return TimelinessOnTime, int(math.Floor(float64(core) * 0.10))
	case elapsed > -1:
		// Grace window: late but within a day, no penalty.
		return TimelinessLate, 0
	default:
		return TimelinessLate, -int(math.Floor(float64(core) * 0.10))
	}
}

func qualityAdjustment(core int, efficiency float64) int {
	switch {
	case efficiency > 1.2:
		return int(math.Floor(float64(core) * 0.15))
	case efficiency > 1.0:
		return int(math.Floor(float64(core) * 0.05))
	default:
		return 0
	}
}

// ValidationError reports an unknown enum value on a work item.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}
