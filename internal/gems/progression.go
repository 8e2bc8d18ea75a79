package gems

// levelThresholds[i] is the cumulative gem total required for level i+1.
// Totals at or beyond the last threshold cap at MaxLevel.
var levelThresholds = []int{0, 100, 300, 600, 1000, 1500, 2100, 2800, 3600, 4500}

// MaxLevel is the top of the progression ladder.
const MaxLevel = 10

// LevelFor returns the level for a cumulative gem total, 1..MaxLevel.
func LevelFor(total int) int {
	level := 1
	for i, threshold := range levelThresholds {
		if total >= threshold {
			level = i + 1
		}
	}
	return level
}

// NextLevelAt returns the gems still needed for the next level and the next
// level itself. At the cap it returns (0, MaxLevel).
func NextLevelAt(total int) (remaining, nextLevel int) {
	level := LevelFor(total)
	if level >= MaxLevel {
		return 0, MaxLevel
	}
	return levelThresholds[level] - total, level + 1
}

// StreakBonus is the flat gem bonus awarded with a daily check-in, stepped
// by the length of the current streak.
func StreakBonus(streakDays int) int {
	switch {
	case streakDays >= 30:
		return 50
	case streakDays >= 14:
		return 20
	case streakDays >= 7:
		return 10
	case streakDays >= 3:
		return 5
	default:
		return 0
	}
}
