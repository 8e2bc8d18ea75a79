package gems

import (
	"testing"
	"time"
)

func TestNextStreakContinues(t *testing.T) {
	today := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	// Check-in the day after a 6-day streak extends it to 7.
	streak, continued := NextStreak(&yesterday, 6, today)
	if streak != 7 || !continued {
		t.Fatalf("NextStreak=(%d,%v), want (7,true)", streak, continued)
	}
	if StreakBonus(streak) != 10 {
		t.Fatalf("StreakBonus(7)=%d, want 10", StreakBonus(streak))
	}
}

func TestNextStreakResetAfterGap(t *testing.T) {
	today := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	for _, gapDays := range []int{2, 3, 30, 400} {
		last := today.AddDate(0, 0, -gapDays)
		streak, continued := NextStreak(&last, 25, today)
		if streak != 1 || continued {
			t.Fatalf("gap of %d days: NextStreak=(%d,%v), want (1,false)", gapDays, streak, continued)
		}
	}
}

func TestNextStreakFirstActivity(t *testing.T) {
	today := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	streak, continued := NextStreak(nil, 0, today)
	if streak != 1 || continued {
		t.Fatalf("NextStreak=(%d,%v), want (1,false)", streak, continued)
	}
}

func TestNextStreakIgnoresTimeOfDay(t *testing.T) {
	// Last activity late at night, check-in early the next morning.
	last := time.Date(2025, 3, 9, 23, 55, 0, 0, time.UTC)
	today := time.Date(2025, 3, 10, 0, 5, 0, 0, time.UTC)

	streak, continued := NextStreak(&last, 3, today)
	if streak != 4 || !continued {
		t.Fatalf("NextStreak=(%d,%v), want (4,true)", streak, continued)
	}
}
