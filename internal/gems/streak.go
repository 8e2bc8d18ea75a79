package gems

import "time"

// NextStreak applies the daily streak transition: a check-in the day after
// the last activity extends the streak, any longer gap resets it to 1.
// Dates are compared by calendar day, ignoring the time component. The
// returned bool reports whether the streak continued.
//
// Callers must invoke this at most once per account per day; the check-in
// row's unique date constraint is what enforces that.
func NextStreak(lastActivity *time.Time, current int, today time.Time) (int, bool) {
	if lastActivity == nil {
		return 1, false
	}
	yesterday := dateOnly(today).AddDate(0, 0, -1)
	if dateOnly(*lastActivity).Equal(yesterday) {
		return current + 1, true
	}
	return 1, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
