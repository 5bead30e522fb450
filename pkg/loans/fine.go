package loans

import "time"

// DailyFineRate is the penalty per whole day overdue, in currency units.
const DailyFineRate = 0.50

// CalculateFine returns the overdue penalty for a loan with the given due
// date evaluated at reference (the return date, or the current date for a
// still-open loan). Days are counted as whole epoch-day differences in UTC,
// so partial days carry no charge.
func CalculateFine(dueDate, reference time.Time) float64 {
	days := epochDay(reference) - epochDay(dueDate)
	if days <= 0 {
		return 0
	}
	return float64(days) * DailyFineRate
}

func epochDay(t time.Time) int64 {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
