package app

import "time"

const day = 24 * time.Hour

// FineDecision is the outcome of comparing a return date against a due date.
type FineDecision struct {
	Overdue  bool
	DaysLate int
	Amount   int64
}

// ComputeFine decides whether a return is overdue and how much it costs.
// Partial days round up, so returning an hour late counts as one full day.
func ComputeFine(dueDate, returnDate time.Time, dailyRate int64) FineDecision {
	if !returnDate.After(dueDate) {
		return FineDecision{}
	}

	late := returnDate.Sub(dueDate)
	daysLate := int(late / day)
	if late%day != 0 {
		daysLate++
	}

	return FineDecision{
		Overdue:  true,
		DaysLate: daysLate,
		Amount:   int64(daysLate) * dailyRate,
	}
}
