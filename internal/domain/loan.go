package domain

import "time"

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"

	// LoanStatusOverdue is derived from due_date at read time; it is never
	// persisted so the loans table stays the single source of truth.
	LoanStatusOverdue LoanStatus = "overdue"
)

// Loan represents one borrowed physical book item.
type Loan struct {
	ID         int64
	UserID     int64
	BookItemID int64
	LoanDate   time.Time
	DueDate    time.Time
	ReturnDate *time.Time
	Status     LoanStatus
	CreatedAt  time.Time
}

// DerivedStatus projects the effective status at a given instant. An active
// loan past its due date reads as overdue without any stored state.
func (l Loan) DerivedStatus(now time.Time) LoanStatus {
	if l.Status == LoanStatusActive && now.After(l.DueDate) {
		return LoanStatusOverdue
	}
	return l.Status
}
