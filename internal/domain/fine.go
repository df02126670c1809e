package domain

import "time"

// Fine is the penalty for a loan returned after its due date. At most one
// fine exists per loan and its amount never changes once created.
type Fine struct {
	ID        int64
	LoanID    int64
	Amount    int64
	IsPaid    bool
	CreatedAt time.Time
}
