package domain

import "errors"

var (
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanAlreadyReturned = errors.New("loan already returned")
	ErrItemNotFound        = errors.New("book item not found")
	ErrItemNotAvailable    = errors.New("book item not available")
	ErrBooksUnavailable    = errors.New("books service unavailable")
	ErrNoCredential        = errors.New("no credential for inter-service call")
	ErrRemoteUnauthorized  = errors.New("books service rejected credential")
	ErrStatusUpdateFailed  = errors.New("book status update failed, borrow canceled")
	ErrFineExists          = errors.New("fine already exists for loan")
	ErrFineNotFound        = errors.New("fine not found")
	ErrBookNotFound        = errors.New("book not found")
	ErrInvalidStatus       = errors.New("invalid item status")
	ErrStatusConflict      = errors.New("item status transition not allowed")
	ErrInventoryCodeTaken  = errors.New("inventory code already in use")
	ErrInvalidID           = errors.New("invalid id")
)
