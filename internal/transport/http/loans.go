package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/thisismondev/PUBA/internal/app"
	"github.com/thisismondev/PUBA/internal/clock"
	"github.com/thisismondev/PUBA/internal/domain"
)

// LoanBorrower is the minimal interface needed to borrow a book item.
type LoanBorrower interface {
	Borrow(ctx context.Context, in app.BorrowInput) (app.LoanDetail, error)
}

// LoanReader is the minimal interface needed to read loans.
type LoanReader interface {
	GetLoan(ctx context.Context, id int64) (app.LoanDetail, error)
	ListUserLoans(ctx context.Context, userID int64) ([]app.LoanDetail, error)
	ListLoans(ctx context.Context) ([]app.LoanDetail, error)
}

// HandleLoans serves the /loans collection: POST borrows an item, GET lists
// every loan (admin only).
func HandleLoans(borrower LoanBorrower, reader LoanReader, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handleCreateLoan(w, r, borrower, clk)
		case http.MethodGet:
			if _, ok := requireRole(w, r, RoleAdmin); !ok {
				return
			}
			details, err := reader.ListLoans(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			writeJSON(w, http.StatusOK, toLoanResponses(details, clk.Now()))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func handleCreateLoan(w http.ResponseWriter, r *http.Request, borrower LoanBorrower, clk clock.Clock) {
	claims, ok := requireRole(w, r, RoleStudent, RoleAdmin)
	if !ok {
		return
	}

	var req createLoanRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.BookItemID <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidID, "book_item_id must be a positive number")
		return
	}

	detail, err := borrower.Borrow(r.Context(), app.BorrowInput{
		UserID:     claims.UserID,
		BookItemID: req.BookItemID,
		Credential: TokenFromContext(r.Context()),
	})
	if err != nil {
		switch err {
		case domain.ErrItemNotFound:
			writeError(w, http.StatusNotFound, codeItemNotFound, err.Error())
		case domain.ErrItemNotAvailable:
			writeError(w, http.StatusConflict, codeItemNotAvailable, err.Error())
		case domain.ErrBooksUnavailable:
			writeError(w, http.StatusServiceUnavailable, codeBooksUnavailable, "cannot verify availability, retry later")
		case domain.ErrStatusUpdateFailed:
			writeError(w, http.StatusInternalServerError, codeBorrowCanceled, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toLoanResponse(detail, clk.Now()))
}

type createLoanRequest struct {
	BookItemID int64 `json:"book_item_id"`
}

type loanResponse struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"user_id"`
	BookItemID int64         `json:"book_item_id"`
	LoanDate   time.Time     `json:"loan_date"`
	DueDate    time.Time     `json:"due_date"`
	ReturnDate *time.Time    `json:"return_date,omitempty"`
	Status     string        `json:"status"`
	Fine       *fineResponse `json:"fine,omitempty"`
}

type fineResponse struct {
	ID        int64     `json:"id"`
	LoanID    int64     `json:"loan_id"`
	Amount    int64     `json:"amount"`
	IsPaid    bool      `json:"is_paid"`
	CreatedAt time.Time `json:"created_at"`
}

func toLoanResponse(d app.LoanDetail, now time.Time) loanResponse {
	resp := loanResponse{
		ID:         d.Loan.ID,
		UserID:     d.Loan.UserID,
		BookItemID: d.Loan.BookItemID,
		LoanDate:   d.Loan.LoanDate,
		DueDate:    d.Loan.DueDate,
		ReturnDate: d.Loan.ReturnDate,
		Status:     string(d.Loan.DerivedStatus(now)),
	}
	if d.Fine != nil {
		resp.Fine = &fineResponse{
			ID:        d.Fine.ID,
			LoanID:    d.Fine.LoanID,
			Amount:    d.Fine.Amount,
			IsPaid:    d.Fine.IsPaid,
			CreatedAt: d.Fine.CreatedAt,
		}
	}
	return resp
}

func toLoanResponses(details []app.LoanDetail, now time.Time) []loanResponse {
	out := make([]loanResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toLoanResponse(d, now))
	}
	return out
}
