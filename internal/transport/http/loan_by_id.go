package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/thisismondev/PUBA/internal/app"
	"github.com/thisismondev/PUBA/internal/clock"
	"github.com/thisismondev/PUBA/internal/domain"
)

// LoanReturner is the minimal interface needed to return a borrowed item.
type LoanReturner interface {
	Return(ctx context.Context, in app.ReturnInput) (app.ReturnResult, error)
}

// HandleLoanByID serves the /loans/ subtree: GET /loans/my, GET /loans/{id}
// and POST /loans/{id}/return (admin only).
func HandleLoanByID(returner LoanReturner, reader LoanReader, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != "loans" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		if len(parts) == 2 && parts[1] == "my" {
			handleMyLoans(w, r, reader, clk)
			return
		}

		loanID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || loanID <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid loan id")
			return
		}

		switch {
		case len(parts) == 2:
			handleGetLoan(w, r, reader, clk, loanID)
		case len(parts) == 3 && parts[2] == "return":
			handleReturnLoan(w, r, returner, clk, loanID)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleMyLoans(w http.ResponseWriter, r *http.Request, reader LoanReader, clk clock.Clock) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}

	details, err := reader.ListUserLoans(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponses(details, clk.Now()))
}

func handleGetLoan(w http.ResponseWriter, r *http.Request, reader LoanReader, clk clock.Clock, loanID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := ClaimsFromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}

	detail, err := reader.GetLoan(r.Context(), loanID)
	if err != nil {
		if err == domain.ErrLoanNotFound {
			writeError(w, http.StatusNotFound, codeLoanNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(detail, clk.Now()))
}

func handleReturnLoan(w http.ResponseWriter, r *http.Request, returner LoanReturner, clk clock.Clock, loanID int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := requireRole(w, r, RoleAdmin); !ok {
		return
	}

	res, err := returner.Return(r.Context(), app.ReturnInput{
		LoanID:     loanID,
		Credential: TokenFromContext(r.Context()),
	})
	if err != nil {
		switch err {
		case domain.ErrLoanNotFound:
			writeError(w, http.StatusNotFound, codeLoanNotFound, err.Error())
		case domain.ErrLoanAlreadyReturned:
			writeError(w, http.StatusConflict, codeAlreadyReturned, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	resp := returnLoanResponse{
		Loan:    toLoanResponse(app.LoanDetail{Loan: res.Loan}, clk.Now()),
		Message: "book returned on time",
	}
	if res.Fine != nil {
		resp.Fine = &returnFineInfo{
			Amount:   res.Fine.Amount,
			DaysLate: res.Fine.DaysLate,
			Created:  res.Fine.Created,
		}
		resp.Message = "book returned late, fine applied"
	}
	writeJSON(w, http.StatusOK, resp)
}

type returnLoanResponse struct {
	Loan    loanResponse    `json:"loan"`
	Fine    *returnFineInfo `json:"fine,omitempty"`
	Message string          `json:"message"`
}

type returnFineInfo struct {
	Amount   int64 `json:"amount"`
	DaysLate int   `json:"days_late"`
	Created  bool  `json:"created"`
}
