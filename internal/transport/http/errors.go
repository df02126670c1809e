package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeUnauthorized        = "unauthorized"
	codeForbidden           = "forbidden"
	codeItemNotFound        = "item_not_found"
	codeItemNotAvailable    = "item_not_available"
	codeBooksUnavailable    = "books_service_unavailable"
	codeBorrowCanceled      = "borrow_canceled"
	codeLoanNotFound        = "loan_not_found"
	codeAlreadyReturned     = "loan_already_returned"
	codeBookNotFound        = "book_not_found"
	codeInvalidStatus       = "invalid_status"
	codeStatusConflict      = "status_conflict"
	codeInventoryCodeTaken  = "inventory_code_taken"
	codeTitleRequired       = "title_required"
	codeInventoryCodeNeeded = "inventory_code_required"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
