package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/thisismondev/PUBA/internal/app"
	"github.com/thisismondev/PUBA/internal/domain"
)

// BookService is the minimal interface needed for the book catalog endpoints.
type BookService interface {
	CreateBook(ctx context.Context, in app.CreateBookInput) (domain.Book, error)
	GetBook(ctx context.Context, id int64) (domain.Book, error)
	ListBooks(ctx context.Context) ([]domain.Book, error)
}

// HandleBooks serves the /books collection.
func HandleBooks(svc BookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			books, err := svc.ListBooks(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]bookResponse, 0, len(books))
			for _, b := range books {
				resp = append(resp, toBookResponse(b))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			if _, ok := requireRole(w, r, RoleAdmin); !ok {
				return
			}

			var req createBookRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			if req.Title == "" {
				writeError(w, http.StatusBadRequest, codeTitleRequired, "title is required")
				return
			}

			book, err := svc.CreateBook(r.Context(), app.CreateBookInput{
				Title:    req.Title,
				Author:   req.Author,
				ISBN:     req.ISBN,
				CoverURL: req.CoverURL,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			writeJSON(w, http.StatusCreated, toBookResponse(book))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleBookByID serves GET /books/{id}.
func HandleBookByID(svc BookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "books" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		bookID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || bookID <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid book id")
			return
		}

		book, err := svc.GetBook(r.Context(), bookID)
		if err != nil {
			if err == domain.ErrBookNotFound {
				writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, toBookResponse(book))
	}
}

type createBookRequest struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	CoverURL string `json:"cover_url"`
}

type bookResponse struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	CoverURL string `json:"cover_url"`
}

func toBookResponse(b domain.Book) bookResponse {
	return bookResponse{
		ID:       b.ID,
		Title:    b.Title,
		Author:   b.Author,
		ISBN:     b.ISBN,
		CoverURL: b.CoverURL,
	}
}
