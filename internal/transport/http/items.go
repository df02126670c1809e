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

// ItemService is the minimal interface needed for book item endpoints.
type ItemService interface {
	GetItem(ctx context.Context, id int64) (domain.BookItem, error)
	CreateItem(ctx context.Context, in app.CreateItemInput) (domain.BookItem, error)
	ListItems(ctx context.Context, bookID int64) ([]domain.BookItem, error)
	UpdateItemStatus(ctx context.Context, id int64, status domain.ItemStatus) (domain.BookItem, error)
}

// HandleBookItems serves the /api/book-items collection.
func HandleBookItems(svc ItemService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			var bookID int64
			if raw := r.URL.Query().Get("book_id"); raw != "" {
				parsed, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || parsed <= 0 {
					writeError(w, http.StatusBadRequest, codeInvalidID, "invalid book_id")
					return
				}
				bookID = parsed
			}
			items, err := svc.ListItems(r.Context(), bookID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			writeJSON(w, http.StatusOK, toItemResponses(items))
		case http.MethodPost:
			handleCreateItem(w, r, svc)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func handleCreateItem(w http.ResponseWriter, r *http.Request, svc ItemService) {
	if _, ok := requireRole(w, r, RoleAdmin); !ok {
		return
	}

	var req createItemRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.BookID <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidID, "book_id must be a positive number")
		return
	}
	if req.InventoryCode == "" {
		writeError(w, http.StatusBadRequest, codeInventoryCodeNeeded, "inventory_code is required")
		return
	}

	item, err := svc.CreateItem(r.Context(), app.CreateItemInput{
		BookID:        req.BookID,
		InventoryCode: req.InventoryCode,
		Status:        domain.ItemStatus(req.Status),
		RackLocation:  req.RackLocation,
	})
	if err != nil {
		switch err {
		case domain.ErrBookNotFound:
			writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
		case domain.ErrInventoryCodeTaken:
			writeError(w, http.StatusConflict, codeInventoryCodeTaken, err.Error())
		case domain.ErrInvalidStatus:
			writeError(w, http.StatusBadRequest, codeInvalidStatus, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// HandleBookItemByID serves GET /api/book-items/{id} and
// PATCH /api/book-items/{id}/status. The status endpoint is what the loans
// service calls while borrowing and returning; it accepts any valid token,
// not just admins, because the loans service may forward the borrowing
// user's own token when no system credential is configured.
func HandleBookItemByID(svc ItemService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 3 || parts[0] != "api" || parts[1] != "book-items" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		itemID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil || itemID <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid item id")
			return
		}

		switch {
		case len(parts) == 3 && r.Method == http.MethodGet:
			item, err := svc.GetItem(r.Context(), itemID)
			if err != nil {
				if err == domain.ErrItemNotFound {
					writeError(w, http.StatusNotFound, codeItemNotFound, err.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			writeJSON(w, http.StatusOK, toItemResponse(item))
		case len(parts) == 4 && parts[3] == "status" && r.Method == http.MethodPatch:
			handleUpdateItemStatus(w, r, svc, itemID)
		case len(parts) == 3 || (len(parts) == 4 && parts[3] == "status"):
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleUpdateItemStatus(w http.ResponseWriter, r *http.Request, svc ItemService, itemID int64) {
	if _, ok := ClaimsFromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}

	var req updateStatusRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	item, err := svc.UpdateItemStatus(r.Context(), itemID, domain.ItemStatus(req.Status))
	if err != nil {
		switch err {
		case domain.ErrItemNotFound:
			writeError(w, http.StatusNotFound, codeItemNotFound, err.Error())
		case domain.ErrInvalidStatus:
			writeError(w, http.StatusBadRequest, codeInvalidStatus, err.Error())
		case domain.ErrStatusConflict:
			writeError(w, http.StatusConflict, codeStatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

type createItemRequest struct {
	BookID        int64  `json:"book_id"`
	InventoryCode string `json:"inventory_code"`
	Status        string `json:"status"`
	RackLocation  string `json:"rack_location"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type itemResponse struct {
	ID            int64         `json:"id"`
	BookID        int64         `json:"book_id"`
	InventoryCode string        `json:"inventory_code"`
	Status        string        `json:"status"`
	RackLocation  string        `json:"rack_location"`
	Book          *bookResponse `json:"book,omitempty"`
}

func toItemResponse(item domain.BookItem) itemResponse {
	resp := itemResponse{
		ID:            item.ID,
		BookID:        item.BookID,
		InventoryCode: item.InventoryCode,
		Status:        string(item.Status),
		RackLocation:  item.RackLocation,
	}
	if item.Book != nil {
		b := toBookResponse(*item.Book)
		resp.Book = &b
	}
	return resp
}

func toItemResponses(items []domain.BookItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	return out
}
