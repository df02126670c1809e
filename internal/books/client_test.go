package books

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisismondev/PUBA/internal/domain"
)

func TestClient_GetItem(t *testing.T) {
	t.Parallel()

	t.Run("decodes an item with book detail", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/book-items/42", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"id": 42, "book_id": 1, "inventory_code": "INV-42", "status": "available",
				"rack_location": "A3",
				"book": {"id": 1, "title": "Algorithms", "author": "Sedgewick", "isbn": "978", "cover_url": ""}
			}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL)
		item, err := client.GetItem(context.Background(), 42)
		require.NoError(t, err)

		assert.Equal(t, int64(42), item.ID)
		assert.Equal(t, domain.ItemStatusAvailable, item.Status)
		require.NotNil(t, item.Book)
		assert.Equal(t, "Algorithms", item.Book.Title)
	})

	t.Run("404 maps to ErrItemNotFound", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).GetItem(context.Background(), 42)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("5xx maps to ErrBooksUnavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).GetItem(context.Background(), 42)
		assert.ErrorIs(t, err, domain.ErrBooksUnavailable)
	})

	t.Run("timeout maps to ErrBooksUnavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
		_, err := client.GetItem(context.Background(), 42)
		assert.ErrorIs(t, err, domain.ErrBooksUnavailable)
	})

	t.Run("unreachable host maps to ErrBooksUnavailable", func(t *testing.T) {
		t.Parallel()
		client := NewClient("http://127.0.0.1:1", WithTimeout(100*time.Millisecond))
		_, err := client.GetItem(context.Background(), 42)
		assert.ErrorIs(t, err, domain.ErrBooksUnavailable)
	})
}

func TestClient_UpdateStatus(t *testing.T) {
	t.Parallel()

	t.Run("sends a bearer PATCH", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/api/book-items/42/status", r.URL.Path)
			assert.Equal(t, "Bearer system-token", r.Header.Get("Authorization"))

			var body struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "borrowed", body.Status)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 42, "status": "borrowed"}`))
		}))
		defer srv.Close()

		err := NewClient(srv.URL).UpdateStatus(context.Background(), 42, domain.ItemStatusBorrowed, "system-token")
		require.NoError(t, err)
	})

	t.Run("401 maps to ErrRemoteUnauthorized", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		err := NewClient(srv.URL).UpdateStatus(context.Background(), 42, domain.ItemStatusBorrowed, "bad")
		assert.ErrorIs(t, err, domain.ErrRemoteUnauthorized)
	})

	t.Run("404 maps to ErrItemNotFound", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		err := NewClient(srv.URL).UpdateStatus(context.Background(), 42, domain.ItemStatusBorrowed, "tok")
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("conflict maps to ErrBooksUnavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer srv.Close()

		err := NewClient(srv.URL).UpdateStatus(context.Background(), 42, domain.ItemStatusBorrowed, "tok")
		assert.ErrorIs(t, err, domain.ErrBooksUnavailable)
	})
}
