// Package books is the loans-service HTTP client for the books service,
// which owns book item availability.
package books

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/thisismondev/PUBA/internal/domain"
)

var json = jsoniter.ConfigFastest

const defaultTimeout = 5 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the books service at baseURL. Calls time
// out after the configured duration and are never retried; the caller
// decides what a failed call means.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ClientOption func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// itemPayload is the wire shape of a book item as the books service returns
// it. Fields are mapped explicitly to the domain type instead of decoding
// into it directly.
type itemPayload struct {
	ID            int64  `json:"id"`
	BookID        int64  `json:"book_id"`
	InventoryCode string `json:"inventory_code"`
	Status        string `json:"status"`
	RackLocation  string `json:"rack_location"`
	Book          *struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Author   string `json:"author"`
		ISBN     string `json:"isbn"`
		CoverURL string `json:"cover_url"`
	} `json:"book"`
}

func (p itemPayload) toDomain() domain.BookItem {
	item := domain.BookItem{
		ID:            p.ID,
		BookID:        p.BookID,
		InventoryCode: p.InventoryCode,
		Status:        domain.ItemStatus(p.Status),
		RackLocation:  p.RackLocation,
	}
	if p.Book != nil {
		item.Book = &domain.Book{
			ID:       p.Book.ID,
			Title:    p.Book.Title,
			Author:   p.Book.Author,
			ISBN:     p.Book.ISBN,
			CoverURL: p.Book.CoverURL,
		}
	}
	return item
}

// GetItem fetches one book item by id.
func (c *Client) GetItem(ctx context.Context, id int64) (domain.BookItem, error) {
	url := fmt.Sprintf("%s/api/book-items/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.BookItem{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.BookItem{}, domain.ErrBooksUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.BookItem{}, domain.ErrItemNotFound
	case resp.StatusCode != http.StatusOK:
		return domain.BookItem{}, domain.ErrBooksUnavailable
	}

	var payload itemPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.BookItem{}, fmt.Errorf("decode item %d: %w", id, err)
	}
	return payload.toDomain(), nil
}

// UpdateStatus sets the status of one book item, authenticating with the
// given bearer credential.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status domain.ItemStatus, credential string) error {
	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	url := fmt.Sprintf("%s/api/book-items/%d/status", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ErrBooksUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return domain.ErrRemoteUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrItemNotFound
	case resp.StatusCode >= 300:
		return domain.ErrBooksUnavailable
	}
	return nil
}
