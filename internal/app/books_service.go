package app

import (
	"context"

	"github.com/thisismondev/PUBA/internal/domain"
)

// BooksRepository is the books-service view of its own database.
type BooksRepository interface {
	GetItem(ctx context.Context, id int64) (domain.BookItem, error)
	FindItemByInventoryCode(ctx context.Context, code string) (*domain.BookItem, error)
	CreateItem(ctx context.Context, item domain.BookItem) (domain.BookItem, error)
	ListItems(ctx context.Context, bookID int64) ([]domain.BookItem, error)
	UpdateItemStatus(ctx context.Context, id int64, status domain.ItemStatus) (domain.BookItem, error)
	GetBook(ctx context.Context, id int64) (domain.Book, error)
	CreateBook(ctx context.Context, book domain.Book) (domain.Book, error)
	ListBooks(ctx context.Context) ([]domain.Book, error)
}

type BooksService struct {
	repo BooksRepository
}

func NewBooksService(repo BooksRepository) *BooksService {
	return &BooksService{repo: repo}
}

func (s *BooksService) GetItem(ctx context.Context, id int64) (domain.BookItem, error) {
	return s.repo.GetItem(ctx, id)
}

type CreateItemInput struct {
	BookID        int64
	InventoryCode string
	Status        domain.ItemStatus
	RackLocation  string
}

func (s *BooksService) CreateItem(ctx context.Context, in CreateItemInput) (domain.BookItem, error) {
	if _, err := s.repo.GetBook(ctx, in.BookID); err != nil {
		return domain.BookItem{}, err
	}

	if existing, err := s.repo.FindItemByInventoryCode(ctx, in.InventoryCode); err != nil {
		return domain.BookItem{}, err
	} else if existing != nil {
		return domain.BookItem{}, domain.ErrInventoryCodeTaken
	}

	status := in.Status
	if status == "" {
		status = domain.ItemStatusAvailable
	}
	if !domain.ValidItemStatus(status) {
		return domain.BookItem{}, domain.ErrInvalidStatus
	}

	return s.repo.CreateItem(ctx, domain.BookItem{
		BookID:        in.BookID,
		InventoryCode: in.InventoryCode,
		Status:        status,
		RackLocation:  in.RackLocation,
	})
}

func (s *BooksService) ListItems(ctx context.Context, bookID int64) ([]domain.BookItem, error) {
	return s.repo.ListItems(ctx, bookID)
}

// UpdateItemStatus applies a status transition for an item. The loans service
// calls this while borrowing and returning, so the transition rules here are
// the only cross-service guard against double-borrowing an item.
func (s *BooksService) UpdateItemStatus(ctx context.Context, id int64, status domain.ItemStatus) (domain.BookItem, error) {
	if !domain.ValidItemStatus(status) {
		return domain.BookItem{}, domain.ErrInvalidStatus
	}

	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return domain.BookItem{}, err
	}

	if status == domain.ItemStatusBorrowed {
		switch item.Status {
		case domain.ItemStatusBorrowed, domain.ItemStatusLost, domain.ItemStatusRepair:
			return domain.BookItem{}, domain.ErrStatusConflict
		}
	}

	return s.repo.UpdateItemStatus(ctx, id, status)
}

type CreateBookInput struct {
	Title    string
	Author   string
	ISBN     string
	CoverURL string
}

func (s *BooksService) CreateBook(ctx context.Context, in CreateBookInput) (domain.Book, error) {
	return s.repo.CreateBook(ctx, domain.Book{
		Title:    in.Title,
		Author:   in.Author,
		ISBN:     in.ISBN,
		CoverURL: in.CoverURL,
	})
}

func (s *BooksService) GetBook(ctx context.Context, id int64) (domain.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *BooksService) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.repo.ListBooks(ctx)
}
