package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thisismondev/PUBA/internal/domain"
)

type BooksRepository struct {
	pool *pgxpool.Pool
}

func NewBooksRepository(pool *pgxpool.Pool) *BooksRepository {
	return &BooksRepository{pool: pool}
}

const itemColumns = `
i.id, i.book_id, i.inventory_code, i.status, i.rack_location,
b.id, b.title, b.author, b.isbn, b.cover_url`

func (r *BooksRepository) GetItem(ctx context.Context, id int64) (domain.BookItem, error) {
	query := `
SELECT ` + itemColumns + `
FROM book_items i
JOIN books b ON b.id = i.book_id
WHERE i.id = $1`

	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.BookItem{}, domain.ErrItemNotFound
		}
		return domain.BookItem{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (r *BooksRepository) FindItemByInventoryCode(ctx context.Context, code string) (*domain.BookItem, error) {
	const query = `
SELECT id, book_id, inventory_code, status, rack_location
FROM book_items
WHERE inventory_code = $1`

	var i domain.BookItem
	err := r.pool.QueryRow(ctx, query, code).
		Scan(&i.ID, &i.BookID, &i.InventoryCode, &i.Status, &i.RackLocation)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find item by inventory code: %w", err)
	}
	return &i, nil
}

func (r *BooksRepository) CreateItem(ctx context.Context, item domain.BookItem) (domain.BookItem, error) {
	const stmt = `
INSERT INTO book_items (book_id, inventory_code, status, rack_location)
VALUES ($1, $2, $3, $4)
RETURNING id`

	err := r.pool.QueryRow(ctx, stmt,
		item.BookID,
		item.InventoryCode,
		item.Status,
		item.RackLocation,
	).Scan(&item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.BookItem{}, domain.ErrInventoryCodeTaken
		}
		if isForeignKeyViolation(err) {
			return domain.BookItem{}, domain.ErrBookNotFound
		}
		return domain.BookItem{}, fmt.Errorf("create item: %w", err)
	}
	return item, nil
}

func (r *BooksRepository) ListItems(ctx context.Context, bookID int64) ([]domain.BookItem, error) {
	query := `
SELECT ` + itemColumns + `
FROM book_items i
JOIN books b ON b.id = i.book_id`
	args := []any{}
	if bookID != 0 {
		query += ` WHERE i.book_id = $1`
		args = append(args, bookID)
	}
	query += ` ORDER BY i.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.BookItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (r *BooksRepository) UpdateItemStatus(ctx context.Context, id int64, status domain.ItemStatus) (domain.BookItem, error) {
	const stmt = `
UPDATE book_items
SET status = $2
WHERE id = $1
RETURNING id, book_id, inventory_code, status, rack_location`

	var i domain.BookItem
	err := r.pool.QueryRow(ctx, stmt, id, status).
		Scan(&i.ID, &i.BookID, &i.InventoryCode, &i.Status, &i.RackLocation)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.BookItem{}, domain.ErrItemNotFound
		}
		return domain.BookItem{}, fmt.Errorf("update item status: %w", err)
	}
	return i, nil
}

func (r *BooksRepository) GetBook(ctx context.Context, id int64) (domain.Book, error) {
	const query = `SELECT id, title, author, isbn, cover_url FROM books WHERE id = $1`

	var b domain.Book
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.CoverURL)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (r *BooksRepository) CreateBook(ctx context.Context, book domain.Book) (domain.Book, error) {
	const stmt = `
INSERT INTO books (title, author, isbn, cover_url)
VALUES ($1, $2, $3, $4)
RETURNING id`

	err := r.pool.QueryRow(ctx, stmt, book.Title, book.Author, book.ISBN, book.CoverURL).
		Scan(&book.ID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	return book, nil
}

func (r *BooksRepository) ListBooks(ctx context.Context) ([]domain.Book, error) {
	const query = `SELECT id, title, author, isbn, cover_url FROM books ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.CoverURL); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

func scanItem(row pgx.Row) (domain.BookItem, error) {
	var i domain.BookItem
	var b domain.Book
	err := row.Scan(
		&i.ID, &i.BookID, &i.InventoryCode, &i.Status, &i.RackLocation,
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.CoverURL,
	)
	if err != nil {
		return domain.BookItem{}, err
	}
	i.Book = &b
	return i, nil
}
