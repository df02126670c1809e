package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thisismondev/PUBA/internal/app"
	"github.com/thisismondev/PUBA/internal/domain"
)

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

func (r *LoanRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *LoanRepository) CreateLoan(ctx context.Context, loan domain.Loan) (domain.Loan, error) {
	const stmt = `
INSERT INTO loans (user_id, book_item_id, loan_date, due_date, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`

	err := r.queryRow(ctx, stmt,
		loan.UserID,
		loan.BookItemID,
		loan.LoanDate,
		loan.DueDate,
		loan.Status,
	).Scan(&loan.ID, &loan.CreatedAt)
	if err != nil {
		return domain.Loan{}, fmt.Errorf("create loan: %w", err)
	}
	return loan, nil
}

func (r *LoanRepository) GetLoan(ctx context.Context, id int64) (domain.Loan, error) {
	const query = `
SELECT id, user_id, book_item_id, loan_date, due_date, return_date, status, created_at
FROM loans
WHERE id = $1`

	var l domain.Loan
	err := r.queryRow(ctx, query, id).
		Scan(&l.ID, &l.UserID, &l.BookItemID, &l.LoanDate, &l.DueDate, &l.ReturnDate, &l.Status, &l.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Loan{}, domain.ErrLoanNotFound
		}
		return domain.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

const loanDetailColumns = `
l.id, l.user_id, l.book_item_id, l.loan_date, l.due_date, l.return_date, l.status, l.created_at,
f.id, f.loan_id, f.amount, f.is_paid, f.created_at`

func (r *LoanRepository) GetLoanDetail(ctx context.Context, id int64) (app.LoanDetail, error) {
	query := `
SELECT ` + loanDetailColumns + `
FROM loans l
LEFT JOIN fines f ON f.loan_id = l.id
WHERE l.id = $1`

	detail, err := scanLoanDetail(r.queryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return app.LoanDetail{}, domain.ErrLoanNotFound
		}
		return app.LoanDetail{}, fmt.Errorf("get loan detail: %w", err)
	}
	return detail, nil
}

func (r *LoanRepository) ListLoanDetails(ctx context.Context) ([]app.LoanDetail, error) {
	query := `
SELECT ` + loanDetailColumns + `
FROM loans l
LEFT JOIN fines f ON f.loan_id = l.id
ORDER BY l.created_at DESC`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()
	return collectLoanDetails(rows)
}

func (r *LoanRepository) ListLoanDetailsByUser(ctx context.Context, userID int64) ([]app.LoanDetail, error) {
	query := `
SELECT ` + loanDetailColumns + `
FROM loans l
LEFT JOIN fines f ON f.loan_id = l.id
WHERE l.user_id = $1
ORDER BY l.created_at DESC`

	rows, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user loans: %w", err)
	}
	defer rows.Close()
	return collectLoanDetails(rows)
}

func (r *LoanRepository) MarkLoanReturned(ctx context.Context, id int64, returnedAt time.Time) (domain.Loan, error) {
	const stmt = `
UPDATE loans
SET status = $2, return_date = $3
WHERE id = $1
RETURNING id, user_id, book_item_id, loan_date, due_date, return_date, status, created_at`

	var l domain.Loan
	err := r.queryRow(ctx, stmt, id, domain.LoanStatusReturned, returnedAt).
		Scan(&l.ID, &l.UserID, &l.BookItemID, &l.LoanDate, &l.DueDate, &l.ReturnDate, &l.Status, &l.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Loan{}, domain.ErrLoanNotFound
		}
		return domain.Loan{}, fmt.Errorf("mark loan returned: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) DeleteLoan(ctx context.Context, id int64) error {
	const stmt = `DELETE FROM loans WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

func (r *LoanRepository) FindFineByLoanID(ctx context.Context, loanID int64) (*domain.Fine, error) {
	const query = `SELECT id, loan_id, amount, is_paid, created_at FROM fines WHERE loan_id = $1`

	var f domain.Fine
	err := r.queryRow(ctx, query, loanID).
		Scan(&f.ID, &f.LoanID, &f.Amount, &f.IsPaid, &f.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find fine by loan: %w", err)
	}
	return &f, nil
}

func (r *LoanRepository) CreateFine(ctx context.Context, fine domain.Fine) (domain.Fine, error) {
	const stmt = `
INSERT INTO fines (loan_id, amount, is_paid)
VALUES ($1, $2, $3)
RETURNING id, created_at`

	err := r.queryRow(ctx, stmt, fine.LoanID, fine.Amount, fine.IsPaid).
		Scan(&fine.ID, &fine.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Fine{}, domain.ErrFineExists
		}
		return domain.Fine{}, fmt.Errorf("create fine: %w", err)
	}
	return fine, nil
}

func scanLoanDetail(row pgx.Row) (app.LoanDetail, error) {
	var d app.LoanDetail
	var fineID, fineLoanID, fineAmount *int64
	var fineIsPaid *bool
	var fineCreatedAt *time.Time

	err := row.Scan(
		&d.Loan.ID, &d.Loan.UserID, &d.Loan.BookItemID,
		&d.Loan.LoanDate, &d.Loan.DueDate, &d.Loan.ReturnDate,
		&d.Loan.Status, &d.Loan.CreatedAt,
		&fineID, &fineLoanID, &fineAmount, &fineIsPaid, &fineCreatedAt,
	)
	if err != nil {
		return app.LoanDetail{}, err
	}

	if fineID != nil {
		d.Fine = &domain.Fine{
			ID:        *fineID,
			LoanID:    *fineLoanID,
			Amount:    *fineAmount,
			IsPaid:    *fineIsPaid,
			CreatedAt: *fineCreatedAt,
		}
	}
	return d, nil
}

func collectLoanDetails(rows pgx.Rows) ([]app.LoanDetail, error) {
	details := make([]app.LoanDetail, 0)
	for rows.Next() {
		d, err := scanLoanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return details, nil
}

func (r *LoanRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *LoanRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *LoanRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
