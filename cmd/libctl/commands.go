package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/thisismondev/PUBA/internal/app"
	"github.com/thisismondev/PUBA/internal/books"
	"github.com/thisismondev/PUBA/internal/domain"
	"github.com/thisismondev/PUBA/internal/storage/postgres"
)

const commandTimeout = 30 * time.Second

func newLoansCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			pool, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			details, err := listLoans(ctx, repo, userID)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			for _, d := range details {
				line := fmt.Sprintf("loan %d user=%d item=%d status=%s due=%s",
					d.Loan.ID, d.Loan.UserID, d.Loan.BookItemID,
					d.Loan.DerivedStatus(now), d.Loan.DueDate.Format(time.RFC3339))
				if d.Fine != nil {
					line += fmt.Sprintf(" fine=%d paid=%t", d.Fine.Amount, d.Fine.IsPaid)
				}
				cmd.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "only loans for this user id")
	return cmd
}

func newFinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fines",
		Short: "Inspect and settle fines",
	}
	cmd.AddCommand(newFinesListCmd(), newFinesPayCmd())
	return cmd
}

func newFinesListCmd() *cobra.Command {
	var unpaidOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			query := `SELECT id, loan_id, amount, is_paid, created_at FROM fines`
			if unpaidOnly {
				query += ` WHERE is_paid = FALSE`
			}
			query += ` ORDER BY created_at DESC`

			rows, err := pool.Query(ctx, query)
			if err != nil {
				return fmt.Errorf("list fines: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				var f domain.Fine
				if err := rows.Scan(&f.ID, &f.LoanID, &f.Amount, &f.IsPaid, &f.CreatedAt); err != nil {
					return fmt.Errorf("scan fine: %w", err)
				}
				cmd.Printf("fine %d loan=%d amount=%d paid=%t\n", f.ID, f.LoanID, f.Amount, f.IsPaid)
			}
			return rows.Err()
		},
	}
	cmd.Flags().BoolVar(&unpaidOnly, "unpaid", false, "only unpaid fines")
	return cmd
}

func newFinesPayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pay <fine-id>",
		Short: "Mark a fine as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fineID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || fineID <= 0 {
				return errors.New("fine id must be a positive number")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tag, err := pool.Exec(ctx, `UPDATE fines SET is_paid = TRUE WHERE id = $1`, fineID)
			if err != nil {
				return fmt.Errorf("pay fine: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrFineNotFound
			}
			cmd.Printf("fine %d marked paid\n", fineID)
			return nil
		},
	}
}

// newReconcileCmd cross-checks every active loan against the books service.
// An active loan whose item is not borrowed is exactly the inconsistency a
// failed compensation leaves behind.
func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Find active loans whose book item is not marked borrowed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			pool, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			details, err := repo.ListLoanDetails(ctx)
			if err != nil {
				return err
			}

			client := books.NewClient(booksURL)
			drifted := 0
			for _, d := range details {
				if d.Loan.Status != domain.LoanStatusActive {
					continue
				}
				item, err := client.GetItem(ctx, d.Loan.BookItemID)
				if err != nil {
					cmd.Printf("loan %d: cannot check item %d: %v\n", d.Loan.ID, d.Loan.BookItemID, err)
					continue
				}
				if item.Status != domain.ItemStatusBorrowed {
					drifted++
					cmd.Printf("loan %d: active but item %d is %q\n", d.Loan.ID, d.Loan.BookItemID, item.Status)
				}
			}
			if drifted == 0 {
				cmd.Println("no drift found")
			}
			return nil
		},
	}
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("--database-url or DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func openRepo(ctx context.Context) (*pgxpool.Pool, *postgres.LoanRepository, error) {
	pool, err := openPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pool, postgres.NewLoanRepository(pool), nil
}

func listLoans(ctx context.Context, repo *postgres.LoanRepository, userID int64) ([]app.LoanDetail, error) {
	if userID > 0 {
		return repo.ListLoanDetailsByUser(ctx, userID)
	}
	return repo.ListLoanDetails(ctx)
}
