package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thisismondev/PUBA/internal/clock"
	"github.com/thisismondev/PUBA/internal/domain"
)

// LoanRepository is the loans-service view of its own database.
type LoanRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateLoan(ctx context.Context, loan domain.Loan) (domain.Loan, error)
	GetLoan(ctx context.Context, id int64) (domain.Loan, error)
	GetLoanDetail(ctx context.Context, id int64) (LoanDetail, error)
	ListLoanDetails(ctx context.Context) ([]LoanDetail, error)
	ListLoanDetailsByUser(ctx context.Context, userID int64) ([]LoanDetail, error)
	MarkLoanReturned(ctx context.Context, id int64, returnedAt time.Time) (domain.Loan, error)
	DeleteLoan(ctx context.Context, id int64) error
	FindFineByLoanID(ctx context.Context, loanID int64) (*domain.Fine, error)
	CreateFine(ctx context.Context, fine domain.Fine) (domain.Fine, error)
}

// ItemClient reaches the books service, which owns book item status.
type ItemClient interface {
	GetItem(ctx context.Context, id int64) (domain.BookItem, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ItemStatus, credential string) error
}

type LoanService struct {
	repo             LoanRepository
	items            ItemClient
	clock            clock.Clock
	log              zerolog.Logger
	loanTerm         time.Duration
	dailyFineRate    int64
	systemCredential string
}

const (
	defaultLoanTerm      = 7 * day
	defaultDailyFineRate = 5000
)

func NewLoanService(repo LoanRepository, items ItemClient, clk clock.Clock, log zerolog.Logger, opts ...LoanServiceOption) *LoanService {
	svc := &LoanService{
		repo:          repo,
		items:         items,
		clock:         clk,
		log:           log,
		loanTerm:      defaultLoanTerm,
		dailyFineRate: defaultDailyFineRate,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type LoanServiceOption func(*LoanService)

// WithLoanTerm overrides the default borrowing period.
func WithLoanTerm(d time.Duration) LoanServiceOption {
	return func(s *LoanService) {
		if d > 0 {
			s.loanTerm = d
		}
	}
}

// WithDailyFineRate overrides the per-day overdue fine amount.
func WithDailyFineRate(rate int64) LoanServiceOption {
	return func(s *LoanService) {
		if rate > 0 {
			s.dailyFineRate = rate
		}
	}
}

// WithSystemCredential sets the service-level token used for calls to the
// books service. When set it takes precedence over the caller's token.
func WithSystemCredential(token string) LoanServiceOption {
	return func(s *LoanService) {
		s.systemCredential = token
	}
}

type BorrowInput struct {
	UserID     int64
	BookItemID int64
	Credential string
}

// LoanDetail pairs a loan with its fine, if one exists.
type LoanDetail struct {
	Loan domain.Loan
	Fine *domain.Fine
}

// Borrow runs the borrow workflow: verify the item is available at the books
// service, create the loan locally, then flip the remote item to borrowed.
// When the remote update fails the local loan is deleted again so the item
// stays borrowable.
func (s *LoanService) Borrow(ctx context.Context, in BorrowInput) (LoanDetail, error) {
	item, err := s.items.GetItem(ctx, in.BookItemID)
	if err != nil {
		return LoanDetail{}, err
	}
	if item.Status != domain.ItemStatusAvailable {
		return LoanDetail{}, domain.ErrItemNotAvailable
	}

	now := s.clock.Now()
	loan, err := s.repo.CreateLoan(ctx, domain.Loan{
		UserID:     in.UserID,
		BookItemID: in.BookItemID,
		LoanDate:   now,
		DueDate:    now.Add(s.loanTerm),
		Status:     domain.LoanStatusActive,
	})
	if err != nil {
		return LoanDetail{}, fmt.Errorf("create loan: %w", err)
	}

	if err := s.markItemBorrowed(ctx, loan, in.Credential); err != nil {
		s.log.Warn().Int64("loan_id", loan.ID).Err(err).Msg("remote status update failed, rolling back loan")
		s.cancelLoan(ctx, loan)
		return LoanDetail{}, domain.ErrStatusUpdateFailed
	}

	return s.repo.GetLoanDetail(ctx, loan.ID)
}

func (s *LoanService) markItemBorrowed(ctx context.Context, loan domain.Loan, callerCredential string) error {
	cred, err := s.resolveCredential(callerCredential)
	if err != nil {
		return err
	}
	return s.items.UpdateStatus(ctx, loan.BookItemID, domain.ItemStatusBorrowed, cred)
}

// cancelLoan is the compensating action for a failed borrow. It runs on a
// context detached from the caller so a client disconnect cannot abort it.
// A failure here leaves an active loan with no borrowed item and is flagged
// for manual operator reconciliation.
func (s *LoanService) cancelLoan(ctx context.Context, loan domain.Loan) {
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.DeleteLoan(ctx, loan.ID); err != nil {
		s.log.Error().
			Bool("manual_intervention", true).
			Int64("loan_id", loan.ID).
			Int64("book_item_id", loan.BookItemID).
			Err(err).
			Msg("compensation failed: orphaned active loan")
		return
	}
	s.log.Info().Int64("loan_id", loan.ID).Msg("loan rolled back")
}

func (s *LoanService) resolveCredential(callerCredential string) (string, error) {
	if s.systemCredential != "" {
		return s.systemCredential, nil
	}
	if callerCredential != "" {
		return callerCredential, nil
	}
	return "", domain.ErrNoCredential
}

type ReturnInput struct {
	LoanID     int64
	Credential string
}

// FineInfo reports the fine attached to a return, and whether this return
// created it or it already existed.
type FineInfo struct {
	Amount   int64
	DaysLate int
	Created  bool
}

type ReturnResult struct {
	Loan domain.Loan
	Fine *FineInfo
}

// Return marks a loan returned, then best-effort flips the remote item back
// to available and computes the overdue fine. The local return is
// authoritative: a failed remote update is logged for follow-up, never rolled
// back, since the book is physically back on the shelf either way.
func (s *LoanService) Return(ctx context.Context, in ReturnInput) (ReturnResult, error) {
	loan, err := s.repo.GetLoan(ctx, in.LoanID)
	if err != nil {
		return ReturnResult{}, err
	}
	if loan.Status == domain.LoanStatusReturned {
		return ReturnResult{}, domain.ErrLoanAlreadyReturned
	}

	now := s.clock.Now()
	updated, err := s.repo.MarkLoanReturned(ctx, loan.ID, now)
	if err != nil {
		return ReturnResult{}, fmt.Errorf("mark loan returned: %w", err)
	}

	s.releaseItem(ctx, loan, in.Credential)

	fine, err := s.settleFine(ctx, updated, now)
	if err != nil {
		return ReturnResult{}, err
	}

	return ReturnResult{Loan: updated, Fine: fine}, nil
}

func (s *LoanService) releaseItem(ctx context.Context, loan domain.Loan, callerCredential string) {
	cred, err := s.resolveCredential(callerCredential)
	if err == nil {
		err = s.items.UpdateStatus(ctx, loan.BookItemID, domain.ItemStatusAvailable, cred)
	}
	if err != nil {
		s.log.Error().
			Int64("loan_id", loan.ID).
			Int64("book_item_id", loan.BookItemID).
			Err(err).
			Msg("item not released at books service, manual follow-up required")
	}
}

// settleFine creates the overdue fine exactly once. The find and create run
// in one transaction and the loan_id unique constraint backs it up against a
// concurrent return on the same loan.
func (s *LoanService) settleFine(ctx context.Context, loan domain.Loan, returnedAt time.Time) (*FineInfo, error) {
	decision := ComputeFine(loan.DueDate, returnedAt, s.dailyFineRate)
	if !decision.Overdue {
		return nil, nil
	}

	var info FineInfo
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindFineByLoanID(txCtx, loan.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			info = FineInfo{Amount: existing.Amount, DaysLate: decision.DaysLate, Created: false}
			return nil
		}

		fine, err := s.repo.CreateFine(txCtx, domain.Fine{
			LoanID: loan.ID,
			Amount: decision.Amount,
			IsPaid: false,
		})
		if err != nil {
			if errors.Is(err, domain.ErrFineExists) {
				existing, err := s.repo.FindFineByLoanID(txCtx, loan.ID)
				if err != nil {
					return err
				}
				if existing != nil {
					info = FineInfo{Amount: existing.Amount, DaysLate: decision.DaysLate, Created: false}
					return nil
				}
			}
			return err
		}

		info = FineInfo{Amount: fine.Amount, DaysLate: decision.DaysLate, Created: true}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settle fine: %w", err)
	}
	return &info, nil
}

// GetLoan returns one loan with its fine.
func (s *LoanService) GetLoan(ctx context.Context, id int64) (LoanDetail, error) {
	return s.repo.GetLoanDetail(ctx, id)
}

// ListUserLoans returns the borrowing history of one user, newest first.
func (s *LoanService) ListUserLoans(ctx context.Context, userID int64) ([]LoanDetail, error) {
	return s.repo.ListLoanDetailsByUser(ctx, userID)
}

// ListLoans returns every loan, newest first.
func (s *LoanService) ListLoans(ctx context.Context) ([]LoanDetail, error) {
	return s.repo.ListLoanDetails(ctx)
}
