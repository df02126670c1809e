package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thisismondev/PUBA/internal/clock"
	"github.com/thisismondev/PUBA/internal/domain"
)

func TestLoanService_Borrow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

	makeSvc := func(repo *fakeLoanRepo, items *fakeItemClient, opts ...LoanServiceOption) *LoanService {
		return NewLoanService(repo, items, clock.NewFixed(now), zerolog.Nop(), opts...)
	}

	t.Run("borrows an available item", func(t *testing.T) {
		repo := newFakeLoanRepo()
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusAvailable})
		svc := makeSvc(repo, items, WithSystemCredential("system-token"))

		detail, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 42, Credential: "caller-token"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if detail.Loan.Status != domain.LoanStatusActive {
			t.Fatalf("expected status %s, got %s", domain.LoanStatusActive, detail.Loan.Status)
		}
		if got, want := detail.Loan.DueDate, now.Add(7*24*time.Hour); !got.Equal(want) {
			t.Fatalf("expected due date %v, got %v", want, got)
		}
		if len(repo.loans) != 1 {
			t.Fatalf("expected 1 loan in repo, got %d", len(repo.loans))
		}
		if len(items.updates) != 1 {
			t.Fatalf("expected 1 status update, got %d", len(items.updates))
		}
		update := items.updates[0]
		if update.itemID != 42 || update.status != domain.ItemStatusBorrowed {
			t.Fatalf("unexpected status update: %+v", update)
		}
		if update.credential != "system-token" {
			t.Fatalf("expected system credential, got %q", update.credential)
		}
	})

	t.Run("forwards caller token when no system credential", func(t *testing.T) {
		repo := newFakeLoanRepo()
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusAvailable})
		svc := makeSvc(repo, items)

		if _, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 42, Credential: "caller-token"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if items.updates[0].credential != "caller-token" {
			t.Fatalf("expected forwarded caller token, got %q", items.updates[0].credential)
		}
	})

	t.Run("rejects item that is not available", func(t *testing.T) {
		repo := newFakeLoanRepo()
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusBorrowed})
		svc := makeSvc(repo, items, WithSystemCredential("system-token"))

		_, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 42})
		if err != domain.ErrItemNotAvailable {
			t.Fatalf("expected ErrItemNotAvailable, got %v", err)
		}
		if len(repo.loans) != 0 {
			t.Fatalf("expected no loan created, got %d", len(repo.loans))
		}
		if len(items.updates) != 0 {
			t.Fatalf("expected no status update, got %d", len(items.updates))
		}
	})

	t.Run("item not found", func(t *testing.T) {
		repo := newFakeLoanRepo()
		items := newFakeItemClient()
		svc := makeSvc(repo, items, WithSystemCredential("system-token"))

		_, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 99})
		if err != domain.ErrItemNotFound {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
		if len(repo.loans) != 0 {
			t.Fatalf("expected no loan created, got %d", len(repo.loans))
		}
	})

	t.Run("unreachable books service fails the availability check", func(t *testing.T) {
		repo := newFakeLoanRepo()
		items := newFakeItemClient()
		items.getErr = domain.ErrBooksUnavailable
		svc := makeSvc(repo, items, WithSystemCredential("system-token"))

		_, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 42})
		if err != domain.ErrBooksUnavailable {
			t.Fatalf("expected ErrBooksUnavailable, got %v", err)
		}
		if len(repo.loans) != 0 {
			t.Fatalf("expected no loan created, got %d", len(repo.loans))
		}
	})

	t.Run("rolls back loan when remote update fails", func(t *testing.T) {
		repo := newFakeLoanRepo()
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusAvailable})
		items.updateErr = domain.ErrBooksUnavailable
		svc := makeSvc(repo, items, WithSystemCredential("system-token"))

		_, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 42})
		if err != domain.ErrStatusUpdateFailed {
			t.Fatalf("expected ErrStatusUpdateFailed, got %v", err)
		}
		if len(repo.loans) != 0 {
			t.Fatalf("expected loan to be rolled back, got %d loans", len(repo.loans))
		}
		if repo.deletes != 1 {
			t.Fatalf("expected 1 compensating delete, got %d", repo.deletes)
		}
	})

	t.Run("missing credential counts as remote failure", func(t *testing.T) {
		repo := newFakeLoanRepo()
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusAvailable})
		svc := makeSvc(repo, items)

		_, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 42, Credential: ""})
		if err != domain.ErrStatusUpdateFailed {
			t.Fatalf("expected ErrStatusUpdateFailed, got %v", err)
		}
		if len(items.updates) != 0 {
			t.Fatalf("expected no remote call without credential, got %d", len(items.updates))
		}
		if len(repo.loans) != 0 {
			t.Fatalf("expected loan to be rolled back, got %d loans", len(repo.loans))
		}
	})

	t.Run("keeps loan when compensation also fails", func(t *testing.T) {
		repo := newFakeLoanRepo()
		repo.deleteErr = errors.New("db down")
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusAvailable})
		items.updateErr = domain.ErrBooksUnavailable
		svc := makeSvc(repo, items, WithSystemCredential("system-token"))

		_, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 42})
		if err != domain.ErrStatusUpdateFailed {
			t.Fatalf("expected ErrStatusUpdateFailed, got %v", err)
		}
		// The documented inconsistency: an active loan with no borrowed item.
		if len(repo.loans) != 1 {
			t.Fatalf("expected orphaned loan to remain, got %d loans", len(repo.loans))
		}
	})

	t.Run("local create failure touches nothing remote", func(t *testing.T) {
		repo := newFakeLoanRepo()
		repo.createErr = errors.New("db down")
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusAvailable})
		svc := makeSvc(repo, items, WithSystemCredential("system-token"))

		_, err := svc.Borrow(context.Background(), BorrowInput{UserID: 7, BookItemID: 42})
		if err == nil {
			t.Fatalf("expected error")
		}
		if len(items.updates) != 0 {
			t.Fatalf("expected no status update after local failure, got %d", len(items.updates))
		}
	})
}

func TestLoanService_Return(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

	makeSvc := func(repo *fakeLoanRepo, items *fakeItemClient) *LoanService {
		return NewLoanService(repo, items, clock.NewFixed(now), zerolog.Nop(),
			WithSystemCredential("system-token"),
		)
	}

	activeLoan := func(due time.Time) domain.Loan {
		return domain.Loan{
			ID:         1,
			UserID:     7,
			BookItemID: 42,
			LoanDate:   due.Add(-7 * 24 * time.Hour),
			DueDate:    due,
			Status:     domain.LoanStatusActive,
		}
	}

	t.Run("returns on time without fine", func(t *testing.T) {
		repo := newFakeLoanRepo(activeLoan(now.Add(24 * time.Hour)))
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusBorrowed})
		svc := makeSvc(repo, items)

		res, err := svc.Return(context.Background(), ReturnInput{LoanID: 1})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Fine != nil {
			t.Fatalf("expected no fine, got %+v", res.Fine)
		}
		if res.Loan.Status != domain.LoanStatusReturned {
			t.Fatalf("expected status returned, got %s", res.Loan.Status)
		}
		if res.Loan.ReturnDate == nil || !res.Loan.ReturnDate.Equal(now) {
			t.Fatalf("expected return date %v, got %v", now, res.Loan.ReturnDate)
		}
		if len(items.updates) != 1 || items.updates[0].status != domain.ItemStatusAvailable {
			t.Fatalf("expected item released, got %+v", items.updates)
		}
	})

	t.Run("creates fine when overdue", func(t *testing.T) {
		repo := newFakeLoanRepo(activeLoan(now.Add(-3 * 24 * time.Hour)))
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusBorrowed})
		svc := makeSvc(repo, items)

		res, err := svc.Return(context.Background(), ReturnInput{LoanID: 1})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Fine == nil {
			t.Fatalf("expected a fine")
		}
		if res.Fine.Amount != 15000 {
			t.Fatalf("expected fine amount 15000, got %d", res.Fine.Amount)
		}
		if res.Fine.DaysLate != 3 {
			t.Fatalf("expected 3 days late, got %d", res.Fine.DaysLate)
		}
		if !res.Fine.Created {
			t.Fatalf("expected fine to be newly created")
		}
		if len(repo.fines) != 1 {
			t.Fatalf("expected 1 fine persisted, got %d", len(repo.fines))
		}
	})

	t.Run("does not duplicate an existing fine", func(t *testing.T) {
		loan := activeLoan(now.Add(-3 * 24 * time.Hour))
		repo := newFakeLoanRepo(loan)
		repo.fines[loan.ID] = domain.Fine{ID: 10, LoanID: loan.ID, Amount: 15000}
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusBorrowed})
		svc := makeSvc(repo, items)

		res, err := svc.Return(context.Background(), ReturnInput{LoanID: 1})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Fine == nil || res.Fine.Created {
			t.Fatalf("expected existing fine to be reported, got %+v", res.Fine)
		}
		if res.Fine.Amount != 15000 {
			t.Fatalf("expected amount 15000, got %d", res.Fine.Amount)
		}
		if len(repo.fines) != 1 {
			t.Fatalf("expected fine count unchanged, got %d", len(repo.fines))
		}
	})

	t.Run("losing the fine insert race reports the winner's fine", func(t *testing.T) {
		repo := newFakeLoanRepo(activeLoan(now.Add(-3 * 24 * time.Hour)))
		repo.createFineErr = fmt.Errorf("create fine: %w", domain.ErrFineExists)
		repo.raceFine = &domain.Fine{ID: 10, LoanID: 1, Amount: 15000}
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusBorrowed})
		svc := makeSvc(repo, items)

		res, err := svc.Return(context.Background(), ReturnInput{LoanID: 1})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Fine == nil || res.Fine.Created {
			t.Fatalf("expected the concurrently created fine to be reported, got %+v", res.Fine)
		}
		if res.Fine.Amount != 15000 {
			t.Fatalf("expected amount 15000, got %d", res.Fine.Amount)
		}
	})

	t.Run("already returned loan is rejected", func(t *testing.T) {
		returned := activeLoan(now.Add(-24 * time.Hour))
		returnedAt := now.Add(-time.Hour)
		returned.Status = domain.LoanStatusReturned
		returned.ReturnDate = &returnedAt
		repo := newFakeLoanRepo(returned)
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusAvailable})
		svc := makeSvc(repo, items)

		_, err := svc.Return(context.Background(), ReturnInput{LoanID: 1})
		if err != domain.ErrLoanAlreadyReturned {
			t.Fatalf("expected ErrLoanAlreadyReturned, got %v", err)
		}
		if len(items.updates) != 0 {
			t.Fatalf("expected no status update, got %d", len(items.updates))
		}
		if got := repo.loans[1].ReturnDate; !got.Equal(returnedAt) {
			t.Fatalf("expected return date unchanged, got %v", got)
		}
	})

	t.Run("loan not found", func(t *testing.T) {
		repo := newFakeLoanRepo()
		svc := makeSvc(repo, newFakeItemClient())

		_, err := svc.Return(context.Background(), ReturnInput{LoanID: 99})
		if err != domain.ErrLoanNotFound {
			t.Fatalf("expected ErrLoanNotFound, got %v", err)
		}
	})

	t.Run("remote failure does not roll back the return", func(t *testing.T) {
		repo := newFakeLoanRepo(activeLoan(now.Add(-3 * 24 * time.Hour)))
		items := newFakeItemClient(domain.BookItem{ID: 42, Status: domain.ItemStatusBorrowed})
		items.updateErr = domain.ErrBooksUnavailable
		svc := makeSvc(repo, items)

		res, err := svc.Return(context.Background(), ReturnInput{LoanID: 1})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Loan.Status != domain.LoanStatusReturned {
			t.Fatalf("expected loan returned despite remote failure, got %s", res.Loan.Status)
		}
		if res.Fine == nil || res.Fine.Amount != 15000 {
			t.Fatalf("expected fine computed despite remote failure, got %+v", res.Fine)
		}
	})
}

type statusUpdate struct {
	itemID     int64
	status     domain.ItemStatus
	credential string
}

type fakeItemClient struct {
	items     map[int64]domain.BookItem
	updates   []statusUpdate
	getErr    error
	updateErr error
}

func newFakeItemClient(items ...domain.BookItem) *fakeItemClient {
	m := make(map[int64]domain.BookItem)
	for _, item := range items {
		m[item.ID] = item
	}
	return &fakeItemClient{items: m}
}

func (f *fakeItemClient) GetItem(_ context.Context, id int64) (domain.BookItem, error) {
	if f.getErr != nil {
		return domain.BookItem{}, f.getErr
	}
	item, ok := f.items[id]
	if !ok {
		return domain.BookItem{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeItemClient) UpdateStatus(_ context.Context, id int64, status domain.ItemStatus, credential string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, statusUpdate{itemID: id, status: status, credential: credential})
	item := f.items[id]
	item.Status = status
	f.items[id] = item
	return nil
}

type fakeLoanRepo struct {
	loans         map[int64]domain.Loan
	fines         map[int64]domain.Fine
	nextID        int64
	deletes       int
	createErr     error
	deleteErr     error
	createFineErr error
	raceFine      *domain.Fine
}

func newFakeLoanRepo(loans ...domain.Loan) *fakeLoanRepo {
	repo := &fakeLoanRepo{
		loans: make(map[int64]domain.Loan),
		fines: make(map[int64]domain.Fine),
	}
	for _, loan := range loans {
		repo.loans[loan.ID] = loan
		if loan.ID > repo.nextID {
			repo.nextID = loan.ID
		}
	}
	return repo
}

func (f *fakeLoanRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeLoanRepo) CreateLoan(_ context.Context, loan domain.Loan) (domain.Loan, error) {
	if f.createErr != nil {
		return domain.Loan{}, f.createErr
	}
	f.nextID++
	loan.ID = f.nextID
	loan.CreatedAt = loan.LoanDate
	f.loans[loan.ID] = loan
	return loan, nil
}

func (f *fakeLoanRepo) GetLoan(_ context.Context, id int64) (domain.Loan, error) {
	loan, ok := f.loans[id]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	return loan, nil
}

func (f *fakeLoanRepo) GetLoanDetail(ctx context.Context, id int64) (LoanDetail, error) {
	loan, err := f.GetLoan(ctx, id)
	if err != nil {
		return LoanDetail{}, err
	}
	detail := LoanDetail{Loan: loan}
	if fine, ok := f.fines[id]; ok {
		detail.Fine = &fine
	}
	return detail, nil
}

func (f *fakeLoanRepo) ListLoanDetails(ctx context.Context) ([]LoanDetail, error) {
	details := make([]LoanDetail, 0, len(f.loans))
	for id := range f.loans {
		d, err := f.GetLoanDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (f *fakeLoanRepo) ListLoanDetailsByUser(ctx context.Context, userID int64) ([]LoanDetail, error) {
	details, err := f.ListLoanDetails(ctx)
	if err != nil {
		return nil, err
	}
	out := details[:0]
	for _, d := range details {
		if d.Loan.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeLoanRepo) MarkLoanReturned(_ context.Context, id int64, returnedAt time.Time) (domain.Loan, error) {
	loan, ok := f.loans[id]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	loan.Status = domain.LoanStatusReturned
	loan.ReturnDate = &returnedAt
	f.loans[id] = loan
	return loan, nil
}

func (f *fakeLoanRepo) DeleteLoan(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.loans[id]; !ok {
		return domain.ErrLoanNotFound
	}
	delete(f.loans, id)
	f.deletes++
	return nil
}

func (f *fakeLoanRepo) FindFineByLoanID(_ context.Context, loanID int64) (*domain.Fine, error) {
	fine, ok := f.fines[loanID]
	if !ok {
		return nil, nil
	}
	return &fine, nil
}

func (f *fakeLoanRepo) CreateFine(_ context.Context, fine domain.Fine) (domain.Fine, error) {
	if f.createFineErr != nil {
		// Simulates losing an insert race: the error surfaces and the row
		// from the concurrent writer becomes visible for the re-read.
		if f.raceFine != nil {
			f.fines[f.raceFine.LoanID] = *f.raceFine
		}
		return domain.Fine{}, f.createFineErr
	}
	if _, ok := f.fines[fine.LoanID]; ok {
		return domain.Fine{}, domain.ErrFineExists
	}
	f.nextID++
	fine.ID = f.nextID
	f.fines[fine.LoanID] = fine
	return fine, nil
}
