// Package loans implements the loan lifecycle: creation, renewal, return and
// the overdue sweep. State transitions are status-guarded writes so that a
// concurrent scan and return of the same loan cannot both apply; whichever
// lands first wins.
package loans

import (
	"errors"
	"log"
	"time"

	"librarysystem/pkg/catalog"
	"librarysystem/pkg/models"
	"librarysystem/pkg/patron"

	"github.com/google/uuid"
)

const (
	// MaxLoansPerPatron is the borrowing limit counted over ACTIVE and
	// RENEWED loans.
	MaxLoansPerPatron = 5

	// DefaultLoanDays is the loan period applied when no due date is given.
	DefaultLoanDays = 14
)

type Service struct {
	loans   Store
	catalog catalog.Store
	patrons patron.Store
	now     func() time.Time
}

func NewService(loans Store, cat catalog.Store, patrons patron.Store) *Service {
	return &Service{
		loans:   loans,
		catalog: cat,
		patrons: patrons,
		now:     time.Now,
	}
}

// CreateLoan checks out a copy of a book to a patron. Preconditions are
// validated in order: patron exists and is active, borrowing limit, no
// duplicate loan of the same book, copy availability. The inventory
// reservation is compensated with a Release if the record insert fails.
func (s *Service) CreateLoan(bookUid, patronUid string, dueDate *time.Time, notes string) (*models.Loan, error) {
	p, err := s.patrons.GetPatron(patronUid)
	if err != nil {
		if errors.Is(err, patron.ErrNotFound) {
			return nil, notFound(CodePatronNotFound, "patron not found")
		}
		return nil, err
	}
	if !p.Active {
		return nil, businessRule(CodePatronInactive, "patron account is inactive")
	}

	count, err := s.loans.CountActive(patronUid)
	if err != nil {
		return nil, err
	}
	if count >= MaxLoansPerPatron {
		return nil, businessRule(CodeLoanLimitExceeded, "patron has reached the maximum loan limit")
	}

	duplicate, err := s.loans.HasActiveLoan(patronUid, bookUid)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, businessRule(CodeDuplicateLoan, "patron already has an active loan for this book")
	}

	now := s.now()
	due := now.AddDate(0, 0, DefaultLoanDays)
	if dueDate != nil {
		if !dueDate.After(now) {
			return nil, validation(CodeInvalidDueDate, "due date must be in the future")
		}
		due = *dueDate
	}

	exists, err := s.catalog.ItemExists(bookUid)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, businessRule(CodeItemUnavailable, "book is not available for loan")
	}

	reserved, err := s.catalog.TryReserve(bookUid)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, businessRule(CodeItemUnavailable, "no available copies of this book")
	}

	loan := &models.Loan{
		LoanUid:   uuid.New().String(),
		BookUid:   bookUid,
		PatronUid: patronUid,
		Status:    models.LoanStatusActive,
		LoanDate:  now,
		DueDate:   due,
		Notes:     notes,
	}
	if err := s.loans.CreateChecked(loan, MaxLoansPerPatron); err != nil {
		// Compensate: the copy was reserved but no record exists for it.
		if relErr := s.catalog.Release(bookUid); relErr != nil {
			log.Printf("failed to release reservation for book %s: %v", bookUid, relErr)
		}
		var lerr *Error
		if errors.As(err, &lerr) {
			return nil, err
		}
		return nil, consistency("failed to persist loan record: " + err.Error())
	}
	return loan, nil
}

// ReturnLoan closes an open loan: sets the return date, finalizes the fine
// against the return date and puts the copy back into the inventory. A loan
// already RETURNED yields LoanNotActive and the inventory is untouched.
func (s *Service) ReturnLoan(loanUid string) (*models.Loan, error) {
	loan, err := s.loans.ByUid(loanUid)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fine := CalculateFine(loan.DueDate, now)
	applied, err := s.loans.ApplyIf(loanUid, openStatuses, Transition{
		Status:     models.LoanStatusReturned,
		ReturnDate: &now,
		FineAmount: &fine,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, businessRule(CodeLoanNotActive, "loan is not active and cannot be returned")
	}

	if err := s.catalog.Release(loan.BookUid); err != nil {
		return nil, consistency("loan returned but copy release failed: " + err.Error())
	}
	return s.loans.ByUid(loanUid)
}

// RenewLoan extends an ACTIVE loan to newDueDate. Overdue loans must be
// returned, not renewed, and a loan renews at most once.
func (s *Service) RenewLoan(loanUid string, newDueDate time.Time) (*models.Loan, error) {
	if _, err := s.loans.ByUid(loanUid); err != nil {
		return nil, err
	}
	if !newDueDate.After(s.now()) {
		return nil, validation(CodeInvalidDueDate, "due date must be in the future")
	}

	applied, err := s.loans.ApplyIf(loanUid, []string{models.LoanStatusActive}, Transition{
		Status:  models.LoanStatusRenewed,
		DueDate: &newDueDate,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, businessRule(CodeLoanNotRenewable, "only active loans can be renewed")
	}
	return s.loans.ByUid(loanUid)
}

// OverdueLoans sweeps open loans past their due date into OVERDUE, recomputes
// fines against the current date and returns the overdue set. The sweep is
// idempotent: re-running it without time passing changes nothing. A failure
// on one loan is logged and does not abort the rest of the batch.
func (s *Service) OverdueLoans() ([]models.Loan, error) {
	now := s.now()
	candidates, err := s.loans.DueBefore(startOfDay(now))
	if err != nil {
		return nil, err
	}

	for _, loan := range candidates {
		fine := CalculateFine(loan.DueDate, now)
		if loan.Status == models.LoanStatusOverdue && loan.FineAmount == fine {
			continue
		}
		if _, err := s.loans.ApplyIf(loan.LoanUid, openStatuses, Transition{
			Status:     models.LoanStatusOverdue,
			FineAmount: &fine,
		}); err != nil {
			log.Printf("overdue sweep: failed to update loan %s: %v", loan.LoanUid, err)
		}
	}

	return s.loans.ByStatus(models.LoanStatusOverdue)
}

// LoansDueWithin lists ACTIVE and RENEWED loans due between today and
// today+days. Read-only.
func (s *Service) LoansDueWithin(days int) ([]models.Loan, error) {
	from := startOfDay(s.now())
	to := from.AddDate(0, 0, days+1).Add(-time.Nanosecond)
	return s.loans.DueBetween(from, to)
}

func (s *Service) LoansByPatron(patronUid string) ([]models.Loan, error) {
	return s.loans.ByPatron(patronUid)
}

func (s *Service) LoansByItem(bookUid string) ([]models.Loan, error) {
	return s.loans.ByItem(bookUid)
}

func (s *Service) LoansByStatus(status string) ([]models.Loan, error) {
	return s.loans.ByStatus(status)
}

func (s *Service) ActiveLoanCount(patronUid string) (int64, error) {
	return s.loans.CountActive(patronUid)
}

func (s *Service) CanBorrowMore(patronUid string) (bool, error) {
	count, err := s.loans.CountActive(patronUid)
	if err != nil {
		return false, err
	}
	return count < MaxLoansPerPatron, nil
}

// DeleteLoan removes a record unconditionally for data correction. It does
// not adjust inventory and bypasses the state machine.
func (s *Service) DeleteLoan(loanUid string) error {
	deleted, err := s.loans.Delete(loanUid)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound(CodeLoanNotFound, "loan not found")
	}
	return nil
}
