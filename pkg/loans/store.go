package loans

import (
	"errors"
	"time"

	"librarysystem/pkg/models"

	"gorm.io/gorm"
)

// Transition describes a status-guarded update. Only non-nil fields are
// written; Status is always written.
type Transition struct {
	Status     string
	DueDate    *time.Time
	ReturnDate *time.Time
	FineAmount *float64
}

type Store interface {
	// CreateChecked re-verifies the borrowing limit and the per-(patron, book)
	// uniqueness inside one transactional boundary before inserting, so two
	// concurrent creations cannot both slip past the checks.
	CreateChecked(loan *models.Loan, limit int) error

	ByUid(loanUid string) (*models.Loan, error)
	ByPatron(patronUid string) ([]models.Loan, error)
	ByItem(bookUid string) ([]models.Loan, error)
	ByStatus(status string) ([]models.Loan, error)

	// DueBefore lists open loans (ACTIVE, RENEWED or OVERDUE) whose due date
	// falls strictly before cutoff.
	DueBefore(cutoff time.Time) ([]models.Loan, error)

	// DueBetween lists ACTIVE and RENEWED loans due in [from, to].
	DueBetween(from, to time.Time) ([]models.Loan, error)

	CountActive(patronUid string) (int64, error)
	HasActiveLoan(patronUid, bookUid string) (bool, error)

	// ApplyIf writes the transition only when the loan's current status is one
	// of from, and reports whether the write landed. A concurrent writer that
	// got there first makes this a no-op.
	ApplyIf(loanUid string, from []string, tr Transition) (bool, error)

	// Delete removes the record unconditionally and reports whether it existed.
	Delete(loanUid string) (bool, error)
}

// openStatuses are the statuses under which a copy is still out with a patron.
var openStatuses = []string{models.LoanStatusActive, models.LoanStatusRenewed, models.LoanStatusOverdue}

// activeStatuses count against the borrowing limit and the duplicate rule.
var activeStatuses = []string{models.LoanStatusActive, models.LoanStatusRenewed}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateChecked(loan *models.Loan, limit int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Loan{}).
			Where("patron_uid = ? AND status IN ?", loan.PatronUid, activeStatuses).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count >= int64(limit) {
			return businessRule(CodeLoanLimitExceeded, "patron has reached the maximum loan limit")
		}

		var dup int64
		err = tx.Model(&models.Loan{}).
			Where("patron_uid = ? AND book_uid = ? AND status IN ?", loan.PatronUid, loan.BookUid, activeStatuses).
			Count(&dup).Error
		if err != nil {
			return err
		}
		if dup > 0 {
			return businessRule(CodeDuplicateLoan, "patron already has an active loan for this book")
		}

		return tx.Create(loan).Error
	})
}

func (s *GormStore) ByUid(loanUid string) (*models.Loan, error) {
	var loan models.Loan
	if err := s.db.Where("loan_uid = ?", loanUid).First(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeLoanNotFound, "loan not found")
		}
		return nil, err
	}
	return &loan, nil
}

func (s *GormStore) ByPatron(patronUid string) ([]models.Loan, error) {
	var loans []models.Loan
	err := s.db.Where("patron_uid = ?", patronUid).Find(&loans).Error
	return loans, err
}

func (s *GormStore) ByItem(bookUid string) ([]models.Loan, error) {
	var loans []models.Loan
	err := s.db.Where("book_uid = ?", bookUid).Find(&loans).Error
	return loans, err
}

func (s *GormStore) ByStatus(status string) ([]models.Loan, error) {
	var loans []models.Loan
	err := s.db.Where("status = ?", status).Find(&loans).Error
	return loans, err
}

func (s *GormStore) DueBefore(cutoff time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := s.db.Where("status IN ? AND due_date < ?", openStatuses, cutoff).Find(&loans).Error
	return loans, err
}

func (s *GormStore) DueBetween(from, to time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := s.db.Where("status IN ? AND due_date >= ? AND due_date <= ?", activeStatuses, from, to).
		Find(&loans).Error
	return loans, err
}

func (s *GormStore) CountActive(patronUid string) (int64, error) {
	var count int64
	err := s.db.Model(&models.Loan{}).
		Where("patron_uid = ? AND status IN ?", patronUid, activeStatuses).
		Count(&count).Error
	return count, err
}

func (s *GormStore) HasActiveLoan(patronUid, bookUid string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Loan{}).
		Where("patron_uid = ? AND book_uid = ? AND status IN ?", patronUid, bookUid, activeStatuses).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) ApplyIf(loanUid string, from []string, tr Transition) (bool, error) {
	updates := map[string]interface{}{
		"status": tr.Status,
	}
	if tr.DueDate != nil {
		updates["due_date"] = *tr.DueDate
	}
	if tr.ReturnDate != nil {
		updates["return_date"] = *tr.ReturnDate
	}
	if tr.FineAmount != nil {
		updates["fine_amount"] = *tr.FineAmount
	}

	res := s.db.Model(&models.Loan{}).
		Where("loan_uid = ? AND status IN ?", loanUid, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Delete(loanUid string) (bool, error) {
	res := s.db.Where("loan_uid = ?", loanUid).Delete(&models.Loan{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
