package loans

import (
	"sync"
	"time"

	"librarysystem/pkg/models"
)

// MemStore keeps loan records in memory behind one mutex. The mutex makes
// CreateChecked and ApplyIf atomic, matching the transactional guarantees of
// the database-backed store.
type MemStore struct {
	mu     sync.Mutex
	loans  map[string]*models.Loan
	nextID uint
}

func NewMemStore() *MemStore {
	return &MemStore{
		loans: make(map[string]*models.Loan),
	}
}

func (s *MemStore) CreateChecked(loan *models.Loan, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, l := range s.loans {
		if l.PatronUid != loan.PatronUid || !statusIn(l.Status, activeStatuses) {
			continue
		}
		if l.BookUid == loan.BookUid {
			return businessRule(CodeDuplicateLoan, "patron already has an active loan for this book")
		}
		count++
	}
	if count >= int64(limit) {
		return businessRule(CodeLoanLimitExceeded, "patron has reached the maximum loan limit")
	}

	s.nextID++
	loan.ID = s.nextID
	now := time.Now()
	loan.CreatedAt = now
	loan.UpdatedAt = now
	copied := *loan
	s.loans[loan.LoanUid] = &copied
	return nil
}

func (s *MemStore) ByUid(loanUid string) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[loanUid]
	if !ok {
		return nil, notFound(CodeLoanNotFound, "loan not found")
	}
	copied := *loan
	return &copied, nil
}

func (s *MemStore) ByPatron(patronUid string) ([]models.Loan, error) {
	return s.filter(func(l *models.Loan) bool { return l.PatronUid == patronUid }), nil
}

func (s *MemStore) ByItem(bookUid string) ([]models.Loan, error) {
	return s.filter(func(l *models.Loan) bool { return l.BookUid == bookUid }), nil
}

func (s *MemStore) ByStatus(status string) ([]models.Loan, error) {
	return s.filter(func(l *models.Loan) bool { return l.Status == status }), nil
}

func (s *MemStore) DueBefore(cutoff time.Time) ([]models.Loan, error) {
	return s.filter(func(l *models.Loan) bool {
		return statusIn(l.Status, openStatuses) && l.DueDate.Before(cutoff)
	}), nil
}

func (s *MemStore) DueBetween(from, to time.Time) ([]models.Loan, error) {
	return s.filter(func(l *models.Loan) bool {
		return statusIn(l.Status, activeStatuses) && !l.DueDate.Before(from) && !l.DueDate.After(to)
	}), nil
}

func (s *MemStore) CountActive(patronUid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, l := range s.loans {
		if l.PatronUid == patronUid && statusIn(l.Status, activeStatuses) {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) HasActiveLoan(patronUid, bookUid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.loans {
		if l.PatronUid == patronUid && l.BookUid == bookUid && statusIn(l.Status, activeStatuses) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) ApplyIf(loanUid string, from []string, tr Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[loanUid]
	if !ok || !statusIn(loan.Status, from) {
		return false, nil
	}

	loan.Status = tr.Status
	if tr.DueDate != nil {
		loan.DueDate = *tr.DueDate
	}
	if tr.ReturnDate != nil {
		returned := *tr.ReturnDate
		loan.ReturnDate = &returned
	}
	if tr.FineAmount != nil {
		loan.FineAmount = *tr.FineAmount
	}
	loan.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemStore) Delete(loanUid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loans[loanUid]; !ok {
		return false, nil
	}
	delete(s.loans, loanUid)
	return true, nil
}

func (s *MemStore) filter(keep func(*models.Loan) bool) []models.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Loan, 0)
	for _, l := range s.loans {
		if keep(l) {
			result = append(result, *l)
		}
	}
	return result
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
