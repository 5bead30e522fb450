package loans

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"librarysystem/pkg/catalog"
	"librarysystem/pkg/models"
	"librarysystem/pkg/patron"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Book{}, &models.Patron{}, &models.Loan{}))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := setupTestDB(t)
	svc := NewService(NewGormStore(db), catalog.NewGormStore(db), patron.NewGormStore(db))
	return svc, db
}

func seedBook(t *testing.T, db *gorm.DB, bookUid string, copies int) {
	require.NoError(t, db.Create(&models.Book{
		BookUid:         bookUid,
		Title:           "Test Book " + bookUid,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}).Error)
}

func seedPatron(t *testing.T, db *gorm.DB, patronUid string, active bool) {
	require.NoError(t, db.Create(&models.Patron{
		PatronUid: patronUid,
		Name:      "Patron " + patronUid,
		Email:     patronUid + "@example.com",
		Active:    active,
	}).Error)
}

func availableCopies(t *testing.T, db *gorm.DB, bookUid string) int {
	var book models.Book
	require.NoError(t, db.Where("book_uid = ?", bookUid).First(&book).Error)
	return book.AvailableCopies
}

func asLoanError(t *testing.T, err error) *Error {
	var lerr *Error
	require.True(t, errors.As(err, &lerr), "expected a loans.Error, got %v", err)
	return lerr
}

func TestCreateLoanDefaults(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 2)
	seedPatron(t, db, "patron-1", true)

	now := date(2024, time.March, 1)
	svc.now = func() time.Time { return now }

	loan, err := svc.CreateLoan("book-1", "patron-1", nil, "handle with care")
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.Equal(t, now, loan.LoanDate)
	assert.Equal(t, now.AddDate(0, 0, 14), loan.DueDate)
	assert.Equal(t, 0.0, loan.FineAmount)
	assert.Nil(t, loan.ReturnDate)
	assert.Equal(t, "handle with care", loan.Notes)
	assert.NotEmpty(t, loan.LoanUid)
	assert.Equal(t, 1, availableCopies(t, db, "book-1"))
}

func TestCreateLoanPatronNotFound(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)

	_, err := svc.CreateLoan("book-1", "missing", nil, "")
	lerr := asLoanError(t, err)
	assert.Equal(t, KindNotFound, lerr.Kind)
	assert.Equal(t, CodePatronNotFound, lerr.Code)
}

func TestCreateLoanPatronInactive(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", false)

	_, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	lerr := asLoanError(t, err)
	assert.Equal(t, KindBusinessRule, lerr.Kind)
	assert.Equal(t, CodePatronInactive, lerr.Code)
	assert.Equal(t, 1, availableCopies(t, db, "book-1"))
}

func TestCreateLoanLimitExceeded(t *testing.T) {
	svc, db := newTestService(t)
	seedPatron(t, db, "patron-1", true)
	for i := 0; i < MaxLoansPerPatron+1; i++ {
		seedBook(t, db, fmt.Sprintf("book-%d", i), 1)
	}

	for i := 0; i < MaxLoansPerPatron; i++ {
		_, err := svc.CreateLoan(fmt.Sprintf("book-%d", i), "patron-1", nil, "")
		require.NoError(t, err)
	}

	_, err := svc.CreateLoan(fmt.Sprintf("book-%d", MaxLoansPerPatron), "patron-1", nil, "")
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeLoanLimitExceeded, lerr.Code)

	count, err := svc.ActiveLoanCount("patron-1")
	require.NoError(t, err)
	assert.Equal(t, int64(MaxLoansPerPatron), count)

	canBorrow, err := svc.CanBorrowMore("patron-1")
	require.NoError(t, err)
	assert.False(t, canBorrow)
}

func TestCreateLoanDuplicate(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 5)
	seedPatron(t, db, "patron-1", true)

	_, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	require.NoError(t, err)

	_, err = svc.CreateLoan("book-1", "patron-1", nil, "")
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeDuplicateLoan, lerr.Code)
	assert.Equal(t, 4, availableCopies(t, db, "book-1"))
}

func TestCreateLoanItemUnavailable(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 0)
	seedPatron(t, db, "patron-1", true)

	_, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeItemUnavailable, lerr.Code)
	assert.Equal(t, 0, availableCopies(t, db, "book-1"))
}

func TestCreateLoanUnknownItem(t *testing.T) {
	svc, db := newTestService(t)
	seedPatron(t, db, "patron-1", true)

	_, err := svc.CreateLoan("missing", "patron-1", nil, "")
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeItemUnavailable, lerr.Code)
}

func TestCreateLoanInvalidDueDate(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	svc.now = func() time.Time { return date(2024, time.March, 10) }

	past := date(2024, time.March, 1)
	_, err := svc.CreateLoan("book-1", "patron-1", &past, "")
	lerr := asLoanError(t, err)
	assert.Equal(t, KindValidation, lerr.Kind)
	assert.Equal(t, CodeInvalidDueDate, lerr.Code)
	assert.Equal(t, 1, availableCopies(t, db, "book-1"))
}

func TestReturnLoanRoundTrip(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 2)
	seedPatron(t, db, "patron-1", true)

	now := date(2024, time.March, 1)
	svc.now = func() time.Time { return now }

	loan, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, availableCopies(t, db, "book-1"))

	returned, err := svc.ReturnLoan(loan.LoanUid)
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, 0.0, returned.FineAmount)
	assert.Equal(t, 2, availableCopies(t, db, "book-1"))
}

func TestReturnLoanNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ReturnLoan("missing")
	lerr := asLoanError(t, err)
	assert.Equal(t, KindNotFound, lerr.Kind)
	assert.Equal(t, CodeLoanNotFound, lerr.Code)
}

func TestReturnLoanAlreadyReturned(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	loan, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	require.NoError(t, err)

	_, err = svc.ReturnLoan(loan.LoanUid)
	require.NoError(t, err)
	assert.Equal(t, 1, availableCopies(t, db, "book-1"))

	_, err = svc.ReturnLoan(loan.LoanUid)
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeLoanNotActive, lerr.Code)

	// No double increment past total copies.
	assert.Equal(t, 1, availableCopies(t, db, "book-1"))
}

func TestReturnOverdueLoanFinalizesFine(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	svc.now = func() time.Time { return date(2023, time.December, 18) }
	due := date(2024, time.January, 1)
	loan, err := svc.CreateLoan("book-1", "patron-1", &due, "")
	require.NoError(t, err)

	// Sweep at Jan 6: five days overdue.
	svc.now = func() time.Time { return date(2024, time.January, 6) }
	_, err = svc.OverdueLoans()
	require.NoError(t, err)

	// Returned at Jan 11: fine recomputed against the return date.
	svc.now = func() time.Time { return date(2024, time.January, 11) }
	returned, err := svc.ReturnLoan(loan.LoanUid)
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusReturned, returned.Status)
	assert.Equal(t, 5.00, returned.FineAmount)
	assert.Equal(t, 1, availableCopies(t, db, "book-1"))
}

func TestRenewLoan(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	svc.now = func() time.Time { return date(2024, time.March, 1) }
	loan, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	require.NoError(t, err)

	newDue := date(2024, time.April, 1)
	renewed, err := svc.RenewLoan(loan.LoanUid, newDue)
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusRenewed, renewed.Status)
	assert.Equal(t, newDue.Unix(), renewed.DueDate.Unix())

	// Inventory is untouched by renewal.
	assert.Equal(t, 0, availableCopies(t, db, "book-1"))

	// A renewed loan cannot be renewed again.
	_, err = svc.RenewLoan(loan.LoanUid, date(2024, time.May, 1))
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeLoanNotRenewable, lerr.Code)
}

func TestRenewLoanOverdueFails(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	svc.now = func() time.Time { return date(2024, time.January, 1) }
	due := date(2024, time.January, 5)
	loan, err := svc.CreateLoan("book-1", "patron-1", &due, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return date(2024, time.January, 10) }
	_, err = svc.OverdueLoans()
	require.NoError(t, err)

	_, err = svc.RenewLoan(loan.LoanUid, date(2024, time.February, 1))
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeLoanNotRenewable, lerr.Code)
}

func TestRenewLoanInvalidDueDate(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	svc.now = func() time.Time { return date(2024, time.March, 10) }
	loan, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	require.NoError(t, err)

	_, err = svc.RenewLoan(loan.LoanUid, date(2024, time.March, 5))
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeInvalidDueDate, lerr.Code)
}

func TestOverdueLoansIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	svc.now = func() time.Time { return date(2024, time.January, 1) }
	due := date(2024, time.January, 5)
	loan, err := svc.CreateLoan("book-1", "patron-1", &due, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return date(2024, time.January, 9) }

	first, err := svc.OverdueLoans()
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, loan.LoanUid, first[0].LoanUid)
	assert.Equal(t, models.LoanStatusOverdue, first[0].Status)
	assert.Equal(t, 2.00, first[0].FineAmount)

	second, err := svc.OverdueLoans()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2.00, second[0].FineAmount)
}

func TestOverdueLoansFineGrowsWithTime(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	svc.now = func() time.Time { return date(2024, time.January, 1) }
	due := date(2024, time.January, 5)
	_, err := svc.CreateLoan("book-1", "patron-1", &due, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return date(2024, time.January, 7) }
	first, err := svc.OverdueLoans()
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1.00, first[0].FineAmount)

	svc.now = func() time.Time { return date(2024, time.January, 9) }
	second, err := svc.OverdueLoans()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2.00, second[0].FineAmount)
}

func TestOverdueLoansSkipsLoansDueToday(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	svc.now = func() time.Time { return date(2024, time.January, 1) }
	due := date(2024, time.January, 5)
	_, err := svc.CreateLoan("book-1", "patron-1", &due, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return date(2024, time.January, 5) }
	overdue, err := svc.OverdueLoans()
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestLoansDueWithin(t *testing.T) {
	svc, db := newTestService(t)
	seedPatron(t, db, "patron-1", true)
	seedBook(t, db, "book-1", 1)
	seedBook(t, db, "book-2", 1)
	seedBook(t, db, "book-3", 1)

	svc.now = func() time.Time { return date(2024, time.March, 1) }

	dueSoon := date(2024, time.March, 4)
	_, err := svc.CreateLoan("book-1", "patron-1", &dueSoon, "")
	require.NoError(t, err)

	dueLater := date(2024, time.March, 20)
	_, err = svc.CreateLoan("book-2", "patron-1", &dueLater, "")
	require.NoError(t, err)

	dueToday := date(2024, time.March, 1).Add(12 * time.Hour)
	_, err = svc.CreateLoan("book-3", "patron-1", &dueToday, "")
	require.NoError(t, err)

	result, err := svc.LoansDueWithin(7)
	require.NoError(t, err)
	require.Len(t, result, 2)

	books := []string{result[0].BookUid, result[1].BookUid}
	assert.Contains(t, books, "book-1")
	assert.Contains(t, books, "book-3")
}

func TestLoanQueries(t *testing.T) {
	svc, db := newTestService(t)
	seedPatron(t, db, "patron-1", true)
	seedPatron(t, db, "patron-2", true)
	seedBook(t, db, "book-1", 2)
	seedBook(t, db, "book-2", 1)

	_, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	require.NoError(t, err)
	_, err = svc.CreateLoan("book-2", "patron-1", nil, "")
	require.NoError(t, err)
	loan3, err := svc.CreateLoan("book-1", "patron-2", nil, "")
	require.NoError(t, err)
	_, err = svc.ReturnLoan(loan3.LoanUid)
	require.NoError(t, err)

	byPatron, err := svc.LoansByPatron("patron-1")
	require.NoError(t, err)
	assert.Len(t, byPatron, 2)

	byItem, err := svc.LoansByItem("book-1")
	require.NoError(t, err)
	assert.Len(t, byItem, 2)

	byStatus, err := svc.LoansByStatus(models.LoanStatusReturned)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, loan3.LoanUid, byStatus[0].LoanUid)
}

func TestDeleteLoan(t *testing.T) {
	svc, db := newTestService(t)
	seedBook(t, db, "book-1", 1)
	seedPatron(t, db, "patron-1", true)

	loan, err := svc.CreateLoan("book-1", "patron-1", nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLoan(loan.LoanUid))

	// Administrative delete bypasses inventory accounting.
	assert.Equal(t, 0, availableCopies(t, db, "book-1"))

	err = svc.DeleteLoan(loan.LoanUid)
	lerr := asLoanError(t, err)
	assert.Equal(t, CodeLoanNotFound, lerr.Code)
}
