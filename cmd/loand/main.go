package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"librarysystem/pkg/catalog"
	"librarysystem/pkg/database"
	"librarysystem/pkg/loans"
	"librarysystem/pkg/models"
	"librarysystem/pkg/patron"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	db  *gorm.DB
	svc *loans.Service
)

func main() {
	log.Println("Starting loan service...")

	db = database.InitLibraryDB()

	svc = loans.NewService(
		loans.NewGormStore(db),
		catalog.NewGormStore(db),
		patron.NewGormStore(db),
	)

	seedTestData()

	scanMinutes, err := strconv.Atoi(database.GetEnv("SCAN_INTERVAL_MINUTES", "60"))
	if err != nil || scanMinutes < 1 {
		scanMinutes = 60
	}
	scanner := loans.NewScanner(svc, time.Duration(scanMinutes)*time.Minute)
	go scanner.Run(context.Background())
	log.Printf("Overdue scanner running every %d minutes", scanMinutes)

	server := gin.Default()
	server.POST("/api/v1/loans", createLoan)
	server.GET("/api/v1/loans", getLoans)
	server.GET("/api/v1/loans/overdue", getOverdueLoans)
	server.GET("/api/v1/loans/due", getLoansDueSoon)
	server.POST("/api/v1/loans/:loanUid/return", returnLoan)
	server.POST("/api/v1/loans/:loanUid/renew", renewLoan)
	server.DELETE("/api/v1/loans/:loanUid", deleteLoan)
	server.GET("/api/v1/patrons/:patronUid/loans/count", getActiveLoanCount)
	server.GET("/manage/health", healthCheck)

	log.Println("Loan service starting on :8080")
	if err := server.Run(":8080"); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func createLoan(c *gin.Context) {
	var request struct {
		BookUid   string `json:"bookUid" binding:"required"`
		PatronUid string `json:"patronUid" binding:"required"`
		DueDate   string `json:"dueDate"`
		Notes     string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	var dueDate *time.Time
	if request.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", request.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format"})
			return
		}
		dueDate = &parsed
	}

	loan, err := svc.CreateLoan(request.BookUid, request.PatronUid, dueDate, request.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loanResponse(loan))
}

func getLoans(c *gin.Context) {
	patronUid := c.Query("patronUid")
	bookUid := c.Query("bookUid")
	status := c.Query("status")

	var (
		result []models.Loan
		err    error
	)
	switch {
	case patronUid != "":
		result, err = svc.LoansByPatron(patronUid)
	case bookUid != "":
		result, err = svc.LoansByItem(bookUid)
	case status != "":
		if !models.IsValidLoanStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown loan status"})
			return
		}
		result, err = svc.LoansByStatus(status)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "patronUid, bookUid or status query parameter is required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loanListResponse(result))
}

func getOverdueLoans(c *gin.Context) {
	overdue, err := svc.OverdueLoans()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loanListResponse(overdue))
}

func getLoansDueSoon(c *gin.Context) {
	daysStr := c.DefaultQuery("days", "7")
	days, err := strconv.Atoi(daysStr)
	if err != nil || days < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a non-negative integer"})
		return
	}
	result, err := svc.LoansDueWithin(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loanListResponse(result))
}

func returnLoan(c *gin.Context) {
	loan, err := svc.ReturnLoan(c.Param("loanUid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loanResponse(loan))
}

func renewLoan(c *gin.Context) {
	var request struct {
		DueDate string `json:"dueDate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	dueDate, err := time.Parse("2006-01-02", request.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format"})
		return
	}

	loan, err := svc.RenewLoan(c.Param("loanUid"), dueDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loanResponse(loan))
}

func deleteLoan(c *gin.Context) {
	if err := svc.DeleteLoan(c.Param("loanUid")); err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusNoContent, "application/json", nil)
}

func getActiveLoanCount(c *gin.Context) {
	patronUid := c.Param("patronUid")

	count, err := svc.ActiveLoanCount(patronUid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	canBorrow, err := svc.CanBorrowMore(patronUid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":         count,
		"canBorrowMore": canBorrow,
	})
}

func respondError(c *gin.Context, err error) {
	var lerr *loans.Error
	if !errors.As(err, &lerr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	body := gin.H{"error": lerr.Message}
	if lerr.Code != "" {
		body["code"] = string(lerr.Code)
	}
	switch lerr.Kind {
	case loans.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case loans.KindValidation, loans.KindBusinessRule:
		c.JSON(http.StatusBadRequest, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}

func loanResponse(loan *models.Loan) gin.H {
	resp := gin.H{
		"loanUid":    loan.LoanUid,
		"bookUid":    loan.BookUid,
		"patronUid":  loan.PatronUid,
		"status":     loan.Status,
		"loanDate":   loan.LoanDate.Format("2006-01-02"),
		"dueDate":    loan.DueDate.Format("2006-01-02"),
		"fineAmount": loan.FineAmount,
	}
	if loan.ReturnDate != nil {
		resp["returnDate"] = loan.ReturnDate.Format("2006-01-02")
	}
	if loan.Notes != "" {
		resp["notes"] = loan.Notes
	}
	return resp
}

func loanListResponse(result []models.Loan) []gin.H {
	items := make([]gin.H, len(result))
	for i := range result {
		items[i] = loanResponse(&result[i])
	}
	return items
}

func seedTestData() {
	testBookUid := "f7cdc58f-2caf-4b15-9727-f89dcc629b27"
	testPatronUid := "83575e12-7ce0-48ee-9931-51919ff3c9ee"
	inactivePatronUid := "4f1c9a2e-0b4d-4c55-9a1f-6de1a3a1b0c2"

	var testBook models.Book
	if err := db.Where("book_uid = ?", testBookUid).First(&testBook).Error; err != nil {
		testBook = models.Book{
			BookUid:         testBookUid,
			Title:           "The Go Programming Language",
			Author:          "Alan A. A. Donovan",
			Isbn:            "978-0134190440",
			TotalCopies:     3,
			AvailableCopies: 3,
		}
		if err := db.Create(&testBook).Error; err != nil {
			log.Printf("Failed to create test book: %v", err)
		} else {
			log.Printf("Created test book: %s", testBook.Title)
		}
	}

	patrons := []models.Patron{
		{PatronUid: testPatronUid, Name: "Alice Novak", Email: "alice@example.com", Active: true},
		{PatronUid: inactivePatronUid, Name: "Bob Ericsson", Email: "bob@example.com", Active: false},
	}
	for _, p := range patrons {
		var existing models.Patron
		if err := db.Where("patron_uid = ?", p.PatronUid).First(&existing).Error; err != nil {
			if err := db.Create(&p).Error; err != nil {
				log.Printf("Failed to create test patron %s: %v", p.Name, err)
			}
		}
	}
	log.Println("Loan test data seeded")
}

func healthCheck(ctx *gin.Context) {
	sqlDB, err := db.DB()
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "Host localhost:8080 is active",
	})
}
