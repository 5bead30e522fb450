package models

import (
	"time"
)

const (
	LoanStatusActive   = "ACTIVE"
	LoanStatusReturned = "RETURNED"
	LoanStatusOverdue  = "OVERDUE"
	LoanStatusRenewed  = "RENEWED"
)

var ValidLoanStatuses = map[string]bool{
	LoanStatusActive:   true,
	LoanStatusReturned: true,
	LoanStatusOverdue:  true,
	LoanStatusRenewed:  true,
}

func IsValidLoanStatus(status string) bool {
	return ValidLoanStatuses[status]
}

type Book struct {
	ID              uint   `gorm:"primaryKey"`
	BookUid         string `gorm:"type:uuid;uniqueIndex;not null"`
	Title           string `gorm:"not null"`
	Author          string
	Isbn            string `gorm:"size:20"`
	TotalCopies     int    `gorm:"not null;default:1"`
	AvailableCopies int    `gorm:"not null;check:available_copies >= 0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Patron struct {
	ID        uint   `gorm:"primaryKey"`
	PatronUid string `gorm:"type:uuid;uniqueIndex;not null"`
	Name      string `gorm:"size:80;not null"`
	Email     string `gorm:"size:120;uniqueIndex"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Loan struct {
	ID         uint   `gorm:"primaryKey"`
	LoanUid    string `gorm:"type:uuid;uniqueIndex;not null"`
	BookUid    string `gorm:"type:uuid;index;not null"`
	PatronUid  string `gorm:"type:uuid;index;not null"`
	Status     string `gorm:"size:20;not null"`
	LoanDate   time.Time
	DueDate    time.Time `gorm:"index"`
	ReturnDate *time.Time
	FineAmount float64 `gorm:"not null;default:0"`
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
