// Package catalog holds the copy inventory consumed by the loan engine.
// TryReserve and Release must be atomic: two concurrent reservations of the
// last copy must yield exactly one success.
package catalog

import (
	"errors"

	"librarysystem/pkg/models"

	"gorm.io/gorm"
)

var ErrBookNotFound = errors.New("book not found in catalog")

type Store interface {
	ItemExists(bookUid string) (bool, error)

	// TryReserve checks available_copies > 0 and decrements in a single
	// conditional write. Reports false without mutation when no copy is free.
	TryReserve(bookUid string) (bool, error)

	// Release increments available_copies, clamped at total_copies so a
	// double release cannot overflow the inventory.
	Release(bookUid string) error

	GetBook(bookUid string) (*models.Book, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ItemExists(bookUid string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Book{}).Where("book_uid = ?", bookUid).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) TryReserve(bookUid string) (bool, error) {
	res := s.db.Model(&models.Book{}).
		Where("book_uid = ? AND available_copies > 0", bookUid).
		Update("available_copies", gorm.Expr("available_copies - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Release(bookUid string) error {
	return s.db.Model(&models.Book{}).
		Where("book_uid = ? AND available_copies < total_copies", bookUid).
		Update("available_copies", gorm.Expr("available_copies + 1")).Error
}

func (s *GormStore) GetBook(bookUid string) (*models.Book, error) {
	var book models.Book
	if err := s.db.Where("book_uid = ?", bookUid).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}
