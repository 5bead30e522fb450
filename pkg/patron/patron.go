// Package patron exposes borrower lookups to the loan engine. Profile
// management lives elsewhere; the engine only needs the active flag.
package patron

import (
	"errors"

	"librarysystem/pkg/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("patron not found")

type Store interface {
	GetPatron(patronUid string) (*models.Patron, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetPatron(patronUid string) (*models.Patron, error) {
	var p models.Patron
	if err := s.db.Where("patron_uid = ?", patronUid).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
