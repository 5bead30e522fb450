package patron

import (
	"sync"

	"librarysystem/pkg/models"
)

type MemStore struct {
	mu      sync.Mutex
	patrons map[string]*models.Patron
}

func NewMemStore() *MemStore {
	return &MemStore{
		patrons: make(map[string]*models.Patron),
	}
}

func (s *MemStore) AddPatron(p models.Patron) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patrons[p.PatronUid] = &p
}

func (s *MemStore) GetPatron(patronUid string) (*models.Patron, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patrons[patronUid]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}
