package catalog

import (
	"sync"
	"time"

	"librarysystem/pkg/models"
)

// MemStore is an in-process inventory counter guarded by a single mutex.
// Used by tests and by embedded deployments without a database.
type MemStore struct {
	mu    sync.Mutex
	books map[string]*models.Book
}

func NewMemStore() *MemStore {
	return &MemStore{
		books: make(map[string]*models.Book),
	}
}

func (s *MemStore) AddBook(book models.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	s.books[book.BookUid] = &book
}

func (s *MemStore) ItemExists(bookUid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.books[bookUid]
	return ok, nil
}

func (s *MemStore) TryReserve(bookUid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookUid]
	if !ok || book.AvailableCopies <= 0 {
		return false, nil
	}
	book.AvailableCopies--
	book.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemStore) Release(bookUid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookUid]
	if !ok {
		return ErrBookNotFound
	}
	if book.AvailableCopies < book.TotalCopies {
		book.AvailableCopies++
		book.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemStore) GetBook(bookUid string) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookUid]
	if !ok {
		return nil, ErrBookNotFound
	}
	copied := *book
	return &copied, nil
}
