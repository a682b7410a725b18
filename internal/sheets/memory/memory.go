// Package memory is an in-memory ReceiptAppender for tests and local
// runs without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"questbudget/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	receipts []storage.Receipt
	failWith error
}

func New() *Store {
	return &Store{}
}

// Append stores the receipt and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, r storage.Receipt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return "", s.failWith
	}
	s.receipts = append(s.receipts, r)
	return fmt.Sprintf("mem:%d", len(s.receipts)), nil
}

// Receipts returns a copy of everything appended so far.
func (s *Store) Receipts() []storage.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.Receipt(nil), s.receipts...)
}

// FailWith makes subsequent Append calls return err; nil restores
// normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}
