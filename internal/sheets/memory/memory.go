package memory

import (
	"context"
	"fmt"
	"sync"

	"pennywise/internal/core"
)

// Store is an in-memory OccurrenceWriter for tests and local development.
type Store struct {
	mu       sync.Mutex
	expenses []core.Expense
	incomes  []core.Income
}

func New() *Store {
	return &Store{}
}

func (s *Store) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return fmt.Sprintf("mem:expenses:%d", len(s.expenses)), nil
}

func (s *Store) AppendIncome(_ context.Context, i core.Income) (string, error) {
	if err := i.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomes = append(s.incomes, i)
	return fmt.Sprintf("mem:incomes:%d", len(s.incomes)), nil
}

// Expenses returns a copy of everything appended so far.
func (s *Store) Expenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.expenses...)
}

func (s *Store) Incomes() []core.Income {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Income(nil), s.incomes...)
}
