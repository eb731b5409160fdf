// Package cursor tracks per-account pagination state. A cursor only moves
// forward on a successful fetch; a failed fetch leaves it untouched so a
// retry resumes exactly where the last success left off.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Record is one account's pagination state. A zero Value with HasMore set
// means the account has never been fetched and starts at the top.
type Record struct {
	Value   string
	HasMore bool
}

// Initial is the state of an account before its first fetch and after a
// forced reset.
func Initial() Record {
	return Record{Value: "", HasMore: true}
}

// Persister stores cursor records durably, keyed by account id.
type Persister interface {
	LoadCursor(ctx context.Context, accountID string) (*Record, error)
	SaveCursor(ctx context.Context, accountID string, rec Record) error
	DeleteCursor(ctx context.Context, accountID string) error
}

// Store holds the in-memory cursor map and writes through to a Persister.
type Store struct {
	mu      sync.Mutex
	records map[string]Record
	persist Persister
}

// NewStore creates a cursor store. persist may be nil for a purely
// in-memory store (tests).
func NewStore(persist Persister) *Store {
	return &Store{
		records: make(map[string]Record),
		persist: persist,
	}
}

// Hydrate loads persisted cursors for the given accounts. Accounts with no
// persisted record start at Initial.
func (s *Store) Hydrate(ctx context.Context, accountIDs []string) error {
	if s.persist == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range accountIDs {
		rec, err := s.persist.LoadCursor(ctx, id)
		if err != nil {
			return fmt.Errorf("load cursor for %s: %w", id, err)
		}
		if rec != nil {
			s.records[id] = *rec
		}
	}
	return nil
}

// Get returns the account's current cursor record.
func (s *Store) Get(accountID string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[accountID]
	if !ok {
		return Initial()
	}
	return rec
}

// Advance moves the account's cursor forward. Callers invoke it only after a
// successful fetch for that account.
func (s *Store) Advance(ctx context.Context, accountID, newCursor string, hasMore bool) error {
	if accountID == "" {
		return errors.New("account id is required")
	}

	rec := Record{Value: newCursor, HasMore: hasMore}

	s.mu.Lock()
	s.records[accountID] = rec
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}
	if err := s.persist.SaveCursor(ctx, accountID, rec); err != nil {
		return fmt.Errorf("save cursor for %s: %w", accountID, err)
	}
	return nil
}

// Reset clears the account back to the initial state. Only a forced refresh
// rewinds a cursor.
func (s *Store) Reset(ctx context.Context, accountID string) error {
	if accountID == "" {
		return errors.New("account id is required")
	}

	s.mu.Lock()
	delete(s.records, accountID)
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}
	if err := s.persist.DeleteCursor(ctx, accountID); err != nil {
		return fmt.Errorf("delete cursor for %s: %w", accountID, err)
	}
	return nil
}
