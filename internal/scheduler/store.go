package scheduler

import (
	"context"
	"sync"
	"time"
)

// Ledger is the query count of one calendar day
type Ledger struct {
	Day      time.Time
	Issued   int
	Attempts int
}

// BudgetStore keeps daily ledgers. Save is called from the scheduling loop
// after every applied result and must return quickly.
type BudgetStore interface {
	Load(ctx context.Context, day time.Time) (Ledger, error)
	Save(ctx context.Context, ledger Ledger) error
}

// MemoryStore keeps ledgers in process memory only. A restart starts the
// day from zero again, so queries issued before the restart are not counted
// against the budget.
type MemoryStore struct {
	mu      sync.Mutex
	ledgers map[string]Ledger
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ledgers: make(map[string]Ledger)}
}

// Load returns the ledger of day, zero when none was saved
func (m *MemoryStore) Load(_ context.Context, day time.Time) (Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[dayKey(day)]; ok {
		return l, nil
	}
	return Ledger{Day: day}, nil
}

// Save stores ledger and drops every other day
func (m *MemoryStore) Save(_ context.Context, ledger Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers = map[string]Ledger{dayKey(ledger.Day): ledger}
	return nil
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
