package invoice

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is the in-process Repository used by tests and the dev
// storage backend. A single instance shared between sessions models the
// store that concurrent sessions read without locking.
type MemoryRepository struct {
	mu       sync.RWMutex
	invoices map[string]*Invoice
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{invoices: make(map[string]*Invoice)}
}

func (r *MemoryRepository) CreateInvoice(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invoices[inv.ID]; ok {
		return ErrDuplicate
	}

	cp := *inv
	r.invoices[inv.ID] = &cp

	return nil
}

func (r *MemoryRepository) GetInvoice(_ context.Context, id string) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *inv

	return &cp, nil
}

func (r *MemoryRepository) ListChain(_ context.Context, rootID string) ([]*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var chain []*Invoice

	for id, inv := range r.invoices {
		if RootID(id) == rootID {
			cp := *inv
			chain = append(chain, &cp)
		}
	}

	sort.Slice(chain, func(i, j int) bool { return chain[i].Version < chain[j].Version })

	return chain, nil
}

func (r *MemoryRepository) ListInvoices(_ context.Context) ([]*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Invoice, 0, len(r.invoices))

	for _, inv := range r.invoices {
		cp := *inv
		out = append(out, &cp)
	}

	return out, nil
}
