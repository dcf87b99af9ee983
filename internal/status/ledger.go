// Package status holds the authoritative workflow state for every invoice
// id, independent of whatever status value ships inside a document payload.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/onliner/medibill/internal/invoice"
	"github.com/onliner/medibill/internal/kvstore"
	"github.com/onliner/medibill/internal/syncbus"
)

const storageKey = "invoice_statuses"

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSignatureRequired = errors.New("a saved signature is required before confirmation")
	ErrDisputeDetails    = errors.New("dispute type and memo are required")
)

// Vault is the signature evidence the ledger guards transitions with.
type Vault interface {
	Exists(ctx context.Context, invoiceID string) (bool, error)
	Delete(ctx context.Context, invoiceID string) error
}

// Ledger is the single source of truth for invoice statuses. It persists the
// full id→status map under one key and publishes every successful mutation
// on the sync bus.
//
// Transitions are monotonic: once a record reaches a terminal state
// (confirmed or disputed) the ledger refuses to overwrite it, so the first
// of two racing sessions wins and the later one gets ErrInvalidTransition.
// The map is re-read inside every mutation; a small check-then-write window
// remains when two processes share a durable backend.
type Ledger struct {
	store   kvstore.Store
	vault   Vault
	session *syncbus.Session
}

func NewLedger(store kvstore.Store, vault Vault, session *syncbus.Session) *Ledger {
	return &Ledger{store: store, vault: vault, session: session}
}

// load reads the persisted map. Missing or malformed state yields an empty
// map rather than an error.
func (l *Ledger) load(ctx context.Context) (map[string]invoice.Status, error) {
	data, err := l.store.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return map[string]invoice.Status{}, nil
		}

		return nil, fmt.Errorf("loading status map: %w", err)
	}

	var m map[string]invoice.Status
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]invoice.Status{}, nil
	}

	return m, nil
}

func (l *Ledger) save(ctx context.Context, m map[string]invoice.Status) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding status map: %w", err)
	}

	if err := l.store.Set(ctx, storageKey, data); err != nil {
		return fmt.Errorf("storing status map: %w", err)
	}

	return nil
}

// Get returns the current status for an invoice id, defaulting to unread for
// ids that were never set.
func (l *Ledger) Get(ctx context.Context, invoiceID string) (invoice.Status, error) {
	m, err := l.load(ctx)
	if err != nil {
		return "", err
	}

	st, ok := m[invoiceID]
	if !ok {
		return invoice.StatusUnread, nil
	}

	return st, nil
}

// GetAll returns the full id→status mapping.
func (l *Ledger) GetAll(ctx context.Context) (map[string]invoice.Status, error) {
	return l.load(ctx)
}

// Init creates the unread record for a freshly stored invoice. Existing
// records are left untouched.
func (l *Ledger) Init(ctx context.Context, invoiceID string) error {
	m, err := l.load(ctx)
	if err != nil {
		return err
	}

	if _, ok := m[invoiceID]; ok {
		return nil
	}

	m[invoiceID] = invoice.StatusUnread

	return l.save(ctx, m)
}

// Confirm moves an unread invoice to confirmed. It is rejected unless a
// signature record exists at call time; the record is retained.
func (l *Ledger) Confirm(ctx context.Context, invoiceID string) error {
	return l.set(ctx, invoiceID, invoice.StatusConfirmed, func() error {
		exists, err := l.vault.Exists(ctx, invoiceID)
		if err != nil {
			return err
		}

		if !exists {
			return ErrSignatureRequired
		}

		return nil
	})
}

// Dispute moves an unread invoice to disputed, deleting its signature first
// so stale evidence cannot outlive the content it attested to. The delete
// runs inside the transition guard: if it fails, the status never changes.
func (l *Ledger) Dispute(ctx context.Context, req invoice.DisputeRequest) error {
	if !req.DisputeType.Valid() || strings.TrimSpace(req.Memo) == "" {
		return ErrDisputeDetails
	}

	return l.set(ctx, req.InvoiceID, invoice.StatusDisputed, func() error {
		return l.vault.Delete(ctx, req.InvoiceID)
	})
}

// set performs the guarded transition. An already-equal target is a
// successful no-op; terminal states reject everything else.
func (l *Ledger) set(ctx context.Context, invoiceID string, target invoice.Status, guard func() error) error {
	m, err := l.load(ctx)
	if err != nil {
		return err
	}

	current, ok := m[invoiceID]
	if !ok {
		current = invoice.StatusUnread
	}

	if current == target {
		return nil
	}

	if current != invoice.StatusUnread {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, invoiceID, current)
	}

	if guard != nil {
		if err := guard(); err != nil {
			return err
		}
	}

	m[invoiceID] = target

	if err := l.save(ctx, m); err != nil {
		return err
	}

	l.session.Publish(syncbus.Event{
		Kind:      syncbus.KindStatus,
		InvoiceID: invoiceID,
		Status:    string(target),
	})

	return nil
}
