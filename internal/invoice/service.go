package invoice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=invoice
type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListChain(ctx context.Context, rootID string) ([]*Invoice, error)
	ListInvoices(ctx context.Context) ([]*Invoice, error)
}

// Ledger is the authoritative status source. The invoice service only needs
// to seed new records and read the parent state before a revision.
type Ledger interface {
	Get(ctx context.Context, invoiceID string) (Status, error)
	Init(ctx context.Context, invoiceID string) error
}

// Notifier delivers best-effort platform notifications. Implementations must
// never block the caller on delivery.
type Notifier interface {
	NotifyNewInvoice(ctx context.Context, invoiceID, vendorName string)
}

type Service struct {
	repo     Repository
	ledger   Ledger
	notifier Notifier
}

func NewService(repo Repository, ledger Ledger, notifier Notifier) *Service {
	return &Service{repo: repo, ledger: ledger, notifier: notifier}
}

// Put stores one invoice version. It rejects duplicate ids, root ids that
// collide with the derived revision id scheme and, when a parent is
// referenced, a version that is not parent.version + 1. Storing a version
// seeds its status record to unread.
func (s *Service) Put(ctx context.Context, inv *Invoice) error {
	if _, err := s.repo.GetInvoice(ctx, inv.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicate, inv.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("checking for existing invoice: %w", err)
	}

	if inv.ParentInvoiceID != nil {
		parent, err := s.repo.GetInvoice(ctx, *inv.ParentInvoiceID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return validationErr("parent invoice %s does not exist", *inv.ParentInvoiceID)
			}

			return fmt.Errorf("loading parent invoice: %w", err)
		}

		if inv.Version != parent.Version+1 {
			return validationErr("version %d does not follow parent version %d", inv.Version, parent.Version)
		}
	} else {
		if inv.Version != 1 {
			return validationErr("version %d requires a parent invoice", inv.Version)
		}

		// The -v<N> suffix is how revision ids are derived from their root;
		// a root document carrying it would be absorbed into another chain.
		if versionSuffix.MatchString(inv.ID) {
			return validationErr("id %s ends with the reserved revision suffix", inv.ID)
		}
	}

	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return fmt.Errorf("storing invoice: %w", err)
	}

	if err := s.ledger.Init(ctx, inv.ID); err != nil {
		return fmt.Errorf("initializing status record: %w", err)
	}

	return nil
}

// Issue normalizes and stores a new document, then notifies the hospital.
func (s *Service) Issue(ctx context.Context, raw RawInvoice) (*Invoice, error) {
	inv, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	if err := s.Put(ctx, inv); err != nil {
		return nil, err
	}

	s.notifier.NotifyNewInvoice(ctx, inv.ID, inv.VendorName)

	return inv, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// Chain returns every version for a root, ordered by version ascending.
func (s *Service) Chain(ctx context.Context, rootID string) ([]*Invoice, error) {
	chain, err := s.repo.ListChain(ctx, RootID(rootID))
	if err != nil {
		return nil, err
	}

	sort.Slice(chain, func(i, j int) bool { return chain[i].Version < chain[j].Version })

	return chain, nil
}

// Latest returns the highest-version entry in a chain.
func (s *Service) Latest(ctx context.Context, rootID string) (*Invoice, error) {
	chain, err := s.Chain(ctx, rootID)
	if err != nil {
		return nil, err
	}

	if len(chain) == 0 {
		return nil, ErrNotFound
	}

	return chain[len(chain)-1], nil
}

// ReviseFrom reissues a disputed document as the next version in its chain.
// The parent must be disputed and must not already have a successor.
func (s *Service) ReviseFrom(ctx context.Context, parentID string, items []RawLineItem, revisionNote string) (*Invoice, error) {
	parent, err := s.repo.GetInvoice(ctx, parentID)
	if err != nil {
		return nil, err
	}

	st, err := s.ledger.Get(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("reading parent status: %w", err)
	}

	if st != StatusDisputed {
		return nil, validationErr("invoice %s is %s; only disputed documents can be revised", parentID, st)
	}

	rootID := RootID(parentID)

	chain, err := s.repo.ListChain(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("loading revision chain: %w", err)
	}

	for _, v := range chain {
		if v.ParentInvoiceID != nil && *v.ParentInvoiceID == parentID {
			return nil, validationErr("invoice %s already has revision %s", parentID, v.ID)
		}
	}

	lineItems, err := normalizeItems(items)
	if err != nil {
		return nil, err
	}

	subtotal, tax, total := ComputeTotals(lineItems)

	next := &Invoice{
		ID:              DerivedID(rootID, parent.Version+1),
		VendorCode:      parent.VendorCode,
		VendorName:      parent.VendorName,
		HospitalID:      parent.HospitalID,
		IssueDate:       time.Now().UTC(),
		LineItems:       lineItems,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
		Status:          StatusUnread,
		Version:         parent.Version + 1,
		ParentInvoiceID: &parentID,
		RevisionNote:    revisionNote,
	}

	if err := s.Put(ctx, next); err != nil {
		return nil, err
	}

	s.notifier.NotifyNewInvoice(ctx, next.ID, next.VendorName)

	return next, nil
}
