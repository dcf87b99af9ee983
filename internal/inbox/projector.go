// Package inbox is the read side of the invoice workflow: it merges the
// repository with the status ledger into the filtered, sorted, counted view
// a hospital user sees.
package inbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/onliner/medibill/internal/invoice"
)

// StatusSource is the authoritative status the projector overrides embedded
// payload values with.
type StatusSource interface {
	GetAll(ctx context.Context) (map[string]invoice.Status, error)
}

type Filters struct {
	VendorCode string
	From       *time.Time
	To         *time.Time
	Search     string
}

// Entry is one projected inbox row. Status always comes from the ledger;
// DisplayStatus additionally labels an unread later version as revised.
type Entry struct {
	Invoice       *invoice.Invoice
	Status        invoice.Status
	DisplayStatus string
}

type Projector struct {
	repo   invoice.Repository
	status StatusSource
	fold   cases.Caser
}

func NewProjector(repo invoice.Repository, status StatusSource) *Projector {
	return &Projector{repo: repo, status: status, fold: cases.Fold()}
}

// View returns the inbox entries matching the filters, sorted by issue date
// descending with ties broken by version descending.
func (p *Projector) View(ctx context.Context, f Filters) ([]Entry, error) {
	entries, err := p.project(ctx)
	if err != nil {
		return nil, err
	}

	query := p.fold.String(strings.TrimSpace(f.Search))

	filtered := entries[:0]

	for _, e := range entries {
		inv := e.Invoice

		if f.VendorCode != "" && inv.VendorCode != f.VendorCode {
			continue
		}

		if f.From != nil && inv.IssueDate.Before(*f.From) {
			continue
		}

		if f.To != nil && inv.IssueDate.After(*f.To) {
			continue
		}

		if query != "" &&
			!strings.Contains(p.fold.String(inv.ID), query) &&
			!strings.Contains(p.fold.String(inv.VendorName), query) {
			continue
		}

		filtered = append(filtered, e)
	}

	return filtered, nil
}

// UnreadCount is computed over the unfiltered authoritative set; filters
// affect the list, never the badge count.
func (p *Projector) UnreadCount(ctx context.Context) (int, error) {
	entries, err := p.project(ctx)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, e := range entries {
		if e.Status == invoice.StatusUnread {
			count++
		}
	}

	return count, nil
}

func (p *Projector) project(ctx context.Context) ([]Entry, error) {
	invs, err := p.repo.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}

	statuses, err := p.status.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading statuses: %w", err)
	}

	entries := make([]Entry, len(invs))

	for i, inv := range invs {
		st, ok := statuses[inv.ID]
		if !ok {
			st = invoice.StatusUnread
		}

		entries[i] = Entry{
			Invoice:       inv,
			Status:        st,
			DisplayStatus: displayStatus(st, inv.Version),
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Invoice, entries[j].Invoice
		if !a.IssueDate.Equal(b.IssueDate) {
			return a.IssueDate.After(b.IssueDate)
		}

		return a.Version > b.Version
	})

	return entries, nil
}

// displayStatus labels an unread revision as revised without changing the
// stored state.
func displayStatus(st invoice.Status, version int) string {
	if st == invoice.StatusUnread && version > 1 {
		return invoice.DisplayRevised
	}

	return string(st)
}
