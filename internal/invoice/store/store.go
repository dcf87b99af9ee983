package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/onliner/medibill/internal/invoice"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectInvoiceColumns = `
	id, vendor_code, vendor_name, hospital_id, issue_date, line_items,
	subtotal, tax, total, status, version, parent_invoice_id, revision_note, created_at
`

// scanInvoice reads an invoice row and returns a populated Invoice.
// Column order must match selectInvoiceColumns.
func scanInvoice(s scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var (
		statusStr string
		itemsJSON []byte
		parentID  sql.NullString
		note      sql.NullString
	)

	if err := s.Scan(
		&inv.ID, &inv.VendorCode, &inv.VendorName, &inv.HospitalID, &inv.IssueDate, &itemsJSON,
		&inv.Subtotal, &inv.Tax, &inv.Total, &statusStr, &inv.Version, &parentID, &note, &inv.CreatedAt,
	); err != nil {
		return nil, err
	}

	inv.Status = invoice.Status(statusStr)
	inv.RevisionNote = note.String

	if parentID.Valid {
		inv.ParentInvoiceID = &parentID.String
	}

	if err := json.Unmarshal(itemsJSON, &inv.LineItems); err != nil {
		return nil, fmt.Errorf("decoding line items for %s: %w", inv.ID, err)
	}

	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	itemsJSON, err := json.Marshal(inv.LineItems)
	if err != nil {
		return fmt.Errorf("encoding line items: %w", err)
	}

	query := `
		INSERT INTO invoices (
			id, root_id, vendor_code, vendor_name, hospital_id, issue_date, line_items,
			subtotal, tax, total, status, version, parent_invoice_id, revision_note, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		inv.ID,
		invoice.RootID(inv.ID),
		inv.VendorCode,
		inv.VendorName,
		inv.HospitalID,
		inv.IssueDate,
		itemsJSON,
		inv.Subtotal,
		inv.Tax,
		inv.Total,
		string(inv.Status),
		inv.Version,
		inv.ParentInvoiceID,
		nullString(inv.RevisionNote),
	).Scan(&inv.CreatedAt)
	if err != nil {
		// ON CONFLICT DO NOTHING returns no row when the id already exists.
		if err == sql.ErrNoRows {
			return invoice.ErrDuplicate
		}

		return fmt.Errorf("creating invoice: %w", err)
	}

	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	return inv, nil
}

func (s *Store) ListChain(ctx context.Context, rootID string) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices
		WHERE root_id = $1
		ORDER BY version ASC`

	return s.list(ctx, query, rootID)
}

func (s *Store) ListInvoices(ctx context.Context) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices
		ORDER BY issue_date DESC, version DESC`

	return s.list(ctx, query)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invs []*invoice.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invs = append(invs, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice rows: %w", err)
	}

	return invs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
