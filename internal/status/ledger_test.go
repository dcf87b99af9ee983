package status_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onliner/medibill/internal/invoice"
	"github.com/onliner/medibill/internal/kvstore"
	"github.com/onliner/medibill/internal/signature"
	"github.com/onliner/medibill/internal/status"
	"github.com/onliner/medibill/internal/syncbus"
)

type fixture struct {
	kv     *kvstore.Memory
	bus    *syncbus.Bus
	vault  *signature.Vault
	ledger *status.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	bus := syncbus.New()
	session := bus.NewSession()
	kv := kvstore.NewMemory()
	vault := signature.NewVault(kv, session)

	return &fixture{
		kv:     kv,
		bus:    bus,
		vault:  vault,
		ledger: status.NewLedger(kv, vault, session),
	}
}

func (f *fixture) sign(t *testing.T, invoiceID string) {
	t.Helper()

	_, err := f.vault.Save(context.Background(), invoiceID, []byte("img"), signature.Snapshot{SignerID: "user-1"})
	require.NoError(t, err)
}

func dispute(invoiceID string) invoice.DisputeRequest {
	return invoice.NewDisputeRequest(invoiceID, invoice.DisputeQuantity, "부족", "user-1")
}

func TestLedger_GetDefaultsToUnread(t *testing.T) {
	f := newFixture(t)

	st, err := f.ledger.Get(context.Background(), "INV-404")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusUnread, st)
}

func TestLedger_ConfirmRequiresSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.ledger.Confirm(ctx, "INV-001")
	assert.ErrorIs(t, err, status.ErrSignatureRequired)

	st, err := f.ledger.Get(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusUnread, st)
}

func TestLedger_Confirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sign(t, "INV-001")
	require.NoError(t, f.ledger.Confirm(ctx, "INV-001"))

	st, err := f.ledger.Get(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusConfirmed, st)

	// The signature is retained by confirmation.
	exists, err := f.vault.Exists(ctx, "INV-001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLedger_ConfirmIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sign(t, "INV-001")
	require.NoError(t, f.ledger.Confirm(ctx, "INV-001"))
	require.NoError(t, f.ledger.Confirm(ctx, "INV-001"))

	all, err := f.ledger.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]invoice.Status{"INV-001": invoice.StatusConfirmed}, all)
}

func TestLedger_DisputeRequiresDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sign(t, "INV-004")

	tests := []struct {
		name string
		req  invoice.DisputeRequest
	}{
		{name: "MissingMemo", req: invoice.NewDisputeRequest("INV-004", invoice.DisputeQuantity, "  ", "user-1")},
		{name: "MissingType", req: invoice.NewDisputeRequest("INV-004", "", "short delivery", "user-1")},
		{name: "UnknownType", req: invoice.NewDisputeRequest("INV-004", "vibes", "short delivery", "user-1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ledger.Dispute(ctx, tt.req)
			assert.ErrorIs(t, err, status.ErrDisputeDetails)

			st, err := f.ledger.Get(ctx, "INV-004")
			require.NoError(t, err)
			assert.Equal(t, invoice.StatusUnread, st)

			// A rejected dispute must not delete the signature.
			exists, err := f.vault.Exists(ctx, "INV-004")
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestLedger_DisputeDeletesSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sign(t, "INV-004")
	require.NoError(t, f.ledger.Dispute(ctx, dispute("INV-004")))

	st, err := f.ledger.Get(ctx, "INV-004")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusDisputed, st)

	exists, err := f.vault.Exists(ctx, "INV-004")
	require.NoError(t, err)
	assert.False(t, exists)
}

// brokenVault simulates a signature backend whose delete fails.
type brokenVault struct{}

func (brokenVault) Exists(context.Context, string) (bool, error) { return true, nil }
func (brokenVault) Delete(context.Context, string) error {
	return errors.New("backend unavailable")
}

func TestLedger_DisputeAbortsWhenSignatureDeleteFails(t *testing.T) {
	ctx := context.Background()
	ledger := status.NewLedger(kvstore.NewMemory(), brokenVault{}, syncbus.New().NewSession())

	err := ledger.Dispute(ctx, dispute("INV-004"))
	require.Error(t, err)

	// Disputed must imply no signature record; a failed delete therefore
	// leaves the status untouched.
	st, err := ledger.Get(ctx, "INV-004")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusUnread, st)
}

func TestLedger_DisputeWithoutSignature(t *testing.T) {
	f := newFixture(t)

	// Signing is not a precondition for disputing.
	err := f.ledger.Dispute(context.Background(), dispute("INV-004"))
	require.NoError(t, err)
}

func TestLedger_TerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sign(t, "INV-001")
	require.NoError(t, f.ledger.Confirm(ctx, "INV-001"))

	err := f.ledger.Dispute(ctx, dispute("INV-001"))
	assert.ErrorIs(t, err, status.ErrInvalidTransition)

	require.NoError(t, f.ledger.Dispute(ctx, dispute("INV-002")))

	f.sign(t, "INV-002")
	err = f.ledger.Confirm(ctx, "INV-002")
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestLedger_InitKeepsExistingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Dispute(ctx, dispute("INV-004")))
	require.NoError(t, f.ledger.Init(ctx, "INV-004"))

	st, err := f.ledger.Get(ctx, "INV-004")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusDisputed, st)
}

func TestLedger_MalformedStateFailsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.kv.Set(ctx, "invoice_statuses", []byte("{not json")))

	all, err := f.ledger.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	st, err := f.ledger.Get(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusUnread, st)
}

func TestLedger_PublishesToOtherSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var got atomic.Value

	other := f.bus.NewSession()
	cancel := other.Subscribe(func(ev syncbus.Event) {
		if ev.Kind == syncbus.KindStatus {
			got.Store(ev)
		}
	})
	defer cancel()

	f.sign(t, "INV-002")
	require.NoError(t, f.ledger.Confirm(ctx, "INV-002"))

	require.Eventually(t, func() bool {
		ev, ok := got.Load().(syncbus.Event)
		return ok && ev.InvoiceID == "INV-002" && ev.Status == string(invoice.StatusConfirmed)
	}, time.Second, 10*time.Millisecond)
}
