package syncbus_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onliner/medibill/internal/syncbus"
)

func TestBus_DeliversToOtherSessions(t *testing.T) {
	bus := syncbus.New()

	a := bus.NewSession()
	b := bus.NewSession()

	var received atomic.Value

	cancel := b.Subscribe(func(ev syncbus.Event) {
		received.Store(ev)
	})
	defer cancel()

	a.Publish(syncbus.Event{Kind: syncbus.KindStatus, InvoiceID: "INV-001", Status: "confirmed"})

	require.Eventually(t, func() bool {
		ev, ok := received.Load().(syncbus.Event)
		return ok && ev.InvoiceID == "INV-001"
	}, time.Second, 5*time.Millisecond)
}

func TestBus_SkipsPublishingSession(t *testing.T) {
	bus := syncbus.New()

	a := bus.NewSession()
	b := bus.NewSession()

	var selfCount, otherCount atomic.Int64

	cancelA := a.Subscribe(func(syncbus.Event) { selfCount.Add(1) })
	defer cancelA()

	cancelB := b.Subscribe(func(syncbus.Event) { otherCount.Add(1) })
	defer cancelB()

	a.Publish(syncbus.Event{Kind: syncbus.KindSignature, InvoiceID: "INV-001", SignaturePresent: true})

	require.Eventually(t, func() bool {
		return otherCount.Load() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(0), selfCount.Load())
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := syncbus.New()

	a := bus.NewSession()
	b := bus.NewSession()

	var count atomic.Int64

	cancel := b.Subscribe(func(syncbus.Event) { count.Add(1) })

	a.Publish(syncbus.Event{Kind: syncbus.KindStatus, InvoiceID: "INV-001"})

	require.Eventually(t, func() bool {
		return count.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	// Cancelling twice must be safe.
	cancel()

	a.Publish(syncbus.Event{Kind: syncbus.KindStatus, InvoiceID: "INV-002"})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), count.Load())
}
