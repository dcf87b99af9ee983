package inbox

import (
	"context"
	"log/slog"
	"sync"

	"github.com/onliner/medibill/internal/syncbus"
)

// Session holds one client session's cached projection. Any event published
// by another session and any foreground activation triggers a full
// re-derivation; events are never applied as incremental patches because bus
// delivery is best-effort and unordered across ids.
type Session struct {
	projector *Projector
	cancel    func()

	mu      sync.RWMutex
	entries []Entry
	unread  int
}

// NewSession subscribes the session to the bus and primes the cache.
func NewSession(ctx context.Context, projector *Projector, bus *syncbus.Session) (*Session, error) {
	s := &Session{projector: projector}

	s.cancel = bus.Subscribe(func(syncbus.Event) {
		if err := s.Refresh(context.Background()); err != nil {
			slog.Warn("inbox refresh after bus event failed", "error", err)
		}
	})

	if err := s.Refresh(ctx); err != nil {
		s.cancel()
		return nil, err
	}

	return s, nil
}

// Refresh re-derives the cached view from the authoritative stores.
func (s *Session) Refresh(ctx context.Context) error {
	entries, err := s.projector.View(ctx, Filters{})
	if err != nil {
		return err
	}

	unread, err := s.projector.UnreadCount(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = entries
	s.unread = unread
	s.mu.Unlock()

	return nil
}

// Activate is the focus-regain hook compensating for missed bus events.
func (s *Session) Activate(ctx context.Context) error {
	return s.Refresh(ctx)
}

// Snapshot returns the cached entries and unread count.
func (s *Session) Snapshot() ([]Entry, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.entries, s.unread
}

// Close releases the bus subscription.
func (s *Session) Close() {
	s.cancel()
}
