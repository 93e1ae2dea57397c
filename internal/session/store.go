// Package session persists per-viewer highlight selection state.
package session

import (
	"context"
	"sync"
	"time"

	"geocompliance/api/internal/review"
)

// Store keeps the selection a viewer currently has on a document. Entries
// expire so abandoned viewers do not accumulate.
type Store interface {
	Get(ctx context.Context, viewerID, documentID string) (review.Selection, error)
	Save(ctx context.Context, viewerID, documentID string, sel review.Selection) error
	Clear(ctx context.Context, viewerID, documentID string) error
	Ping(ctx context.Context) error
	Close() error
}

type memoryEntry struct {
	sel       review.Selection
	expiresAt time.Time
}

// MemoryStore is the fallback backend used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func memoryKey(viewerID, documentID string) string {
	return viewerID + "/" + documentID
}

func (s *MemoryStore) Get(_ context.Context, viewerID, documentID string) (review.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[memoryKey(viewerID, documentID)]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.entries, memoryKey(viewerID, documentID))
		return review.Selection{}, nil
	}
	return entry.sel, nil
}

func (s *MemoryStore) Save(_ context.Context, viewerID, documentID string, sel review.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[memoryKey(viewerID, documentID)] = memoryEntry{
		sel:       sel,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, viewerID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, memoryKey(viewerID, documentID))
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
