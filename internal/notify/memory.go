package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store for tests and the memory backend, in the
// spirit of the in-memory queue: same contract, no external dependency.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]*Notification // keyed by id
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]*Notification{}}
}

// FindByDedupeKey returns the document with the exact composite key, or nil.
func (s *MemoryStore) FindByDedupeKey(_ context.Context, key string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.docs {
		if doc.DedupeKey == key {
			clone := *doc
			return &clone, nil
		}
	}
	return nil, nil
}

// Insert stores a copy of the document.
func (s *MemoryStore) Insert(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *n
	s.docs[n.ID] = &clone
	return nil
}

// Get returns a document by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

// ListForTargets returns documents whose targets intersect the given keys,
// newest first.
func (s *MemoryStore) ListForTargets(_ context.Context, targets []string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	want := map[string]bool{}
	for _, t := range targets {
		want[t] = true
	}

	s.mu.Lock()
	var out []*Notification
	for _, doc := range s.docs {
		for _, target := range doc.Targets {
			if want[target] {
				clone := *doc
				out = append(out, &clone)
				break
			}
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkRead flags a document read.
func (s *MemoryStore) MarkRead(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.Read = true
	doc.AcknowledgedAt = &at
	doc.UpdatedAt = at
	return nil
}

// DismissSurface stamps a per-surface dismissal timestamp.
func (s *MemoryStore) DismissSurface(_ context.Context, id string, surface Surface, markRead bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	if doc.DismissedSurfaces == nil {
		doc.DismissedSurfaces = map[string]time.Time{}
	}
	doc.DismissedSurfaces[string(surface)] = at
	if markRead {
		doc.Read = true
	}
	doc.UpdatedAt = at
	return nil
}

// All returns every stored document; test helper.
func (s *MemoryStore) All() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Notification, 0, len(s.docs))
	for _, doc := range s.docs {
		clone := *doc
		out = append(out, &clone)
	}
	return out
}
