// Package docstore is the sink for published order documents: a flat keyed
// store with idempotent full-overwrite upserts. The engine treats it as
// opaque; the read-side API queries it.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"orderdocs/internal/model"
)

// Store is the minimal sink contract the engine needs. FindAll is used only
// by late-binding correction and is finite but unordered.
type Store interface {
	Upsert(ctx context.Context, doc model.OrderDocument) error
	Delete(ctx context.Context, orderID int64) error
	FindByID(ctx context.Context, orderID int64) (model.OrderDocument, bool, error)
	FindAll(ctx context.Context) ([]model.OrderDocument, error)
	Count(ctx context.Context) (int64, error)
}

// MemoryStore keeps documents as encoded records in process memory. Used by
// tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[int64][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[int64][]byte)}
}

func (s *MemoryStore) Upsert(ctx context.Context, doc model.OrderDocument) error {
	b, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal document %d: %w", doc.OrderID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.OrderID] = b
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, orderID)
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, orderID int64) (model.OrderDocument, bool, error) {
	s.mu.RLock()
	b, ok := s.docs[orderID]
	s.mu.RUnlock()
	if !ok {
		return model.OrderDocument{}, false, nil
	}
	var doc model.OrderDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return model.OrderDocument{}, false, fmt.Errorf("unmarshal document %d: %w", orderID, err)
	}
	return doc, true, nil
}

func (s *MemoryStore) FindAll(ctx context.Context) ([]model.OrderDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OrderDocument, 0, len(s.docs))
	for id, b := range s.docs {
		var doc model.OrderDocument
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document %d: %w", id, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.docs)), nil
}
