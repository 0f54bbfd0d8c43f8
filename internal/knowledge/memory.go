package knowledge

import (
	"context"
	"sync"
	"time"
)

type edgeKey struct {
	sourceID string
	targetID string
}

// MemoryStorage keeps facts and relationships in process memory. Facts are
// returned in insertion order. Relationships are keyed by their ordered
// (source, target) pair, so replace-on-add is an atomic upsert.
type MemoryStorage struct {
	mu        sync.RWMutex
	facts     map[string]Fact
	factOrder []string
	edges     map[edgeKey]Relationship
	edgeOrder []edgeKey
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		facts: make(map[string]Fact),
		edges: make(map[edgeKey]Relationship),
	}
}

// AddFact stores the fact, overwriting any prior fact with the same id.
func (s *MemoryStorage) AddFact(ctx context.Context, fact Fact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.facts[fact.ID]; !exists {
		s.factOrder = append(s.factOrder, fact.ID)
	}
	s.facts[fact.ID] = fact
	return fact.ID, nil
}

// GetFact returns the fact with the given id, or nil if absent.
func (s *MemoryStorage) GetFact(ctx context.Context, factID string) (*Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fact, ok := s.facts[factID]
	if !ok {
		return nil, nil
	}
	return &fact, nil
}

// GetAllFacts returns every fact in insertion order.
func (s *MemoryStorage) GetAllFacts(ctx context.Context) ([]Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := make([]Fact, 0, len(s.factOrder))
	for _, id := range s.factOrder {
		facts = append(facts, s.facts[id])
	}
	return facts, nil
}

// AddRelationship upserts the edge for rel's ordered (source, target) pair.
// A replaced edge keeps its original listing position.
func (s *MemoryStorage) AddRelationship(ctx context.Context, rel Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{sourceID: rel.SourceID, targetID: rel.TargetID}
	if _, exists := s.edges[key]; !exists {
		s.edgeOrder = append(s.edgeOrder, key)
	}
	s.edges[key] = rel
	return nil
}

// GetRelationships returns all edges, or the edges touching factID when it
// is non-empty.
func (s *MemoryStorage) GetRelationships(ctx context.Context, factID string) ([]Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rels := make([]Relationship, 0, len(s.edgeOrder))
	for _, key := range s.edgeOrder {
		if factID != "" && key.sourceID != factID && key.targetID != factID {
			continue
		}
		rels = append(rels, s.edges[key])
	}
	return rels, nil
}

// UpdateRelationship upserts an edge with empty metadata.
func (s *MemoryStorage) UpdateRelationship(ctx context.Context, sourceID, targetID string, relType RelationshipType, confidence float64) error {
	return s.AddRelationship(ctx, Relationship{
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       relType,
		Confidence: confidence,
		UpdatedAt:  time.Now().UTC(),
	})
}
