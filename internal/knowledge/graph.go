package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"factnet/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Graph owns fact creation, relationship queries, and the background
// relationship-detection pipeline. Writes go synchronously to storage;
// when a detector is configured, each new fact is additionally queued for
// one background worker that proposes relationships against the existing
// corpus and writes them back. Readers never block on the queue, so query
// results reflect whatever has been processed by call time; callers that
// need a settled view use WaitForProcessing.
type Graph struct {
	storage  Storage
	detector Detector
	logger   *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Fact // FIFO of facts awaiting detection
	pending int    // queued plus in-flight items
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a graph over the given storage and starts its background
// worker. detector may be nil, in which case facts are stored without any
// relationship detection.
func New(storage Storage, detector Detector) *Graph {
	g := &Graph{
		storage:  storage,
		detector: detector,
		logger:   logger.Get(),
		done:     make(chan struct{}),
	}
	g.cond = sync.NewCond(&g.mu)
	g.ctx, g.cancel = context.WithCancel(context.Background())
	go g.run()
	return g
}

// AddFact stores a new fact and, when a detector is configured, enqueues
// it for background relationship detection. The returned fact is queryable
// immediately; detection is fire-and-forget. A generated id is used when
// factID is empty. Caller-supplied ids are not checked for uniqueness.
func (g *Graph) AddFact(ctx context.Context, content, factID string, metadata map[string]any) (*Fact, error) {
	if factID == "" {
		factID = uuid.New().String()
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	fact := Fact{
		ID:        factID,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := g.storage.AddFact(ctx, fact); err != nil {
		return nil, fmt.Errorf("failed to store fact: %w", err)
	}

	if g.detector != nil {
		g.mu.Lock()
		if !g.closed {
			g.queue = append(g.queue, fact)
			g.pending++
			g.cond.Broadcast()
		}
		g.mu.Unlock()
	}

	return &fact, nil
}

// GetFact returns the fact with the given id, or nil if absent.
func (g *Graph) GetFact(ctx context.Context, factID string) (*Fact, error) {
	return g.storage.GetFact(ctx, factID)
}

// GetAllFacts returns every stored fact.
func (g *Graph) GetAllFacts(ctx context.Context) ([]Fact, error) {
	return g.storage.GetAllFacts(ctx)
}

// AddManualRelationship writes an edge directly to storage, bypassing the
// detection queue. Endpoint existence is enforced only to whatever extent
// the backend itself enforces it.
func (g *Graph) AddManualRelationship(ctx context.Context, sourceID, targetID string, relType RelationshipType, confidence float64, metadata map[string]any) (*Relationship, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	rel := Relationship{
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       relType,
		Confidence: confidence,
		Metadata:   metadata,
		UpdatedAt:  time.Now().UTC(),
	}

	if err := g.storage.AddRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("failed to store relationship: %w", err)
	}
	return &rel, nil
}

// GetRelationships returns edges from storage, filtered to those touching
// factID when it is non-empty and to relType when it is non-empty.
func (g *Graph) GetRelationships(ctx context.Context, factID string, relType RelationshipType) ([]Relationship, error) {
	rels, err := g.storage.GetRelationships(ctx, factID)
	if err != nil {
		return nil, err
	}
	if relType == "" {
		return rels, nil
	}

	filtered := make([]Relationship, 0, len(rels))
	for _, rel := range rels {
		if rel.Type == relType {
			filtered = append(filtered, rel)
		}
	}
	return filtered, nil
}

// GetSupportingFacts returns the facts that support the given fact: the
// sources of SUPPORTS edges pointing into it, as of call time.
func (g *Graph) GetSupportingFacts(ctx context.Context, factID string) ([]Fact, error) {
	return g.incomingFacts(ctx, factID, RelationshipSupports)
}

// GetContradictingFacts returns the facts that contradict the given fact:
// the sources of CONTRADICTS edges pointing into it, as of call time.
func (g *Graph) GetContradictingFacts(ctx context.Context, factID string) ([]Fact, error) {
	return g.incomingFacts(ctx, factID, RelationshipContradicts)
}

func (g *Graph) incomingFacts(ctx context.Context, factID string, relType RelationshipType) ([]Fact, error) {
	rels, err := g.GetRelationships(ctx, factID, relType)
	if err != nil {
		return nil, err
	}

	facts := make([]Fact, 0, len(rels))
	for _, rel := range rels {
		if rel.TargetID != factID {
			continue
		}
		fact, err := g.storage.GetFact(ctx, rel.SourceID)
		if err != nil {
			return nil, err
		}
		// Edges whose source no longer resolves contribute nothing.
		if fact != nil {
			facts = append(facts, *fact)
		}
	}
	return facts, nil
}

// NetworkStats computes aggregate counts fresh from storage.
func (g *Graph) NetworkStats(ctx context.Context) (*NetworkStats, error) {
	facts, err := g.storage.GetAllFacts(ctx)
	if err != nil {
		return nil, err
	}
	rels, err := g.storage.GetRelationships(ctx, "")
	if err != nil {
		return nil, err
	}

	stats := &NetworkStats{
		TotalFacts:         len(facts),
		TotalRelationships: len(rels),
	}
	for _, rel := range rels {
		switch rel.Type {
		case RelationshipSupports:
			stats.SupportRelationships++
		case RelationshipContradicts:
			stats.ContradictionRelationships++
		case RelationshipNeutral:
			stats.NeutralRelationships++
		}
	}
	return stats, nil
}

// WaitForProcessing blocks until every fact enqueued before the call has
// been fully processed, the graph is closed, or ctx expires. It is the
// mechanism for obtaining a settled view after a burst of additions.
func (g *Graph) WaitForProcessing(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		// Broadcast under the lock so a waiter between its predicate
		// check and cond.Wait cannot miss the wakeup.
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	for g.pending > 0 && !g.closed && ctx.Err() == nil {
		g.cond.Wait()
	}
	return ctx.Err()
}

// Close stops the background worker, abandoning any detection in flight,
// and closes the storage backend if it holds external resources. ctx
// bounds how long Close waits for the worker to observe cancellation.
func (g *Graph) Close(ctx context.Context) error {
	g.mu.Lock()
	alreadyClosed := g.closed
	g.closed = true
	// Cancel and broadcast under the lock: a broadcast issued between a
	// waiter's predicate check and its cond.Wait would otherwise be lost.
	g.cancel()
	g.cond.Broadcast()
	g.mu.Unlock()

	if !alreadyClosed {
		select {
		case <-g.done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for processing worker: %w", ctx.Err())
		}
	}

	if closer, ok := g.storage.(Closer); ok {
		return closer.Close(ctx)
	}
	return nil
}

// run is the background worker: it drains the queue in FIFO order, one
// fact at a time, for the graph's lifetime. A failed round is logged and
// the loop moves on; the pending count is decremented regardless of
// outcome so WaitForProcessing can never wedge on a bad fact.
func (g *Graph) run() {
	defer close(g.done)

	for {
		g.mu.Lock()
		for len(g.queue) == 0 && !g.closed && g.ctx.Err() == nil {
			g.cond.Wait()
		}
		if g.closed || g.ctx.Err() != nil {
			g.mu.Unlock()
			return
		}
		fact := g.queue[0]
		g.queue = g.queue[1:]
		g.mu.Unlock()

		if err := g.process(g.ctx, fact); err != nil && g.ctx.Err() == nil {
			g.logger.Error("Relationship processing failed",
				zap.String("fact_id", fact.ID),
				zap.Error(err),
			)
		}

		g.mu.Lock()
		g.pending--
		if g.pending == 0 {
			g.cond.Broadcast()
		}
		g.mu.Unlock()
	}
}

// process runs one detection round for a fact: fetch the current corpus,
// exclude the fact itself, invoke the detector, and write each proposed
// edge back through storage.
func (g *Graph) process(ctx context.Context, fact Fact) error {
	if g.detector == nil {
		return nil
	}

	all, err := g.storage.GetAllFacts(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch existing facts: %w", err)
	}

	existing := make([]Fact, 0, len(all))
	for _, f := range all {
		if f.ID != fact.ID {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	detected, err := g.detector.Detect(ctx, fact, existing)
	if err != nil {
		return fmt.Errorf("relationship detection failed: %w", err)
	}

	for _, d := range detected {
		if err := g.storage.UpdateRelationship(ctx, fact.ID, d.TargetID, d.Type, d.Confidence); err != nil {
			return fmt.Errorf("failed to store detected relationship %s -> %s: %w", fact.ID, d.TargetID, err)
		}
	}

	g.logger.Debug("Processed relationships for fact",
		zap.String("fact_id", fact.ID),
		zap.Int("detected", len(detected)),
	)
	return nil
}
