package graph

import (
	"context"
	"fmt"
	"time"

	"factnet/internal/knowledge"
	"factnet/pkg/logger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Repository persists facts and relationships in Neo4j. Facts map to
// (:Fact) nodes and relationships to [:RELATES_TO] edges merged on their
// ordered endpoint pair, so adding over an existing edge replaces it.
// Each operation runs in its own session.
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a graph repository and installs the uniqueness
// constraint on fact ids. Constraint creation is idempotent.
func NewRepository(ctx context.Context, driver neo4j.DriverWithContext) (*Repository, error) {
	r := &Repository{
		driver: driver,
		logger: logger.Get(),
	}
	if err := r.setupConstraints(ctx); err != nil {
		return nil, fmt.Errorf("failed to set up constraints: %w", err)
	}
	return r, nil
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) setupConstraints(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `CREATE CONSTRAINT fact_id IF NOT EXISTS FOR (f:Fact) REQUIRE f.id IS UNIQUE`

	_, err := session.Run(ctx, query, nil)
	return err
}

// AddFact creates a fact node. A duplicate id violates the uniqueness
// constraint and surfaces as a backend error.
func (r *Repository) AddFact(ctx context.Context, fact knowledge.Fact) (string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	metadata, err := encodeMetadata(fact.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode fact metadata: %w", err)
	}

	query := `
		CREATE (f:Fact {
			id: $id,
			content: $content,
			metadata: $metadata,
			created_at: datetime($now)
		})
		RETURN f.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id":       fact.ID,
		"content":  fact.Content,
		"metadata": metadata,
		"now":      fact.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create fact: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to verify fact creation: %w", err)
	}

	r.logger.Debug("Fact created",
		zap.String("fact_id", getStringFromRecord(record, "id")),
	)
	return fact.ID, nil
}

// GetFact returns the fact with the given id, or nil if absent.
func (r *Repository) GetFact(ctx context.Context, factID string) (*knowledge.Fact, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (f:Fact {id: $id})
		RETURN f.id as id, f.content as content, f.metadata as metadata, f.created_at as created_at
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id": factID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get fact: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch record: %w", err)
		}
		return nil, nil
	}

	fact, err := factFromRecord(result.Record())
	if err != nil {
		return nil, err
	}
	return fact, nil
}

// GetAllFacts returns every fact node. Order is unspecified.
func (r *Repository) GetAllFacts(ctx context.Context) ([]knowledge.Fact, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (f:Fact)
		RETURN f.id as id, f.content as content, f.metadata as metadata, f.created_at as created_at
	`

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get facts: %w", err)
	}

	var facts []knowledge.Fact
	for result.Next(ctx) {
		fact, err := factFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		facts = append(facts, *fact)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facts: %w", err)
	}

	return facts, nil
}

// AddRelationship merges the edge for the ordered (source, target) pair and
// overwrites its type, confidence, and metadata. If either endpoint is
// absent the MERGE matches nothing and the edge is silently not created.
func (r *Repository) AddRelationship(ctx context.Context, rel knowledge.Relationship) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	metadata, err := encodeMetadata(rel.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode relationship metadata: %w", err)
	}

	query := `
		MATCH (source:Fact {id: $sourceID}), (target:Fact {id: $targetID})
		MERGE (source)-[r:RELATES_TO]->(target)
		SET r.type = $type,
		    r.confidence = $confidence,
		    r.metadata = $metadata,
		    r.updated_at = datetime($now)
	`

	_, err = session.Run(ctx, query, map[string]interface{}{
		"sourceID":   rel.SourceID,
		"targetID":   rel.TargetID,
		"type":       string(rel.Type),
		"confidence": rel.Confidence,
		"metadata":   metadata,
		"now":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to add relationship: %w", err)
	}

	return nil
}

// GetRelationships returns all edges, or the edges touching factID when it
// is non-empty.
func (r *Repository) GetRelationships(ctx context.Context, factID string) ([]knowledge.Relationship, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (source:Fact)-[r:RELATES_TO]->(target:Fact)
		RETURN source.id as source_id, target.id as target_id,
		       r.type as type, r.confidence as confidence,
		       r.metadata as metadata, r.updated_at as updated_at
	`
	params := map[string]interface{}{}
	if factID != "" {
		query = `
			MATCH (source:Fact)-[r:RELATES_TO]->(target:Fact)
			WHERE source.id = $factID OR target.id = $factID
			RETURN source.id as source_id, target.id as target_id,
			       r.type as type, r.confidence as confidence,
			       r.metadata as metadata, r.updated_at as updated_at
		`
		params["factID"] = factID
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get relationships: %w", err)
	}

	var rels []knowledge.Relationship
	for result.Next(ctx) {
		rel, err := relationshipFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		rels = append(rels, *rel)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate relationships: %w", err)
	}

	return rels, nil
}

// UpdateRelationship upserts an edge with empty metadata.
func (r *Repository) UpdateRelationship(ctx context.Context, sourceID, targetID string, relType knowledge.RelationshipType, confidence float64) error {
	return r.AddRelationship(ctx, knowledge.Relationship{
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       relType,
		Confidence: confidence,
	})
}
