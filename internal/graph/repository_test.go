package graph

import (
	"context"
	"testing"
	"time"

	"factnet/internal/knowledge"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// These tests require a running Neo4j instance on bolt://localhost:7687
// with neo4j/password credentials.

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := "bolt://localhost:7687"
	user := "neo4j"
	password := "password"

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}

func cleanupFacts(ctx context.Context, driver neo4j.DriverWithContext, ids ...string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	for _, id := range ids {
		_, _ = session.Run(ctx, "MATCH (f:Fact {id: $id}) DETACH DELETE f", map[string]interface{}{"id": id})
	}
}

func TestRepository_FactRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo, err := NewRepository(ctx, driver)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}

	factID := "test-fact-" + time.Now().Format("20060102150405.000")
	defer cleanupFacts(ctx, driver, factID)

	_, err = repo.AddFact(ctx, knowledge.Fact{
		ID:        factID,
		Content:   "integration test fact",
		Metadata:  map[string]any{"suite": "repository"},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AddFact failed: %v", err)
	}

	fact, err := repo.GetFact(ctx, factID)
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if fact == nil {
		t.Fatal("Fact not found after creation")
	}
	if fact.Content != "integration test fact" {
		t.Errorf("Unexpected content: %s", fact.Content)
	}
	if fact.Metadata["suite"] != "repository" {
		t.Errorf("Metadata not round-tripped: %v", fact.Metadata)
	}
}

func TestRepository_GetFact_Absent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo, err := NewRepository(ctx, driver)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}

	fact, err := repo.GetFact(ctx, "non-existent-fact")
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if fact != nil {
		t.Errorf("Expected nil for absent fact, got %+v", fact)
	}
}

func TestRepository_RelationshipReplacement(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo, err := NewRepository(ctx, driver)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}

	stamp := time.Now().Format("20060102150405.000")
	sourceID := "test-source-" + stamp
	targetID := "test-target-" + stamp
	defer cleanupFacts(ctx, driver, sourceID, targetID)

	for _, id := range []string{sourceID, targetID} {
		if _, err := repo.AddFact(ctx, knowledge.Fact{ID: id, Content: "endpoint", CreatedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("AddFact failed: %v", err)
		}
	}

	first := knowledge.Relationship{SourceID: sourceID, TargetID: targetID, Type: knowledge.RelationshipSupports, Confidence: 0.8}
	if err := repo.AddRelationship(ctx, first); err != nil {
		t.Fatalf("AddRelationship failed: %v", err)
	}
	second := knowledge.Relationship{SourceID: sourceID, TargetID: targetID, Type: knowledge.RelationshipContradicts, Confidence: 0.4}
	if err := repo.AddRelationship(ctx, second); err != nil {
		t.Fatalf("AddRelationship failed: %v", err)
	}

	rels, err := repo.GetRelationships(ctx, sourceID)
	if err != nil {
		t.Fatalf("GetRelationships failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("Expected exactly 1 edge after replacement, got %d", len(rels))
	}
	if rels[0].Type != knowledge.RelationshipContradicts || rels[0].Confidence != 0.4 {
		t.Errorf("Edge not replaced as a whole: %+v", rels[0])
	}
}

func TestRepository_Relationship_MissingEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo, err := NewRepository(ctx, driver)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}

	factID := "test-lonely-" + time.Now().Format("20060102150405.000")
	defer cleanupFacts(ctx, driver, factID)

	if _, err := repo.AddFact(ctx, knowledge.Fact{ID: factID, Content: "endpoint", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("AddFact failed: %v", err)
	}

	// MATCH finds no pair, so the edge silently fails to be created.
	err = repo.AddRelationship(ctx, knowledge.Relationship{
		SourceID: factID,
		TargetID: "never-created",
		Type:     knowledge.RelationshipNeutral,
	})
	if err != nil {
		t.Fatalf("AddRelationship should not error on a missing endpoint: %v", err)
	}

	rels, err := repo.GetRelationships(ctx, factID)
	if err != nil {
		t.Fatalf("GetRelationships failed: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("Expected no edge, got %+v", rels)
	}
}
