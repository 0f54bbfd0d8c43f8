package graph

import (
	"encoding/json"
	"fmt"
	"time"

	"factnet/internal/knowledge"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Record Helpers
// ============================================================================

// Neo4j properties cannot hold nested maps, so metadata travels as a JSON
// string. An empty map is stored as null to keep the property absent.

func encodeMetadata(metadata map[string]any) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func decodeMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}

func factFromRecord(record *neo4j.Record) (*knowledge.Fact, error) {
	metadata, err := decodeMetadata(getStringFromRecord(record, "metadata"))
	if err != nil {
		return nil, err
	}
	return &knowledge.Fact{
		ID:        getStringFromRecord(record, "id"),
		Content:   getStringFromRecord(record, "content"),
		Metadata:  metadata,
		CreatedAt: getTimeFromRecord(record, "created_at"),
	}, nil
}

func relationshipFromRecord(record *neo4j.Record) (*knowledge.Relationship, error) {
	metadata, err := decodeMetadata(getStringFromRecord(record, "metadata"))
	if err != nil {
		return nil, err
	}
	return &knowledge.Relationship{
		SourceID:   getStringFromRecord(record, "source_id"),
		TargetID:   getStringFromRecord(record, "target_id"),
		Type:       knowledge.RelationshipType(getStringFromRecord(record, "type")),
		Confidence: getFloat64FromRecord(record, "confidence"),
		Metadata:   metadata,
		UpdatedAt:  getTimeFromRecord(record, "updated_at"),
	}, nil
}

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getFloat64FromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}

func getTimeFromRecord(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	// Neo4j datetime values come as time.Time
	if t, ok := val.(time.Time); ok {
		return t
	}
	return time.Time{}
}
