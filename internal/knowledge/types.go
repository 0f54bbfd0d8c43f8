package knowledge

import "time"

// RelationshipType classifies how one fact bears on another.
type RelationshipType string

const (
	RelationshipSupports    RelationshipType = "supports"
	RelationshipContradicts RelationshipType = "contradicts"
	RelationshipNeutral     RelationshipType = "neutral"
)

// Valid reports whether t is one of the three known kinds.
func (t RelationshipType) Valid() bool {
	switch t {
	case RelationshipSupports, RelationshipContradicts, RelationshipNeutral:
		return true
	}
	return false
}

// Fact is an atomic unit of asserted content in the graph. Facts are
// immutable once stored; there is no update operation.
type Fact struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Relationship is a directed, typed, confidence-weighted edge from one
// fact to another: source bears Type relation to target. At most one edge
// exists per ordered (source, target) pair; adding a second replaces the
// first as a whole.
type Relationship struct {
	SourceID   string           `json:"source_id"`
	TargetID   string           `json:"target_id"`
	Type       RelationshipType `json:"type"`
	Confidence float64          `json:"confidence"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NetworkStats holds aggregate counts computed fresh from storage.
type NetworkStats struct {
	TotalFacts                 int `json:"total_facts"`
	TotalRelationships         int `json:"total_relationships"`
	SupportRelationships       int `json:"support_relationships"`
	ContradictionRelationships int `json:"contradiction_relationships"`
	NeutralRelationships       int `json:"neutral_relationships"`
}
