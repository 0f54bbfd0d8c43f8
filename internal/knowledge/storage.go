package knowledge

import "context"

// Storage is the persistence port for facts and relationship edges.
// Implementations may be called concurrently from the graph's synchronous
// API and its background worker.
type Storage interface {
	// AddFact inserts a fact, overwriting any prior fact with the same id
	// where the backend permits it.
	AddFact(ctx context.Context, fact Fact) (string, error)

	// GetFact returns the fact with the given id, or nil if absent.
	// An absent fact is not an error.
	GetFact(ctx context.Context, factID string) (*Fact, error)

	// GetAllFacts returns a snapshot of every stored fact.
	GetAllFacts(ctx context.Context) ([]Fact, error)

	// AddRelationship inserts an edge. If an edge already exists for the
	// same ordered (source, target) pair it is replaced as a whole.
	AddRelationship(ctx context.Context, rel Relationship) error

	// GetRelationships returns all edges when factID is empty, otherwise
	// every edge where the fact participates as source or target.
	GetRelationships(ctx context.Context, factID string) ([]Relationship, error)

	// UpdateRelationship is AddRelationship with empty metadata, provided
	// as the narrower entry point used by the detection pipeline.
	UpdateRelationship(ctx context.Context, sourceID, targetID string, relType RelationshipType, confidence float64) error
}

// Closer is implemented by storage backends that hold external resources,
// such as a database connection.
type Closer interface {
	Close(ctx context.Context) error
}
