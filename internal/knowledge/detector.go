package knowledge

import "context"

// DetectedRelationship is a single proposal from a detector: the new fact
// bears Type relation to the fact with TargetID, with the given confidence.
type DetectedRelationship struct {
	TargetID   string
	Type       RelationshipType
	Confidence float64
}

// Detector proposes directed relationships from a newly added fact to any
// subset of the existing corpus. Implementations must tolerate an empty
// existing slice and must not mutate their inputs. Implementations backed
// by an external service should degrade to an empty result on internal
// failure rather than returning an error, so a bad detection round never
// stalls the pipeline; any error that is returned is logged by the worker
// and the fact's round is abandoned.
type Detector interface {
	Detect(ctx context.Context, newFact Fact, existing []Fact) ([]DetectedRelationship, error)
}

// DetectorFunc adapts an ordinary function to the Detector interface, for
// tests or bespoke detection logic without an external service.
type DetectorFunc func(ctx context.Context, newFact Fact, existing []Fact) ([]DetectedRelationship, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, newFact Fact, existing []Fact) ([]DetectedRelationship, error) {
	return f(ctx, newFact, existing)
}
