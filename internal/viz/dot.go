// Package viz renders the knowledge network as Graphviz DOT text. It only
// consumes the graph's read operations and needs no knowledge of the
// detection pipeline.
package viz

import (
	"fmt"
	"strings"

	"factnet/internal/knowledge"
)

const maxLabelLength = 30

// DOT renders facts and relationships as a directed Graphviz graph.
// Supporting edges are solid green, contradicting edges dashed red, and
// neutral edges dotted gray, with each edge labeled by its confidence.
func DOT(facts []knowledge.Fact, rels []knowledge.Relationship) string {
	var sb strings.Builder
	sb.WriteString("digraph knowledge {\n")
	sb.WriteString("\trankdir=LR;\n")
	sb.WriteString("\tnode [shape=box, style=\"rounded,filled\", fillcolor=lightblue];\n")

	for _, fact := range facts {
		label := fact.Content
		// Truncate on runes so multi-byte content is never split mid-character.
		if runes := []rune(label); len(runes) > maxLabelLength {
			label = string(runes[:maxLabelLength]) + "..."
		}
		fmt.Fprintf(&sb, "\t%q [label=%q];\n", fact.ID, label)
	}

	for _, rel := range rels {
		color, style := edgeAttrs(rel.Type)
		fmt.Fprintf(&sb, "\t%q -> %q [color=%s, style=%s, label=\"%.2f\"];\n",
			rel.SourceID, rel.TargetID, color, style, rel.Confidence)
	}

	sb.WriteString("}\n")
	return sb.String()
}

func edgeAttrs(relType knowledge.RelationshipType) (color, style string) {
	switch relType {
	case knowledge.RelationshipSupports:
		return "green", "solid"
	case knowledge.RelationshipContradicts:
		return "red", "dashed"
	default:
		return "gray", "dotted"
	}
}
