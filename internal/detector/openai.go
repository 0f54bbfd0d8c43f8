package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"factnet/internal/knowledge"
	"factnet/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is how many existing facts fit in one request before
// the corpus is split across multiple completions.
const DefaultBatchSize = 20

// Proposals at or below this confidence are discarded at the parsing
// boundary regardless of what the model returns.
const minConfidence = 0.3

// OpenAI proposes relationships by asking a chat-completion model to
// classify a new fact against the existing corpus. The corpus is batched
// to respect payload limits, with one request per batch issued
// concurrently. Request and parse failures degrade to an empty result for
// that batch; Detect never returns a non-nil error.
type OpenAI struct {
	client    *openai.Client
	model     string
	batchSize int
	logger    *zap.Logger
}

// NewOpenAI creates a detector for the given model. baseURL overrides the
// API endpoint for OpenAI-compatible gateways and may be empty. A
// batchSize below 1 falls back to DefaultBatchSize.
func NewOpenAI(apiKey, baseURL, model string, batchSize int) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		batchSize: batchSize,
		logger:    logger.Get(),
	}
}

// Detect classifies newFact against every existing fact and returns the
// proposals that survive the confidence threshold.
func (d *OpenAI) Detect(ctx context.Context, newFact knowledge.Fact, existing []knowledge.Fact) ([]knowledge.DetectedRelationship, error) {
	if len(existing) == 0 {
		return nil, nil
	}

	var batches [][]knowledge.Fact
	for i := 0; i < len(existing); i += d.batchSize {
		end := i + d.batchSize
		if end > len(existing) {
			end = len(existing)
		}
		batches = append(batches, existing[i:end])
	}

	results := make([][]knowledge.DetectedRelationship, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			results[i] = d.processBatch(gctx, newFact, batch)
			return nil
		})
	}
	// Batch workers never return errors; failures degrade to empty results.
	_ = g.Wait()

	var detected []knowledge.DetectedRelationship
	for _, batch := range results {
		detected = append(detected, batch...)
	}

	d.logger.Debug("Relationship detection round complete",
		zap.String("fact_id", newFact.ID),
		zap.Int("batches", len(batches)),
		zap.Int("detected", len(detected)),
	)
	return detected, nil
}

func (d *OpenAI) processBatch(ctx context.Context, newFact knowledge.Fact, batch []knowledge.Fact) []knowledge.DetectedRelationship {
	req := openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(newFact, batch),
			},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
	}

	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		d.logger.Error("Relationship detection request failed",
			zap.String("fact_id", newFact.ID),
			zap.String("model", d.model),
			zap.Error(err),
		)
		return nil
	}
	if len(resp.Choices) == 0 {
		d.logger.Warn("Relationship detection returned no choices",
			zap.String("fact_id", newFact.ID),
		)
		return nil
	}

	detected, err := parseResponse(resp.Choices[0].Message.Content, batch)
	if err != nil {
		d.logger.Error("Failed to parse detection response",
			zap.String("fact_id", newFact.ID),
			zap.Error(err),
		)
		return nil
	}
	return detected
}

func buildPrompt(newFact knowledge.Fact, existing []knowledge.Fact) string {
	var sb strings.Builder
	for i, fact := range existing {
		fmt.Fprintf(&sb, "%d. ID: %s, Content: %s\n", i+1, fact.ID, fact.Content)
	}

	return fmt.Sprintf(`Analyze the relationships between this NEW FACT and the EXISTING FACTS below.

NEW FACT: %s

EXISTING FACTS:
%s
For each existing fact, determine if the new fact:
- SUPPORTS it (provides evidence for, confirms, reinforces)
- CONTRADICTS it (opposes, disproves, conflicts with)
- NEUTRAL (no clear relationship)

Respond with a JSON array of relationships. Each relationship should have:
- "fact_id": the ID of the existing fact
- "relationship": "supports", "contradicts", or "neutral"
- "confidence": a float between 0.0 and 1.0
- "reasoning": brief explanation

Only include relationships with confidence > 0.3. If no significant relationships exist, return an empty array.

Example format:
[
  {
    "fact_id": "fact_123",
    "relationship": "supports",
    "confidence": 0.85,
    "reasoning": "Both facts discuss the same phenomenon with consistent evidence"
  }
]`, newFact.Content, sb.String())
}

type responseItem struct {
	FactID       string  `json:"fact_id"`
	Relationship string  `json:"relationship"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// parseResponse extracts proposals from the model's reply. Proposals for
// unknown fact ids or unknown relationship kinds are dropped, as is
// anything at or below the confidence threshold.
func parseResponse(content string, existing []knowledge.Fact) ([]knowledge.DetectedRelationship, error) {
	content = strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(content, "```json"); ok {
		content = strings.TrimSuffix(strings.TrimSpace(after), "```")
	} else if after, ok := strings.CutPrefix(content, "```"); ok {
		content = strings.TrimSuffix(strings.TrimSpace(after), "```")
	}

	var items []responseItem
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, fmt.Errorf("invalid JSON in detection response: %w", err)
	}

	existingIDs := make(map[string]bool, len(existing))
	for _, fact := range existing {
		existingIDs[fact.ID] = true
	}

	var detected []knowledge.DetectedRelationship
	for _, item := range items {
		if !existingIDs[item.FactID] {
			continue
		}
		relType := knowledge.RelationshipType(strings.ToLower(item.Relationship))
		if !relType.Valid() {
			continue
		}
		if item.Confidence <= minConfidence {
			continue
		}
		detected = append(detected, knowledge.DetectedRelationship{
			TargetID:   item.FactID,
			Type:       relType,
			Confidence: item.Confidence,
		})
	}
	return detected, nil
}
