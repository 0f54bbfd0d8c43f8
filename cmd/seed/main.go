package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"factnet/internal/detector"
	"factnet/internal/graph"
	"factnet/internal/knowledge"
	"factnet/pkg/config"
	"factnet/pkg/logger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Demo corpus: statements chosen so the detector has obvious support and
// contradiction chains to find.
var demoFacts = []string{
	"Regular exercise improves cardiovascular health and reduces the risk of heart disease.",
	"A sedentary lifestyle significantly increases the risk of heart disease.",
	"Studies show that people who walk 10,000 steps a day have lower blood pressure.",
	"Physical activity has no measurable effect on long-term heart health.",
	"The Mediterranean diet is associated with reduced rates of cardiovascular disease.",
}

func main() {
	withDetector := flag.Bool("detect", true, "Run AI relationship detection over the seeded facts")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall deadline for seeding and detection")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting knowledge graph seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Initialize storage backend
	var storage knowledge.Storage
	if cfg.StorageBackend == config.BackendNeo4j {
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			log.Fatal("Failed to create Neo4j driver", zap.Error(err))
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
		}
		storage, err = graph.NewRepository(ctx, driver)
		if err != nil {
			log.Fatal("Failed to initialize repository", zap.Error(err))
		}
	} else {
		storage = knowledge.NewMemoryStorage()
		log.Warn("Seeding in-memory storage; data is discarded on exit")
	}

	var det knowledge.Detector
	if *withDetector && cfg.DetectionEnabled() {
		det = detector.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.DetectorBatchSize)
	}

	kg := knowledge.New(storage, det)

	var firstID, lastID string
	for _, content := range demoFacts {
		fact, err := kg.AddFact(ctx, content, "", map[string]any{"seed": true})
		if err != nil {
			log.Fatal("Failed to add fact", zap.Error(err))
		}
		if firstID == "" {
			firstID = fact.ID
		}
		lastID = fact.ID
		log.Info("Fact added", zap.String("fact_id", fact.ID), zap.String("content", content))
	}

	// One manual edge so the graph is interesting even without a detector.
	if _, err := kg.AddManualRelationship(ctx, lastID, firstID, knowledge.RelationshipSupports, 0.9, nil); err != nil {
		log.Fatal("Failed to add manual relationship", zap.Error(err))
	}

	if det != nil {
		log.Info("Waiting for relationship detection to drain...")
		if err := kg.WaitForProcessing(ctx); err != nil {
			log.Error("Detection did not drain in time", zap.Error(err))
		}
	}

	stats, err := kg.NetworkStats(ctx)
	if err != nil {
		log.Fatal("Failed to compute stats", zap.Error(err))
	}
	log.Info("Seeding complete",
		zap.Int("facts", stats.TotalFacts),
		zap.Int("relationships", stats.TotalRelationships),
		zap.Int("supports", stats.SupportRelationships),
		zap.Int("contradicts", stats.ContradictionRelationships),
		zap.Int("neutral", stats.NeutralRelationships),
	)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := kg.Close(closeCtx); err != nil {
		log.Error("Failed to close knowledge graph", zap.Error(err))
	}
}
