package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"factnet/internal/detector"
	"factnet/internal/graph"
	"factnet/internal/ingest"
	"factnet/internal/knowledge"
	"factnet/internal/viz"
	"factnet/pkg/config"
	"factnet/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting knowledge graph server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	// Initialize storage backend
	storage, err := buildStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", zap.Error(err))
	}

	// Initialize AI detector when an API key is configured
	var det knowledge.Detector
	if cfg.DetectionEnabled() {
		det = detector.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.DetectorBatchSize)
		log.Info("Relationship detection enabled", zap.String("model", cfg.OpenAIModel))
	} else {
		log.Info("Relationship detection disabled (no OPENAI_API_KEY)")
	}

	kg := knowledge.New(storage, det)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(kg, log)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := kg.Close(shutdownCtx); err != nil {
		log.Error("Failed to close knowledge graph", zap.Error(err))
	}

	log.Info("Server exited")
}

func buildStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (knowledge.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendNeo4j:
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
		}
		log.Info("Using Neo4j storage", zap.String("uri", cfg.Neo4jURI))
		repo, err := graph.NewRepository(ctx, driver)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		log.Info("Using in-memory storage")
		return knowledge.NewMemoryStorage(), nil
	}
}

// newRouter wires the HTTP API over the knowledge graph.
func newRouter(kg *knowledge.Graph, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Add a fact
		api.POST("/facts", func(c *gin.Context) {
			var req struct {
				Content  string         `json:"content" binding:"required"`
				ID       string         `json:"id"`
				Metadata map[string]any `json:"metadata"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			fact, err := kg.AddFact(c.Request.Context(), req.Content, req.ID, req.Metadata)
			if err != nil {
				log.Error("Failed to add fact", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add fact"})
				return
			}
			c.JSON(http.StatusCreated, fact)
		})

		// List all facts
		api.GET("/facts", func(c *gin.Context) {
			facts, err := kg.GetAllFacts(c.Request.Context())
			if err != nil {
				log.Error("Failed to list facts", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list facts"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"facts": facts})
		})

		// Get a fact by id
		api.GET("/facts/:id", func(c *gin.Context) {
			fact, err := kg.GetFact(c.Request.Context(), c.Param("id"))
			if err != nil {
				log.Error("Failed to get fact", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get fact"})
				return
			}
			if fact == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Fact not found"})
				return
			}
			c.JSON(http.StatusOK, fact)
		})

		// Facts that support the given fact
		api.GET("/facts/:id/supporting", func(c *gin.Context) {
			facts, err := kg.GetSupportingFacts(c.Request.Context(), c.Param("id"))
			if err != nil {
				log.Error("Failed to get supporting facts", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get supporting facts"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"facts": facts})
		})

		// Facts that contradict the given fact
		api.GET("/facts/:id/contradicting", func(c *gin.Context) {
			facts, err := kg.GetContradictingFacts(c.Request.Context(), c.Param("id"))
			if err != nil {
				log.Error("Failed to get contradicting facts", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get contradicting facts"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"facts": facts})
		})

		// Manually add a relationship
		api.POST("/relationships", func(c *gin.Context) {
			var req struct {
				SourceID   string         `json:"source_id" binding:"required"`
				TargetID   string         `json:"target_id" binding:"required"`
				Type       string         `json:"type" binding:"required"`
				Confidence *float64       `json:"confidence"`
				Metadata   map[string]any `json:"metadata"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			relType := knowledge.RelationshipType(req.Type)
			if !relType.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "type must be supports, contradicts, or neutral"})
				return
			}
			confidence := 1.0
			if req.Confidence != nil {
				confidence = *req.Confidence
			}

			rel, err := kg.AddManualRelationship(c.Request.Context(), req.SourceID, req.TargetID, relType, confidence, req.Metadata)
			if err != nil {
				log.Error("Failed to add relationship", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add relationship"})
				return
			}
			c.JSON(http.StatusCreated, rel)
		})

		// List relationships, optionally filtered by fact and type
		api.GET("/relationships", func(c *gin.Context) {
			relType := knowledge.RelationshipType(c.Query("type"))
			if relType != "" && !relType.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "type must be supports, contradicts, or neutral"})
				return
			}

			rels, err := kg.GetRelationships(c.Request.Context(), c.Query("fact_id"), relType)
			if err != nil {
				log.Error("Failed to list relationships", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list relationships"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"relationships": rels})
		})

		// Aggregate counts
		api.GET("/stats", func(c *gin.Context) {
			stats, err := kg.NetworkStats(c.Request.Context())
			if err != nil {
				log.Error("Failed to compute stats", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
				return
			}
			c.JSON(http.StatusOK, stats)
		})

		// Block until the detection queue has drained
		api.POST("/processing/wait", func(c *gin.Context) {
			if err := kg.WaitForProcessing(c.Request.Context()); err != nil {
				c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "drained"})
		})

		// Graphviz DOT rendering of the network
		api.GET("/graph.dot", func(c *gin.Context) {
			facts, err := kg.GetAllFacts(c.Request.Context())
			if err != nil {
				log.Error("Failed to render graph", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render graph"})
				return
			}
			rels, err := kg.GetRelationships(c.Request.Context(), "", "")
			if err != nil {
				log.Error("Failed to render graph", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render graph"})
				return
			}
			c.Data(http.StatusOK, "text/vnd.graphviz", []byte(viz.DOT(facts, rels)))
		})

		// Import facts scraped from a web page
		api.POST("/import", func(c *gin.Context) {
			var req struct {
				URL string `json:"url" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			ctx := c.Request.Context()
			sentences, err := ingest.FetchFacts(ctx, http.DefaultClient, req.URL)
			if err != nil {
				log.Error("Failed to import facts", zap.String("url", req.URL), zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to import facts"})
				return
			}

			ids := make([]string, 0, len(sentences))
			for _, sentence := range sentences {
				fact, err := kg.AddFact(ctx, sentence, "", map[string]any{"source_url": req.URL})
				if err != nil {
					log.Error("Failed to store imported fact", zap.Error(err))
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store imported fact"})
					return
				}
				ids = append(ids, fact.ID)
			}
			c.JSON(http.StatusCreated, gin.H{"imported": len(ids), "fact_ids": ids})
		})
	}

	return router
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
