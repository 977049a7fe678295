package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dialectic-sh/dialectic/internal/api/handlers"
	mw "github.com/dialectic-sh/dialectic/internal/api/middleware"
	"github.com/dialectic-sh/dialectic/internal/buildconfig"
	"github.com/dialectic-sh/dialectic/internal/config"
	"github.com/dialectic-sh/dialectic/internal/debate"
	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/embedding"
	"github.com/dialectic-sh/dialectic/internal/llm"
	"github.com/dialectic-sh/dialectic/internal/retrieval"
	"github.com/dialectic-sh/dialectic/internal/service"
	"github.com/dialectic-sh/dialectic/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and the background debate queue for lifecycle
// management, plus whichever backend connections the configuration selected.
type App struct {
	Router *chi.Mux
	Queue  *service.DebateQueue

	db     *pgxpool.Pool
	neo    *store.Neo4jGraphStore
	logger *zap.Logger

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp wires stores, clients, services, and handlers from configuration.
// Unlike a fixed-backend setup, store construction can fail here (bad
// DATABASE_URL, unreachable Neo4j), so the whole assembly returns an error.
func NewApp(ctx context.Context, logger *zap.Logger) (*App, error) {
	app := &App{
		logger:    logger,
		startTime: time.Now(),
	}

	graphStore, err := app.graphStore(ctx)
	if err != nil {
		return nil, err
	}
	vectors, lexical, err := app.indexes(ctx)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey(), config.EmbeddingModel())
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))

	baseURL := config.OpenAIBaseURL()
	if config.LLMProvider() == llm.ProviderOllama {
		baseURL = config.OllamaBaseURL()
	}
	gen, err := llm.NewClient(config.LLMProvider(), llm.Config{
		APIKey:  config.LLMAPIKey(),
		Model:   config.GenerationModel(),
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("generation client: %w", err)
	}
	logger.Info("generation client initialized",
		zap.String("provider", config.LLMProvider()),
		zap.String("model", config.GenerationModel()))

	// Debates and reranking share one gated client so a slow backend never
	// sees concurrent generation calls.
	gate := llm.NewGate(gen, 1, config.GenerationTimeout())

	var reranker domain.Reranker
	if config.RerankProvider() == "llm" {
		reranker = llm.NewLLMReranker(gate)
		logger.Info("LLM reranking enabled")
	}

	retriever := retrieval.NewRetriever(vectors, lexical, embedder, reranker, logger)

	machine := debate.NewMachine(gate, logger)
	orchestrator := service.NewOrchestrator(graphStore, retriever, machine, config.DebateCacheTTL(), logger)
	orchestrator.MinConfidence = config.DebateMinConfidence()
	orchestrator.MinCitations = config.DebateMinCitations()
	orchestrator.EvidenceTopK = config.DebateEvidenceTopK()

	analyzer := service.NewAnalyzer(graphStore, logger)
	app.Queue = service.NewDebateQueue(orchestrator, analyzer, config.DebateQueueWorkers(), 0, logger)

	ingest := service.NewIngestService(graphStore, retriever, embedder, app.Queue, logger)
	ingest.AutoDebateThreshold = config.AutoDebateThreshold()

	gaps := service.NewGapGenerator(analyzer, graphStore, logger)

	// Handlers
	claimHandler := handlers.NewClaimHandler(ingest, graphStore)
	chunkHandler := handlers.NewChunkHandler(ingest)
	searchHandler := handlers.NewSearchHandler(retriever)
	debateHandler := handlers.NewDebateHandler(orchestrator)
	relationshipHandler := handlers.NewRelationshipHandler(graphStore)
	analysisHandler := handlers.NewAnalysisHandler(analyzer)
	gapHandler := handlers.NewGapHandler(gaps)
	graphHandler := handlers.NewGraphHandler(analyzer)

	r := chi.NewRouter()
	app.Router = r

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(metricsCollector.Middleware)                                  // Collect metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	// Health (no auth)
	r.Get("/health", app.healthHandler())

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes. An empty API_KEY leaves them open.
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.BearerAuth(config.APIKey()))

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", claimHandler.Create)
			r.Route("/{claimID}", func(r chi.Router) {
				r.Get("/", claimHandler.GetByID)
				r.Get("/neighbors", claimHandler.Neighbors)
			})
		})

		r.Post("/chunks", chunkHandler.Create)
		r.Get("/search", searchHandler.Search)
		r.Post("/debates", debateHandler.Create)
		r.Get("/relationships", relationshipHandler.List)

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/contradictions", analysisHandler.Contradictions)
			r.Get("/unsupported", analysisHandler.Unsupported)
			r.Get("/frontier", analysisHandler.Frontier)
			r.Get("/path", analysisHandler.Path)
			r.Post("/metrics/refresh", analysisHandler.RefreshMetrics)
		})

		r.Get("/gaps", gapHandler.List)
		r.Get("/graph/export", graphHandler.Export)
	})

	return app, nil
}

// Start launches the background debate workers.
func (app *App) Start() {
	app.Queue.Start()
}

// Stop drains the debate queue, then closes backend connections. Call after
// the HTTP server has shut down so in-flight requests keep their stores.
func (app *App) Stop(ctx context.Context) {
	app.Queue.Stop()
	if app.neo != nil {
		if err := app.neo.Close(ctx); err != nil {
			app.logger.Warn("neo4j driver close failed", zap.Error(err))
		}
	}
	if app.db != nil {
		app.db.Close()
	}
}

// graphStore builds the configured claim graph backend.
func (app *App) graphStore(ctx context.Context) (domain.GraphStore, error) {
	backend := config.GraphBackend()
	switch backend {
	case "memory":
		return store.NewMemoryGraphStore(), nil

	case "postgres":
		db, err := app.pgPool(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresGraphStore(db), nil

	case "neo4j":
		neo, err := store.NewNeo4jGraphStore(ctx, config.Neo4jURI(), config.Neo4jUsername(), config.Neo4jPassword(), app.logger)
		if err != nil {
			return nil, fmt.Errorf("neo4j graph store: %w", err)
		}
		if err := neo.EnsureConstraints(ctx); err != nil {
			return nil, fmt.Errorf("neo4j constraints: %w", err)
		}
		app.neo = neo
		return neo, nil

	default:
		return nil, fmt.Errorf("unknown GRAPH_BACKEND: %s (valid options: memory, postgres, neo4j)", backend)
	}
}

// indexes builds the configured retrieval index backends. The two legs
// always share a backend.
func (app *App) indexes(ctx context.Context) (domain.VectorIndex, domain.LexicalIndex, error) {
	backend := config.IndexBackend()
	switch backend {
	case "memory":
		return retrieval.NewMemoryVectorIndex(), retrieval.NewBM25Index(), nil

	case "postgres":
		db, err := app.pgPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresVectorIndex(db), store.NewPostgresLexicalIndex(db), nil

	default:
		return nil, nil, fmt.Errorf("unknown INDEX_BACKEND: %s (valid options: memory, postgres)", backend)
	}
}

// pgPool lazily opens the shared Postgres pool and ensures the schema. The
// graph store and the index backends reuse one pool.
func (app *App) pgPool(ctx context.Context) (*pgxpool.Pool, error) {
	if app.db != nil {
		return app.db, nil
	}
	url := config.DatabaseURL()
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}

	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	app.db = db
	return db, nil
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]string{
			"status":        "ok",
			"version":       buildconfig.Version(),
			"graph_backend": config.GraphBackend(),
			"index_backend": config.IndexBackend(),
		}

		if app.db != nil {
			if err := app.db.Ping(r.Context()); err != nil {
				response["status"] = "error"
				response["error"] = err.Error()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(response)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds":       uptime.Seconds(),
			"uptime_human":         uptime.Round(time.Second).String(),
			"request_count":        app.requestCount.Load(),
			"error_count":          app.errorCount.Load(),
			"debate_queue_pending": app.Queue.Pending(),
			"goroutines":           runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"version":    buildconfig.Version(),
			"commit":     buildconfig.Commit(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure clients and the retriever satisfy interfaces at compile time.
var (
	_ domain.Searcher         = (*retrieval.Retriever)(nil)
	_ domain.VectorIndex      = (*retrieval.MemoryVectorIndex)(nil)
	_ domain.LexicalIndex     = (*retrieval.BM25Index)(nil)
	_ domain.GenerationClient = (*llm.Gate)(nil)
	_ domain.GenerationClient = (*llm.OpenAIClient)(nil)
	_ domain.GenerationClient = (*llm.AnthropicClient)(nil)
	_ domain.GenerationClient = (*llm.GeminiClient)(nil)
	_ domain.GenerationClient = (*llm.OllamaClient)(nil)
	_ domain.GenerationClient = (*llm.MockClient)(nil)
	_ domain.Reranker         = (*llm.LLMReranker)(nil)
	_ domain.EmbeddingClient  = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient  = (*embedding.MockClient)(nil)
)
