package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	apiconfig "synthetic_panel/pkg/api/config"
	"synthetic_panel/pkg/api/graphapi"
	"synthetic_panel/pkg/api/insightsapi"
	"synthetic_panel/pkg/api/panel"
	"synthetic_panel/pkg/api/session"
	"synthetic_panel/pkg/core/agent"
	"synthetic_panel/pkg/core/config"
	"synthetic_panel/pkg/core/focusgroup"
	"synthetic_panel/pkg/core/graph"
	"synthetic_panel/pkg/core/insights"
	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/core/memory"
	"synthetic_panel/pkg/core/persona"
	"synthetic_panel/pkg/core/pipeline"
	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/core/sampling"
	"synthetic_panel/pkg/core/store"
)

func main() {
	// Load environment variables
	godotenv.Load()

	logger := newLogger()
	defer logger.Sync()

	settings, err := config.Load("config/platform.yaml")
	if err != nil {
		logger.Warn("config load failed, using defaults", zap.Error(err))
	}

	// Prompt library: built-in defaults, then optional overrides from disk.
	prompt.RegisterDefaults()
	resourcesPath := "resources"
	if _, err := os.Stat(resourcesPath); os.IsNotExist(err) {
		exePath, _ := os.Executable()
		resourcesPath = filepath.Join(filepath.Dir(exePath), "resources")
	}
	if err := prompt.LoadFromDirectory(resourcesPath); err != nil {
		fmt.Printf("[PROMPT] No prompt overrides loaded: %v\n", err)
	}

	// Provider routing from config
	var agentCfg agent.Config
	if data, err := os.ReadFile("config/models.yaml"); err == nil {
		yaml.Unmarshal(data, &agentCfg)
	}
	agentMgr := agent.NewManager(agentCfg)

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	defer store.Close()
	pool := store.GetPool()
	if err := store.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("schema bootstrap failed", zap.Error(err))
	}

	embedder := &llm.GenAIEmbedder{}
	lexicon := insights.NewLexicon(settings.SentimentPositive, settings.SentimentNegative)
	stopwords := insights.StopwordSet(settings.StopwordSets)

	projectRepo := store.NewProjectRepo(pool)
	personaRepo := store.NewPersonaRepo(pool)
	fgRepo := focusgroup.NewPgRepo(pool)

	events := memory.NewPgEventStore(pool, embedder, logger)
	retriever := memory.NewRetriever(events, embedder, settings.EmbeddingHalfLifeDays, logger)

	var backend graph.Backend
	if settings.GraphBackend == "external" {
		backend = graph.NewPgBackend(pool)
	} else {
		backend = graph.NewSnapshotRegistry()
	}
	extractor := graph.NewExtractor(agentMgr, lexicon, stopwords, logger)
	builder := graph.NewBuilder(fgRepo, personaRepo, extractor, backend, logger)
	query := graph.NewQuery(backend)
	answerer := graph.NewAnswerer(query)

	orchestrator := focusgroup.NewOrchestrator(fgRepo, personaRepo, events, retriever, agentMgr, settings, logger)
	orchestrator.GraphBuild = func(ctx context.Context, focusGroupID string) error {
		_, err := builder.Build(ctx, focusGroupID)
		return err
	}

	writer := insights.NewPgWriter(pool)
	aggregator := insights.NewAggregator(fgRepo, writer, embedder, lexicon, stopwords, logger)

	sampler := sampling.NewSampler(settings.RandomSeed)
	synthesizer := persona.NewSynthesizer(agentMgr, logger, settings.LLMTemperature, settings.RandomSeed)
	panelOrch := pipeline.NewPanelOrchestrator(projectRepo, personaRepo, sampler, synthesizer,
		pipeline.GenerationConfig{SynthesisRetries: 2}, logger)

	// Config endpoints
	configHandler := apiconfig.NewHandler(agentMgr)
	http.HandleFunc("/api/config", configHandler.HandleConfig)
	http.HandleFunc("/api/config/switch", configHandler.HandleSwitch)

	// Project and panel endpoints
	panelHandler := panel.NewHandler(projectRepo, personaRepo, panelOrch)
	http.HandleFunc("/api/projects/create", panelHandler.HandleCreateProject)
	http.HandleFunc("/api/projects/get", panelHandler.HandleGetProject)
	http.HandleFunc("/api/projects/delete", panelHandler.HandleDeleteProject)
	http.HandleFunc("/api/personas/generate", panelHandler.HandleGeneratePersonas)
	http.HandleFunc("/api/personas/status", panelHandler.HandlePanelStatus)
	http.HandleFunc("/api/personas/list", panelHandler.HandleListPersonas)

	// Focus group endpoints
	sessionHandler := session.NewHandler(fgRepo, orchestrator)
	http.HandleFunc("/api/focus-groups/create", sessionHandler.HandleCreate)
	http.HandleFunc("/api/focus-groups/run", sessionHandler.HandleRun)
	http.HandleFunc("/api/focus-groups/get", sessionHandler.HandleGet)
	http.HandleFunc("/api/focus-groups/responses", sessionHandler.HandleResponses)

	// Insight endpoints
	insightsHandler := insightsapi.NewHandler(fgRepo, aggregator, writer)
	http.HandleFunc("/api/insights/generate", insightsHandler.HandleGenerate)
	http.HandleFunc("/api/insights/get", insightsHandler.HandleGet)

	// Knowledge graph endpoints
	graphHandler := graphapi.NewHandler(builder, query, answerer)
	http.HandleFunc("/api/graph/build", graphHandler.HandleBuild)
	http.HandleFunc("/api/graph/data", graphHandler.HandleGraphData)
	http.HandleFunc("/api/graph/key-concepts", graphHandler.HandleKeyConcepts)
	http.HandleFunc("/api/graph/controversial-concepts", graphHandler.HandleControversialConcepts)
	http.HandleFunc("/api/graph/influential-personas", graphHandler.HandleInfluentialPersonas)
	http.HandleFunc("/api/graph/emotion-distribution", graphHandler.HandleEmotionDistribution)
	http.HandleFunc("/api/graph/answer", graphHandler.HandleAnswerQuestion)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("API server starting", zap.String("port", port),
		zap.String("graph_backend", settings.GraphBackend),
		zap.String("active_provider", agentMgr.GetActiveProvider()))

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if os.Getenv("DEBUG") == "1" {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Printf("[FATAL] logger init failed: %v\n", err)
		os.Exit(1)
	}
	return logger
}
