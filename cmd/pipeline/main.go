package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"synthetic_panel/pkg/core/agent"
	"synthetic_panel/pkg/core/config"
	"synthetic_panel/pkg/core/persona"
	"synthetic_panel/pkg/core/pipeline"
	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/core/sampling"
	"synthetic_panel/pkg/core/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	projectID := flag.String("project", "", "project id to generate personas for")
	briefPath := flag.String("brief", "", "optional product brief file (txt, md or html)")
	retries := flag.Int("retries", 2, "extra synthesis attempts per seed")
	stopOnError := flag.Bool("stop-on-error", false, "abort the run on the first exhausted seed")
	flag.Parse()

	if *projectID == "" {
		log.Fatal("Error: -project is required.")
	}

	settings, err := config.Load("config/platform.yaml")
	if err != nil {
		log.Printf("Warning: config load failed, using defaults: %v", err)
	}

	prompt.RegisterDefaults()
	if err := prompt.LoadFromDirectory("resources"); err != nil {
		fmt.Printf("[PROMPT] No prompt overrides loaded: %v\n", err)
	}

	var agentCfg agent.Config
	if data, err := os.ReadFile("config/models.yaml"); err == nil {
		yaml.Unmarshal(data, &agentCfg)
	}
	agentMgr := agent.NewManager(agentCfg)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer store.Close()
	pool := store.GetPool()
	if err := store.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema bootstrap failed: %v", err)
	}

	brief := ""
	if *briefPath != "" {
		brief, err = persona.LoadBrief(*briefPath)
		if err != nil {
			log.Fatalf("brief load failed: %v", err)
		}
	}

	fmt.Println("🚀 Panel Generation Pipeline Starting...")
	fmt.Printf("   Project:  %s\n", *projectID)
	fmt.Printf("   Provider: %s\n", agentMgr.GetActiveProvider())

	orchestrator := pipeline.NewPanelOrchestrator(
		store.NewProjectRepo(pool),
		store.NewPersonaRepo(pool),
		sampling.NewSampler(settings.RandomSeed),
		persona.NewSynthesizer(agentMgr, logger, settings.LLMTemperature, settings.RandomSeed),
		pipeline.GenerationConfig{SynthesisRetries: *retries, StopOnError: *stopOnError},
		logger,
	)

	report, err := orchestrator.RunForProject(ctx, *projectID, brief, persona.TraitSkew{})
	if err != nil {
		log.Fatalf("pipeline failed: %v", err)
	}

	fmt.Println("\n✅ Panel Generation Complete")
	fmt.Printf("   Generated: %d (skipped %d already present, %d failed)\n",
		report.Generated, report.Skipped, report.Failed)
	fmt.Printf("   Statistically valid: %v (chi-square over %d axes)\n",
		report.StatisticallyValid, len(report.Validation.PerAxis))
	fmt.Printf("   Elapsed: %.0fms\n", report.ElapsedMs)

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}
