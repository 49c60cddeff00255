package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mochikko/diary-server/internal/agents"
	"github.com/mochikko/diary-server/internal/api"
	"github.com/mochikko/diary-server/internal/config"
	"github.com/mochikko/diary-server/internal/contextdata"
	"github.com/mochikko/diary-server/internal/engine"
	"github.com/mochikko/diary-server/internal/llm"
	"github.com/mochikko/diary-server/internal/plan"
	"github.com/mochikko/diary-server/internal/scheduler"
	"github.com/mochikko/diary-server/internal/store"
	"github.com/mochikko/diary-server/internal/trends"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting diary-server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("Unknown timezone %q, using UTC", cfg.Timezone)
		tz = time.UTC
	}

	// Open store
	st, err := store.Open(cfg.DBPath, cfg.BackupDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	// Build the generation gateway: local Ollama first, an
	// OpenAI-compatible endpoint as the lower-priority fallback.
	providers := []llm.Provider{
		llm.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel),
	}
	if cfg.OpenAIKey != "" {
		providers = append(providers, llm.NewOpenAIProvider(cfg.OpenAIURL, cfg.OpenAIKey, cfg.OpenAIModel))
	}
	gateway := llm.NewGateway(llm.Config{
		Timeout:          cfg.LLMTimeout,
		Attempts:         cfg.LLMAttempts,
		Backoff:          1 * time.Second,
		BreakerThreshold: cfg.BreakerThreshold,
		Cooldown:         cfg.BreakerCooldown,
	}, providers...)

	// Plan manager, resuming today's persisted plan if one exists
	plans := plan.NewManager(cfg.MaxDailyTypes, 0)
	today := time.Now().In(tz).Format("2006-01-02")
	if p, err := st.LoadPlan(today); err != nil {
		log.Printf("Failed to load today's plan: %v", err)
	} else if p != nil {
		plans.Restore(p)
		log.Printf("Resumed plan for %s: %d selected, %d remaining",
			p.Date, len(p.SelectedTypes), p.RemainingQuota)
	}

	tracker := trends.NewTracker(st)
	registry := agents.NewRegistry()
	contexts := contextdata.NewRegistry(tracker)

	eng := engine.New(plans, registry, contexts, gateway, st, tracker, engine.Options{
		Timezone:       tz,
		GenProbability: cfg.GenProbability,
	})

	// Create and start scheduler
	sched, err := scheduler.New(eng, st, gateway, tracker, tz)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create router
	router := api.NewRouter(cfg, eng, st, gateway, plans)

	// Start server
	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down gracefully...")

	// Give ongoing requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping scheduler...")
	if err := sched.Stop(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}

	log.Println("Closing store...")
	if err := st.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}

	log.Println("Shutdown complete")
}
