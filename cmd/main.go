package main

import (
	"log"
	"os"

	"github.com/CoderParva/Onebox/internal/api"
	"github.com/CoderParva/Onebox/internal/classify"
	"github.com/CoderParva/Onebox/internal/cli"
	"github.com/CoderParva/Onebox/internal/config"
	"github.com/CoderParva/Onebox/internal/database"
	"github.com/CoderParva/Onebox/internal/hub"
	"github.com/CoderParva/Onebox/internal/ingest"
	"github.com/CoderParva/Onebox/internal/mailbox"
	"github.com/CoderParva/Onebox/internal/notify"
	"github.com/CoderParva/Onebox/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)

	// The gateway is the only store writer; probe the store before any
	// session starts producing documents.
	gateway := ingest.NewGateway(db, logService)
	if err := gateway.WaitReady(); err != nil {
		log.Printf("Store not ready, pipeline degraded: %v", err)
	}

	fanout := hub.New(logService)

	oracle := classify.NewOracle()
	oracle.Configure(cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
	if !oracle.IsConfigured() {
		log.Printf("Warning: oracle API key not set, classification will fail per item")
	}

	var sinks []notify.Sink
	if cfg.Notify.SlackWebhookURL != "" {
		sinks = append(sinks, notify.NewSlackSink(cfg.Notify.SlackWebhookURL))
	}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL))
	}
	dispatcher := notify.NewDispatcher(sinks, logService)

	worker := classify.NewWorker(oracle, gateway, fanout, dispatcher, logService)

	// One independent session per configured mailbox. A session that dies
	// stays dead; restart the process to re-establish it.
	registry := mailbox.NewRegistry()
	defer registry.Shutdown()

	for _, account := range cfg.Accounts {
		session := mailbox.NewSession(account, cfg.SyncDays, gateway, fanout, worker, logService)
		registry.Add(session)

		go func(s *mailbox.Session) {
			if err := s.Run(); err != nil {
				log.Printf("Session %s ended: %v", s.AccountID(), err)
			}
			registry.Remove(s.AccountID())
		}(session)
	}

	router := api.SetupRouter(cfg, gateway, fanout, registry, oracle, logService)

	log.Printf("Starting Onebox server on port %s", cfg.APIPort)
	log.Printf("Database path: %s", cfg.DatabasePath)
	log.Printf("Accounts: %d, notification sinks: %d", len(cfg.Accounts), dispatcher.SinkCount())
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
