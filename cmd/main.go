package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/skylerye/yuquesync-backend/internal/clients/openai"
	"github.com/skylerye/yuquesync-backend/internal/clients/qdrant"
	"github.com/skylerye/yuquesync-backend/internal/clients/redis"
	"github.com/skylerye/yuquesync-backend/internal/clients/yuque"
	"github.com/skylerye/yuquesync-backend/internal/db"
	"github.com/skylerye/yuquesync-backend/internal/handlers"
	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/repos"
	"github.com/skylerye/yuquesync-backend/internal/scheduler"
	"github.com/skylerye/yuquesync-backend/internal/search"
	"github.com/skylerye/yuquesync-backend/internal/server"
	"github.com/skylerye/yuquesync-backend/internal/services"
	"github.com/skylerye/yuquesync-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using process environment")
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	memberRepo := repos.NewMemberRepo(thePG, log)
	repoRepo := repos.NewRepoRepo(thePG, log)
	docRepo := repos.NewDocRepo(thePG, log)
	commentRepo := repos.NewCommentRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	yuqueClient, err := yuque.NewClient(log, yuque.ConfigFromEnv(log))
	if err != nil {
		log.Error("Could not init YuqueClient", "error", err)
		os.Exit(1)
	}

	// Search indexing is optional: the mirror runs fine without qdrant and
	// the embedding API configured.
	var indexer search.Indexer
	if strings.TrimSpace(os.Getenv("QDRANT_URL")) != "" {
		store, err := qdrant.NewStore(log, qdrant.ConfigFromEnv(log))
		if err != nil {
			log.Warn("Could not init qdrant store, search indexing disabled", "error", err)
		} else {
			embedder, err := openai.NewClient(log, openai.ConfigFromEnv(log))
			if err != nil {
				log.Warn("Could not init embedding client, search indexing disabled", "error", err)
			} else {
				indexer = search.NewIndexer(log, embedder, store)
			}
		}
	} else {
		log.Info("QDRANT_URL not set, search indexing disabled")
	}

	var bus redis.EventBus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		bus, err = redis.NewEventBus(log)
		if err != nil {
			log.Warn("Could not init redis event bus, sync events disabled", "error", err)
			bus = nil
		} else {
			defer bus.Close()
		}
	} else {
		log.Info("REDIS_ADDR not set, sync events disabled")
	}

	// Services
	log.Info("Setting up Services from main...")
	maxConcurrent := utils.GetEnvAsInt("SYNC_MAX_CONCURRENT", services.DefaultMaxConcurrent, log)
	syncService := services.NewSyncService(thePG, log, yuqueClient, indexer, bus, userRepo, memberRepo, repoRepo, docRepo, maxConcurrent)
	webhookService := services.NewWebhookService(log, yuqueClient, indexer, syncService, memberRepo, repoRepo, docRepo, commentRepo)

	// Scheduler
	syncScheduler := scheduler.New(log, syncService)
	if err := syncScheduler.Start(); err != nil {
		log.Error("Could not start scheduler", "error", err)
		os.Exit(1)
	}
	defer syncScheduler.Stop()

	// Handlers
	log.Info("Setting up handlers from main...")
	syncHandler := handlers.NewSyncHandler(log, syncService)
	webhookHandler := handlers.NewWebhookHandler(log, webhookService)
	readHandler := handlers.NewReadHandler(log, repoRepo, memberRepo, docRepo, commentRepo)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:            log,
		SyncHandler:    syncHandler,
		WebhookHandler: webhookHandler,
		ReadHandler:    readHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
