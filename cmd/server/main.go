package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/questkeeper/internal/config"
	"github.com/jwebster45206/questkeeper/internal/handlers"
	"github.com/jwebster45206/questkeeper/internal/logger"
	"github.com/jwebster45206/questkeeper/internal/net/ws"
	"github.com/jwebster45206/questkeeper/internal/replication"
	"github.com/jwebster45206/questkeeper/internal/services"
	"github.com/jwebster45206/questkeeper/internal/services/events"
	"github.com/jwebster45206/questkeeper/internal/services/queue"
	istorage "github.com/jwebster45206/questkeeper/internal/storage"
	"github.com/jwebster45206/questkeeper/internal/worker"
	"github.com/jwebster45206/questkeeper/pkg/content"
	"github.com/jwebster45206/questkeeper/pkg/save"
	"github.com/jwebster45206/questkeeper/pkg/storage"
	"github.com/jwebster45206/questkeeper/pkg/world"
)

const pubsubBuffer = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Questkeeper server",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"content_dir", cfg.ContentDir)

	bundle, err := content.LoadDir(cfg.ContentDir)
	if err != nil {
		log.Error("Failed to load content", "error", err)
		os.Exit(1)
	}
	if errs := bundle.Validate(cfg.GoldItemID); len(errs) > 0 {
		for _, e := range errs {
			log.Error("Invalid content", "error", e)
		}
		os.Exit(1)
	}
	cat, err := bundle.Catalog()
	if err != nil {
		log.Error("Failed to build item catalog", "error", err)
		os.Exit(1)
	}
	registry, err := bundle.Registry()
	if err != nil {
		log.Error("Failed to build quest registry", "error", err)
		os.Exit(1)
	}
	log.Info("Content loaded",
		"items", cat.Len(),
		"quests", len(bundle.Quests),
		"dialogues", len(bundle.Dialogues),
		"questions", len(bundle.Questions))

	// Redis backs pub/sub, chest claims and autosave whenever it is
	// reachable; only the redis storage backend requires it.
	var redisClient *redis.Client
	var redisService *services.RedisService
	if client, err := services.NewRedisClient(cfg.RedisURL); err != nil {
		log.Warn("Invalid REDIS_URL, running without redis", "error", err)
	} else {
		redisService = services.NewRedisService(client, log)
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		retries := 30
		if cfg.StorageBackend != config.BackendRedis {
			retries = 1
		}
		err := redisService.WaitForConnection(waitCtx, retries, 2*time.Second)
		waitCancel()
		if err != nil {
			if cfg.StorageBackend == config.BackendRedis {
				log.Error("Failed to connect to redis", "error", err)
				os.Exit(1)
			}
			log.Warn("Redis unavailable, pub/sub and autosave disabled", "error", err)
			_ = redisService.Close()
			redisService = nil
		} else {
			redisClient = client
		}
	}

	store, err := openStorage(cfg, redisClient, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	var claimer world.Claimer
	if redisClient != nil {
		claimer = services.NewChestClaimer(redisClient, cfg.WorldID, log)
	}
	chests, err := world.NewChests(bundle.Chests, claimer)
	if err != nil {
		log.Error("Failed to build chests", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub(log)
	var transport replication.Transport = hub
	var broadcaster *events.Broadcaster
	var pubsub *replication.PubSub
	if redisClient != nil {
		broadcaster = events.NewBroadcaster(redisClient, cfg.WorldID, log)
		pubsub = replication.NewPubSub(broadcaster, pubsubBuffer, log)
		transport = replication.Fanout{hub, pubsub}
	}

	server, err := replication.NewServer(replication.Config{
		WorldID:        cfg.WorldID,
		InventorySlots: cfg.InventorySlots,
		HotbarSlots:    cfg.HotbarSlots,
		GoldItemID:     cfg.GoldItemID,
		Start:          save.Position{X: cfg.StartX, Y: cfg.StartY},
		StartMap:       cfg.StartMap,
		Catalog:        cat,
		Quests:         registry,
		Dialogues:      bundle.Dialogues,
		Bank:           bundle.QuestionBank(),
		QuizNPCs:       bundle.QuizNPCs,
		Enemies:        bundle.EnemyTemplates(),
		Chests:         chests,
		Storage:        store,
		Transport:      transport,
		Rand:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		Logger:         log,
	})
	if err != nil {
		log.Error("Failed to create replication server", "error", err)
		os.Exit(1)
	}
	for _, sp := range bundle.Spawns {
		if _, err := server.SpawnEnemy(sp.TypeID, sp.X, sp.Y); err != nil {
			log.Warn("Failed to spawn enemy", "type_id", sp.TypeID, "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var workers []*worker.Worker
	if redisClient != nil {
		qc, err := queue.NewClient(ctx, redisClient, log)
		if err != nil {
			log.Error("Failed to create queue client", "error", err)
			os.Exit(1)
		}
		saveQueue := queue.NewSaveQueue(qc, cfg.WorldID)
		hostname, _ := os.Hostname()
		for i := 0; i < cfg.AutosaveWorkers; i++ {
			w := worker.New(saveQueue, server, redisClient, log, fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), i))
			workers = append(workers, w)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := w.Start(); err != nil {
					log.Error("Autosave worker failed", "worker_id", w.ID(), "error", err)
				}
			}()
		}
		scheduler := worker.NewScheduler(cfg.AutosaveInterval, server.Online, saveQueue, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
		log.Info("Autosave started", "workers", cfg.AutosaveWorkers, "interval", cfg.AutosaveInterval)
	}

	mux := http.NewServeMux()

	health := map[string]handlers.Pinger{"storage": store}
	if redisService != nil {
		health["redis"] = redisService
	}
	mux.Handle("/health", handlers.NewHealthHandler(health, log))

	saveGameHandler := handlers.NewSaveGameHandler(store, server, log)
	mux.Handle("/v1/savegame", saveGameHandler)
	mux.Handle("/v1/savegame/", saveGameHandler)

	if broadcaster != nil {
		mux.Handle("/v1/events/", handlers.NewEventsHandler(broadcaster, log))
	}

	mux.Handle("/v1/ws", ws.NewHandler(hub, server, ws.HandlerConfig{Logger: log}))

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket and SSE connections are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	// Shutdown leaves hijacked websocket connections open
	hub.CloseAll()

	cancel()
	for _, w := range workers {
		w.Stop()
	}
	wg.Wait()

	// saves everyone and stops dialogue timers before the outputs close
	if err := server.LeaveAll(shutdownCtx); err != nil {
		log.Error("Failed to save players on shutdown", "error", err)
	}
	if pubsub != nil {
		pubsub.Close()
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}
	if redisService != nil && cfg.StorageBackend != config.BackendRedis {
		if err := redisService.Close(); err != nil {
			log.Error("Error closing redis connection", "error", err)
		}
	}

	log.Info("Server exited")
}

// openStorage builds the configured save backend.
func openStorage(cfg *config.Config, redisClient *redis.Client, log *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMockStorage(), nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis storage backend requires a reachable REDIS_URL")
		}
		return istorage.NewRedisStorage(redisClient, cfg.SaveTTL, log), nil
	case config.BackendSQLite:
		return istorage.OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
