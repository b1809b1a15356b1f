package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/config"
	"github.com/ignite/mailwarm/internal/mail"
	"github.com/ignite/mailwarm/internal/orchestrator"
	"github.com/ignite/mailwarm/internal/queue"
	"github.com/ignite/mailwarm/internal/store"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("Starting Mailwarm Send Worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Database connection
	db, err := store.Open(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetConnMaxIdleTime(1 * time.Minute)
	log.Println("Connected to database")

	// Redis connection
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("Failed to ping redis: %v", err)
	}
	pingCancel()
	log.Println("Connected to redis")

	campaigns := store.NewCampaignStore(db)
	messages := store.NewMessageStore(db)
	analytics := store.NewAnalyticsStore(db)

	// Events published here have no stream subscribers; the API process
	// serves SSE off its own bus and the webhook ingest.
	eventBus := bus.New()

	var transport mail.Transport
	if cfg.Mail.Provider == "ses" {
		transport, err = mail.NewSESTransport(cfg.Mail)
		if err != nil {
			log.Fatalf("Failed to initialize SES transport: %v", err)
		}
		log.Printf("SES transport initialized (region=%s, configuration_set=%s)",
			cfg.Mail.Region, cfg.Mail.ConfigurationSet)
	} else {
		transport = mail.NewLogTransport()
		log.Println("Log transport initialized: sends are recorded locally, nothing leaves this process")
	}

	limiter := queue.NewSendRateLimiter(rdb, cfg.Queue.RateLimitPerSecond)
	deliveryQueue := queue.New(rdb, cfg.Queue)

	processor := orchestrator.NewProcessor(campaigns, messages, analytics, transport, limiter, eventBus)

	workerPool := queue.NewWorkerPool(deliveryQueue, processor.ProcessJob, cfg.Queue.Concurrency)
	if err := workerPool.Start(); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Queue recovery reclaims jobs from crashed workers
	recovery := queue.NewRecoveryWorker(deliveryQueue,
		time.Duration(cfg.Queue.RecoveryIntervalMinutes)*time.Minute,
		time.Duration(cfg.Queue.StalledAfterMinutes)*time.Minute)
	go recovery.Start(ctx)

	// Heartbeat with queue depth
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats, err := deliveryQueue.Stats(ctx)
				if err != nil {
					log.Printf("[Worker] Heartbeat: queue stats error: %v", err)
					continue
				}
				pool := workerPool.Stats()
				log.Printf("[Worker] Heartbeat: waiting=%d delayed=%d active=%d processed=%d",
					stats["waiting"], stats["delayed"], stats["active"], pool["total_processed"])
			}
		}
	}()

	log.Printf("Worker running with %d workers at %d sends/sec...",
		cfg.Queue.Concurrency, cfg.Queue.RateLimitPerSecond)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	workerPool.Stop()

	log.Println("Worker stopped")
}
