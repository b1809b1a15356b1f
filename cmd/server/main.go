package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/mailwarm/internal/api"
	"github.com/ignite/mailwarm/internal/bus"
	"github.com/ignite/mailwarm/internal/config"
	"github.com/ignite/mailwarm/internal/ingest"
	"github.com/ignite/mailwarm/internal/orchestrator"
	"github.com/ignite/mailwarm/internal/pkg/distlock"
	"github.com/ignite/mailwarm/internal/plan"
	"github.com/ignite/mailwarm/internal/queue"
	"github.com/ignite/mailwarm/internal/randx"
	"github.com/ignite/mailwarm/internal/recipients"
	"github.com/ignite/mailwarm/internal/scheduler"
	"github.com/ignite/mailwarm/internal/storage"
	"github.com/ignite/mailwarm/internal/store"

	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	slash := strings.Index(rest, "/")
	if slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func openRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func openObjectStore(cfg config.StorageConfig) (storage.ObjectStore, error) {
	if cfg.Bucket == "" {
		log.Println("[Storage] No S3 bucket configured, using in-memory object store")
		return storage.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s3Store, err := storage.NewS3Store(ctx, cfg.Bucket, cfg.Region)
	if err != nil {
		return nil, err
	}
	log.Printf("[Storage] S3 object store initialized: bucket=%s region=%s", cfg.Bucket, cfg.Region)
	return s3Store, nil
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Mailwarm API Server (cmd/server/main.go)                  ║")
	log.Println("║  Campaign orchestration, SES webhook ingest, SSE stream    ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", cfg.Server.Port)

	log.Printf("DB URL host portion: ...@%s/...", extractHost(cfg.Database.URL))
	db, err := store.Open(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := store.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	log.Println("Connected to database, schema ensured")

	rdb, err := openRedis(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()
	log.Println("Connected to redis")

	objects, err := openObjectStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	campaigns := store.NewCampaignStore(db)
	messages := store.NewMessageStore(db)
	analytics := store.NewAnalyticsStore(db)
	events := store.NewEventStore(db)

	eventBus := bus.New()
	pool := recipients.NewPool(objects, messages, cfg.Storage)
	deliveryQueue := queue.New(rdb, cfg.Queue)

	orch := orchestrator.New(campaigns, messages, deliveryQueue, pool,
		plan.NewGenerator(randx.New()), eventBus)

	applier := ingest.NewApplier(campaigns, messages, analytics, events, eventBus)
	receiver := ingest.NewReceiver(applier)

	handlers := api.NewHandlers(orch)
	handlers.SetAnalytics(analytics)
	handlers.SetQueueStats(deliveryQueue)
	handlers.SetEventSource(eventBus)
	handlers.SetObjectStore(objects, cfg.Storage.CustomListPrefix)
	handlers.SetWebhook(receiver.HandleSES)
	handlers.SetCORSOrigins(cfg.Server.CORSOrigins)
	server := api.NewServer(handlers)

	// Day scheduler runs here rather than in the worker. The lock keeps the
	// midnight pass single-flight when several API instances run. Catch-up
	// runs before the server accepts traffic.
	sched := scheduler.New(orch, orch, cfg.Scheduler.CatchUp())
	sched.SetLock(distlock.NewLock(rdb, db, "day-transition", 10*time.Minute))
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start day scheduler: %v", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
