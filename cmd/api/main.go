// cmd/api/main.go
// Main entry point for the engagement engine
// Wires the state store, delivery provider, services, background jobs
// and HTTP API together, then runs until SIGINT/SIGTERM

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/calmoraapp/calmora-backend/internal/analytics"
	"github.com/calmoraapp/calmora-backend/internal/auth"
	"github.com/calmoraapp/calmora-backend/internal/campaign"
	"github.com/calmoraapp/calmora-backend/internal/common/database"
	"github.com/calmoraapp/calmora-backend/internal/common/utils"
	"github.com/calmoraapp/calmora-backend/internal/config"
	"github.com/calmoraapp/calmora-backend/internal/delivery"
	"github.com/calmoraapp/calmora-backend/internal/feed"
	"github.com/calmoraapp/calmora-backend/internal/profile"
	"github.com/calmoraapp/calmora-backend/internal/store"
)

var startTime = time.Now()

func main() {
	log.SetFlags(log.Ldate | log.Ltime)

	log.Println("========================================")
	log.Println("🚀 Starting Calmora Engagement Engine")
	log.Println("========================================")

	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	// 2. Load and validate configuration
	log.Println("📋 Step 1: Loading configuration...")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed: ", err)
	}
	log.Printf("✅ Configuration loaded (environment: %s)", cfg.Environment)

	logger := buildLogger(cfg)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. State store
	log.Println("🗄️  Step 2: Initializing state store...")
	st := buildStore(cfg)

	// 4. Delivery provider
	log.Println("📮 Step 3: Initializing delivery provider...")
	var deliverer delivery.Scheduler
	var amqpScheduler *delivery.AMQPScheduler
	switch cfg.DeliveryProvider {
	case "amqp":
		sched, err := delivery.NewAMQPScheduler(delivery.AMQPConfig{
			URL:         cfg.AMQPURL,
			Exchange:    cfg.DeliveryExchange,
			StatusQueue: cfg.DeliveryStatusQueue,
		}, logger)
		if err != nil {
			log.Printf("⚠️  AMQP unavailable, falling back to mock delivery: %v", err)
			deliverer = delivery.NewMockScheduler()
		} else {
			amqpScheduler = sched
			deliverer = sched
			log.Printf("✅ Delivery provider ready (amqp, exchange: %s)", cfg.DeliveryExchange)
		}
	default:
		deliverer = delivery.NewMockScheduler()
		log.Println("✅ Delivery provider ready (mock)")
	}

	// 5. Live feed hub
	log.Println("📡 Step 4: Starting live feed hub...")
	hub := feed.NewHub(logger)
	go hub.Run()
	log.Println("✅ Live feed hub started")

	// 6. Services
	log.Println("⚙️  Step 5: Initializing services...")
	profileService := profile.NewService(ctx, st, hub, time.Now, logger)

	analyticsService := analytics.NewService(st, hub, time.Now, logger)
	analyticsService.LoadState(ctx)

	renderer := campaign.NewRenderer(rand.New(rand.NewSource(time.Now().UnixNano())))
	optimizer := campaign.NewOptimizer(time.Now, cfg.Location())
	campaignService := campaign.NewService(st, deliverer, profileService, renderer, optimizer, analyticsService, hub, time.Now, logger)
	campaignService.LoadState(ctx)
	log.Println("✅ Services initialized")

	// 7. Background jobs
	log.Println("⏰ Step 6: Scheduling background jobs...")
	sweepJob := campaign.NewSweepJob(campaignService, cfg.SweepInterval, logger)
	go sweepJob.Start(ctx)

	recomputeJob := analytics.NewRecomputeJob(analyticsService, cfg.RecomputeInterval, logger)
	go recomputeJob.Start(ctx)
	log.Printf("✅ Background jobs scheduled (sweep: %s, recompute: %s)", cfg.SweepInterval, cfg.RecomputeInterval)

	// 8. Broker-fed engagement events. The HTTP ingestion endpoints stay
	// available either way, so a missing broker only degrades us.
	log.Println("📥 Step 7: Binding event consumer...")
	var consumer *analytics.EventConsumer
	if cfg.AMQPURL != "" {
		c, err := analytics.NewEventConsumer(analytics.ConsumerConfig{
			URL:      cfg.AMQPURL,
			Exchange: cfg.EventsExchange,
			Queue:    cfg.EventsQueue,
		}, analyticsService, logger)
		if err != nil {
			log.Printf("⚠️  Event consumer unavailable, continuing with HTTP ingestion only: %v", err)
		} else if err := c.Start(ctx); err != nil {
			log.Printf("⚠️  Event consumer failed to start: %v", err)
			c.Close()
		} else {
			consumer = c
			log.Printf("✅ Event consumer bound (exchange: %s, queue: %s)", cfg.EventsExchange, cfg.EventsQueue)
		}
	}

	// 9. Routes
	log.Println("🌐 Step 8: Registering routes...")
	router := mux.NewRouter()
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	campaignHandler := campaign.NewHandler(campaignService)
	campaign.RegisterRoutes(router, campaignHandler, authMiddleware)

	analyticsHandler := analytics.NewHandler(analyticsService, deliverer)
	analytics.RegisterRoutes(router, analyticsHandler, authMiddleware)

	profileHandler := profile.NewHandler(profileService)
	profileRouter := profile.RegisterRoutes(profileHandler, authMiddleware)
	router.PathPrefix("/api/v1/profile").Handler(http.StripPrefix("/api/v1/profile", profileRouter))

	feedHandler := feed.NewHandler(hub, logger)
	router.HandleFunc("/api/v1/feed", feedHandler.ServeFeed).Methods("GET")

	router.HandleFunc("/health", healthCheck(hub, cfg)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/api", apiInfo).Methods("GET")

	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware)
	log.Println("✅ Routes registered")

	// 10. HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🎧 Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Server failed: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Stops the sweep and recompute loops and the consumer loop
	cancel()

	if consumer != nil {
		consumer.Close()
	}
	if amqpScheduler != nil {
		amqpScheduler.Close()
	}
	hub.Shutdown()

	log.Println("👋 Shutdown complete")
}

// buildLogger selects the zap preset for the environment.
func buildLogger(cfg *config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("❌ Failed to initialize logger: ", err)
	}
	return logger
}

// buildStore initializes the configured state store backend. Connection
// failures are fatal: silently running on a different backend than the
// configured one would lose state on the next restart.
func buildStore(cfg *config.Config) store.Store {
	switch cfg.StoreBackend {
	case "local":
		localStore, err := store.NewLocalStore(cfg.LocalDataDir)
		if err != nil {
			log.Fatal("❌ Failed to initialize local store: ", err)
		}
		log.Printf("✅ State store ready (local: %s)", cfg.LocalDataDir)
		return localStore
	case "postgres":
		db, err := database.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("❌ Failed to connect to PostgreSQL: ", err)
		}
		pgStore, err := store.NewPostgresStore(sqlx.NewDb(db, "postgres"))
		if err != nil {
			log.Fatal("❌ Failed to initialize postgres store: ", err)
		}
		log.Println("✅ State store ready (postgres)")
		return pgStore
	case "redis":
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal("❌ Failed to connect to Redis: ", err)
		}
		log.Println("✅ State store ready (redis)")
		return store.NewRedisStore(redisClient)
	case "s3":
		log.Printf("✅ State store ready (s3: %s)", cfg.S3Bucket)
		return store.NewS3Store(store.S3Config{
			Region: cfg.AWSRegion,
			Bucket: cfg.S3Bucket,
		})
	default:
		log.Println("✅ State store ready (memory)")
		return store.NewMemoryStore()
	}
}

// healthCheck reports process health plus a few liveness signals.
func healthCheck(hub *feed.Hub, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":           "healthy",
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
			"uptime":           time.Since(startTime).String(),
			"environment":      cfg.Environment,
			"store_backend":    cfg.StoreBackend,
			"feed_connections": hub.ActiveConnections(),
		})
	}
}

// apiInfo lists the mounted endpoint groups.
func apiInfo(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Calmora Engagement API",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"campaigns": map[string]string{
				"create":         "POST /api/v1/campaigns",
				"list":           "GET /api/v1/campaigns",
				"get":            "GET /api/v1/campaigns/{id}",
				"cancel":         "POST /api/v1/campaigns/{id}/cancel",
				"pause":          "POST /api/v1/campaigns/{id}/pause",
				"resume":         "POST /api/v1/campaigns/{id}/resume",
				"welcome":        "POST /api/v1/campaigns/welcome",
				"daily_reminder": "POST /api/v1/campaigns/daily-reminder",
			},
			"templates": map[string]string{
				"list":    "GET /api/v1/templates",
				"get":     "GET /api/v1/templates/{id}",
				"search":  "GET /api/v1/templates/search?tag=",
				"preview": "POST /api/v1/notifications/preview",
			},
			"analytics": map[string]string{
				"report":    "GET /api/v1/analytics",
				"export":    "GET /api/v1/analytics/export",
				"recompute": "POST /api/v1/analytics/recompute",
				"events":    "GET /api/v1/events",
				"ingest":    "POST /api/v1/events/{sent|delivered|opened|dismissed|action|failed}",
			},
			"delivery": map[string]string{
				"pending":   "GET /api/v1/delivery/pending",
				"delivered": "GET /api/v1/delivery/delivered",
			},
			"profile": map[string]string{
				"get":    "GET /api/v1/profile",
				"update": "PUT /api/v1/profile",
			},
			"feed":    "GET /api/v1/feed (websocket)",
			"health":  "GET /health",
			"metrics": "GET /metrics",
		},
	})
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes websocket upgrades through to the underlying connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// loggingMiddleware logs every request with method, path, status and latency.
func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

// corsMiddleware adds CORS headers and short-circuits preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
