package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/docstore"
	"storefront-service/internal/lock"
	"storefront-service/internal/payment"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	docs, err := docstore.Connect(startupCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = docs.Close(ctx)
	}()
	if err := docs.CreateIndexes(startupCtx); err != nil {
		log.Fatalf("Failed to create catalog indexes: %v", err)
	}
	logger.Info("MongoDB connected", zap.String("database", cfg.Mongo.Database))

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Info("Database connected")

	checks := []api.HealthCheck{
		{Name: "mongo", Check: docs.Ping},
		{Name: "postgres", Check: db.Ping},
	}

	var locker lock.Locker
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Business.CartLockTTL, logger)
		checks = append(checks, api.HealthCheck{Name: "redis", Check: redisClient.Ping})
		logger.Info("Redis connected, using shared cart locks")
	} else {
		locker = lock.NewKeyedMutex()
		logger.Warn("Redis locks disabled, cart locks are local to this process")
	}

	var gateway payment.Gateway
	switch cfg.Payment.Gateway {
	case "stripe":
		stripe := payment.NewStripeGateway(cfg.Payment.StripeBaseURL, cfg.Payment.StripeSecretKey, cfg.Business.PaymentTimeout())
		gateway = payment.NewBreakerGateway("stripe", stripe,
			uint32(cfg.Payment.BreakerFailures),
			time.Duration(cfg.Payment.BreakerOpenSeconds)*time.Second)
	case "mock":
		gateway = payment.NewMockGateway()
		logger.Warn("Using mock payment gateway")
	default:
		log.Fatalf("Unknown payment gateway %q", cfg.Payment.Gateway)
	}

	checkoutProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout)
	defer checkoutProducer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicCheckout))

	eventPublisher := broker.NewEventPublisher(checkoutProducer)

	catalog := service.NewCatalogIndex(docs)
	search := service.NewSearchRanker(docs)
	carts := service.NewCartStore(docs, docs, locker, cfg.Business.CartLockWait)
	pipeline := service.NewCheckoutPipeline(carts, db, gateway, eventPublisher, service.PipelineConfig{
		PaymentTimeout:    cfg.Business.PaymentTimeout(),
		ChargeDescription: cfg.Payment.ChargeDescription,
	})
	maintainer := service.NewAncestorMaintainer(docs)
	reconciler := service.NewCartReconciler(carts, db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var catalogWorker *worker.CatalogWorker
	var reconcileWorker *worker.ReconcileWorker
	if cfg.Kafka.ConsumersEnabled {
		catalogConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCatalog, cfg.Kafka.CatalogGroup)
		catalogWorker = worker.NewCatalogWorker(catalogConsumer, maintainer)
		go func() {
			if err := catalogWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Catalog worker error", zap.Error(err))
			}
		}()

		reconcileConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout, cfg.Kafka.ReconcileGroup)
		reconcileWorker = worker.NewReconcileWorker(reconcileConsumer, reconciler)
		go func() {
			if err := reconcileWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Reconcile worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(catalog, search, carts, pipeline, docs, checks...)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if catalogWorker != nil {
		_ = catalogWorker.Stop()
	}
	if reconcileWorker != nil {
		_ = reconcileWorker.Stop()
	}

	logger.Info("Server exited")
}
