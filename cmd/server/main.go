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

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lorancew-l/proto-testing-sub000/internal/cache"
	"github.com/lorancew-l/proto-testing-sub000/internal/config"
	"github.com/lorancew-l/proto-testing-sub000/internal/logging"
	"github.com/lorancew-l/proto-testing-sub000/internal/repository"
	"github.com/lorancew-l/proto-testing-sub000/internal/service"
	"github.com/lorancew-l/proto-testing-sub000/internal/telemetry"
	"github.com/lorancew-l/proto-testing-sub000/internal/transport/rest"
	"github.com/lorancew-l/proto-testing-sub000/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		return err
	}
	logger.Info("connected to MongoDB", zap.String("db", cfg.MongoDB))
	db := mongoClient.Database(cfg.MongoDB)

	// Redis connection
	redisOpts, err := cache.RedisOptions(cfg.RedisURI)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URI: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	logger.Info("connected to Redis", zap.String("addr", redisOpts.Addr), zap.Int("db", redisOpts.DB))

	compiledCache, err := cache.NewCompiledCache(cfg.CompiledCacheSize)
	if err != nil {
		return err
	}

	var sender telemetry.Sender = telemetry.NewLogSender(logger)
	if cfg.CollectorURL != "" {
		sender = telemetry.NewCollectorClient(cfg.CollectorURL, cfg.SendTimeout, logger)
	} else {
		logger.Warn("COLLECTOR_URL not set, telemetry events are logged only")
	}

	wsHub := ws.NewHub(logger)
	defer wsHub.Close()

	researchSvc := service.NewResearchService(repository.NewResearchRepo(db), compiledCache, logger)
	sessionSvc := service.NewSessionService(
		researchSvc,
		cache.NewSessionCache(rdb, cfg.SessionTTL),
		cache.NewPendingCache(rdb, cfg.SessionTTL),
		repository.NewSessionRepo(db),
		sender,
		logger,
		cfg.AppName,
	)
	sessionSvc.SetBroadcaster(wsHub)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: rest.NewRouter(&rest.Container{
			SessionService: sessionSvc,
			WSHub:          wsHub,
			Logger:         logger,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
