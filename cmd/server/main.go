package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coupon-service/internal/clock"
	"coupon-service/internal/config"
	"coupon-service/internal/database"
	"coupon-service/internal/handlers"
	"coupon-service/internal/kafka"
	"coupon-service/internal/logger"
	"coupon-service/internal/models"
	"coupon-service/internal/redis"
	"coupon-service/internal/repository"
	"coupon-service/internal/services"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	handler  http.Handler
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting coupon service...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(app.cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	app.close()
	app.log.Info("Server exited")
}

// close освобождает внешние ресурсы в обратном порядке
func (a *application) close() {
	if a.consumer != nil {
		if err := a.consumer.Stop(); err != nil {
			a.log.WithError(err).Warn("Failed to stop Kafka consumer")
		}
	}
	_ = a.producer.Close()
	_ = a.redis.Close()
	_ = a.db.Close()
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (_ *application, err error) {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := newLogger(&cfg.Logger)

	app := &application{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	repo, err := app.buildRepository()
	if err != nil {
		return nil, err
	}

	var cached *repository.CachedRepository
	if cfg.Redis.Enabled {
		app.redis, err = redisConnect(&cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		cached = repository.NewCachedRepository(repo, app.redis, cfg.Redis.CacheTTL, log)
		repo = cached
	}

	var producer handlers.EventProducer
	if cfg.Kafka.Enabled {
		app.producer, err = newKafkaProducer(&cfg.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		producer = app.producer

		app.consumer, err = newKafkaConsumer(&cfg.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		registerEventHandlers(app.consumer, cached, log)
		if err := app.consumer.Start(); err != nil {
			return nil, fmt.Errorf("kafka consumer start: %w", err)
		}
	}

	couponService := services.NewCouponService(repo, clock.System{}, log)
	rateLimiter := services.NewRateLimiter(app.redis, log, &cfg.RateLimit)

	app.handler = handlers.NewRouter(handlers.RouterDeps{
		Coupons:   handlers.NewCouponHandler(couponService, producer, log),
		Health:    app.healthHandler(),
		RateLimit: handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit),
		Limiter:   rateLimiter,
		Log:       log,
	})
	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return app, nil
}

// buildRepository выбирает хранилище по DB_DRIVER
func (a *application) buildRepository() (repository.CouponRepository, error) {
	cfg := &a.cfg.Database
	if cfg.Driver == config.DriverMemory {
		a.log.Warn("Using in-memory coupon storage, data is lost on restart")
		return repository.NewMemoryRepository(), nil
	}

	db, err := dbConnect(cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	a.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch db.Driver {
	case config.DriverSQLite:
		repo, err := repository.NewGormRepository(db)
		if err != nil {
			return nil, err
		}
		if cfg.MigrateOnStart {
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	default:
		repo := repository.NewPostgresRepository(db, a.log)
		if cfg.MigrateOnStart {
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	}
}

// healthHandler проверяет только включенные компоненты
func (a *application) healthHandler() *handlers.HealthHandler {
	var (
		db         handlers.DBHealth
		rdb        handlers.RedisHealth
		checkKafka func([]string) error
	)
	if a.db != nil {
		db = a.db
	}
	if a.redis != nil {
		rdb = a.redis
	}
	if a.cfg.Kafka.Enabled {
		checkKafka = kafkaHealthCheck
	}
	return handlers.NewHealthHandler(db, rdb, a.cfg.Kafka.Brokers, checkKafka)
}

// registerEventHandlers сбрасывает кеш купона по событиям других реплик
func registerEventHandlers(consumer *kafka.Consumer, cache *repository.CachedRepository, log *logger.Logger) {
	invalidate := func(ctx context.Context, event *models.Event) error {
		log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
			"coupon_id":  event.CouponID,
		}).Debug("Processing coupon event")
		if cache != nil {
			cache.Invalidate(ctx, event.CouponID)
		}
		return nil
	}

	consumer.RegisterHandler(models.EventTypeCouponCreated, invalidate)
	consumer.RegisterHandler(models.EventTypeCouponUpdated, invalidate)
	consumer.RegisterHandler(models.EventTypeCouponDeleted, invalidate)
}
