package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"aicavalli-order-service/internal/cache"
	"aicavalli-order-service/internal/config"
	"aicavalli-order-service/internal/db"
	httpapi "aicavalli-order-service/internal/http"
	"aicavalli-order-service/internal/http/handlers"
	"aicavalli-order-service/internal/logger"
	"aicavalli-order-service/internal/queue"
	"aicavalli-order-service/internal/receipt"
	"aicavalli-order-service/internal/services"
	"aicavalli-order-service/internal/storage"
	"aicavalli-order-service/internal/store"
	"aicavalli-order-service/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.GuestSessionTokenSecret == config.DevGuestSessionSecret {
		log.Warn("using development guest session secret", zap.String("env", cfg.Env))
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	st := store.New(pool)

	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		qc := connectQueue(ctx, cfg, log)
		if qc != nil {
			defer qc.Close()
			events = qc
			if cfg.RabbitMQWorkerMode == "daemon" {
				translator := &queue.Translator{Jobs: qc, Contacts: st, Logger: log}
				log.Info("event translator enabled", zap.String("mode", "daemon"))
				go func() {
					if err := qc.ConsumeWithRetry(ctx, queue.EventsQueue, translator.Process, 5, 5*time.Second); err != nil && ctx.Err() == nil {
						log.Error("consumer stopped", zap.Error(err))
					}
				}()
			} else {
				log.Info("event translator disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
			}
		}
	} else {
		log.Info("event publishing disabled (RABBITMQ_URL is empty)")
	}

	var locker cache.Locker = cache.NewMemoryLocker()
	if cfg.RedisURL != "" {
		redisLocker, err := cache.NewRedisLocker(ctx, cfg.RedisURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("redis connection failed", zap.Error(err))
			}
			log.Warn("redis connection failed; using in-process locks", zap.Error(err))
		} else {
			defer redisLocker.Close()
			locker = redisLocker
		}
	}

	var blobs services.BlobStore
	if cfg.ObjectStoreEnabled() {
		objectStore, err := storage.NewObjectStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
			StorageClass:    cfg.ObjectStoreStorageClass,
		})
		if err != nil {
			log.Warn("object store unavailable; receipts and images stay local", zap.Error(err))
		} else {
			blobs = objectStore
		}
	}

	loc := cfg.Location()
	sessionSecret := cfg.GuestSessionTokenSecret
	h := &handlers.Handler{
		Logger: log,
		Config: cfg,
		Orders: services.NewOrderService(services.OrderServiceConfig{
			Orders:        st,
			Menu:          st,
			Sessions:      st,
			Users:         st,
			Events:        events,
			Logger:        log,
			EditWindow:    cfg.OrderEditWindow,
			SessionSecret: sessionSecret,
		}),
		Kitchen: services.NewKitchenService(st, st, st, events, log, nil),
		Sessions: services.NewSessionService(services.SessionServiceConfig{
			Sessions:      st,
			Locker:        locker,
			Events:        events,
			Logger:        log,
			JWTSecret:     cfg.JWTSecret,
			TokenTTL:      time.Duration(cfg.GuestJWTExpirySeconds) * time.Second,
			SessionSecret: sessionSecret,
			Cooldown:      cfg.BillRequestCooldown,
		}),
		Billing: services.NewBillingService(services.BillingServiceConfig{
			Bills:    st,
			Sessions: st,
			Users:    st,
			Locker:   locker,
			Blobs:    blobs,
			Events:   events,
			Logger:   log,
			Header: receipt.Header{
				Name:     cfg.RestaurantName,
				Address:  cfg.RestaurantAddress,
				Currency: cfg.CurrencySymbol,
				Location: loc,
			},
			ReceiptWidth: cfg.ReceiptWidth,
			LockTTL:      cfg.BillingLockTTL,
		}),
		Menu:      services.NewMenuService(st, st, blobs, log, cfg.RestaurantTimezone, nil),
		Users:     services.NewUserService(st, log, cfg.JWTSecret, time.Duration(cfg.JWTExpirySeconds)*time.Second, nil),
		Analytics: services.NewAnalyticsService(st, loc, nil),
	}

	feed := ws.NewFeed(pool, log)
	feed.Start(ctx)
	wsServer := &ws.Server{
		Feed:      feed,
		Board:     h.Kitchen,
		Orders:    h.Orders,
		Sessions:  h.Sessions,
		JWTSecret: cfg.JWTSecret,
		Heartbeat: cfg.WSHeartbeatInterval,
		Logger:    log,
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(pool, log, cfg, h, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("order api ready", zap.String("base", "/api"))
		log.Info("order ws ready", zap.String("base", "/ws"))
		log.Info("order service listening", zap.String("addr", cfg.HTTPAddr), zap.String("restaurant", cfg.RestaurantName))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

// connectQueue dials RabbitMQ and declares the topology. Outside production a broken
// broker only disables publishing.
func connectQueue(ctx context.Context, cfg config.Config, log *zap.Logger) *queue.Client {
	log.Info("rabbitmq enabled", zap.String("eventsQueue", queue.EventsQueue))
	qc, err := queue.New(cfg.RabbitMQURL)
	if err != nil {
		if cfg.Env == "production" {
			log.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		log.Warn("rabbitmq connection failed; continuing without events", zap.Error(err))
		return nil
	}
	if err := queue.EnsureTopology(ctx, qc); err != nil {
		if cfg.Env == "production" {
			log.Fatal("rabbitmq topology failed", zap.Error(err))
		}
		log.Warn("rabbitmq topology failed; continuing without events", zap.Error(err))
		_ = qc.Close()
		return nil
	}
	return qc
}
