package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/dm-service/internal/auth"
	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/events"
	"github.com/yourorg/dm-service/internal/feed"
	"github.com/yourorg/dm-service/internal/handlers"
	"github.com/yourorg/dm-service/internal/logger"
	"github.com/yourorg/dm-service/internal/repository"
	"github.com/yourorg/dm-service/internal/server"
	"github.com/yourorg/dm-service/internal/service"
	"github.com/yourorg/dm-service/internal/storage"
	"github.com/yourorg/dm-service/internal/ws"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.Database)
	convs := repository.NewConversations(db.Collection("conversations"))
	msgs := repository.NewMessages(db.Collection("messages"))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatalw("redis ping", "err", err)
	}

	producer := feed.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()
	relay := feed.NewRelay(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, rdb, zlog)
	defer relay.Close()
	go relay.Run(ctx)
	subscriber := feed.NewSubscriber(rdb, zlog)

	store, err := storage.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.PublicRead)
	if err != nil {
		zlog.Fatalw("s3 init", "err", err)
	}

	var ann *events.Publisher
	if cfg.NATS.URL != "" {
		ann, err = events.NewPublisher(cfg.NATS.URL, zlog)
		if err != nil {
			zlog.Warnw("nats connect, announcements disabled", "err", err)
		}
	}
	defer ann.Close()

	jv, err := auth.NewJWTValidator(cfg.JWT.PublicKeyPath, cfg.JWT.Alg, cfg.JWT.Secret)
	if err != nil {
		zlog.Fatalw("jwt init", "err", err)
	}

	svc := service.NewChatService(convs, msgs, store, producer, ann, zlog)
	hub := ws.NewHub(subscriber, zlog)
	wsrv := ws.NewServer(hub, jv, svc, svc, zlog)
	h := handlers.NewChatHandler(svc, zlog)

	srv := server.New(cfg, h, wsrv, jv)
	go func() {
		if err := srv.Listen(); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()
	zlog.Infow("dm-service started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	cancel()
	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Errorw("shutdown", "err", err)
	}
	zlog.Infow("dm-service stopped")
}
