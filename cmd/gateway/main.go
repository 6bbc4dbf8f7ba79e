package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shadan-Jamal/uplift-messaging/internal/api"
	"github.com/Shadan-Jamal/uplift-messaging/internal/auth"
	"github.com/Shadan-Jamal/uplift-messaging/internal/cache"
	"github.com/Shadan-Jamal/uplift-messaging/internal/config"
	"github.com/Shadan-Jamal/uplift-messaging/internal/events"
	"github.com/Shadan-Jamal/uplift-messaging/internal/logger"
	"github.com/Shadan-Jamal/uplift-messaging/internal/notify"
	"github.com/Shadan-Jamal/uplift-messaging/internal/presence"
	"github.com/Shadan-Jamal/uplift-messaging/internal/readreceipt"
	"github.com/Shadan-Jamal/uplift-messaging/internal/store"
	"github.com/Shadan-Jamal/uplift-messaging/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	st, err := store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		lg.Fatalw("mongo init", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Disconnect(shutdownCtx)
	}()

	var registryOpts []presence.Option
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		mirror := cache.NewPresenceMirror(rdb, "uplift", 5*time.Minute)
		registryOpts = append(registryOpts, presence.WithMirror(mirror))
	}
	registry := presence.NewRegistry(lg, registryOpts...)

	var producer notify.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		p := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = p.Close() }()
		producer = p
	}

	dispatcher := notify.NewDispatcher(lg, st, registry, producer)
	tracker := readreceipt.NewTracker(lg, st)
	hub := ws.NewHub(lg, st, registry, dispatcher, tracker)

	validator := auth.NewValidator(cfg.App.JWTSecret)
	srv := api.NewServer(lg, validator, st, registry, tracker, hub)

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		lg.Infow("starting messaging gateway", "addr", addr)
		errs <- srv.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		lg.Fatalw("server error", "err", err)
	case s := <-sig:
		lg.Infow("signal received", "signal", s.String())
	}

	if err := srv.Shutdown(); err != nil {
		lg.Errorw("shutdown", "err", err)
	}
	lg.Info("gateway stopped")
}
