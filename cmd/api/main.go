package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/buddyledger/internal/api"
	"github.com/punchamoorthee/buddyledger/internal/auth"
	"github.com/punchamoorthee/buddyledger/internal/config"
	"github.com/punchamoorthee/buddyledger/internal/events"
	"github.com/punchamoorthee/buddyledger/internal/ratelimit"
	"github.com/punchamoorthee/buddyledger/internal/service"
	"github.com/punchamoorthee/buddyledger/internal/store"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	db, err := store.NewPostgres(ctx, cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("Unable to apply schema: %v", err)
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		p, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventExchange)
		if err != nil {
			log.Printf("level=warn component=events msg=\"rabbitmq unavailable; using no-op publisher\" err=%v", err)
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("level=warn component=ratelimit msg=\"redis unavailable; transfers are not rate limited\" err=%v", err)
		} else {
			defer client.Close()
			limiter = ratelimit.NewLimiter(client, cfg.RedisRateLimitPrefix, cfg.TransferRateLimitPerMinute, time.Minute)
		}
	}

	handler := api.NewHandler(api.Deps{
		Users:     service.NewUserService(db, publisher),
		Accounts:  service.NewAccountService(db, publisher),
		Contacts:  service.NewContactGraph(db, publisher),
		Transfers: service.NewTransferService(db, publisher),
		Queries:   service.NewQueryService(db),
		Tokens:    auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL()),
		Limiter:   limiter,
		Ping:      db.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("level=info component=api msg=\"server starting\" port=%s env=%s", cfg.Port, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=api msg=\"shutdown failed\" err=%v", err)
	}
	log.Printf("level=info component=api msg=\"server stopped\"")
}
