package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dinetab/api/internal/config"
	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/notify"
	"github.com/dinetab/api/internal/router"
	"github.com/dinetab/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventBufferSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	// Events reach local sockets directly, or every instance through the
	// broker when one is configured.
	var sink notify.Sink = hub
	if cfg.AMQPURL != "" {
		broker, err := notify.DialBroker(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Unable to connect to message broker: %v", err)
		}
		defer broker.Close()

		go func() {
			if err := broker.Consume(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ERROR: broker consumer stopped: %v", err)
			}
		}()
		sink = broker
		log.Println("Fanning out events through AMQP")
	}

	bus := notify.NewBus(sink, eventBufferSize)
	go bus.Run(ctx)

	r, err := router.New(cfg, database.New(pool), pool, hub, bus)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: server shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
