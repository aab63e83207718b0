package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chartwatch/alert-engine/internal/api"
	"github.com/chartwatch/alert-engine/internal/config"
	"github.com/chartwatch/alert-engine/internal/database"
	"github.com/chartwatch/alert-engine/internal/engine"
	"github.com/chartwatch/alert-engine/internal/kafka"
	"github.com/chartwatch/alert-engine/internal/models"
	"github.com/chartwatch/alert-engine/internal/notify"
	"github.com/chartwatch/alert-engine/internal/series"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seriesStore, err := series.NewStore(cfg.Redis.Addr(), cfg.Redis.Password)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer seriesStore.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.UITopic)
	defer producer.Close()

	credentials := &notify.StaticCredentialStore{
		Credentials: notify.TelegramCredentials{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
		},
	}
	transports := map[string]notify.Transport{
		models.ChannelToast:    notify.NewToastTransport(producer),
		models.ChannelSound:    notify.NewSoundTransport(producer),
		models.ChannelTelegram: notify.NewTelegramTransport(credentials, cfg.Telegram.APIBaseURL, cfg.Telegram.Timeout),
	}

	dispatcher := notify.NewDispatcher(db, db)
	alertEngine := engine.New(db, seriesStore, dispatcher)

	worker := notify.NewWorker(db, db, db, transports, notify.WorkerConfig{
		PoolSize:       cfg.Worker.PoolSize,
		PollInterval:   cfg.Worker.PollInterval,
		AttemptTimeout: cfg.Worker.AttemptTimeout,
	})
	go worker.Run(ctx)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.CandleTopic, cfg.Kafka.ConsumerGroup, alertEngine, cfg.Kafka.Shards)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Candle consumer stopped: %v", err)
		}
	}()

	handler := api.NewHandler(db)
	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: api.SetupRoutes(handler),
	}

	go func() {
		log.Printf("Starting HTTP server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
