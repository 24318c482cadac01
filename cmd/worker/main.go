// Command worker runs the background-only half of the Trust & Compliance
// Engine: the sanction/consent/DSR sweepers and the outbox publisher that
// delivers every C2 event to Kafka. It shares its store/service
// construction with cmd/server but never opens an HTTP listener.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	consentsvc "credo/internal/consent/service"
	consentstore "credo/internal/consent/store"
	dsrsvc "credo/internal/dsr/service"
	dsrstore "credo/internal/dsr/store"
	"credo/internal/platform/config"
	"credo/internal/platform/kafka/producer"
	"credo/internal/platform/logger"
	sanctionsvc "credo/internal/sanction/service"
	sanctionstore "credo/internal/sanction/store"
	"credo/pkg/platform/outbox"
)

const outboxDrainTick = 2 * time.Second

func main() {
	log := logger.New()
	cfg := config.FromEnv()

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}

	outboxStore := outbox.NewPostgresStore(db)

	sanctionStore := sanctionstore.NewPostgres(db)
	sanctionSweeper := sanctionsvc.NewSweeper(sanctionStore, log)
	if err := sanctionSweeper.Start(cfg.Sweepers.SanctionExpirySpec); err != nil {
		log.Error("start sanction sweeper", "error", err)
		os.Exit(1)
	}
	defer sanctionSweeper.Stop()

	consentStore := consentstore.NewPostgres(db)
	consentService := consentsvc.New(consentStore, outboxStore, nil)
	consentSweeper := consentsvc.NewSweeper(consentService, log)
	if err := consentSweeper.Start(cfg.Sweepers.ConsentSpec); err != nil {
		log.Error("start consent sweeper", "error", err)
		os.Exit(1)
	}
	defer consentSweeper.Stop()

	dsrStore := dsrstore.NewPostgres(db)
	dsrService := dsrsvc.New(dsrStore, outboxStore)
	dsrSweeper := dsrsvc.NewSweeper(dsrService, log)
	if err := dsrSweeper.Start(cfg.Sweepers.DSREscalationSpec, cfg.Sweepers.DSRDailySummarySpec); err != nil {
		log.Error("start dsr sweeper", "error", err)
		os.Exit(1)
	}
	defer dsrSweeper.Stop()

	var bus outbox.Bus
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := producer.New(producer.Config{
			Brokers:     cfg.Kafka.Brokers,
			TopicPrefix: cfg.Kafka.Topic,
		})
		if err != nil {
			log.Error("construct kafka producer", "error", err)
			os.Exit(1)
		}
		bus = kafkaProducer
	} else {
		log.Warn("no kafka brokers configured; outbox rows will accumulate unpublished")
		bus = noopBus{}
	}

	publisher := outbox.NewPublisher(outboxStore, bus, outbox.WithLogger(log))

	ctx, cancel := context.WithCancel(context.Background())
	go publisher.Run(ctx, outboxDrainTick)

	log.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	cancel()
}

// noopBus discards events when Kafka is not configured for local/dev runs;
// the outbox rows themselves remain the durable record, so nothing is lost,
// only left for a later publish once a bus is wired.
type noopBus struct{}

func (noopBus) Publish(ctx context.Context, event outbox.Event) error { return nil }
