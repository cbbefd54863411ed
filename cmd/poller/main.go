package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/shop-ledger/internal/config"
	"github.com/richardliu001/shop-ledger/internal/logger"
	"github.com/richardliu001/shop-ledger/internal/outbox"
	"github.com/richardliu001/shop-ledger/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/segmentio/kafka-go"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	kw := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	defer kw.Close()

	// the poller never touches the balance cache
	repository := repo.NewRepository(gdb, nil, kw, log)
	relay := outbox.NewRelay(repository, cfg.Outbox.BatchSize, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("ledger-poller started, interval=%s batch=%d", cfg.Outbox.Interval, cfg.Outbox.BatchSize)
	relay.Run(ctx, cfg.Outbox.Interval)
	log.Info("ledger-poller stopped")
}
