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

	"github.com/richardliu001/shop-ledger/internal/auth"
	"github.com/richardliu001/shop-ledger/internal/config"
	"github.com/richardliu001/shop-ledger/internal/filestore"
	"github.com/richardliu001/shop-ledger/internal/logger"
	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/richardliu001/shop-ledger/internal/observability"
	"github.com/richardliu001/shop-ledger/internal/repo"
	"github.com/richardliu001/shop-ledger/internal/service"
	httptransport "github.com/richardliu001/shop-ledger/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. tracing & metrics
	shutdownTracing, err := observability.InitTracing(ctx, "shop-ledger", cfg.Tracing.Endpoint)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	if err := observability.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		log.Fatalf("register metrics: %v", err)
	}

	// 4. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(model.All()...); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 5. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}
	defer rdb.Close()

	// 6. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kw.Close()

	// 7. repo & services
	repository := repo.NewRepository(gdb, rdb, kw, log)
	ledger := service.NewLedger(repository, log)
	minDep, maxDep := cfg.Deposit.DepositBounds()
	files := filestore.NewLocal(cfg.Upload.Dir, cfg.Upload.MaxBytes, log)
	deposits := service.NewDepositService(repository, ledger, files, service.DepositLimits{Min: minDep, Max: maxDep}, log)
	orders := service.NewOrderService(repository, ledger, log)

	// 8. gin router
	tokens := auth.NewProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	handler := httptransport.NewHandler(ledger, deposits, orders, cfg.Upload.MaxBytes)
	router := httptransport.NewRouter(handler, tokens, cfg.RateLimit, log)

	// 9. serve until signalled
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("shop-ledger listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Errorf("tracing shutdown: %v", err)
	}
}
