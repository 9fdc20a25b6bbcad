package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/pharmkart/order-core/internal/cart"
	"github.com/pharmkart/order-core/internal/catalog"
	"github.com/pharmkart/order-core/internal/checkout"
	httpapi "github.com/pharmkart/order-core/internal/http"
	"github.com/pharmkart/order-core/internal/order"
	"github.com/pharmkart/order-core/internal/outbox"
	"github.com/pharmkart/order-core/internal/payment"
	"github.com/pharmkart/order-core/internal/store"
)

type Config struct {
	HTTPPort        string
	DBHost          string
	DBPort          int
	DBUser          string
	DBPassword      string
	DBName          string
	MigrationsDir   string
	RedisAddr       string
	KafkaBrokers    []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DBHost:          getEnv("DB_HOST", ""),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "orders"),
		MigrationsDir:   getEnv("MIGRATIONS_DIR", "migrations"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
	cfg.DBPort, _ = strconv.Atoi(getEnv("DB_PORT", "5432"))
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

type repositories struct {
	catalog  catalog.Repository
	carts    cart.Repository
	orders   order.Repository
	payments payment.Repository
	outbox   outbox.Repository
}

func main() {
	cfg := loadConfig()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	repos, err := buildRepositories(cfg, log)
	if err != nil {
		log.Fatal("store setup failed", zap.Error(err))
	}

	var cartCache cart.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		cartCache = cart.NewRedisCache(client)
		log.Info("cart cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	gateway := payment.NewBreakerGateway(payment.NewStubGateway(nil))

	cartSvc := cart.NewService(repos.carts, repos.catalog, cartCache, log)
	checkoutSvc := checkout.NewCalculator(repos.carts)
	orderSvc := order.NewService(repos.orders, cartCache, log)
	paymentSvc := payment.NewService(repos.payments, gateway, orderSvc, log)

	handler := httpapi.NewHandler(cartSvc, checkoutSvc, paymentSvc, orderSvc, repos.catalog)
	router := httpapi.NewRouter(handler, cfg.RequestTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.KafkaBrokers) > 0 {
		poller := outbox.NewPoller(repos.outbox, log, cfg.KafkaBrokers...)
		go poller.Run(ctx)
		log.Info("outbox poller started", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: otelhttp.NewHandler(router, "order-core"),
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

func buildRepositories(cfg *Config, log *zap.Logger) (*repositories, error) {
	if cfg.DBHost == "" {
		log.Info("no database configured, using in-memory store")
		mem := store.NewMemoryStore()
		mem.SeedItems(sampleItems())
		return &repositories{
			catalog:  mem,
			carts:    mem,
			orders:   mem,
			payments: mem,
			outbox:   mem,
		}, nil
	}

	cred := &store.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsDir,
	}
	db, err := store.Open(cred)
	if err != nil {
		return nil, err
	}
	if err := store.RunMigrations(db, cred); err != nil {
		return nil, err
	}
	log.Info("connected to postgres", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	return &repositories{
		catalog:  catalog.NewPostgresRepository(db),
		carts:    cart.NewPostgresRepository(db),
		orders:   order.NewPostgresRepository(db),
		payments: payment.NewPostgresRepository(db),
		outbox:   outbox.NewPostgresRepository(db),
	}, nil
}

func sampleItems() []catalog.Item {
	return []catalog.Item{
		{
			ID:            1,
			Name:          "Aspirin 75mg",
			Price:         decimal.NewFromFloat(4.99),
			Stock:         120,
			PackSizeLabel: "strip of 14 tablets",
			ImageURL:      "https://cdn.example.com/items/aspirin-75.png",
			Uses:          "Pain relief, fever reduction",
			Manufacturer:  "Bayer",
		},
		{
			ID:            2,
			Name:          "Paracetamol 500mg",
			Price:         decimal.NewFromFloat(2.49),
			Stock:         300,
			PackSizeLabel: "strip of 10 tablets",
			ImageURL:      "https://cdn.example.com/items/paracetamol-500.png",
			Uses:          "Pain relief, fever reduction",
			Manufacturer:  "GSK",
		},
		{
			ID:            3,
			Name:          "Cetirizine 10mg",
			Price:         decimal.NewFromFloat(3.75),
			Stock:         80,
			PackSizeLabel: "strip of 10 tablets",
			ImageURL:      "https://cdn.example.com/items/cetirizine-10.png",
			Uses:          "Allergy relief",
			Manufacturer:  "Cipla",
		},
	}
}
