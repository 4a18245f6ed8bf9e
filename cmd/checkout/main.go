package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/backend"
	"github.com/SalBom/app-sb-sub000/internal/cart"
	"github.com/SalBom/app-sb-sub000/internal/catalog"
	"github.com/SalBom/app-sb-sub000/internal/checkout"
	"github.com/SalBom/app-sb-sub000/internal/config"
	"github.com/SalBom/app-sb-sub000/internal/logger"
	"github.com/SalBom/app-sb-sub000/internal/publisher"
	"github.com/SalBom/app-sb-sub000/internal/stock"
)

func main() {
	planPath := pflag.StringP("plan", "p", "plan.json", "checkout plan to execute")
	envFile := pflag.String("env", "", "optional .env file")
	pflag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	plan, err := LoadPlan(*planPath)
	if err != nil {
		log.Fatal("invalid plan", zap.String("path", *planPath), zap.Error(err))
	}
	if plan.CUIT == "" {
		plan.CUIT = cfg.UserCUIT
	}
	if plan.CUIT == "" {
		log.Fatal("no CUIT in plan or USER_CUIT")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := execute(ctx, cfg, plan, log)
	if err != nil {
		log.Error("checkout failed", zap.Error(err), zap.String("message", backend.UserMessage(err)))
		os.Exit(1)
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(result); err != nil {
		log.Error("failed to encode result", zap.Error(err))
	}
}

func execute(ctx context.Context, cfg config.Config, plan Plan, log *zap.Logger) (checkout.Result, error) {
	client := backend.NewClient(cfg.APIURL,
		backend.WithTimeouts(cfg.RequestTimeout, cfg.SubmitTimeout),
		backend.WithLogger(log.Named("backend")))

	var snapshots cart.SnapshotCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, running without cart snapshots", zap.Error(err))
		} else {
			snapshots = cart.NewRedisSnapshotCache(rdb)
		}
	}

	syncer := cart.NewSyncer(client, plan.CUIT, cart.SyncOptions{
		Workers:   cfg.SyncWorkers,
		QueueSize: cfg.SyncQueueSize,
		Timeout:   cfg.RequestTimeout,
		Snapshot:  snapshots,
	}, log.Named("sync"))
	defer syncer.Close()

	store := cart.NewStore(syncer, log.Named("cart"))
	source := cart.Hydrate(ctx, store, client, snapshots, plan.CUIT, log)
	log.Info("cart hydrated", zap.String("source", string(source)), zap.Int("lines", store.State().Len()))

	deps := checkout.Deps{
		Cart:      store,
		Catalog:   catalog.New(client, log.Named("catalog")),
		Gate:      stock.NewGate(client, 0, log.Named("stock")),
		Directory: client,
		Orders:    client,
		Logger:    log.Named("checkout"),
	}
	if len(cfg.KafkaBrokers) > 0 {
		events := publisher.NewKafkaOrderPublisher(cfg.KafkaTopic, log.Named("publisher"), cfg.KafkaBrokers...)
		defer events.Close()
		deps.Events = events
	}

	wizard := checkout.NewWizard(plan.CUIT, deps)
	defer wizard.Close()

	s := &session{products: client, cart: store, wizard: wizard, logger: log}
	return s.run(ctx, plan)
}
