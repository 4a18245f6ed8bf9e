package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/config"
	"github.com/SalBom/app-sb-sub000/internal/fakebackend"
	"github.com/SalBom/app-sb-sub000/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store := fakebackend.NewStore()
	fakebackend.Seed(store)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      fakebackend.NewRouter(store, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.SubmitTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("fake backend starting", zap.String("addr", srv.Addr), zap.String("demo_cuit", fakebackend.DemoCUIT))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down fake backend")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	stats := store.Stats()
	log.Info("fake backend stopped",
		zap.Int("orders", store.OrderCount()),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("deduplicated", stats.Deduplicated),
		zap.Int("rejected", stats.Rejected))
}
