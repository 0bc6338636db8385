package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/lexideck/internal/api"
	"github.com/vytor/lexideck/internal/config"
	"github.com/vytor/lexideck/internal/coordinator"
	"github.com/vytor/lexideck/internal/db"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/remote"
	"github.com/vytor/lexideck/internal/repository/sqlite"
	"github.com/vytor/lexideck/internal/services"
	"github.com/vytor/lexideck/internal/srs"
	"github.com/vytor/lexideck/internal/syncer"
)

func main() {
	cfg := config.Load()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("LexiDeck Server Starting")
	log.Info("===========================================")
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("remote_base_url=%s", cfg.RemoteBaseURL)
	log.Debug("sync_interval=%s", cfg.SyncInterval)
	log.Debug("sync_foreground_throttle=%s", cfg.SyncForegroundThrottle)
	log.Debug("sync_worker_count=%d", cfg.SyncWorkerCount)
	log.Debug("sync_queue_size=%d", cfg.SyncQueueSize)
	log.Debug("sync_batch_size=%d", cfg.SyncBatchSize)
	log.Debug("mastery_threshold_days=%d", cfg.MasteryThresholdDays)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	deckRepo := sqlite.NewDeckRepository(database.DB)
	cardRepo := sqlite.NewFlashcardRepository(database.DB)
	statsRepo := sqlite.NewStatsRepository(database.DB)
	syncRepo := sqlite.NewSyncRepository(database.DB)

	backend := remote.New(cfg.RemoteBaseURL, cfg.RemoteToken)
	engine := syncer.New(syncRepo, backend, cfg.SyncBatchSize)

	coord := coordinator.New(engine, logNotifier{}, coordinator.Options{
		Interval:           cfg.SyncInterval,
		ForegroundThrottle: cfg.SyncForegroundThrottle,
		Workers:            cfg.SyncWorkerCount,
		QueueSize:          cfg.SyncQueueSize,
	})

	srv := &api.Server{
		DB:          database.DB,
		Decks:       services.NewDeckService(deckRepo),
		Cards:       services.NewCardService(cardRepo, deckRepo),
		Reviews:     services.NewReviewService(statsRepo, cardRepo, srs.New(cfg.MasteryThresholdDays)),
		SyncRepo:    syncRepo,
		Coordinator: coord,
	}

	ctx, cancel := context.WithCancel(context.Background())
	coord.Start(ctx)

	// Known owners start periodic sync immediately; new ones are tracked as
	// they create decks.
	if owners, err := syncRepo.Owners(ctx); err != nil {
		log.Warn("failed to list owners for sync scheduling: %v", err)
	} else {
		for _, ownerID := range owners {
			coord.Track(ownerID)
		}
		log.Info("tracking %d owners for periodic sync", len(owners))
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Debug("stopping sync coordinator")
	cancel()
	coord.Shutdown()

	log.Info("===========================================")
	log.Info("LexiDeck Server Stopped")
	log.Info("===========================================")
}

// logNotifier surfaces sync outcomes in the server log. A UI frontend would
// replace this with its own notification sink.
type logNotifier struct{}

func (logNotifier) SyncCompleted(ownerID string, result *syncer.Result) {
	logger.Default().WithPrefix("sync").Info(
		"sync completed for %s: pushed=%d/%d/%d deletes=%d applied=%d deferred=%d",
		ownerID, result.PushedDecks, result.PushedCards, result.PushedStats,
		result.PushedDeletes, result.Applied, result.Deferred)
}

func (logNotifier) SyncFailed(ownerID string, err error) {
	logger.Default().WithPrefix("sync").Warn("sync failed for %s: %v", ownerID, err)
}
