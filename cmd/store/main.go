package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tasukuchiba/lovebook/internal/config"
	"github.com/tasukuchiba/lovebook/internal/handlers"
	"github.com/tasukuchiba/lovebook/internal/logging"
	"github.com/tasukuchiba/lovebook/internal/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadStore()
	if err != nil {
		// ログレベルの設定前なので既定のロガーで出力する
		zap.Must(zap.NewProduction()).Fatal("invalid configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	// ストレージの初期化
	store, err := initStorage(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.String("type", cfg.StorageType), zap.Error(err))
	}

	// ルーティング設定
	mux := http.NewServeMux()
	mux.Handle(handlers.TablePath, handlers.NewTableHandler(store, cfg.APIKey, logger))

	// ヘルスチェック用エンドポイント
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// サーバーを止めてからストレージを閉じる
		if err := multierr.Combine(srv.Shutdown(shutdownCtx), store.Close()); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("store starting", zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageType))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", zap.Error(err))
		stop()
	}
	<-stopped
	logger.Info("store stopped")
}

// initStorage は設定に基づいてストレージを初期化する
func initStorage(cfg *config.StoreConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		store, err := storage.NewPostgresStorage(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using PostgreSQL storage")
		return store, nil

	case "sqlite":
		store, err := storage.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using SQLite storage", zap.String("path", cfg.SQLitePath))
		return store, nil

	default:
		logger.Info("using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}
}
