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
	"github.com/tasukuchiba/lovebook/internal/remote"
	"github.com/tasukuchiba/lovebook/internal/repository"
	"github.com/tasukuchiba/lovebook/internal/vault"
	"github.com/tasukuchiba/lovebook/internal/websocket"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("invalid configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	// リモートストアとリポジトリの初期化
	client, err := remote.NewClient(cfg.StoreURL, cfg.StoreKey, remote.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		logger.Fatal("failed to create store client", zap.Error(err))
	}
	repo := repository.New(client, logger.Named("repository"))

	// 状態が変わるたびに全ビューへ配信する
	var hub *websocket.Hub
	v := vault.New(repo, vault.Options{
		LoadingDelay: cfg.LoadingDelay,
		Logger:       logger.Named("vault"),
		OnChange:     func(s vault.Snapshot) { hub.Publish(s) },
	})
	hub = websocket.NewHub(v, logger.Named("websocket"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Hubを先に起動しておく（VaultのOnChangeがPublishするため）
	go hub.Run(ctx)
	go v.Run(ctx)

	vaultHandler := handlers.NewVaultHandler(v, logger.Named("http"))

	// ルーティング設定
	mux := http.NewServeMux()
	mux.HandleFunc("/state", vaultHandler.HandleState)
	mux.HandleFunc("/actions", vaultHandler.HandleActions)

	// WebSocketエンドポイント
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, w, r)
	})

	// ヘルスチェック用エンドポイント
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		v.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("lovebook starting", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", zap.Error(err))
		return
	}
	logger.Info("lovebook stopped")
}
