// Package main runs the wallet session core: the session, ledger, and stake
// services behind the REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/solsnap/walletcore/internal/app"
	"github.com/solsnap/walletcore/internal/app/httpapi"
	"github.com/solsnap/walletcore/internal/app/storage"
	redisstore "github.com/solsnap/walletcore/internal/app/storage/redis"
	"github.com/solsnap/walletcore/internal/chain"
	"github.com/solsnap/walletcore/internal/config"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/internal/wallet"
	"github.com/solsnap/walletcore/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Optional; a missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("main").WithError(err).Fatal("load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logger.New("walletcore", level)

	vault, err := solana.DecodeAddress(cfg.Vault)
	if err != nil {
		log.WithError(err).Fatal("decode vault address")
	}

	rpc, err := chain.NewClient(chain.Config{RPCURL: cfg.RPCURL})
	if err != nil {
		log.WithError(err).Fatal("create chain client")
	}

	var kv storage.KV
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Fatal("connect to redis")
		}
		kv = redisstore.New(client, cfg.Redis.Prefix)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis store")
	}

	adapter, err := wallet.NewAdapter(cfg.Wallet.Endpoint, log)
	if err != nil {
		log.WithError(err).Fatal("create wallet adapter")
	}

	application, err := app.New(app.Config{
		Cluster: cfg.Cluster,
		Identity: wallet.Identity{
			Name: cfg.Identity.Name,
			URI:  cfg.Identity.URI,
			Icon: cfg.Identity.Icon,
		},
		Vault:           vault,
		PollInterval:    cfg.Poll.Interval,
		ConfirmInterval: cfg.Confirm.Interval,
		ConfirmTimeout:  cfg.Confirm.Timeout,
	}, adapter, rpc, kv, log)
	if err != nil {
		log.WithError(err).Fatal("build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}

	api := httpapi.NewServer(application, log)
	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTP.ListenAddr).Info("API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("API server stopped")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
}
