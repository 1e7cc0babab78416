package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ButyrinIA/postadmin/internal/cache"
	"github.com/ButyrinIA/postadmin/internal/config"
	"github.com/ButyrinIA/postadmin/internal/gateway"
	"github.com/ButyrinIA/postadmin/internal/gateway/remote"
	"github.com/ButyrinIA/postadmin/internal/logger"
	"github.com/ButyrinIA/postadmin/internal/metrics"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/seed"
	"github.com/ButyrinIA/postadmin/internal/server"
	"github.com/ButyrinIA/postadmin/internal/storage"
	"github.com/ButyrinIA/postadmin/internal/storage/memory"
	"github.com/ButyrinIA/postadmin/internal/storage/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "путь к файлу конфигурации")
	storageType := flag.String("storage", "", "тип хранилища: memory или postgres")
	flag.Parse()

	// .env необязателен
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
	}

	logger.Init(cfg.Log.Level)
	log := logger.Log.WithField("env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	gw, closeGateway, err := buildGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("Не удалось инициализировать шлюз: %v", err)
	}
	defer closeGateway()

	srv := server.New(cfg, gateway.Instrument(gw, m), m, prometheus.DefaultGatherer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("Получен сигнал завершения")
	case err := <-errCh:
		if err != nil {
			log.Errorf("Сервер остановлен с ошибкой: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Сервер остановлен не полностью: %v", err)
	}
	log.Info("Сервер остановлен")
}

// buildGateway returns the remote client when a remote url is configured,
// otherwise the local service over the configured storage.
func buildGateway(ctx context.Context, cfg *config.Config) (gateway.Gateway, func(), error) {
	if cfg.Gateway.RemoteURL != "" {
		logger.Log.WithField("remote", cfg.Gateway.RemoteURL).Info("Используется удалённый шлюз")
		client, err := remote.New(cfg.Gateway.RemoteURL,
			remote.WithMaxRetries(cfg.Gateway.MaxRetries),
			remote.WithHTTPClient(&http.Client{Timeout: cfg.Gateway.Timeout}),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := gateway.Options{
		MinDelay:    cfg.Gateway.MinDelay,
		MaxDelay:    cfg.Gateway.MaxDelay,
		FailureRate: cfg.Gateway.FailureRate,
	}
	if cfg.Cache.RedisURL != "" {
		listCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		logger.Log.Info("Кэш списка в Redis включён")
		opts.Cache = listCache
	}

	closeAll := func() {
		if opts.Cache != nil {
			opts.Cache.Close()
		}
		store.Close()
	}
	return gateway.NewService(store, opts), closeAll, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	posts, err := initialPosts(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Type {
	case "postgres":
		logger.Log.Info("Инициализация хранилища PostgreSQL")
		store, err := postgres.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Seed(ctx, posts); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "memory":
		logger.Log.WithField("posts", len(posts)).Info("Инициализация хранилища Memory")
		return memory.New(posts...), nil
	default:
		logger.Log.Fatalf("Неизвестный тип хранилища: %s", cfg.Storage.Type)
		return nil, nil
	}
}

func initialPosts(cfg *config.Config) ([]models.Post, error) {
	now := time.Now().UTC()
	if cfg.Storage.SeedFile != "" {
		return seed.LoadFile(cfg.Storage.SeedFile, now)
	}
	rng := rand.New(rand.NewPCG(uint64(now.UnixNano()), uint64(os.Getpid())))
	return seed.Generate(cfg.Storage.SeedCount, rng, now), nil
}
