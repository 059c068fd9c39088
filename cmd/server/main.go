package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/oggyb/muzz-match/internal/app"
	"github.com/oggyb/muzz-match/internal/cache"
	"github.com/oggyb/muzz-match/internal/config"
	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/events"
	"github.com/oggyb/muzz-match/internal/logger"
	"github.com/oggyb/muzz-match/internal/metrics"
	"github.com/oggyb/muzz-match/internal/server"
	"github.com/oggyb/muzz-match/internal/service/chat"
	"github.com/oggyb/muzz-match/internal/service/explore"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}
	defer redisCache.Close()

	// Live feed transport
	var bus events.Bus
	switch cfg.Events.Backend {
	case "nats":
		nb, err := events.NewNATSBus(cfg.Events.NATSURL, "muzz-match", cfg.Chat.SubscriberBuffer)
		if err != nil {
			log.Error("failed to connect to nats", "url", cfg.Events.NATSURL, "err", err)
			return
		}
		bus = nb
	default:
		bus = events.NewRedisBus(redisCache.Client, cfg.Chat.SubscriberBuffer)
	}
	defer bus.Close()
	log.Info("event bus ready", "backend", cfg.Events.Backend)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg, log); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	// Inject logger into app context
	appCtx := app.New(cfg, database, redisCache, bus, log, m)

	registrars := []server.Registrar{
		explore.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
	log.Info("starting gRPC server", "addr", addr)

	if err := server.StartGRPCServer(ctx, addr, log, registrars...); err != nil {
		log.Error("failed to start gRPC server", "err", err)
	}
	log.Info("gRPC server stopped")
}
