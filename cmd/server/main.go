package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	activationservice "rtpbridge/internal/activation/service"
	activationstore "rtpbridge/internal/activation/store"
	"rtpbridge/internal/callback"
	"rtpbridge/internal/gdp"
	"rtpbridge/internal/oauth"
	"rtpbridge/internal/platform/channel"
	"rtpbridge/internal/platform/config"
	"rtpbridge/internal/platform/httpserver"
	"rtpbridge/internal/platform/logger"
	platformredis "rtpbridge/internal/platform/redis"
	registrycache "rtpbridge/internal/registry/cache"
	registryclient "rtpbridge/internal/registry/client"
	registrymetrics "rtpbridge/internal/registry/metrics"
	rtpmetrics "rtpbridge/internal/rtp/metrics"
	rtpservice "rtpbridge/internal/rtp/service"
	rtpstore "rtpbridge/internal/rtp/store"
	"rtpbridge/internal/sepa"
	httptransport "rtpbridge/internal/transport/http"
	"rtpbridge/pkg/platform/audit"
	"rtpbridge/pkg/platform/audit/publisher"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channels, err := channel.NewBuilder(channel.Config{
		ClientBundleB64:    cfg.Channel.ClientBundleB64,
		ClientBundleSecret: cfg.Channel.ClientBundleSecret,
		TrustAnchorB64:     cfg.Channel.TrustAnchorB64,
		TrustAnchorSecret:  cfg.Channel.TrustAnchorSecret,
	}, cfg.Outbound.CallTimeout)
	if err != nil {
		log.Error("build secure channels", "error", err)
		os.Exit(1)
	}

	var rtps rtpstore.Repository = rtpstore.NewInMemory()
	var activations activationservice.ActivationStore = activationstore.NewInMemory()
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		rtps = rtpstore.NewPostgres(pool)
		activations = activationstore.NewPostgres(db)
	}

	cache, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	registry := registrycache.New(
		registryclient.New(cfg.Registry.SourceURL, channels.Plain()),
		cfg.Registry.CacheTTL,
		registrycache.WithLogger(log),
		registrycache.WithMetrics(registrymetrics.New()),
	)

	tokens := oauth.New(channels,
		oauth.WithLogger(log),
		oauth.WithCache(cache),
		oauth.WithTimeout(cfg.Outbound.TokenTimeout),
	)

	var auditPublisher interface {
		Emit(ctx context.Context, event audit.Event) error
	} = publisher.NewMemory()
	if cfg.Kafka.Brokers != "" {
		kafka, err := publisher.NewKafka(strings.Split(cfg.Kafka.Brokers, ","), cfg.Kafka.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafka.Close(flushCtx)
		}()
		auditPublisher = kafka
	}

	lifecycleMetrics := rtpmetrics.New()

	activationSvc := activationservice.New(activations,
		activationservice.WithLogger(log),
		activationservice.WithAuditPublisher(auditPublisher),
	)
	dispatcher := rtpservice.New(
		rtps,
		activationSvc,
		registry,
		tokens,
		sepa.New(channels),
		cfg.ServiceProviderID,
		rtpservice.WithLogger(log),
		rtpservice.WithMetrics(lifecycleMetrics),
		rtpservice.WithAuditPublisher(auditPublisher),
	)
	callbackSvc := callback.New(rtps,
		callback.WithLogger(log),
		callback.WithMetrics(lifecycleMetrics),
		callback.WithAuditPublisher(auditPublisher),
	)
	verifier := callback.NewVerifier(registry, log, callback.WithVerifierAuditPublisher(auditPublisher))

	if cfg.Kafka.Brokers != "" {
		consumer, err := gdp.New(strings.Split(cfg.Kafka.Brokers, ","), cfg.Kafka.GDPTopic, cfg.Kafka.ConsumerGroup, dispatcher, log)
		if err != nil {
			log.Error("start gdp consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("gdp consumer stopped", "error", err)
			}
		}()
	}

	handler := httptransport.NewHandler(dispatcher, callbackSvc, verifier, activationSvc, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	go func() {
		log.Info("starting rtpbridge", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
