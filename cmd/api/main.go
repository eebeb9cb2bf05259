// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reserva-ai/commerce-platform/internal/agent"
	"github.com/reserva-ai/commerce-platform/internal/agent/functions"
	"github.com/reserva-ai/commerce-platform/internal/config"
	"github.com/reserva-ai/commerce-platform/internal/handler"
	"github.com/reserva-ai/commerce-platform/internal/middleware"
	natsclient "github.com/reserva-ai/commerce-platform/internal/nats"
	"github.com/reserva-ai/commerce-platform/internal/outbound"
	"github.com/reserva-ai/commerce-platform/internal/payment"
	"github.com/reserva-ai/commerce-platform/internal/planner"
	"github.com/reserva-ai/commerce-platform/internal/ratelimit"
	"github.com/reserva-ai/commerce-platform/internal/store"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
	"github.com/reserva-ai/commerce-platform/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "commerce-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Document store.
	boltStore, err := store.NewBoltStore(filepath.Join(cfg.DataDir, "platform.db"))
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		os.Exit(1)
	}
	defer boltStore.Close()

	if cfg.SeedFile != "" {
		n, err := store.SeedProperties(ctx, boltStore, cfg.SeedFile)
		if err != nil {
			log.Error("failed to seed properties", zap.Error(err))
			os.Exit(1)
		}
		log.Info("seeded properties", zap.Int("count", n))
	}

	// Admission control: redis when configured, in-process otherwise.
	var limiter ratelimit.Limiter
	if !cfg.RateLimitDisabled {
		if cfg.RedisAddr != "" {
			rdb, err := ratelimit.OpenRedis(ctx, cfg.RedisAddr)
			if err != nil {
				log.Error("failed to connect to redis", zap.Error(err))
				os.Exit(1)
			}
			defer rdb.Close()
			limiter = ratelimit.NewRedisLimiter(rdb)
		} else {
			mem := ratelimit.NewMemoryLimiter()
			go func() {
				ticker := time.NewTicker(5 * time.Minute)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						mem.Cleanup(10 * time.Minute)
					}
				}
			}()
			limiter = mem
		}
	}
	ratelimit.PolicyInboundMessage.MaxRequests = cfg.MessageRateLimit
	ratelimit.PolicyInboundMessage.Window = cfg.MessageRateWindow

	// Outbound delivery and the event feed: NATS when configured, structured
	// logs otherwise.
	var (
		natsConn *natsclient.Client
		sink     outbound.Sink = &outbound.LogSink{Logger: log}
		events   outbound.EventPublisher
	)
	if cfg.NATSURL != "" {
		natsConn, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsConn.Close()

		streams := natsclient.NewStreamManager(natsConn)
		if err := streams.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
		sink = outbound.NewNATSSink(streams)
		events = outbound.NewNATSEventPublisher(streams)
	}

	// Planning service.
	pl, err := planner.NewOpenAIPlanner(cfg.OpenAIAPIKey, cfg.PlannerModel, cfg.PlannerTimeout, log)
	if err != nil {
		log.Error("failed to create planner", zap.Error(err))
		os.Exit(1)
	}

	// Payment provider, optional.
	var payClient *payment.Client
	if cfg.PaymentBaseURL != "" {
		payClient = payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey)
	}

	// Function registry and pipeline.
	idem := functions.NewIdempotencyStore(boltStore, 24*time.Hour, log)
	var charges functions.ChargeCreator
	if payClient != nil {
		charges = payClient
	}
	registry := functions.BuildRegistry(boltStore, sink, charges, idem, cfg.FunctionTimeout, log)

	conversations := agent.NewConversationStore(boltStore)
	pipeline := agent.NewPipeline(conversations, pl, registry, sink, log, agent.Options{
		Limiter:     limiter,
		Events:      events,
		TurnTimeout: cfg.TurnTimeout,
	})
	go pipeline.StartJanitor(ctx, 5*time.Minute)

	// Payment reconciliation, only when a provider is configured.
	if payClient != nil {
		reconciler := payment.NewReconciler(
			boltStore,
			payClient,
			sink,
			events,
			func(ctx context.Context) ([]string, error) {
				return boltStore.TenantIDs(ctx, store.CollectionTransactions)
			},
			cfg.ReconcileInterval,
			log,
		)
		go reconciler.Run(ctx)
	}

	// Handlers.
	healthHandler := handler.NewHealthHandler(natsConn, cfg.NATSURL != "")
	conversationHandler := handler.NewConversationHandler(conversations, log)
	messageHandler := handler.NewMessageHandler(pipeline, log)

	// Router.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.APIRateLimitRequests, cfg.APIRateLimitWindow))

		r.Post("/messages", messageHandler.Process)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Get("/{id}", conversationHandler.Get)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
