package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/chat"
	"messenger-service/internal/config"
	"messenger-service/internal/handlers"
	"messenger-service/internal/identity"
	"messenger-service/internal/logging"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/store"
	"messenger-service/internal/store/memstore"
	"messenger-service/internal/store/pgstore"
	"messenger-service/internal/store/redisstore"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL.Enabled, cfg.OTEL.Endpoint, cfg.OTEL.ServiceName, cfg.OTEL.SampleRatio)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer shutdownTracing(context.Background())

	recordStore, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer closeStore()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, "messenger-service", cfg.Environment, log)

	if cfg.AMQPURL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn().Err(err).Msg("ws event publishing disabled")
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	registry := chat.NewRegistry(recordStore, log)
	ledger := chat.NewLedger(recordStore, log)
	projector := chat.NewProjector(recordStore, log)

	hub := ws.NewHub(log)
	unsubscribe := hub.Attach(recordStore)
	defer unsubscribe()

	provider := identityProvider(cfg)
	chatHandler := handlers.NewChatHandler(registry, ledger, projector, audit)
	sessionHandler := ws.NewSessionHandler(hub, ledger, projector, provider, log)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	identityMiddleware := middleware.IdentityMiddleware(provider)

	router.GET("/chats", identityMiddleware, chatHandler.ListChats)
	router.POST("/chats/start", identityMiddleware, chatHandler.StartChat)
	router.GET("/chats/:chat_id/messages", identityMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", identityMiddleware, chatHandler.PostChatMessage)

	router.GET("/ws", sessionHandler.Handle)

	router.GET("/healthz", chatHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("messenger service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		st, err := pgstore.Connect(cfg.DBDSN, log)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case "redis":
		st, err := redisstore.Connect(ctx, cfg.RedisAddr, log, "participants")
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return memstore.New(), func() {}, nil
	}
}

func identityProvider(cfg config.Config) identity.Provider {
	if cfg.IdentityMode == "static" {
		return identity.NewStatic(cfg.IdentityTokens)
	}
	return identity.Passthrough{}
}
