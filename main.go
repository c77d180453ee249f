package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-backend/internal/auth"
	"chat-backend/internal/config"
	"chat-backend/internal/db"
	"chat-backend/internal/handlers"
	"chat-backend/internal/middleware"
	"chat-backend/internal/observability"
	"chat-backend/internal/rabbitmq"
	"chat-backend/internal/realtime"
	"chat-backend/internal/repositories"
	"chat-backend/internal/storage"
	"chat-backend/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	ctx := context.Background()
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTELEnabled, cfg.OTELEndpoint, cfg.ServiceName, cfg.Environment, cfg.OTELInsecure)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Msg("event publisher ready")

	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.chat", cfg.ServiceName, cfg.Environment)

	uploads, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare upload dir")
	}

	userRepo := repositories.NewUserRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	requestRepo := repositories.NewRequestRepo(database)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	registry := realtime.NewRegistry()
	relay := realtime.NewRelay(registry, log.Logger)
	sessionAuth := auth.NewSessionAuthenticator(tokens, userRepo)
	relayStore := repositories.NewRelayMessageStore(messageRepo)
	sessions := realtime.NewSessionHandler(relay, sessionAuth, relayStore, log.Logger)

	userHandler := handlers.NewUserHandler(userRepo, requestRepo, chatRepo, tokens, relay, uploads, auditEmitter)
	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, userRepo, relay, uploads, cfg.MaxAttachments)

	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id", "X-Device-Id"},
		AllowCredentials: cfg.CORSOrigin != "*",
		MaxAge:           12 * time.Hour,
	}))

	authRequired := middleware.AuthMiddleware(tokens)

	api := router.Group("/api")
	{
		api.POST("/register", userHandler.Register)
		api.POST("/login", userHandler.Login)
		api.POST("/refresh-token", userHandler.Refresh)

		api.POST("/logout", authRequired, userHandler.Logout)
		api.POST("/change-password", authRequired, userHandler.ChangePassword)
		api.GET("/current-user", authRequired, userHandler.CurrentUser)
		api.PATCH("/update-account", authRequired, userHandler.UpdateAccount)
		api.PATCH("/update-avatar", authRequired, userHandler.UpdateAvatar)
		api.GET("/search", authRequired, userHandler.Search)
		api.POST("/friend-request/send", authRequired, userHandler.SendFriendRequest)
		api.POST("/friend-request/accept", authRequired, userHandler.AcceptFriendRequest)
		api.GET("/notifications", authRequired, userHandler.Notifications)
		api.GET("/friends", authRequired, userHandler.Friends)

		api.POST("/newgroup", authRequired, chatHandler.NewGroup)
		api.GET("/getmychats", authRequired, chatHandler.MyChats)
		api.GET("/getmygroups", authRequired, chatHandler.MyGroups)
		api.POST("/addmembers", authRequired, chatHandler.AddMembers)
		api.POST("/removemember", authRequired, chatHandler.RemoveMember)
		api.DELETE("/leavegroup/:chat_id", authRequired, chatHandler.LeaveGroup)
		api.POST("/sendattachments", authRequired, chatHandler.SendAttachments)
		api.GET("/chatdetails/:chat_id", authRequired, chatHandler.ChatDetails)
		api.PATCH("/renamegroup/:chat_id", authRequired, chatHandler.RenameGroup)
		api.DELETE("/deletechat/:chat_id", authRequired, chatHandler.DeleteChat)
		api.GET("/getmessages/:chat_id", authRequired, chatHandler.Messages)
		api.POST("/chats/:chat_id/messages", authRequired, chatHandler.PostMessage)
	}

	router.GET("/ws", sessions.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/uploads", uploads.Dir())
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	relay.Shutdown()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
