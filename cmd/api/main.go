package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"social-chat/internal/config"
	"social-chat/internal/db"
	"social-chat/internal/email"
	apihttp "social-chat/internal/http"
	"social-chat/internal/realtime"
	"social-chat/internal/repository"
	"social-chat/internal/service"
	"social-chat/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	userRepo := repository.NewPgUserRepository(pool)
	profileRepo := repository.NewPgProfileRepository(pool)
	relRepo := repository.NewPgRelationshipRepository(pool)
	reportRepo := repository.NewPgReportRepository(pool)
	roomRepo := repository.NewPgRoomRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	otpTTL := time.Duration(cfg.OTPTTLMinutes) * time.Minute
	var (
		otpLimiter  service.OTPRateLimiter
		tokenStore  service.RefreshTokenStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
			_ = client.Close()
		} else {
			redisClient = client
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, otpTTL, 3)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	registry := realtime.NewRegistry(logger)
	if cfg.RealtimeRelay {
		if relay := realtime.NewRedisRelay(redisClient, logger); relay != nil {
			if err := relay.Start(ctx, registry); err != nil {
				logger.Fatal("realtime relay subscribe", zap.Error(err))
			}
			registry.WithRelay(relay)
		} else {
			logger.Warn("realtime relay requested without redis, using local delivery")
		}
	}

	files, err := storage.NewLocalStore(cfg.MediaRoot, cfg.MediaURL, cfg.UploadMaxBytes)
	if err != nil {
		logger.Fatal("media storage", zap.Error(err))
	}

	messageSvc := service.NewMessageService(messageRepo)
	userSvc := service.NewUserService(logger, userRepo, emailSender, otpLimiter, otpTTL)
	profileSvc := service.NewProfileService(profileRepo)
	relSvc := service.NewRelationshipService(logger, userRepo, relRepo)
	reportSvc := service.NewReportService(userRepo, reportRepo)
	roomSvc := service.NewRoomService(roomRepo, userRepo, messageSvc)
	attachSvc := service.NewAttachmentService(logger, roomSvc, messageSvc, files, registry)
	inbound := realtime.NewHandler(registry, messageSvc, logger)

	sessionOpts := realtime.SessionOptions{
		SendBuffer:     cfg.WSSendBuffer,
		InboundBuffer:  cfg.WSInboundBuffer,
		MaxMessageSize: cfg.WSMaxMessageBytes,
		HandleTimeout:  time.Duration(cfg.ChatPersistTimeoutSec) * time.Second,
	}

	router := apihttp.NewRouter(logger, apihttp.RouterConfig{
		JWT:       jwtSvc,
		MediaURL:  cfg.MediaURL,
		MediaRoot: cfg.MediaRoot,
	}, apihttp.Handlers{
		Users:         apihttp.NewUserHandler(logger, userSvc, jwtSvc),
		Profiles:      apihttp.NewProfileHandler(logger, profileSvc),
		Relationships: apihttp.NewRelationshipHandler(logger, relSvc),
		Reports:       apihttp.NewReportHandler(logger, reportSvc),
		Rooms:         apihttp.NewRoomHandler(logger, roomSvc, attachSvc, cfg.MediaBaseURL, cfg.UploadMaxBytes),
		WS:            apihttp.NewWSHandler(logger, roomSvc, registry, inbound, sessionOpts, cfg.WSAllowedOrigins),
		Health:        apihttp.NewHealthHandler(registry, func(ctx context.Context) error { return db.Ping(ctx, pool) }),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		registry.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
