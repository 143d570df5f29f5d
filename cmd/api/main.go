package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/signcast/notify/internal/application/outbox"
	"github.com/signcast/notify/internal/config"
	"github.com/signcast/notify/internal/infrastructure/dynamo"
	jwtinfra "github.com/signcast/notify/internal/infrastructure/jwt"
	redisinfra "github.com/signcast/notify/internal/infrastructure/redis"
	"github.com/signcast/notify/internal/infrastructure/sns"
	"github.com/signcast/notify/internal/pkg/bus"
	transporthttp "github.com/signcast/notify/internal/transport/http"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, reading from environment")
	}

	cfg := config.Load()

	if cfg.AppEnv == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		logrus.WithError(err).Warn("JWT provider not available")
	}

	// SNS ops alerter (optional — graceful fallback).
	var alerter sns.Alerter
	if cfg.SNSAlertTopicARN != "" {
		a, err := sns.NewAlerter(cfg)
		if err != nil {
			logrus.WithError(err).Warn("SNS alerter not available")
		} else {
			alerter = a
		}
	}

	hub := bus.NewHub()

	// With Redis configured, outbox events fan out across instances via
	// Pub/Sub; otherwise they stay in the local hub.
	var publisher bus.Publisher = hub
	if cfg.RedisAddr != "" {
		bridge := redisinfra.NewBridge(cfg, hub)
		defer bridge.Close()
		go bridge.Run(ctx)
		publisher = bridge
		logrus.WithField("addr", cfg.RedisAddr).Info("Redis notification bridge enabled")
	}

	notifRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	outboxSvc := outbox.NewService(notifRepo, publisher, cfg.NotificationTTL)
	go outboxSvc.RunGC(ctx, cfg.GCInterval)

	deps := &transporthttp.Deps{
		ScreenRepo:        dynamo.NewScreenRepo(dynamoClient, cfg.DynamoTables.Screens),
		ScheduleRepo:      dynamo.NewScheduleRepo(dynamoClient, cfg.DynamoTables.Schedules),
		PlaylistRepo:      dynamo.NewPlaylistRepo(dynamoClient, cfg.DynamoTables.Playlists, cfg.DynamoTables.PlaylistItems),
		NotificationRepo:  notifRepo,
		PollingConfigRepo: dynamo.NewPollingConfigRepo(dynamoClient, cfg.DynamoTables.PollingConfigs),
		Hub:               hub,
		OutboxSvc:         outboxSvc,
		JWTProvider:       jwtProvider,
		Alerter:           alerter,
	}

	router := transporthttp.NewRouter(cfg, deps)

	// WriteTimeout stays 0: the stream endpoint holds responses open
	// indefinitely and a server-wide write deadline would sever every
	// device after it elapsed.
	// BaseContext ties every request context to ctx so cancel() ends the
	// open streams and Shutdown can drain them.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.AppPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logrus.WithFields(logrus.Fields{"port": cfg.AppPort, "env": cfg.AppEnv}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	cancel() // stops the GC loop and Redis bridge, closes open streams

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Fatal("forced shutdown")
	}
	logrus.Info("Server stopped")
}
