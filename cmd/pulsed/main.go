package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"channel_pulse/internal/analytics"
	"channel_pulse/internal/backfill"
	"channel_pulse/internal/config"
	"channel_pulse/internal/gateway"
	"channel_pulse/internal/poller"
	"channel_pulse/internal/pool"
	"channel_pulse/internal/publisher"
	"channel_pulse/internal/server"
	"channel_pulse/internal/service"
	"channel_pulse/internal/storage/postgres"
	"channel_pulse/internal/telegram"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	sessionStore := postgres.NewSessionStore(db)
	channelStore := postgres.NewChannelStore(db)
	messageStore := postgres.NewMessageStore(db)
	usageStore := postgres.NewUsageStore(db)
	txManager := postgres.NewTransactionManager(db)

	dialer := telegram.NewBridgeDialer(telegram.BridgeConfig{
		BaseURL: cfg.Bridge.BaseURL,
		Timeout: cfg.Bridge.Timeout,
	}, logger)

	clientPool := pool.New(dialer, sessionStore, pool.Config{
		IdleTimeout:   cfg.Pool.IdleTimeout,
		SweepInterval: cfg.Pool.SweepInterval,
	}, logger)

	gw := gateway.New(clientPool, sessionStore, usageStore, gateway.Config{
		CacheTTL:    cfg.Gateway.CacheTTL,
		MaxAttempts: cfg.Gateway.RetryAttempts,
		RetryDelay:  cfg.Gateway.RetryDelay,
	}, logger)

	backfiller := backfill.New(channelStore, messageStore, gw, rabbitMQ, backfill.Config{
		GapThreshold:  cfg.Backfill.GapThreshold,
		PageSize:      cfg.Backfill.PageSize,
		MaxMessages:   cfg.Backfill.MaxMessagesPerGap,
		PageDelay:     cfg.Backfill.PageDelay,
		InitialWindow: cfg.Backfill.InitialWindow,
	}, logger)

	channelSync := service.NewChannelSync(gw, channelStore, 100, logger)
	subscriptions := service.NewSubscriptions(channelStore, backfiller, backfiller.InitialWindow(), logger)
	analyticsService := analytics.New(messageStore, logger)

	channelPoller := poller.New(channelStore, messageStore, gw, rabbitMQ, txManager, poller.Config{
		Interval:        cfg.Poll.Interval,
		RescanInterval:  cfg.Poll.RescanInterval,
		UserConcurrency: cfg.Poll.UserConcurrency,
		ChannelDelay:    cfg.Poll.ChannelDelay,
		PageSize:        cfg.Poll.PageSize,
		TickTimeout:     cfg.Poll.TickTimeout,
	}, logger)
	scheduler := poller.NewScheduler(channelPoller, logger)

	srv := server.New(cfg.Server.Addr, cfg.Server.JWTSecret,
		server.NewAuthHandler(gw, cfg.Server.JWTSecret, cfg.Server.TokenTTL),
		server.NewChannelHandler(channelSync, subscriptions, channelStore, messageStore, backfiller, analyticsService),
		server.NewCacheHandler(gw.Cache()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go clientPool.Sweep(ctx)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
	}

	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
