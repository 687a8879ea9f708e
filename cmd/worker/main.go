package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/config"
	"github.com/congo-pay/mobile_money/internal/infra"
	"github.com/congo-pay/mobile_money/internal/logging"
	"github.com/congo-pay/mobile_money/internal/onboarding"
	"github.com/congo-pay/mobile_money/internal/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("component", "onboarding")

	if cfg.DatabaseURL == "" || cfg.RabbitMQURL == "" {
		logger.Error("worker requires DATABASE_URL and RABBITMQ_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, infra.PoolOptions{ApplicationName: cfg.AppName + "_worker", MaxConns: cfg.DBMaxConns})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	conn, ch, err := infra.NewRabbitMQ(cfg.RabbitMQURL, cfg.AppName+"_onboarding")
	if err != nil {
		logger.Error("connect rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	deliveries, err := onboarding.Setup(ch, "ledger_onboarding")
	if err != nil {
		logger.Error("setup consumer", "error", err)
		os.Exit(1)
	}

	backends := routes.NewBackends(db, cfg.UnitTimeout)
	accounts := account.NewService(backends.Accounts, backends.Runner, cfg.AgentOnboardingCredit)
	consumer := onboarding.NewConsumer(accounts, logger)

	logger.Info("worker started", "queue", onboarding.Queue)
	if err := consumer.Run(ctx, deliveries); err != nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker exited cleanly")
}
