package cli

import (
	"fmt"
	"time"

	"gamification-service/internal/config"
	"gamification-service/internal/infra/community"
	"gamification-service/internal/infra/queue"
	"gamification-service/internal/logger"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWorkerCmd runs the background worker that mirrors awards onto the community platform.
func NewWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued awards to the community platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(*configPath)
		},
	}
}

func runWorker(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.App.Env, serviceName(cfg)+"-worker")
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Queue.RedisAddr == "" {
		return fmt.Errorf("queue redisAddr not configured")
	}
	if cfg.Community.BaseURL == "" {
		return fmt.Errorf("community baseUrl not configured")
	}

	client := community.NewClient(cfg.Community.BaseURL, cfg.Community.APIKey, config.TTLDuration(cfg.Community.Timeout, 5*time.Second))
	worker := queue.NewSyncWorker(client)

	mux := asynq.NewServeMux()
	worker.Register(mux)

	server := queue.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Redis.Password,
	}, cfg.Queue.Concurrency)

	log.Info("starting community sync worker", zap.String("queue_addr", cfg.Queue.RedisAddr))
	// Run blocks until SIGINT or SIGTERM.
	return server.Run(mux)
}
