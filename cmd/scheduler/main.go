package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"claims_portal_backend/internal/scheduler"
	"claims_portal_backend/platform/config"
	"claims_portal_backend/platform/logger"
)

// The scheduler only enqueues. Deadline scans run in the API workers so the
// overdue events reach that process's event streams.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "cron", cfg.GetDeadlineScanCron())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	if err := periodic.Register(); err != nil {
		log.Error("failed to register deadline scan", "error", err)
		panic("failed to register deadline scan: " + err.Error())
	}

	if strings.EqualFold(os.Getenv("DEADLINE_SCAN_ON_START"), "true") {
		client, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		if err := client.EnqueueDeadlineScan(ctx, "startup", time.Now()); err != nil {
			log.Warn("startup deadline scan not enqueued", "error", err)
		}
		_ = client.Close()
	}

	if err := periodic.Run(ctx); err != nil {
		log.Error("periodic scheduler stopped", "error", err)
		panic("periodic scheduler stopped: " + err.Error())
	}
	log.Info("scheduler stopped")
}
