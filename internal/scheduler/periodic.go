package scheduler

import (
	"context"
	"time"

	"claims_portal_backend/platform/config"
	"claims_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the cron-driven tasks with asynq.
type Periodic struct {
	scheduler *asynq.Scheduler
	cron      string
	queue     string
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, err := clientOpt(cfg)
	if err != nil {
		return nil, err
	}

	cron := cfg.GetDeadlineScanCron()
	if cron == "" {
		cron = defaultDeadlineCron
	}

	return &Periodic{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		cron:      cron,
		queue:     queueName(cfg),
		log:       log,
	}, nil
}

// Register adds the deadline scan to the schedule.
func (p *Periodic) Register() error {
	task, err := NewDeadlineScanTask(DeadlineScanPayload{Trigger: "cron"})
	if err != nil {
		return err
	}
	entryID, err := p.scheduler.Register(p.cron, task, asynq.Queue(p.queue), asynq.Unique(scanUniqueness))
	if err != nil {
		return err
	}
	p.log.Info("deadline scan scheduled", "cron", p.cron, "entry_id", entryID)
	return nil
}

// Run blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}
