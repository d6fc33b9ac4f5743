package scheduler

import (
	"context"

	"claims_portal_backend/platform/config"
	"claims_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	scanner *DeadlineScanner
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, scanner *DeadlineScanner, log *logger.Logger) (*Worker, error) {
	opt, err := clientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		scanner: scanner,
		log:     log,
	}

	mux.HandleFunc(TaskDeadlineScan, w.handleDeadlineScan)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleDeadlineScan(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDeadlineScanPayload(task)
	if err != nil {
		return err
	}
	w.log.Info("deadline scan started", "trigger", payload.Trigger)

	_, err = w.scanner.Scan(ctx)
	return err
}
