package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"claims_portal_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueue        = "default"
	defaultConcurrency  = 10
	defaultDeadlineCron = "0 6 * * *"
	// scanUniqueness keeps a second enqueue from piling up behind a running scan.
	scanUniqueness = 30 * time.Minute
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := clientOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDeadlineScan asks the workers for an immediate scan.
func (c *Client) EnqueueDeadlineScan(ctx context.Context, trigger string, now time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewDeadlineScanTask(DeadlineScanPayload{Trigger: trigger, RequestedAt: now})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(scanUniqueness))
	return err
}

func clientOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}
	return redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return defaultQueue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
