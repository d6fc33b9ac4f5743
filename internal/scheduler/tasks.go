package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskDeadlineScan = "claims.deadline_scan"

type DeadlineScanPayload struct {
	// Trigger tells periodic runs from manual ones in the logs.
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewDeadlineScanTask(payload DeadlineScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeadlineScan, data), nil
}

func ParseDeadlineScanPayload(task *asynq.Task) (DeadlineScanPayload, error) {
	var payload DeadlineScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeadlineScanPayload{}, err
	}
	return payload, nil
}
