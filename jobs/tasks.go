package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeIntegrityScan is the task type for the role hierarchy scan.
	TaskTypeIntegrityScan = "rbac:integrity_scan"
)

// IntegrityScanPayload describes an integrity scan request.
type IntegrityScanPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewIntegrityScanTask constructs an Asynq task.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIntegrityScan, data), nil
}
