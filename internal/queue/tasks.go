package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const TypeLeadNotify = "lead:notify"

const (
	leadNotifyMaxRetry  = 5
	leadNotifyTimeout   = time.Minute
	leadNotifyRetention = 24 * time.Hour
)

// LeadNotificationPayload is the data forwarded to the notification webhook
// for one captured lead.
type LeadNotificationPayload struct {
	LeadID        string    `json:"lead_id"`
	Kind          string    `json:"kind"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	JobSlug       string    `json:"job_slug,omitempty"`
	Interests     []string  `json:"interests,omitempty"`
	Goals         string    `json:"goals,omitempty"`
	CVURL         string    `json:"cv_url,omitempty"`
	Status        string    `json:"status"`
	ContactID     string    `json:"contact_id,omitempty"`
	OpportunityID string    `json:"opportunity_id,omitempty"`
	WebhookURL    string    `json:"webhook_url"`
	RequestedAt   time.Time `json:"requested_at"`
}

// LeadTaskID is the asynq task id for a lead's notification. One lead has at
// most one notification task while it is retained.
func LeadTaskID(leadID string) string {
	return TypeLeadNotify + ":" + leadID
}

// NewLeadNotifyTask builds the notification task for one lead with its retry
// policy and id attached.
func NewLeadNotifyTask(payload LeadNotificationPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.LeadID) == "" {
		return nil, errors.New("lead notification needs a lead id")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal lead notification payload: %w", err)
	}
	return asynq.NewTask(TypeLeadNotify, body,
		asynq.TaskID(LeadTaskID(payload.LeadID)),
		asynq.MaxRetry(leadNotifyMaxRetry),
		asynq.Timeout(leadNotifyTimeout),
		asynq.Retention(leadNotifyRetention),
	), nil
}

func ParseLeadNotificationPayload(task *asynq.Task) (LeadNotificationPayload, error) {
	var payload LeadNotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadNotificationPayload{}, fmt.Errorf("unmarshal lead notification payload: %w", err)
	}
	return payload, nil
}
