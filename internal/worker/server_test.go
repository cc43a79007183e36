package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dunamismax/jobboard/internal/domain"
	"github.com/dunamismax/jobboard/internal/queue"
	"github.com/dunamismax/jobboard/internal/store"
	"github.com/dunamismax/jobboard/internal/webhook"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type captureWebhook struct {
	endpoint    string
	event       string
	payload     map[string]any
	deliveryIDs []string
	err         error
}

func (c *captureWebhook) Send(_ context.Context, d webhook.Delivery) error {
	c.endpoint = d.Endpoint
	c.event = d.Event
	c.payload, _ = d.Payload.(map[string]any)
	c.deliveryIDs = append(c.deliveryIDs, d.ID)
	return c.err
}

func newTestServer(hook *captureWebhook, leads store.LeadStore) *Server {
	return &Server{
		logger:        zap.NewNop(),
		webhookClient: hook,
		leadStore:     leads,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("test"),
	}
}

func notifyTask(t *testing.T, payload queue.LeadNotificationPayload) *asynq.Task {
	t.Helper()
	task, err := queue.NewLeadNotifyTask(payload)
	require.NoError(t, err)
	return task
}

func TestHandleLeadNotifyDeliversAndMarksLead(t *testing.T) {
	ctx := context.Background()
	leads := store.NewMemoryLeadStore()
	require.NoError(t, leads.CreateLead(ctx, domain.Lead{
		ID:     "lead-1",
		Kind:   domain.LeadKindApplication,
		Status: domain.LeadStatusSubmitted,
	}))

	hook := &captureWebhook{}
	s := newTestServer(hook, leads)

	err := s.handleLeadNotify(ctx, notifyTask(t, queue.LeadNotificationPayload{
		LeadID:      "lead-1",
		Kind:        domain.LeadKindApplication,
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		JobSlug:     "data-analyst",
		Status:      domain.LeadStatusSubmitted,
		ContactID:   "c-1",
		WebhookURL:  "https://hooks.example.com/leads",
		RequestedAt: time.Now().UTC(),
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://hooks.example.com/leads", hook.endpoint)
	assert.Equal(t, EventLeadCreated, hook.event)
	assert.Equal(t, "data-analyst", hook.payload["job_slug"])
	assert.Equal(t, "c-1", hook.payload["contact_id"])
	assert.NotContains(t, hook.payload, "interests")

	lead, ok, err := leads.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.LeadStatusNotified, lead.Status)
	assert.Equal(t, 1.0, counterValue(t, s, "jobboard_worker_lead_notifications_total", "delivered"))
}

func TestHandleLeadNotifyToleratesUnknownLead(t *testing.T) {
	s := newTestServer(&captureWebhook{}, store.NewMemoryLeadStore())

	err := s.handleLeadNotify(context.Background(), notifyTask(t, queue.LeadNotificationPayload{
		LeadID:     "elsewhere",
		Kind:       domain.LeadKindConnect,
		WebhookURL: "https://hooks.example.com/leads",
	}))
	assert.NoError(t, err)
}

func TestHandleLeadNotifyWithoutLeadStore(t *testing.T) {
	hook := &captureWebhook{}
	s := newTestServer(hook, nil)

	err := s.handleLeadNotify(context.Background(), notifyTask(t, queue.LeadNotificationPayload{
		LeadID:     "lead-4",
		Kind:       domain.LeadKindConnect,
		WebhookURL: "https://hooks.example.com/leads",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"lead-4"}, hook.deliveryIDs)
	assert.Equal(t, 1.0, counterValue(t, s, "jobboard_worker_lead_notifications_total", "delivered"))
}

func TestHandleLeadNotifyReturnsDeliveryError(t *testing.T) {
	ctx := context.Background()
	leads := store.NewMemoryLeadStore()
	require.NoError(t, leads.CreateLead(ctx, domain.Lead{ID: "lead-2", Status: domain.LeadStatusSubmitted}))

	s := newTestServer(&captureWebhook{err: errors.New("connection refused")}, leads)

	err := s.handleLeadNotify(ctx, notifyTask(t, queue.LeadNotificationPayload{
		LeadID:     "lead-2",
		Kind:       domain.LeadKindConnect,
		WebhookURL: "https://hooks.example.com/leads",
	}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	lead, _, err := leads.GetLead(ctx, "lead-2")
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusSubmitted, lead.Status)
}

func TestHandleLeadNotifyReusesDeliveryIDAcrossRetries(t *testing.T) {
	var deliveries []string
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries = append(deliveries, r.Header.Get(webhook.HeaderDelivery))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer receiver.Close()

	client := webhook.NewClient(webhook.Config{MaxAttempts: 1, InitialBackoff: time.Millisecond})
	s := newTestServer(nil, nil)
	s.webhookClient = client

	task := notifyTask(t, queue.LeadNotificationPayload{
		LeadID:     "lead-9",
		Kind:       domain.LeadKindApplication,
		WebhookURL: receiver.URL,
	})
	for range 2 {
		err := s.handleLeadNotify(context.Background(), task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	}

	require.Len(t, deliveries, 2)
	assert.Equal(t, []string{"lead-9", "lead-9"}, deliveries)
}

func TestHandleLeadNotifySkipsRetryWhenRefused(t *testing.T) {
	hook := &captureWebhook{err: &webhook.StatusError{StatusCode: http.StatusGone}}
	s := newTestServer(hook, nil)

	err := s.handleLeadNotify(context.Background(), notifyTask(t, queue.LeadNotificationPayload{
		LeadID:     "lead-3",
		Kind:       domain.LeadKindConnect,
		WebhookURL: "https://hooks.example.com/leads",
	}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, []string{"lead-3"}, hook.deliveryIDs)
	assert.Equal(t, 1.0, counterValue(t, s, "jobboard_worker_lead_notifications_total", "refused"))
}

func TestHandleLeadNotifySkipsRetryOnBadPayload(t *testing.T) {
	s := newTestServer(&captureWebhook{}, nil)

	err := s.handleLeadNotify(context.Background(), asynq.NewTask(queue.TypeLeadNotify, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = s.handleLeadNotify(context.Background(), notifyTask(t, queue.LeadNotificationPayload{LeadID: "lead-3"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func counterValue(t *testing.T, s *Server, name, outcome string) float64 {
	t.Helper()
	families, err := s.metrics.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
