package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dunamismax/jobboard/internal/config"
	"github.com/dunamismax/jobboard/internal/domain"
	"github.com/dunamismax/jobboard/internal/queue"
	"github.com/dunamismax/jobboard/internal/store"
	"github.com/dunamismax/jobboard/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const EventLeadCreated = "lead.created"

type Server struct {
	logger        *zap.Logger
	server        *asynq.Server
	webhookClient webhookSender
	leadStore     store.LeadStore
	metrics       *metrics
	tracer        trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, d webhook.Delivery) error
}

func NewServer(
	logger *zap.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	webhookClient webhookSender,
	leadStore store.LeadStore,
) (*Server, error) {
	if webhookClient == nil {
		return nil, fmt.Errorf("webhook client is required")
	}

	s := &Server{
		logger:        logger,
		webhookClient: webhookClient,
		leadStore:     leadStore,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("jobboard/worker"),
	}
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: max(1, workerCfg.Concurrency),
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			Logger:   logger.Sugar(),
			LogLevel: asynq.InfoLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn("task failed",
					zap.String("type", task.Type()),
					zap.Int("retry", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
		},
	)
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeLeadNotify, s.handleLeadNotify)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleLeadNotify(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := "failed"

	payload, err := queue.ParseLeadNotificationPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.WebhookURL == "" {
		return fmt.Errorf("lead %s has no webhook url: %w", payload.LeadID, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.lead_notify", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("lead.id", payload.LeadID),
		attribute.String("lead.kind", payload.Kind),
	)
	defer span.End()
	defer func() {
		s.metrics.notificationDuration.WithLabelValues(payload.Kind, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.notificationsTotal.WithLabelValues(payload.Kind, outcome).Inc()
	}()

	s.metrics.activeNotifications.Inc()
	defer s.metrics.activeNotifications.Dec()

	log := s.logger.With(zap.String("lead_id", payload.LeadID), zap.String("kind", payload.Kind))
	log.Info("delivering lead notification")

	body := map[string]any{
		"lead_id":      payload.LeadID,
		"kind":         payload.Kind,
		"name":         payload.Name,
		"email":        payload.Email,
		"status":       payload.Status,
		"requested_at": payload.RequestedAt,
	}
	if payload.JobSlug != "" {
		body["job_slug"] = payload.JobSlug
	}
	if len(payload.Interests) > 0 {
		body["interests"] = payload.Interests
	}
	if payload.Goals != "" {
		body["goals"] = payload.Goals
	}
	if payload.CVURL != "" {
		body["cv_url"] = payload.CVURL
	}
	if payload.ContactID != "" {
		body["contact_id"] = payload.ContactID
		body["opportunity_id"] = payload.OpportunityID
	}

	// The lead id names the delivery, so every asynq retry of this task
	// reaches the receiver under the same X-Jobboard-Delivery.
	err = s.webhookClient.Send(ctx, webhook.Delivery{
		ID:       payload.LeadID,
		Endpoint: payload.WebhookURL,
		Event:    EventLeadCreated,
		Payload:  body,
	})
	if err != nil {
		log.Warn("lead notification failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		if webhook.Permanent(err) {
			outcome = "refused"
			return fmt.Errorf("dispatch webhook: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	s.markNotified(ctx, log, payload.LeadID)
	outcome = "delivered"
	span.SetStatus(codes.Ok, "delivered")
	return nil
}

// markNotified records delivery on the lead. The lead may live in another
// process's memory store, so a missing lead is only logged.
func (s *Server) markNotified(ctx context.Context, log *zap.Logger, leadID string) {
	if s.leadStore == nil {
		return
	}
	_, err := s.leadStore.UpdateLeadStatus(ctx, leadID, domain.LeadStatusNotified, "")
	switch {
	case err == nil:
	case errors.Is(err, store.ErrLeadNotFound):
		log.Debug("lead not found in local lead store")
	default:
		log.Warn("lead status update failed", zap.Error(err))
	}
}
