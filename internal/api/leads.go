package api

import (
	"context"
	"net/http"

	"github.com/dunamismax/jobboard/internal/apperr"
	"github.com/dunamismax/jobboard/internal/crm"
	"github.com/dunamismax/jobboard/internal/domain"
	"github.com/dunamismax/jobboard/internal/id"
	"github.com/dunamismax/jobboard/internal/queue"
	"github.com/dunamismax/jobboard/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req domain.ApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.loadJob(r, req.JobSlug); err != nil {
		s.writeError(w, r, err)
		return
	}

	lead := s.newLead(domain.LeadKindApplication, req.Name, req.Email)
	lead.JobSlug = req.JobSlug
	lead.CVURL = s.verifyResume(r.Context(), req.CVURL)

	s.submitLead(w, r, lead, "application", func(ctx context.Context) (crm.Submission, error) {
		return s.crm.CreateJobApplication(ctx, lead.JobSlug, lead.Name, lead.Email, lead.CVURL)
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req domain.ConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	lead := s.newLead(domain.LeadKindConnect, req.Name, req.Email)
	lead.Interests = req.Interests
	lead.Goals = req.Goals
	lead.CVURL = s.verifyResume(r.Context(), req.CVURL)

	s.submitLead(w, r, lead, "talent pool entry", func(ctx context.Context) (crm.Submission, error) {
		return s.crm.CreateTalentPoolEntry(ctx, lead.Name, lead.Email, lead.Interests, lead.Goals, lead.CVURL)
	})
}

func (s *Server) newLead(kind, name, email string) domain.Lead {
	now := s.now().UTC()
	return domain.Lead{
		ID:        id.New(),
		Kind:      kind,
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// submitLead pushes lead to the CRM when one is configured, records the
// outcome in the lead log and writes the response.
func (s *Server) submitLead(w http.ResponseWriter, r *http.Request, lead domain.Lead, noun string, send func(context.Context) (crm.Submission, error)) {
	log := s.logger.With(zap.String("lead_id", lead.ID), zap.String("kind", lead.Kind))

	if !s.crm.Configured() {
		lead.Status = domain.LeadStatusLogged
		log.Info("crm not configured, lead logged only",
			zap.String("email", lead.Email),
			zap.String("job_slug", lead.JobSlug),
		)
		s.recordLead(r.Context(), log, lead)
		s.notifyLead(r.Context(), log, lead)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Your " + noun + " has been received",
		})
		return
	}

	submission, err := send(r.Context())
	if err != nil {
		lead.Status = domain.LeadStatusFailed
		lead.Error = err.Error()
		log.Error("crm submission failed", zap.Error(err))
		s.recordLead(r.Context(), log, lead)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to submit " + noun})
		return
	}

	lead.Status = domain.LeadStatusSubmitted
	lead.ContactID = submission.ContactID
	lead.OpportunityID = submission.OpportunityID
	log.Info("lead submitted to crm",
		zap.String("contact_id", submission.ContactID),
		zap.String("opportunity_id", submission.OpportunityID),
	)
	s.recordLead(r.Context(), log, lead)
	s.notifyLead(r.Context(), log, lead)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Your " + noun + " has been submitted successfully",
		"data":    submission,
	})
}

func (s *Server) recordLead(ctx context.Context, log *zap.Logger, lead domain.Lead) {
	s.metrics.leadsTotal.WithLabelValues(lead.Kind, lead.Status).Inc()
	if err := s.leadStore.CreateLead(ctx, lead); err != nil {
		log.Error("lead log write failed", zap.Error(err))
	}
}

func (s *Server) notifyLead(ctx context.Context, log *zap.Logger, lead domain.Lead) {
	if s.cfg.NotifyWebhookURL == "" || s.queueClient == nil {
		return
	}

	info, err := s.queueClient.EnqueueLeadNotification(ctx, queue.LeadNotificationPayload{
		LeadID:        lead.ID,
		Kind:          lead.Kind,
		Name:          lead.Name,
		Email:         lead.Email,
		JobSlug:       lead.JobSlug,
		Interests:     lead.Interests,
		Goals:         lead.Goals,
		CVURL:         lead.CVURL,
		Status:        lead.Status,
		ContactID:     lead.ContactID,
		OpportunityID: lead.OpportunityID,
		WebhookURL:    s.cfg.NotifyWebhookURL,
		RequestedAt:   s.now().UTC(),
	})
	if err != nil {
		log.Warn("enqueue lead notification failed", zap.Error(err))
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(info.Queue).Inc()
}

// verifyResume drops a résumé URL that points into our bucket at an object
// that was never uploaded. URLs elsewhere are passed through untouched.
func (s *Server) verifyResume(ctx context.Context, cvURL string) string {
	if cvURL == "" {
		return ""
	}
	key, ok := s.storage.KeyFromURL(cvURL)
	if !ok {
		return cvURL
	}

	exists, err := s.storage.ObjectExists(ctx, key)
	if err != nil {
		s.logger.Warn("resume existence check failed", zap.String("key", key), zap.Error(err))
		return cvURL
	}
	if !exists {
		s.logger.Warn("resume object missing, dropping reference", zap.String("key", key))
		return ""
	}
	return cvURL
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req domain.UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := storage.ValidateResume(req.Filename, req.FileType); err != nil {
		s.writeError(w, r, err)
		return
	}

	post, err := s.storage.PresignedPost(r.Context(), storage.PostPolicy{
		ObjectKey:   storage.ResumeObjectKey(s.cfg.ResumeKeyPrefix, req.Filename, s.now()),
		ContentType: req.FileType,
		MaxBytes:    s.cfg.MaxUploadBytes,
		Expiry:      s.cfg.PresignTTL,
	})
	if err != nil {
		if apperr.Is(err, apperr.TypeUnavailable) {
			s.writeError(w, r, err)
			return
		}
		s.logger.Error("generate presigned post failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URL"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    post,
	})
}

