package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dunamismax/jobboard/internal/apperr"
	"github.com/dunamismax/jobboard/internal/crm"
	"github.com/dunamismax/jobboard/internal/queue"
	"github.com/dunamismax/jobboard/internal/session"
	"github.com/dunamismax/jobboard/internal/storage"
	"github.com/dunamismax/jobboard/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config carries the request-level settings of the HTTP API.
type Config struct {
	PresignTTL       time.Duration
	MaxUploadBytes   int64
	ResumeKeyPrefix  string
	AdminUsername    string
	AdminPassword    string
	SecureCookie     bool
	NotifyWebhookURL string
}

// Deps are the collaborators behind the API. Only Jobs is required.
type Deps struct {
	Logger      *zap.Logger
	Jobs        store.JobStore
	Leads       store.LeadStore
	CRM         crmClient
	Storage     resumeStorage
	Sessions    session.Store
	Queue       queueEnqueuer
	RateLimiter RateLimiter
	Tracer      trace.Tracer
}

type Server struct {
	cfg         Config
	logger      *zap.Logger
	jobStore    store.JobStore
	leadStore   store.LeadStore
	crm         crmClient
	storage     resumeStorage
	sessions    session.Store
	queueClient queueEnqueuer
	rateLimiter RateLimiter
	tracer      trace.Tracer
	metrics     *metrics
	mux         *http.ServeMux
	now         func() time.Time
}

type crmClient interface {
	Configured() bool
	CreateJobApplication(ctx context.Context, jobSlug, name, email, cvURL string) (crm.Submission, error)
	CreateTalentPoolEntry(ctx context.Context, name, email string, interests []string, goals, cvURL string) (crm.Submission, error)
}

type resumeStorage interface {
	PresignedPost(ctx context.Context, policy storage.PostPolicy) (storage.PresignedPost, error)
	KeyFromURL(rawURL string) (string, bool)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

type queueEnqueuer interface {
	EnqueueLeadNotification(ctx context.Context, payload queue.LeadNotificationPayload) (*asynq.TaskInfo, error)
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = storage.DefaultPresignTTL
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = storage.DefaultMaxResumeBytes
	}
	if cfg.ResumeKeyPrefix == "" {
		cfg.ResumeKeyPrefix = storage.DefaultResumePrefix
	}

	s := &Server{
		cfg:         cfg,
		logger:      deps.Logger,
		jobStore:    deps.Jobs,
		leadStore:   deps.Leads,
		crm:         deps.CRM,
		storage:     deps.Storage,
		sessions:    deps.Sessions,
		queueClient: deps.Queue,
		rateLimiter: deps.RateLimiter,
		tracer:      deps.Tracer,
		metrics:     newMetrics(),
		mux:         http.NewServeMux(),
		now:         time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.leadStore == nil {
		s.leadStore = store.NewMemoryLeadStore()
	}
	if s.crm == nil {
		s.crm = crm.NewClient(crm.Config{}, s.logger)
	}
	if s.storage == nil {
		s.storage = unavailableStorage{}
	}
	if s.sessions == nil {
		s.sessions = session.NewMemoryStore(session.DefaultTTL)
	}

	s.routes()
	return s, nil
}

type unavailableStorage struct{}

func (unavailableStorage) PresignedPost(context.Context, storage.PostPolicy) (storage.PresignedPost, error) {
	return storage.PresignedPost{}, apperr.Unavailable("file uploads are not configured", nil)
}

func (unavailableStorage) KeyFromURL(string) (string, bool) {
	return "", false
}

func (unavailableStorage) ObjectExists(context.Context, string) (bool, error) {
	return false, apperr.Unavailable("file uploads are not configured", nil)
}

func (s *Server) Handler() http.Handler {
	return s.withRequestLog(s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())

	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/jobs/recent", s.handleRecentJobs)
	s.mux.HandleFunc("GET /api/jobs/meta", s.handleJobMeta)
	s.mux.HandleFunc("GET /api/jobs/{slug}", s.handleGetJob)

	s.mux.HandleFunc("POST /api/apply", s.handleApply)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)

	s.mux.HandleFunc("POST /api/admin/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/admin/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/admin/jobs", s.requireAdmin(s.handleAdminListJobs))
	s.mux.HandleFunc("POST /api/admin/jobs", s.requireAdmin(s.handleAdminCreateJob))
	s.mux.HandleFunc("GET /api/admin/jobs/{slug}", s.requireAdmin(s.handleAdminGetJob))
	s.mux.HandleFunc("PUT /api/admin/jobs/{slug}", s.requireAdmin(s.handleAdminUpdateJob))
	s.mux.HandleFunc("DELETE /api/admin/jobs/{slug}", s.requireAdmin(s.handleAdminDeleteJob))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps err onto a JSON error response. Internal failures are logged
// and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("unexpected error", err)
	}

	status := apperr.HTTPStatus(appErr.Type)
	if appErr.Type == apperr.TypeInternal {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
			zap.ByteString("stack", appErr.StackTrace()),
		)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}

	body := map[string]any{"error": appErr.Message}
	if len(appErr.Fields) > 0 {
		body["details"] = appErr.Fields
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return apperr.InvalidInput(fmt.Sprintf("invalid JSON body: %v", err), err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return apperr.InvalidInput("invalid JSON body: multiple JSON values are not allowed", nil)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
