package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dunamismax/jobboard/internal/apperr"
	"github.com/dunamismax/jobboard/internal/domain"
)

// jobView is a job as shown on public listings.
type jobView struct {
	domain.Job
	Posted string `json:"posted"`
}

func (s *Server) views(jobs []domain.Job) []jobView {
	now := s.now()
	out := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobView{Job: job, Posted: domain.FormatPostedAt(job.PostedAt.Time, now)})
	}
	return out
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobStore.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	filtered := domain.FilterJobs(jobs, domain.JobFilters{
		Dept:       listParam(query, "dept"),
		WorkType:   listParam(query, "workType"),
		Experience: listParam(query, "experience"),
		Query:      query.Get("q"),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  s.views(filtered),
		"total": len(jobs),
		"count": len(filtered),
	})
}

func (s *Server) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	limit := domain.DefaultRecentLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, apperr.InvalidInput("limit must be an integer", err))
			return
		}
		limit = parsed
	}

	jobs, err := s.jobStore.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.views(domain.RecentJobs(jobs, limit))})
}

func (s *Server) handleJobMeta(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobStore.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"departments":      domain.Departments(),
		"workTypes":        domain.WorkTypes(),
		"experienceLevels": domain.ExperienceLevels(),
		"tags":             domain.AllTags(jobs),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadJob(r, r.PathValue("slug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": s.views([]domain.Job{job})[0]})
}

func (s *Server) loadJob(r *http.Request, slug string) (domain.Job, error) {
	job, ok, err := s.jobStore.Get(r.Context(), slug)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, apperr.NotFound("job not found", nil)
	}
	return job, nil
}

// listParam accepts both repeated (?dept=a&dept=b) and comma-separated
// (?dept=a,b) forms.
func listParam(query url.Values, key string) []string {
	var out []string
	for _, raw := range query[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
