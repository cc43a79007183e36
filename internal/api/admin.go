package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/jobboard/internal/apperr"
	"github.com/dunamismax/jobboard/internal/domain"
	"github.com/dunamismax/jobboard/internal/session"
	"go.uber.org/zap"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	if !session.CredentialsMatch(s.cfg.AdminUsername, s.cfg.AdminPassword, req.Username, req.Password) {
		s.logger.Warn("admin login rejected", zap.String("username", req.Username), zap.String("remote", clientIP(r)))
		s.writeError(w, r, apperr.Unauthorized("invalid credentials", nil))
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, r, apperr.Internal("create session", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("admin logged in", zap.String("username", req.Username))
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.sessions.Delete(r.Context(), token); err != nil {
			s.writeError(w, r, apperr.Internal("delete session", err))
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := s.sessions.Valid(r.Context(), sessionToken(r))
		if err != nil {
			s.logger.Error("session lookup failed", zap.Error(err))
			s.writeError(w, r, apperr.Unavailable("session store unavailable", err))
			return
		}
		if !ok {
			s.writeError(w, r, apperr.Unauthorized("unauthorized", nil))
			return
		}
		next(w, r)
	}
}

// sessionToken reads the admin token from a bearer header, falling back to
// the session cookie.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, found := strings.Cut(auth, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (s *Server) handleAdminListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobStore.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleAdminGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadJob(r, r.PathValue("slug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleAdminCreateJob(w http.ResponseWriter, r *http.Request) {
	var in domain.JobInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.jobStore.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("job created", zap.String("slug", job.Slug))
	writeJSON(w, http.StatusCreated, map[string]any{"job": job})
}

func (s *Server) handleAdminUpdateJob(w http.ResponseWriter, r *http.Request) {
	var in domain.JobInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.jobStore.Update(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("job updated", zap.String("slug", job.Slug))
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleAdminDeleteJob(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := s.jobStore.Delete(r.Context(), slug); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("job deleted", zap.String("slug", slug))
	writeJSON(w, http.StatusOK, map[string]string{"message": "job deleted"})
}
