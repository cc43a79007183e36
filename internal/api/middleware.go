package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic serving request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				writeJSON(recorder, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("route", routeLabel(r.URL.Path)),
				zap.Int("status", recorder.status),
				zap.Duration("duration", time.Since(start)),
			)
		}()

		next.ServeHTTP(recorder, r)
	})
}
