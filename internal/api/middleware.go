package api

import (
	"context"
	"net/http"
	"time"

	"autoblog/internal/site"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"

	cronTimeout = 5 * time.Minute
)

type requestIDKey struct{}
type siteKey struct{}

// RequestID returns the request ID assigned by the server.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Scope returns the request scope built for the request. It is nil outside
// routes that use the scope middleware.
func Scope(ctx context.Context) *site.Site {
	s, _ := ctx.Value(siteKey{}).(*site.Site)
	return s
}

// requestID keeps a well-formed incoming X-Request-ID and assigns a new one
// otherwise.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr))
	})
}

// scope builds and boots a fresh site for the request. Due pseudo-cron
// events run after the handler returns.
func (s *Server) scope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := s.newSite()
		st.Boot(r.Context())

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), siteKey{}, st)))

		if s.cfg.CronOnRequest {
			s.spawnCron(st, RequestID(r.Context()))
		}
	})
}

func (s *Server) spawnCron(st *site.Site, reqID string) {
	s.cronWG.Add(1)
	go func() {
		defer s.cronWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), cronTimeout)
		defer cancel()

		n, err := st.SpawnCron(ctx)
		if err != nil {
			s.logger.Error("Pseudo-cron spawn failed", zap.String("request_id", reqID), zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("Pseudo-cron events ran", zap.Int("events", n), zap.String("request_id", reqID))
		}
	}()
}

// Wait blocks until every pseudo-cron spawn started by a request has
// finished.
func (s *Server) Wait() {
	s.cronWG.Wait()
}
