// Package api sets up the HTTP routes and middleware for jejecipher's REST API.
package api

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/api/handlers"
	"github.com/yourusername/jejecipher/internal/auth"
	"github.com/yourusername/jejecipher/internal/config"
	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/history"
	"github.com/yourusername/jejecipher/internal/notify"
	"github.com/yourusername/jejecipher/internal/scheduler"
	"github.com/yourusername/jejecipher/internal/transform"
	"github.com/yourusername/jejecipher/internal/webhook"
	"github.com/yourusername/jejecipher/internal/ws"
)

// Deps holds all dependencies injected into the API handlers.
type Deps struct {
	Log       *zap.Logger
	DB        *db.DB
	Config    *config.Config
	History   *history.Store
	Transform *transform.Service
	Hub       *ws.Hub
	Notify    *notify.Dispatcher
	Webhook   *webhook.Dispatcher
	Scheduler *scheduler.Engine
}

// SetupRoutes registers all HTTP routes on the given ServeMux.
// Uses Go 1.22 method+pattern routing syntax.
func SetupRoutes(mux *http.ServeMux, deps *Deps) {
	h := handlers.New(deps.Log, deps.DB, deps.Config, deps.History, deps.Transform,
		deps.Hub, deps.Notify, deps.Webhook, deps.Scheduler)

	requireAuth := func(next http.HandlerFunc) http.Handler {
		return auth.RequireAPIKey(deps.DB, next)
	}
	mutating := func(next http.HandlerFunc) http.Handler {
		return auth.RequireAPIKey(deps.DB, csrfGuard(next))
	}

	// ── Setup routes (no auth; used before first login) ──────────────────────
	mux.HandleFunc("GET /api/setup/status", h.SetupStatus)
	mux.HandleFunc("GET /api/setup/ports", h.ScanPorts)

	// ── Public routes ────────────────────────────────────────────────────────
	mux.HandleFunc("POST /api/v1/encode", h.Encode)
	mux.HandleFunc("POST /api/v1/decode", h.Decode)
	mux.HandleFunc("GET /api/v1/legend", h.Legend)

	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("POST /api/v1/auth/2fa/verify", h.Verify2FA)

	// ── Protected routes ─────────────────────────────────────────────────────
	mux.Handle("GET /api/v1/auth/me", requireAuth(h.Me))
	mux.Handle("GET /api/v1/status", requireAuth(h.Status))

	// History
	mux.Handle("GET /api/v1/history", requireAuth(h.ListHistory))
	mux.Handle("POST /api/v1/history/prune", mutating(h.PruneHistory))
	mux.Handle("GET /api/v1/history/{ref}", requireAuth(h.GetHistory))
	mux.Handle("DELETE /api/v1/history/{ref}", mutating(h.DeleteHistory))

	// Schedules
	mux.Handle("GET /api/v1/schedules", requireAuth(h.ListSchedules))
	mux.Handle("POST /api/v1/schedules", mutating(h.CreateSchedule))
	mux.Handle("GET /api/v1/schedules/{id}", requireAuth(h.GetSchedule))
	mux.Handle("PUT /api/v1/schedules/{id}", mutating(h.UpdateSchedule))
	mux.Handle("DELETE /api/v1/schedules/{id}", mutating(h.DeleteSchedule))
	mux.Handle("POST /api/v1/schedules/{id}/run", mutating(h.RunSchedule))

	// Webhooks
	mux.Handle("GET /api/v1/webhooks", requireAuth(h.ListWebhooks))
	mux.Handle("POST /api/v1/webhooks", mutating(h.CreateWebhook))
	mux.Handle("GET /api/v1/webhooks/{id}", requireAuth(h.GetWebhook))
	mux.Handle("PUT /api/v1/webhooks/{id}", mutating(h.UpdateWebhook))
	mux.Handle("DELETE /api/v1/webhooks/{id}", mutating(h.DeleteWebhook))
	mux.Handle("POST /api/v1/webhooks/{id}/test", mutating(h.TestWebhook))

	// Settings
	mux.Handle("GET /api/v1/settings", requireAuth(h.ListSettings))
	mux.Handle("PUT /api/v1/settings/{key}", mutating(h.UpdateSetting))

	// Logs
	mux.Handle("GET /api/v1/logs", requireAuth(h.ListLogs))

	// Live feed
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.ServeWS)
	}
}

// csrfGuard enforces X-CSRF-Token header on mutating requests.
func csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") == "" {
			http.Error(w, `{"success":false,"error":"missing CSRF token"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Middleware wraps next with panic recovery and request logging.
func Middleware(log *zap.Logger, next http.Handler) http.Handler {
	log = log.Named("http")
	return logging(log, recovery(log, next))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack forwards to the underlying writer for websocket upgrades.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// logging logs each request.
func logging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// recovery recovers from panics and returns 500.
func recovery(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				log.Error("panic", zap.Any("recovered", rv), zap.String("path", r.URL.Path))
				http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
