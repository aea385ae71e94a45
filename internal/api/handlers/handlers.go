// Package handlers provides HTTP handler implementations for the jejecipher REST API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/config"
	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/history"
	"github.com/yourusername/jejecipher/internal/notify"
	"github.com/yourusername/jejecipher/internal/scheduler"
	"github.com/yourusername/jejecipher/internal/transform"
	"github.com/yourusername/jejecipher/internal/webhook"
	"github.com/yourusername/jejecipher/internal/ws"
)

// Handler holds all shared dependencies for API handler methods.
type Handler struct {
	log       *zap.Logger
	db        *db.DB
	config    *config.Config
	history   *history.Store
	svc       *transform.Service
	hub       *ws.Hub
	notify    *notify.Dispatcher
	webhook   *webhook.Dispatcher
	scheduler *scheduler.Engine
	started   time.Time
}

// New creates a Handler with all dependencies. hub, notifier, wh and sched
// may be nil.
func New(
	log *zap.Logger,
	database *db.DB,
	cfg *config.Config,
	hist *history.Store,
	svc *transform.Service,
	hub *ws.Hub,
	notifier *notify.Dispatcher,
	wh *webhook.Dispatcher,
	sched *scheduler.Engine,
) *Handler {
	return &Handler{
		log:       log.Named("api"),
		db:        database,
		config:    cfg,
		history:   hist,
		svc:       svc,
		hub:       hub,
		notify:    notifier,
		webhook:   wh,
		scheduler: sched,
		started:   time.Now(),
	}
}

// ── Response helpers ──────────────────────────────────────────────────────────

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type paginatedResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    pageMeta    `json:"meta"`
}

type pageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func okPaginated(w http.ResponseWriter, data interface{}, total, page, limit int) {
	writeJSON(w, http.StatusOK, paginatedResponse{
		Success: true,
		Data:    data,
		Meta:    pageMeta{Total: total, Page: page, Limit: limit},
	})
}

func fail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, response{Success: false, Error: msg})
}

// writeJSON leaves <, > and & unescaped; cipher output is full of them.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request, name string) string {
	return r.PathValue(name)
}

func intPath(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	return n, err == nil && n > 0
}

// pageParams reads limit and page query params, clamping limit to max.
func pageParams(r *http.Request, def, max int) (limit, page int) {
	limit, page = def, 1
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= max {
		limit = n
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page = n
	}
	return limit, page
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
