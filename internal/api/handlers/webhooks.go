package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/yourusername/jejecipher/internal/db"
)

const webhookCols = `SELECT id, name, url, events, secret, enabled, last_status, last_fired, created_at FROM webhooks`

type webhookRequest struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Events  string `json:"events"`
	Secret  string `json:"secret"`
	Enabled *bool  `json:"enabled"`
}

func (req *webhookRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Events = strings.ReplaceAll(req.Events, " ", "")
	if req.Name == "" || req.URL == "" {
		return "name and url are required"
	}
	u, err := url.ParseRequestURI(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "url must be an absolute http or https URL"
	}
	return ""
}

func scanWebhook(row interface{ Scan(...interface{}) error }) (db.Webhook, error) {
	var wh db.Webhook
	err := row.Scan(&wh.ID, &wh.Name, &wh.URL, &wh.Events, &wh.Secret,
		&wh.Enabled, &wh.LastStatus, &wh.LastFired, &wh.CreatedAt)
	return wh, err
}

// ListWebhooks handles GET /api/v1/webhooks.
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), webhookCols+` ORDER BY id`)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	hooks := []db.Webhook{}
	for rows.Next() {
		wh, err := scanWebhook(rows)
		if err != nil {
			continue
		}
		hooks = append(hooks, wh)
	}
	ok(w, hooks)
}

// CreateWebhook handles POST /api/v1/webhooks.
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	res, err := h.db.ExecContext(r.Context(), `
		INSERT INTO webhooks (name, url, events, secret, enabled) VALUES (?,?,?,?,?)`,
		req.Name, req.URL, req.Events, req.Secret, boolInt(req.Enabled == nil || *req.Enabled),
	)
	if err != nil {
		fail(w, http.StatusInternalServerError, "insert: "+err.Error())
		return
	}
	id, _ := res.LastInsertId()
	ok(w, map[string]int64{"id": id})
}

// GetWebhook handles GET /api/v1/webhooks/{id}.
func (h *Handler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	id, valid := intPath(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	wh, err := scanWebhook(h.db.QueryRowContext(r.Context(), webhookCols+` WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		fail(w, http.StatusNotFound, "webhook not found")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, wh)
}

// UpdateWebhook handles PUT /api/v1/webhooks/{id}.
// An empty secret keeps the stored one.
func (h *Handler) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	id, valid := intPath(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req webhookRequest
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	res, err := h.db.ExecContext(r.Context(), `
		UPDATE webhooks
		SET name=?, url=?, events=?, secret=CASE WHEN ?='' THEN secret ELSE ? END, enabled=?
		WHERE id=?`,
		req.Name, req.URL, req.Events, req.Secret, req.Secret,
		boolInt(req.Enabled == nil || *req.Enabled), id)
	if err != nil {
		fail(w, http.StatusInternalServerError, "update: "+err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fail(w, http.StatusNotFound, "webhook not found")
		return
	}
	ok(w, map[string]string{"message": "updated"})
}

// DeleteWebhook handles DELETE /api/v1/webhooks/{id}.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, valid := intPath(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	res, err := h.db.ExecContext(r.Context(), `DELETE FROM webhooks WHERE id=?`, id)
	if err != nil {
		fail(w, http.StatusInternalServerError, "delete: "+err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fail(w, http.StatusNotFound, "webhook not found")
		return
	}
	ok(w, map[string]string{"message": "deleted"})
}

// TestWebhook handles POST /api/v1/webhooks/{id}/test.
func (h *Handler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	id, valid := intPath(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	if h.webhook == nil {
		fail(w, http.StatusServiceUnavailable, "webhook dispatcher not initialized")
		return
	}
	if err := h.webhook.TestWebhook(r.Context(), id); err != nil {
		fail(w, http.StatusBadGateway, "test failed: "+err.Error())
		return
	}
	ok(w, map[string]string{"message": "test delivered"})
}
