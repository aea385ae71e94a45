package handlers

import (
	"net/http"
	"time"
)

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.history.Stats(ctx)
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	var schedules, webhooks int
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules WHERE enabled=1`).Scan(&schedules)
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhooks WHERE enabled=1`).Scan(&webhooks)

	wsClients := 0
	if h.hub != nil {
		wsClients = h.hub.ClientCount()
	}

	ok(w, map[string]interface{}{
		"history":          stats,
		"active_schedules": schedules,
		"active_webhooks":  webhooks,
		"telegram":         h.config.TelegramToken != "",
		"retention_days":   h.config.HistoryRetentionDays,
		"ws_clients":       wsClients,
		"started_at":       h.started.UTC().Format(time.RFC3339),
		"uptime_seconds":   int64(time.Since(h.started).Seconds()),
	})
}
