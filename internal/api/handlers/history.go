package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/history"
)

// ListHistory handles GET /api/v1/history.
// Query params: mode, source, limit, page.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, page := pageParams(r, 50, 500)
	q := r.URL.Query()
	mode := q.Get("mode")
	if mode != "" && mode != db.ModeEncode && mode != db.ModeDecode {
		fail(w, http.StatusBadRequest, "mode must be encode or decode")
		return
	}
	items, total, err := h.history.List(r.Context(), history.Filter{
		Mode:   mode,
		Source: q.Get("source"),
		Limit:  limit,
		Page:   page,
	})
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []db.Transform{}
	}
	okPaginated(w, items, total, page, limit)
}

// GetHistory handles GET /api/v1/history/{ref}.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	t, err := h.history.Get(r.Context(), pathID(r, "ref"))
	if errors.Is(err, history.ErrNotFound) {
		fail(w, http.StatusNotFound, "transform not found")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, t)
}

// DeleteHistory handles DELETE /api/v1/history/{ref}.
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	err := h.history.Delete(r.Context(), pathID(r, "ref"))
	if errors.Is(err, history.ErrNotFound) {
		fail(w, http.StatusNotFound, "transform not found")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, map[string]string{"message": "deleted"})
}

// PruneHistory handles POST /api/v1/history/prune.
// Body (optional): {"older_than_days": n}; defaults to the retention setting.
func (h *Handler) PruneHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OlderThanDays *int `json:"older_than_days"`
	}
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	days := h.config.HistoryRetentionDays
	if req.OlderThanDays != nil {
		days = *req.OlderThanDays
	}
	if days < 0 {
		fail(w, http.StatusBadRequest, "older_than_days must not be negative")
		return
	}
	before := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	var n int64
	var err error
	if h.scheduler != nil {
		n, err = h.scheduler.Prune(r.Context(), before)
	} else {
		n, err = h.history.Prune(r.Context(), before)
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, map[string]interface{}{"deleted": n, "before": before})
}
