package handlers

import (
	"net/http"

	"github.com/yourusername/jejecipher/internal/db"
)

// ListLogs handles GET /api/v1/logs.
// Query params: level, source, limit, page.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	limit, page := pageParams(r, 100, 500)

	where := " WHERE 1=1"
	args := []interface{}{}
	if v := q.Get("level"); v != "" {
		where += " AND level=?"
		args = append(args, v)
	}
	if v := q.Get("source"); v != "" {
		where += " AND source=?"
		args = append(args, v)
	}

	var total int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs"+where, args...).Scan(&total); err != nil {
		fail(w, http.StatusInternalServerError, "count: "+err.Error())
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, level, source, message, created_at FROM logs"+where+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	logs := []db.Log{}
	for rows.Next() {
		var l db.Log
		if err := rows.Scan(&l.ID, &l.Level, &l.Source, &l.Message, &l.CreatedAt); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	okPaginated(w, logs, total, page, limit)
}
