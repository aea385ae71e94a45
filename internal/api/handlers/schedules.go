package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/scheduler"
)

const scheduleCols = `SELECT id, name, cron_expr, mode, text, enabled, next_run, last_run, created_at FROM schedules`

type scheduleRequest struct {
	Name     string `json:"name"`
	CronExpr string `json:"cron_expr"`
	Mode     string `json:"mode"`
	Text     string `json:"text"`
	Enabled  *bool  `json:"enabled"`
}

func (req *scheduleRequest) validate(maxText int) string {
	req.Name = strings.TrimSpace(req.Name)
	req.CronExpr = strings.TrimSpace(req.CronExpr)
	if req.Mode == "" {
		req.Mode = db.ModeEncode
	}
	switch {
	case req.Name == "" || req.CronExpr == "" || req.Text == "":
		return "name, cron_expr, and text are required"
	case req.Mode != db.ModeEncode && req.Mode != db.ModeDecode:
		return "mode must be encode or decode"
	case len(req.Text) > maxText:
		return "text too large"
	}
	if err := scheduler.ValidateExpr(req.CronExpr); err != nil {
		return "invalid cron_expr: " + err.Error()
	}
	return ""
}

func scanSchedule(row interface{ Scan(...interface{}) error }) (db.Schedule, error) {
	var s db.Schedule
	err := row.Scan(&s.ID, &s.Name, &s.CronExpr, &s.Mode, &s.Text,
		&s.Enabled, &s.NextRun, &s.LastRun, &s.CreatedAt)
	return s, err
}

// ListSchedules handles GET /api/v1/schedules.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), scheduleCols+` ORDER BY id`)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	schedules := []db.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			continue
		}
		schedules = append(schedules, s)
	}
	ok(w, schedules)
}

// CreateSchedule handles POST /api/v1/schedules.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(h.config.MaxInputBytes); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	enabled := req.Enabled == nil || *req.Enabled
	res, err := h.db.ExecContext(r.Context(), `
		INSERT INTO schedules (name, cron_expr, mode, text, enabled) VALUES (?,?,?,?,?)`,
		req.Name, req.CronExpr, req.Mode, req.Text, boolInt(enabled),
	)
	if err != nil {
		fail(w, http.StatusInternalServerError, "insert: "+err.Error())
		return
	}
	id, _ := res.LastInsertId()
	if enabled {
		h.registerSchedule(r.Context(), int(id))
	}
	ok(w, map[string]int64{"id": id})
}

// GetSchedule handles GET /api/v1/schedules/{id}.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, valid := intPath(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	s, err := scanSchedule(h.db.QueryRowContext(r.Context(), scheduleCols+` WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		fail(w, http.StatusNotFound, "schedule not found")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, s)
}

// UpdateSchedule handles PUT /api/v1/schedules/{id}.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, valid := intPath(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(h.config.MaxInputBytes); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	enabled := req.Enabled == nil || *req.Enabled
	res, err := h.db.ExecContext(r.Context(), `
		UPDATE schedules SET name=?, cron_expr=?, mode=?, text=?, enabled=? WHERE id=?`,
		req.Name, req.CronExpr, req.Mode, req.Text, boolInt(enabled), id)
	if err != nil {
		fail(w, http.StatusInternalServerError, "update: "+err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fail(w, http.StatusNotFound, "schedule not found")
		return
	}
	if h.scheduler != nil {
		h.scheduler.RemoveJob(id)
		if enabled {
			h.registerSchedule(r.Context(), id)
		} else {
			_, _ = h.db.ExecContext(r.Context(), `UPDATE schedules SET next_run=NULL WHERE id=?`, id)
		}
	}
	ok(w, map[string]string{"message": "updated"})
}

// DeleteSchedule handles DELETE /api/v1/schedules/{id}.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, valid := intPath(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	if h.scheduler != nil {
		h.scheduler.RemoveJob(id)
	}
	res, err := h.db.ExecContext(r.Context(), `DELETE FROM schedules WHERE id=?`, id)
	if err != nil {
		fail(w, http.StatusInternalServerError, "delete: "+err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fail(w, http.StatusNotFound, "schedule not found")
		return
	}
	ok(w, map[string]string{"message": "deleted"})
}

// RunSchedule handles POST /api/v1/schedules/{id}/run.
func (h *Handler) RunSchedule(w http.ResponseWriter, r *http.Request) {
	id, valid := intPath(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	if h.scheduler == nil {
		fail(w, http.StatusServiceUnavailable, "scheduler not initialized")
		return
	}
	res, err := h.scheduler.Fire(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		fail(w, http.StatusNotFound, "schedule not found")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok(w, res)
}

func (h *Handler) registerSchedule(ctx context.Context, id int) {
	if h.scheduler == nil {
		return
	}
	if err := h.scheduler.AddJob(ctx, id); err != nil {
		h.log.Warn("register schedule", zap.Int("schedule_id", id), zap.Error(err))
	}
}
