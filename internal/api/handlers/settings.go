package handlers

import (
	"net/http"
	"strconv"
)

// editableSettings lists the keys the settings API may change, with a
// validator for each.
var editableSettings = map[string]func(string) bool{
	"telegram_token":            func(string) bool { return true },
	"telegram_chat_id":          func(v string) bool { _, err := strconv.ParseInt(v, 10, 64); return v == "" || err == nil },
	"history_retention_days":    nonNegativeInt,
	"session_expiry_hours":      positiveInt,
	"brute_force_max_attempts":  positiveInt,
	"brute_force_block_minutes": positiveInt,
}

func positiveInt(v string) bool {
	n, err := strconv.Atoi(v)
	return err == nil && n > 0
}

func nonNegativeInt(v string) bool {
	n, err := strconv.Atoi(v)
	return err == nil && n >= 0
}

// ListSettings handles GET /api/v1/settings.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `SELECT key, value FROM settings WHERE key != 'schema_version' ORDER BY key`)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		if k == "telegram_token" && v != "" {
			v = "********"
		}
		settings[k] = v
	}
	ok(w, settings)
}

// UpdateSetting handles PUT /api/v1/settings/{key}.
// Values are stored for the next start; the running process keeps its
// loaded configuration.
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := pathID(r, "key")
	valid, known := editableSettings[key]
	if !known {
		fail(w, http.StatusBadRequest, "invalid key")
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !valid(req.Value) {
		fail(w, http.StatusBadRequest, "invalid value for "+key)
		return
	}
	if err := h.db.SetSetting(key, req.Value); err != nil {
		fail(w, http.StatusInternalServerError, "set: "+err.Error())
		return
	}
	h.db.WriteLog("info", "api", "setting "+key+" updated")
	ok(w, map[string]string{"key": key, "value": req.Value})
}
