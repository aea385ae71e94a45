package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/yourusername/jejecipher/internal/auth"
	"github.com/yourusername/jejecipher/internal/config"
	"github.com/yourusername/jejecipher/internal/platform"
)

// SetupStatus handles GET /api/setup/status.
// It is public so a fresh install can be checked before the first login.
func (h *Handler) SetupStatus(w http.ResponseWriter, r *http.Request) {
	var hash string
	err := h.db.QueryRowContext(r.Context(),
		`SELECT password_hash FROM users ORDER BY id LIMIT 1`).Scan(&hash)
	defaultPassword := err == nil && auth.CheckPassword(config.Defaults().AdminPassword, hash)

	urls := []string{fmt.Sprintf("http://localhost:%s", h.config.Port)}
	for _, ip := range platform.LANAddrs() {
		urls = append(urls, fmt.Sprintf("http://%s:%s", ip, h.config.Port))
	}

	ok(w, map[string]interface{}{
		"configured":       err == nil && !defaultPassword,
		"default_password": defaultPassword,
		"telegram":         h.config.TelegramToken != "" && h.config.TelegramChatID != 0,
		"retention_days":   h.config.HistoryRetentionDays,
		"work_dir":         h.config.WorkDir,
		"db_path":          h.config.DBPath,
		"urls":             urls,
	})
}

type portResult struct {
	Port      int    `json:"port"`
	Available bool   `json:"available"`
	Note      string `json:"note,omitempty"`
}

const maxPortScan = 50

// ScanPorts handles GET /api/setup/ports?from=8080&count=10.
// The port this daemon listens on is reported as taken by jejecipher.
func (h *Handler) ScanPorts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := strconv.Atoi(q.Get("from"))
	if q.Get("from") == "" {
		from, err = 8080, nil
	}
	if err != nil || from < 1 || from > 65535 {
		fail(w, http.StatusBadRequest, "from must be a port number")
		return
	}
	count := 10
	if v := q.Get("count"); v != "" {
		if count, err = strconv.Atoi(v); err != nil || count < 1 || count > maxPortScan {
			fail(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxPortScan))
			return
		}
	}
	own, _ := strconv.Atoi(h.config.Port)
	ok(w, scanPorts(from, count, own, platform.PortFree))
}

func scanPorts(from, count, own int, free func(int) bool) []portResult {
	results := make([]portResult, 0, count)
	for p := from; p < from+count && p <= 65535; p++ {
		if p == own {
			results = append(results, portResult{Port: p, Note: "jejecipher"})
			continue
		}
		results = append(results, portResult{Port: p, Available: free(p)})
	}
	return results
}
