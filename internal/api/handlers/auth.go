package handlers

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/auth"
)

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ip := clientIP(r)
	now := time.Now()
	throttle := auth.NewThrottle(h.config.BruteForceMaxAttempts, h.config.BruteForceBlockMinutes)
	wait, err := throttle.RetryAfter(r.Context(), h.db, ip, now)
	if err != nil {
		h.log.Error("login throttle", zap.Error(err))
		fail(w, http.StatusInternalServerError, "login failed")
		return
	}
	if wait > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())))
		fail(w, http.StatusTooManyRequests, "too many failed logins, retry in "+wait.String())
		return
	}

	token, userID, err := auth.Login(r.Context(), h.db, req.Username, req.Password, h.config.SessionExpiryHours)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		if err := throttle.Record(r.Context(), h.db, ip, false, now); err != nil {
			h.log.Warn("record login attempt", zap.Error(err))
		}
		h.db.WriteLog("warn", "auth", "failed login for "+req.Username+" from "+ip)
		fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.log.Error("login", zap.Error(err))
		fail(w, http.StatusInternalServerError, "login failed")
		return
	}
	if err := throttle.Record(r.Context(), h.db, ip, true, now); err != nil {
		h.log.Warn("record login attempt", zap.Error(err))
	}
	if n, err := auth.PruneAttempts(r.Context(), h.db, now); err != nil {
		h.log.Warn("prune login attempts", zap.Error(err))
	} else if n > 0 {
		h.log.Debug("pruned login attempts", zap.Int64("count", n))
	}
	auth.SetSessionCookie(w, token, h.config.SessionExpiryHours)

	// Without Telegram there is no second factor to deliver.
	requires2FA := h.notify != nil && h.config.TelegramToken != ""
	if requires2FA {
		otp, err := auth.GenerateOTP(r.Context(), h.db, userID)
		if err != nil {
			h.log.Error("generate otp", zap.Error(err))
			fail(w, http.StatusInternalServerError, "could not issue login code")
			return
		}
		h.notify.SendTelegram(auth.OTPMessage(otp))
	} else if err := auth.MarkSessionVerified(r.Context(), h.db, token); err != nil {
		h.log.Error("mark session verified", zap.Error(err))
	}

	ok(w, map[string]interface{}{"user_id": userID, "requires_2fa": requires2FA, "token": token})
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.SessionTokenFromRequest(r); token != "" {
		_ = auth.Logout(r.Context(), h.db, token)
	}
	auth.ClearSessionCookie(w)
	ok(w, map[string]string{"message": "logged out"})
}

// Verify2FA handles POST /api/v1/auth/2fa/verify.
func (h *Handler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OTP string `json:"otp"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	token := auth.SessionTokenFromRequest(r)
	if token == "" {
		fail(w, http.StatusUnauthorized, "no session")
		return
	}
	user, _, err := auth.ValidateSession(r.Context(), h.db, token)
	if err != nil {
		fail(w, http.StatusUnauthorized, "invalid session")
		return
	}
	if err := auth.VerifyOTP(r.Context(), h.db, user.ID, req.OTP, token); err != nil {
		fail(w, http.StatusUnauthorized, "invalid or expired OTP")
		return
	}
	ok(w, map[string]string{"message": "2FA verified"})
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		fail(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	ok(w, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
