// Package auth guards the jejecipher admin API: password login, session
// tokens with an optional Telegram second factor, and login throttling.
//
// Session tokens are handed to the client once and stored only as their
// SHA-256 digest.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/jejecipher/internal/db"
)

const (
	bcryptCost = 12

	// SessionCookie carries the session token for browser clients.
	SessionCookie = "jejecipher_session"
	// CSRFCookie is readable by scripts, which echo it in X-CSRF-Token.
	CSRFCookie = "jejecipher_csrf"
)

var (
	// ErrInvalidCredentials covers both an unknown user and a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidSession is returned for unknown or expired session tokens.
	ErrInvalidSession = errors.New("auth: invalid session")
)

// HashPassword hashes a plain-text password with bcrypt.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth.HashPassword: %w", err)
	}
	return string(b), nil
}

// CheckPassword compares plain text against a bcrypt hash.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// SeedAdmin creates the admin account on an empty users table. An existing
// account is never touched, so changing ADMIN_PASSWORD later has no effect.
func SeedAdmin(ctx context.Context, database *db.DB, username, password string) error {
	var n int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return fmt.Errorf("auth.SeedAdmin: count: %w", err)
	}
	if n > 0 {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := database.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?,?)`, username, hash); err != nil {
		return fmt.Errorf("auth.SeedAdmin: insert: %w", err)
	}
	return nil
}

// ── Sessions ─────────────────────────────────────────────────────────────────

// Login checks the credentials and opens a session that lasts expiryHours.
// The session starts unverified; see MarkSessionVerified and VerifyOTP.
func Login(ctx context.Context, database *db.DB, username, password string, expiryHours int) (token string, userID int, err error) {
	var hash string
	err = database.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE username=?`, username,
	).Scan(&userID, &hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", 0, ErrInvalidCredentials
	case err != nil:
		return "", 0, fmt.Errorf("auth.Login: query user: %w", err)
	case !CheckPassword(password, hash):
		return "", 0, ErrInvalidCredentials
	}

	token, err = newToken()
	if err != nil {
		return "", 0, fmt.Errorf("auth.Login: %w", err)
	}
	expires := time.Now().UTC().Add(time.Duration(expiryHours) * time.Hour)
	if _, err := database.ExecContext(ctx,
		`INSERT INTO sessions (user_id, token_hash, twofa_verified, expires_at) VALUES (?,?,0,?)`,
		userID, digest(token), expires,
	); err != nil {
		return "", 0, fmt.Errorf("auth.Login: create session: %w", err)
	}
	return token, userID, nil
}

// MarkSessionVerified completes the second factor for a session. Used when
// no Telegram bot is configured to deliver a code.
func MarkSessionVerified(ctx context.Context, database *db.DB, token string) error {
	if err := markVerified(ctx, database, token); err != nil {
		return fmt.Errorf("auth.MarkSessionVerified: %w", err)
	}
	return nil
}

func markVerified(ctx context.Context, database *db.DB, token string) error {
	_, err := database.ExecContext(ctx,
		`UPDATE sessions SET twofa_verified=1 WHERE token_hash=?`, digest(token))
	return err
}

// Logout ends a session. Unknown tokens are not an error.
func Logout(ctx context.Context, database *db.DB, token string) error {
	if _, err := database.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash=?`, digest(token)); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}
	return nil
}

// ValidateSession resolves a token to its user and reports whether the
// second factor is done. An expired session is deleted on sight.
func ValidateSession(ctx context.Context, database *db.DB, token string) (*db.User, bool, error) {
	var (
		s db.Session
		u db.User
	)
	err := database.QueryRowContext(ctx, `
		SELECT s.id, s.twofa_verified, s.expires_at, u.id, u.username
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash=?`, digest(token),
	).Scan(&s.ID, &s.TwoFAVerified, &s.ExpiresAt, &u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrInvalidSession
	}
	if err != nil {
		return nil, false, fmt.Errorf("auth.ValidateSession: %w", err)
	}
	if !time.Now().Before(s.ExpiresAt) {
		_, _ = database.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, s.ID)
		return nil, false, ErrInvalidSession
	}
	return &u, s.TwoFAVerified, nil
}

// ── HTTP ─────────────────────────────────────────────────────────────────────

// RequireAPIKey admits requests carrying a verified session, either as
// "Authorization: Bearer <token>" or in the session cookie. The user is
// available to next through UserFromContext.
func RequireAPIKey(database *db.DB, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = SessionTokenFromRequest(r)
		}
		if token == "" {
			unauthorized(w)
			return
		}
		user, verified, err := ValidateSession(r.Context(), database, token)
		if err != nil || !verified {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func bearerToken(r *http.Request) string {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"unauthorized"}` + "\n"))
}

// SetSessionCookie stores the session token in an HttpOnly cookie and a
// CSRF value derived from it in a script-readable one.
func SetSessionCookie(w http.ResponseWriter, token string, expiryHours int) {
	maxAge := expiryHours * 3600
	http.SetCookie(w, &http.Cookie{
		Name: SessionCookie, Value: token, Path: "/",
		HttpOnly: true, MaxAge: maxAge, SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name: CSRFCookie, Value: digest(token)[:32], Path: "/",
		MaxAge: maxAge, SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires both cookies.
func ClearSessionCookie(w http.ResponseWriter) {
	for _, name := range []string{SessionCookie, CSRFCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Path: "/", MaxAge: -1})
	}
}

// SessionTokenFromRequest returns the session cookie value, or "".
func SessionTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

type userKey struct{}

// UserFromContext returns the user RequireAPIKey admitted, or nil.
func UserFromContext(ctx context.Context) *db.User {
	u, _ := ctx.Value(userKey{}).(*db.User)
	return u
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
