package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/jejecipher/internal/db"
)

// attemptRetention is how long login attempts are kept at all.
const attemptRetention = 24 * time.Hour

// Throttle locks out a client address after too many failed logins.
// Failures count only inside Window and only since the address last
// logged in successfully.
type Throttle struct {
	MaxFailures int
	Window      time.Duration
}

// NewThrottle builds a Throttle from the BRUTE_FORCE_* settings.
func NewThrottle(maxFailures, blockMinutes int) Throttle {
	return Throttle{MaxFailures: maxFailures, Window: time.Duration(blockMinutes) * time.Minute}
}

// Record stores one login attempt for ip at now.
func (t Throttle) Record(ctx context.Context, database *db.DB, ip string, success bool, now time.Time) error {
	ok := 0
	if success {
		ok = 1
	}
	if _, err := database.ExecContext(ctx,
		`INSERT INTO login_attempts (ip, success, created_at) VALUES (?,?,?)`,
		ip, ok, now.UTC(),
	); err != nil {
		return fmt.Errorf("auth.Throttle.Record: %w", err)
	}
	return nil
}

// RetryAfter returns zero when ip may try to log in at now. Otherwise it
// returns how long until enough counted failures age out of the window.
func (t Throttle) RetryAfter(ctx context.Context, database *db.DB, ip string, now time.Time) (time.Duration, error) {
	if t.MaxFailures <= 0 {
		return 0, nil
	}
	const counted = `
		FROM login_attempts
		WHERE ip=? AND success=0 AND created_at > ?
		  AND created_at > COALESCE(
		      (SELECT MAX(created_at) FROM login_attempts WHERE ip=? AND success=1), '')`
	since := now.UTC().Add(-t.Window)

	var failures int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*)`+counted, ip, since, ip).Scan(&failures); err != nil {
		return 0, fmt.Errorf("auth.Throttle.RetryAfter: count: %w", err)
	}
	if failures < t.MaxFailures {
		return 0, nil
	}

	// The lockout lifts once the failure that tipped the count over ages out.
	var oldest time.Time
	err := database.QueryRowContext(ctx,
		`SELECT created_at`+counted+` ORDER BY created_at LIMIT 1 OFFSET ?`,
		ip, since, ip, failures-t.MaxFailures,
	).Scan(&oldest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("auth.Throttle.RetryAfter: oldest: %w", err)
	}
	wait := oldest.Add(t.Window).Sub(now).Round(time.Second)
	if wait < time.Second {
		wait = time.Second
	}
	return wait, nil
}

// PruneAttempts drops attempts older than a day and returns how many went.
func PruneAttempts(ctx context.Context, database *db.DB, now time.Time) (int64, error) {
	res, err := database.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE created_at < ?`, now.UTC().Add(-attemptRetention))
	if err != nil {
		return 0, fmt.Errorf("auth.PruneAttempts: %w", err)
	}
	return res.RowsAffected()
}
