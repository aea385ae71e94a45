package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/yourusername/jejecipher/internal/db"
)

// ErrInvalidOTP is returned for unknown, used or expired codes.
var ErrInvalidOTP = errors.New("auth: invalid or expired OTP")

const otpTTL = 5 * time.Minute

// GenerateOTP creates a 6-digit OTP for the user, stores it in DB with 5-min expiry.
func GenerateOTP(ctx context.Context, database *db.DB, userID int) (string, error) {
	_, err := database.ExecContext(ctx, `UPDATE twofa_otp SET used=1 WHERE user_id=? AND used=0`, userID)
	if err != nil {
		return "", fmt.Errorf("auth.GenerateOTP: invalidate old: %w", err)
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("auth.GenerateOTP: random: %w", err)
	}
	otp := fmt.Sprintf("%06d", n.Int64())

	_, err = database.ExecContext(ctx,
		`INSERT INTO twofa_otp (user_id, otp, used, expires_at) VALUES (?,?,0,?)`,
		userID, otp, time.Now().UTC().Add(otpTTL),
	)
	if err != nil {
		return "", fmt.Errorf("auth.GenerateOTP: insert: %w", err)
	}
	return otp, nil
}

// OTPMessage is the Telegram text carrying a login code.
func OTPMessage(otp string) string {
	return fmt.Sprintf("🔐 jejecipher login code: %s\n\nExpires in 5 minutes.", otp)
}

// VerifyOTP validates the OTP and marks the session as 2FA-verified.
func VerifyOTP(ctx context.Context, database *db.DB, userID int, otp, sessionToken string) error {
	var id int
	var expiresAt time.Time
	err := database.QueryRowContext(ctx,
		`SELECT id, expires_at FROM twofa_otp WHERE user_id=? AND otp=? AND used=0 LIMIT 1`,
		userID, otp,
	).Scan(&id, &expiresAt)
	if err != nil {
		return ErrInvalidOTP
	}
	if time.Now().After(expiresAt) {
		return ErrInvalidOTP
	}

	if _, err := database.ExecContext(ctx, `UPDATE twofa_otp SET used=1 WHERE id=?`, id); err != nil {
		return fmt.Errorf("auth.VerifyOTP: mark used: %w", err)
	}
	if err := markVerified(ctx, database, sessionToken); err != nil {
		return fmt.Errorf("auth.VerifyOTP: update session: %w", err)
	}
	return nil
}
