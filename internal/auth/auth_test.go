package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/jejecipher/internal/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "auth_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return database
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword("hunter2", hash))
	assert.False(t, CheckPassword("hunter3", hash))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	require.NoError(t, SeedAdmin(ctx, database, "admin", "secret"))
	// second seed is a no-op
	require.NoError(t, SeedAdmin(ctx, database, "other", "secret"))

	_, _, err := Login(ctx, database, "admin", "wrong", 1)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = Login(ctx, database, "other", "secret", 1)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, userID, err := Login(ctx, database, "admin", "secret", 1)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	user, verified, err := ValidateSession(ctx, database, token)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.False(t, verified)

	require.NoError(t, MarkSessionVerified(ctx, database, token))
	_, verified, err = ValidateSession(ctx, database, token)
	require.NoError(t, err)
	assert.True(t, verified)

	require.NoError(t, Logout(ctx, database, token))
	_, _, err = ValidateSession(ctx, database, token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestOTP(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	require.NoError(t, SeedAdmin(ctx, database, "admin", "secret"))
	token, userID, err := Login(ctx, database, "admin", "secret", 1)
	require.NoError(t, err)

	otp, err := GenerateOTP(ctx, database, userID)
	require.NoError(t, err)
	assert.Len(t, otp, 6)
	assert.Contains(t, OTPMessage(otp), otp)

	assert.ErrorIs(t, VerifyOTP(ctx, database, userID, "nope", token), ErrInvalidOTP)
	require.NoError(t, VerifyOTP(ctx, database, userID, otp, token))
	// codes are single use
	assert.ErrorIs(t, VerifyOTP(ctx, database, userID, otp, token), ErrInvalidOTP)

	_, verified, err := ValidateSession(ctx, database, token)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestThrottle(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	throttle := NewThrottle(3, 15)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, throttle.Record(ctx, database, "10.0.0.1", false, now.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, throttle.Record(ctx, database, "10.0.0.2", false, now))

	wait, err := throttle.RetryAfter(ctx, database, "10.0.0.1", now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, wait, "first failure leaves the window at +15m")

	wait, err = throttle.RetryAfter(ctx, database, "10.0.0.2", now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, wait)

	// Once the oldest failure ages out the address is let back in.
	wait, err = throttle.RetryAfter(ctx, database, "10.0.0.1", now.Add(15*time.Minute+time.Second))
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestThrottle_SuccessResetsCount(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	throttle := NewThrottle(2, 15)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	require.NoError(t, throttle.Record(ctx, database, "10.0.0.1", false, now))
	require.NoError(t, throttle.Record(ctx, database, "10.0.0.1", true, now.Add(time.Second)))
	require.NoError(t, throttle.Record(ctx, database, "10.0.0.1", false, now.Add(2*time.Second)))

	wait, err := throttle.RetryAfter(ctx, database, "10.0.0.1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestPruneAttempts(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	throttle := NewThrottle(5, 15)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	require.NoError(t, throttle.Record(ctx, database, "10.0.0.1", false, now.Add(-25*time.Hour)))
	require.NoError(t, throttle.Record(ctx, database, "10.0.0.1", false, now.Add(-time.Hour)))

	n, err := PruneAttempts(ctx, database, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSessionTokenIsNotStored(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	require.NoError(t, SeedAdmin(ctx, database, "admin", "secret"))
	token, _, err := Login(ctx, database, "admin", "secret", 1)
	require.NoError(t, err)

	var stored string
	require.NoError(t, database.QueryRow(`SELECT token_hash FROM sessions`).Scan(&stored))
	assert.NotEqual(t, token, stored)
	assert.Equal(t, digest(token), stored)
}

func TestValidateSession_Expired(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	require.NoError(t, SeedAdmin(ctx, database, "admin", "secret"))
	token, _, err := Login(ctx, database, "admin", "secret", 0)
	require.NoError(t, err)

	_, _, err = ValidateSession(ctx, database, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	assert.Zero(t, n, "expired sessions are removed")
}

func TestRequireAPIKey(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	require.NoError(t, SeedAdmin(ctx, database, "admin", "secret"))
	token, _, err := Login(ctx, database, "admin", "secret", 1)
	require.NoError(t, err)

	h := RequireAPIKey(database, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserFromContext(r.Context()).Username))
	}))

	do := func(setup func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		setup(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do(func(*http.Request) {})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	// 2FA not completed yet
	assert.Equal(t, http.StatusUnauthorized, do(func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}).Code)

	require.NoError(t, MarkSessionVerified(ctx, database, token))
	rec = do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())

	rec = do(func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) })
	assert.Equal(t, http.StatusOK, rec.Code)
}
