package wizard

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWizard(t *testing.T, input string) (*Wizard, *bytes.Buffer, string) {
	t.Helper()
	envPath := filepath.Join(t.TempDir(), ".env")
	var out bytes.Buffer
	w := New(strings.NewReader(input), &out, envPath)
	w.portFree = func(p int) bool { return p != 8080 }
	w.pairTelegram = func(ctx context.Context, token string, lines <-chan string) (int64, string, error) {
		return 424242, "Ada", nil
	}
	return w, &out, envPath
}

func TestRun_WritesEnv(t *testing.T) {
	input := strings.Join([]string{
		"",             // port: default (first free)
		"",             // username: admin
		"short",        // password
		"short",        // confirm, rejected as too short
		"longpassword", // password
		"longpassword", // confirm
		"/srv/jeje",    // work dir
		"123:abc",      // telegram token
		"",             // Enter after pairing
		"7",            // retention
		"",             // confirm
	}, "\n") + "\n"

	w, out, envPath := newTestWizard(t, input)
	require.NoError(t, w.Run("test"))

	env, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, "8081", env["PORT"])
	assert.Equal(t, "admin", env["ADMIN_USERNAME"])
	assert.Equal(t, "longpassword", env["ADMIN_PASSWORD"])
	assert.Equal(t, "/srv/jeje", env["WORK_DIR"])
	assert.Equal(t, filepath.Join("/srv/jeje", "jejecipher.db"), env["DB_PATH"])
	assert.Equal(t, "424242", env["TELEGRAM_CHAT_ID"])
	assert.Equal(t, "7", env["HISTORY_RETENTION_DAYS"])
	assert.Equal(t, "0 0 3 * * *", env["PRUNE_CRON"])

	assert.Contains(t, out.String(), "Use at least 8 characters")
	assert.Contains(t, out.String(), "Paired with Ada")
}

func TestRun_Cancelled(t *testing.T) {
	input := strings.Join([]string{
		"9090", "", "longpassword", "longpassword", "", "", "", "n",
	}, "\n") + "\n"

	w, out, envPath := newTestWizard(t, input)
	require.NoError(t, w.Run("test"))

	_, err := os.Stat(envPath)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, out.String(), "Cancelled")
}

func TestStepPort_BusyPortNeedsConfirmation(t *testing.T) {
	w, out, _ := newTestWizard(t, "8080\nn\n8080\ny\n")
	port, err := w.stepPort()
	require.NoError(t, err)
	assert.Equal(t, "8080", port)
	assert.Equal(t, 2, strings.Count(out.String(), "Port 8080 is in use"))
}

func TestStepRetention_Validates(t *testing.T) {
	w, out, _ := newTestWizard(t, "-3\nforever\n90\n")
	days, err := w.stepRetention()
	require.NoError(t, err)
	assert.Equal(t, 90, days)
	assert.Contains(t, out.String(), "Enter a number between 0 and 3650")
}

func TestRun_EOF(t *testing.T) {
	w, _, _ := newTestWizard(t, "")
	assert.Error(t, w.Run("test"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "1234********wxyz", mask("1234567890:abcdwxyz"))
}

func TestPrintDashboardURLs(t *testing.T) {
	var out bytes.Buffer
	PrintDashboardURLs(&out, "8080")
	assert.Contains(t, out.String(), "http://localhost:8080")
}

func TestWriteEnv_QuotesSpecialCharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	a := &Answers{
		Port:          "8080",
		AdminUsername: "admin",
		AdminPassword: `abc'd"e #f`,
		WorkDir:       "/srv/jeje",
		RetentionDays: 30,
	}
	require.NoError(t, WriteEnv(path, a))

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, `abc'd"e #f`, env["ADMIN_PASSWORD"])
	assert.Equal(t, "", env["TELEGRAM_TOKEN"])
}
