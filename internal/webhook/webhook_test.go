package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/db"
)

func newDispatcher(t *testing.T) (*Dispatcher, *db.DB) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "jejecipher_test_webhook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	d := New(database, zap.NewNop())
	d.delays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return d, database
}

type received struct {
	mu        sync.Mutex
	payloads  []Payload
	signature string
}

func (r *received) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var p Payload
		_ = json.Unmarshal(body, &p)
		r.mu.Lock()
		r.payloads = append(r.payloads, p)
		r.signature = req.Header.Get(SignatureHeader)
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

func TestFire_DeliversMatchingEvents(t *testing.T) {
	d, database := newDispatcher(t)
	rec := &received{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	defer srv.Close()

	_, err := database.Exec(`INSERT INTO webhooks (name, url, events, secret, enabled) VALUES
		('all', ?, '', 's3cret', 1),
		('encode only', ?, 'transform.encoded', '', 1),
		('decode only', ?, 'transform.decoded', '', 1),
		('disabled', ?, '', '', 0)`, srv.URL, srv.URL, srv.URL, srv.URL)
	require.NoError(t, err)

	d.Fire("transform.encoded", map[string]string{"output": "7~4₵(C)"})
	d.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.payloads, 2)
	for _, p := range rec.payloads {
		assert.Equal(t, "transform.encoded", p.Event)
	}

	var status int
	require.NoError(t, database.QueryRow(`SELECT last_status FROM webhooks WHERE name='all'`).Scan(&status))
	assert.Equal(t, http.StatusOK, status)
}

func TestFire_RetriesAndRecordsFailure(t *testing.T) {
	d, database := newDispatcher(t)
	rec := &received{}
	srv := httptest.NewServer(rec.handler(http.StatusBadGateway))
	defer srv.Close()

	_, err := database.Exec(`INSERT INTO webhooks (name, url) VALUES ('flaky', ?)`, srv.URL)
	require.NoError(t, err)

	d.Fire("history.pruned", 3)
	d.Wait()

	rec.mu.Lock()
	assert.Len(t, rec.payloads, 3, "three attempts before giving up")
	rec.mu.Unlock()

	var status int
	require.NoError(t, database.QueryRow(`SELECT last_status FROM webhooks WHERE name='flaky'`).Scan(&status))
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestNew_ThreeAttempts(t *testing.T) {
	d := New(nil, zap.NewNop())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, d.delays)
}

func TestFire_ClosedDatabase(t *testing.T) {
	d, database := newDispatcher(t)
	require.NoError(t, database.Close())
	assert.NotPanics(t, func() {
		d.Fire("transform.encoded", nil)
		d.Wait()
	})
}

func TestTestWebhook_Signed(t *testing.T) {
	d, database := newDispatcher(t)
	var body []byte
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		sig = r.Header.Get(SignatureHeader)
	}))
	defer srv.Close()

	res, err := database.Exec(`INSERT INTO webhooks (name, url, secret) VALUES ('signed', ?, 'k')`, srv.URL)
	require.NoError(t, err)
	id, _ := res.LastInsertId()

	require.NoError(t, d.TestWebhook(context.Background(), int(id)))
	assert.Equal(t, Sign("k", body), sig)

	assert.Error(t, d.TestWebhook(context.Background(), 9999))
}

func TestMatchesEvent(t *testing.T) {
	assert.True(t, matchesEvent("transform.encoded, schedule.fired", "schedule.fired"))
	assert.True(t, matchesEvent("transform.*", "transform.decoded"))
	assert.True(t, matchesEvent("*", "history.pruned"))
	assert.False(t, matchesEvent("transform.encoded", "transform.decoded"))
	assert.False(t, matchesEvent("transform.*", "schedule.fired"))
}
