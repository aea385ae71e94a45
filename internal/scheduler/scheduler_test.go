package scheduler

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/history"
	"github.com/yourusername/jejecipher/internal/notify"
	"github.com/yourusername/jejecipher/internal/transform"
	"github.com/yourusername/jejecipher/internal/ws"
)

type recorder struct {
	mu     sync.Mutex
	msgs   []ws.Message
	events []string
}

func (r *recorder) Broadcast(m ws.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) Announce(event string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	database *db.DB
	store    *history.Store
	rec      *recorder
	engine   *Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "scheduler_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	store := history.New(database)
	svc := transform.New(zap.NewNop(), store, nil, nil, transform.Options{})
	rec := &recorder{}
	return &fixture{
		database: database,
		store:    store,
		rec:      rec,
		engine:   New(zap.NewNop(), database, svc, store, rec, rec, opts),
	}
}

func (f *fixture) addSchedule(t *testing.T, name, expr, mode, text string, enabled bool) int {
	t.Helper()
	res, err := f.database.Exec(
		`INSERT INTO schedules (name, cron_expr, mode, text, enabled) VALUES (?,?,?,?,?)`,
		name, expr, mode, text, enabled)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func TestValidateExpr(t *testing.T) {
	assert.NoError(t, ValidateExpr("0 0 3 * * *"))
	assert.NoError(t, ValidateExpr("@hourly"))
	assert.Error(t, ValidateExpr("0 3 * *"))
	assert.Error(t, ValidateExpr("not a cron"))
}

func TestFire(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.addSchedule(t, "greeting", "@daily", db.ModeEncode, "cat", true)

	res, err := f.engine.Fire(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "7~4₵(C)", res.Output)

	got, err := f.store.Get(context.Background(), res.Ref)
	require.NoError(t, err)
	assert.Equal(t, transform.SourceSchedule, got.Source)

	var lastRun sql.NullTime
	require.NoError(t, f.database.QueryRow(`SELECT last_run FROM schedules WHERE id=?`, id).Scan(&lastRun))
	assert.True(t, lastRun.Valid)

	require.Len(t, f.rec.msgs, 1)
	assert.Equal(t, ws.TypeScheduleFired, f.rec.msgs[0].Type)
	assert.Equal(t, []string{notify.EventScheduleFired}, f.rec.events)

	_, err = f.engine.Fire(context.Background(), 999)
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.store.Record(ctx, &db.Transform{
		Mode: db.ModeEncode, Source: "api", Input: "old", Output: "x",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = f.store.Record(ctx, &db.Transform{Mode: db.ModeEncode, Source: "api", Input: "new", Output: "y"})
	require.NoError(t, err)

	n, err := f.engine.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{notify.EventHistoryPruned}, f.rec.events)
	require.Len(t, f.rec.msgs, 1)
	assert.Equal(t, ws.TypeHistoryPruned, f.rec.msgs[0].Type)

	// nothing left to remove: broadcast but no announcement
	n, err = f.engine.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.rec.events, 1)
}

func TestStart_RunsEnabledSchedules(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, Options{PruneCron: "0 0 3 * * *", Retention: 24 * time.Hour})
	on := f.addSchedule(t, "every second", "* * * * * *", db.ModeDecode, "~0()(C)", true)
	off := f.addSchedule(t, "disabled", "* * * * * *", db.ModeDecode, "~0()(C)", false)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.engine.Start(ctx))
	assert.True(t, f.engine.Active(on))
	assert.False(t, f.engine.Active(off))

	var nextRun sql.NullTime
	require.NoError(t, f.database.QueryRow(`SELECT next_run FROM schedules WHERE id=?`, on).Scan(&nextRun))
	assert.True(t, nextRun.Valid)

	assert.Eventually(t, func() bool { return f.rec.eventCount() > 0 }, 3*time.Second, 50*time.Millisecond)

	f.engine.RemoveJob(on)
	assert.False(t, f.engine.Active(on))

	require.NoError(t, f.engine.AddJob(ctx, off))
	assert.True(t, f.engine.Active(off))

	cancel()
	f.engine.Wait()

	// The pool's connection opener exits only on Close; cleanups run after
	// the leak check.
	require.NoError(t, f.database.Close())
}

func TestStart_BadPruneCron(t *testing.T) {
	f := newFixture(t, Options{PruneCron: "bogus", Retention: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Error(t, f.engine.Start(ctx))
}
