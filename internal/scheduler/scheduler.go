// Package scheduler wraps robfig/cron to run saved transforms on a schedule
// and to prune old history.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/notify"
	"github.com/yourusername/jejecipher/internal/transform"
	"github.com/yourusername/jejecipher/internal/ws"
)

// Runner performs a transform.
type Runner interface {
	Run(ctx context.Context, mode string, req transform.Request) (*transform.Result, error)
}

// Pruner deletes history older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Broadcaster pushes live messages.
type Broadcaster interface {
	Broadcast(msg ws.Message)
}

// Announcer receives schedule and retention events.
type Announcer interface {
	Announce(event string, payload interface{})
}

// Options configures the built-in retention job. An empty PruneCron or a
// zero Retention disables it.
type Options struct {
	PruneCron string
	Retention time.Duration
}

var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateExpr reports whether expr is a valid six-field cron expression
// (or a descriptor such as "@hourly").
func ValidateExpr(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("scheduler.ValidateExpr: %w", err)
	}
	return nil
}

// Fired is the payload sent when a schedule runs.
type Fired struct {
	ScheduleID int               `json:"schedule_id"`
	Name       string            `json:"name"`
	Result     *transform.Result `json:"result"`
}

func (f Fired) String() string {
	return fmt.Sprintf("%s: %s", f.Name, f.Result.Output)
}

// Pruned is the payload sent after a retention run.
type Pruned struct {
	Before  time.Time `json:"before"`
	Deleted int64     `json:"deleted"`
}

func (p Pruned) String() string {
	return fmt.Sprintf("removed %d transforms older than %s", p.Deleted, p.Before.Format(time.RFC3339))
}

// Engine manages the cron scheduler.
type Engine struct {
	log      *zap.Logger
	cron     *cron.Cron
	database *db.DB
	runner   Runner
	pruner   Pruner
	hub      Broadcaster
	notifier Announcer
	opts     Options

	mu      sync.Mutex
	entries map[int]cron.EntryID
	stopped chan struct{}
}

// New creates a new cron-based Engine. hub and notifier may be nil.
func New(log *zap.Logger, database *db.DB, runner Runner, pruner Pruner, hub Broadcaster, notifier Announcer, opts Options) *Engine {
	log = log.Named("scheduler")
	cl := cronLogger{log.Sugar()}
	return &Engine{
		log: log,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		database: database,
		runner:   runner,
		pruner:   pruner,
		hub:      hub,
		notifier: notifier,
		opts:     opts,
		entries:  make(map[int]cron.EntryID),
		stopped:  make(chan struct{}),
	}
}

// Start loads all enabled schedules, registers the retention job and starts
// the cron engine. The engine stops when ctx is cancelled; Wait blocks until
// running jobs have finished.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.LoadSchedules(ctx); err != nil {
		return fmt.Errorf("scheduler.Start: %w", err)
	}
	if e.opts.PruneCron != "" && e.opts.Retention > 0 && e.pruner != nil {
		_, err := e.cron.AddFunc(e.opts.PruneCron, func() {
			before := time.Now().UTC().Add(-e.opts.Retention)
			if _, err := e.Prune(context.Background(), before); err != nil {
				e.log.Error("retention prune", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("scheduler.Start: prune job: %w", err)
		}
	}
	e.cron.Start()
	go func() {
		<-ctx.Done()
		<-e.cron.Stop().Done()
		close(e.stopped)
	}()
	return nil
}

// Wait blocks until the engine has stopped after Start's context ended.
func (e *Engine) Wait() {
	<-e.stopped
}

// LoadSchedules loads all enabled schedules from the DB and registers cron jobs.
func (e *Engine) LoadSchedules(ctx context.Context) error {
	rows, err := e.database.QueryContext(ctx,
		`SELECT id, name, cron_expr, mode, text FROM schedules WHERE enabled=1`)
	if err != nil {
		return fmt.Errorf("scheduler.LoadSchedules: %w", err)
	}
	var list []db.Schedule
	for rows.Next() {
		var s db.Schedule
		if err := rows.Scan(&s.ID, &s.Name, &s.CronExpr, &s.Mode, &s.Text); err != nil {
			e.log.Warn("scan schedule", zap.Error(err))
			continue
		}
		list = append(list, s)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("scheduler.LoadSchedules: %w", err)
	}

	for _, s := range list {
		if err := e.addJob(s); err != nil {
			e.log.Warn("add job", zap.Int("schedule_id", s.ID), zap.Error(err))
		}
	}
	return nil
}

// AddJob registers a schedule in the cron engine, replacing any existing
// entry for the same id.
func (e *Engine) AddJob(ctx context.Context, scheduleID int) error {
	s, err := e.load(ctx, scheduleID)
	if err != nil {
		return fmt.Errorf("scheduler.AddJob: %w", err)
	}
	e.RemoveJob(scheduleID)
	return e.addJob(*s)
}

// RemoveJob deregisters a schedule from the cron engine.
func (e *Engine) RemoveJob(scheduleID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entryID, ok := e.entries[scheduleID]; ok {
		e.cron.Remove(entryID)
		delete(e.entries, scheduleID)
	}
}

// Active reports whether a schedule currently has a cron entry.
func (e *Engine) Active(scheduleID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[scheduleID]
	return ok
}

// Fire runs a schedule immediately, regardless of its cron expression.
func (e *Engine) Fire(ctx context.Context, scheduleID int) (*transform.Result, error) {
	s, err := e.load(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("scheduler.Fire: %w", err)
	}
	return e.fire(ctx, *s)
}

// Prune removes history older than before and announces the result.
func (e *Engine) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := e.pruner.Prune(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("scheduler.Prune: %w", err)
	}
	p := Pruned{Before: before.UTC(), Deleted: n}
	e.log.Info("history pruned", zap.Int64("deleted", n), zap.Time("before", p.Before))
	e.database.WriteLog("info", "scheduler", p.String())
	if e.hub != nil {
		e.hub.Broadcast(ws.Message{
			Type:      ws.TypeHistoryPruned,
			Message:   p.String(),
			Data:      p,
			Timestamp: time.Now().UTC(),
		})
	}
	if e.notifier != nil && n > 0 {
		e.notifier.Announce(notify.EventHistoryPruned, p)
	}
	return n, nil
}

func (e *Engine) load(ctx context.Context, scheduleID int) (*db.Schedule, error) {
	var s db.Schedule
	err := e.database.QueryRowContext(ctx,
		`SELECT id, name, cron_expr, mode, text FROM schedules WHERE id=?`, scheduleID,
	).Scan(&s.ID, &s.Name, &s.CronExpr, &s.Mode, &s.Text)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (e *Engine) addJob(s db.Schedule) error {
	entryID, err := e.cron.AddFunc(s.CronExpr, func() {
		if _, err := e.fire(context.Background(), s); err != nil {
			e.log.Error("schedule run", zap.Int("schedule_id", s.ID), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler.addJob: parse cron: %w", err)
	}
	e.mu.Lock()
	e.entries[s.ID] = entryID
	e.mu.Unlock()
	e.updateNextRun(s.ID)
	return nil
}

func (e *Engine) fire(ctx context.Context, s db.Schedule) (*transform.Result, error) {
	res, err := e.runner.Run(ctx, s.Mode, transform.Request{Text: s.Text, Source: transform.SourceSchedule})
	if err != nil {
		e.database.WriteLog("error", "scheduler", fmt.Sprintf("schedule %q: %v", s.Name, err))
		return nil, err
	}
	_, _ = e.database.ExecContext(ctx,
		`UPDATE schedules SET last_run=? WHERE id=?`, time.Now().UTC(), s.ID)
	e.updateNextRun(s.ID)

	f := Fired{ScheduleID: s.ID, Name: s.Name, Result: res}
	if e.hub != nil {
		e.hub.Broadcast(ws.Message{
			Type:      ws.TypeScheduleFired,
			Ref:       res.Ref,
			Message:   s.Name,
			Data:      f,
			Timestamp: time.Now().UTC(),
		})
	}
	if e.notifier != nil {
		e.notifier.Announce(notify.EventScheduleFired, f)
	}
	return res, nil
}

func (e *Engine) updateNextRun(scheduleID int) {
	e.mu.Lock()
	entryID, ok := e.entries[scheduleID]
	e.mu.Unlock()
	if !ok {
		return
	}
	entry := e.cron.Entry(entryID)
	next := entry.Next
	if next.IsZero() && entry.Schedule != nil {
		// Entries added before Start have no Next yet.
		next = entry.Schedule.Next(time.Now())
	}
	if !next.IsZero() {
		_, _ = e.database.Exec(
			`UPDATE schedules SET next_run=? WHERE id=?`, next.UTC(), scheduleID)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
