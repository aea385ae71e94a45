// Package history keeps the SQLite-backed log of encode and decode calls.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/jejecipher/internal/db"
)

// ErrNotFound is returned when no transform matches a ref.
var ErrNotFound = errors.New("history: transform not found")

// Store wraps the database and provides history operations.
type Store struct {
	database *db.DB
}

// New creates a Store.
func New(database *db.DB) *Store {
	return &Store{database: database}
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Mode   string
	Source string
	Limit  int
	Page   int
}

// Stats summarizes the stored history.
type Stats struct {
	Total   int `json:"total"`
	Encoded int `json:"encoded"`
	Decoded int `json:"decoded"`
	Today   int `json:"today"`
}

const selectCols = `SELECT id, ref, mode, source, input, output, words, created_at FROM transforms`

// Record inserts a transform. A missing Ref gets a random UUID and a zero
// CreatedAt is set to now; both are written back into t.
func (s *Store) Record(ctx context.Context, t *db.Transform) (int64, error) {
	if t.Ref == "" {
		t.Ref = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.database.ExecContext(ctx, `
		INSERT INTO transforms (ref, mode, source, input, output, words, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		t.Ref, t.Mode, t.Source, t.Input, t.Output, t.Words, t.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("history.Record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history.Record: last insert id: %w", err)
	}
	t.ID = int(id)
	return id, nil
}

// Get fetches a transform by its public ref.
func (s *Store) Get(ctx context.Context, ref string) (*db.Transform, error) {
	var t db.Transform
	err := s.database.QueryRowContext(ctx, selectCols+` WHERE ref=?`, ref).Scan(
		&t.ID, &t.Ref, &t.Mode, &t.Source, &t.Input, &t.Output, &t.Words, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history.Get: %w", err)
	}
	return &t, nil
}

// List returns one page of transforms, newest first, with the total count
// matching the filter.
func (s *Store) List(ctx context.Context, f Filter) ([]db.Transform, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	where := " WHERE 1=1"
	var args []interface{}
	if f.Mode != "" {
		where += " AND mode=?"
		args = append(args, f.Mode)
	}
	if f.Source != "" {
		where += " AND source=?"
		args = append(args, f.Source)
	}

	var total int
	if err := s.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM transforms`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("history.List: count: %w", err)
	}

	rows, err := s.database.QueryContext(ctx,
		selectCols+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, (f.Page-1)*f.Limit)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("history.List: %w", err)
	}
	defer rows.Close()

	out, err := scanTransforms(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Delete removes one transform by ref.
func (s *Store) Delete(ctx context.Context, ref string) error {
	res, err := s.database.ExecContext(ctx, `DELETE FROM transforms WHERE ref=?`, ref)
	if err != nil {
		return fmt.Errorf("history.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune deletes every transform created before the cutoff and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.database.ExecContext(ctx,
		`DELETE FROM transforms WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("history.Prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history.Prune: rows affected: %w", err)
	}
	return n, nil
}

// Stats counts stored transforms per mode and since midnight UTC.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	err := s.database.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN mode='encode' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN mode='decode' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM transforms`, midnight,
	).Scan(&st.Total, &st.Encoded, &st.Decoded, &st.Today)
	if err != nil {
		return Stats{}, fmt.Errorf("history.Stats: %w", err)
	}
	return st, nil
}

func scanTransforms(rows *sql.Rows) ([]db.Transform, error) {
	var out []db.Transform
	for rows.Next() {
		var t db.Transform
		if err := rows.Scan(
			&t.ID, &t.Ref, &t.Mode, &t.Source, &t.Input, &t.Output, &t.Words, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("history.scanTransforms: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
