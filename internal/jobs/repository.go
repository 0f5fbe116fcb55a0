package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/heimdex/vidtopics/internal/db"
)

const defaultListLimit = 50

type Repository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, opts ListOptions) ([]*Job, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	UpdateProgress(ctx context.Context, id string, progress, total int, message string) error
	SetResult(ctx context.Context, id, result string) error
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: conn, now: time.Now}
}

const jobColumns = `id, type, status, project, user_id, target, progress, total, message, error, result, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, j *Job) error {
	now := r.now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = StatusPending
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Type, j.Status, j.Project, j.User, j.Target, j.Progress, j.Total, j.Message, j.Error, j.Result,
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// List returns the newest jobs first.
func (r *SQLiteRepository) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	var where []string
	var args []any
	if opts.Project != "" {
		where = append(where, "project = ?")
		args = append(args, opts.Project)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	return r.update(ctx, id, "status = ?, error = ?", status, errMsg)
}

func (r *SQLiteRepository) UpdateProgress(ctx context.Context, id string, progress, total int, message string) error {
	return r.update(ctx, id, "progress = ?, total = ?, message = ?", progress, total, message)
}

func (r *SQLiteRepository) SetResult(ctx context.Context, id, result string) error {
	return r.update(ctx, id, "result = ?", result)
}

func (r *SQLiteRepository) update(ctx context.Context, id, set string, args ...any) error {
	args = append(args, formatTime(r.now().UTC()), id)
	res, err := r.db.ExecContext(ctx, `UPDATE jobs SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var j Job
	var createdAt, updatedAt string
	err := s.Scan(&j.ID, &j.Type, &j.Status, &j.Project, &j.User, &j.Target, &j.Progress, &j.Total,
		&j.Message, &j.Error, &j.Result, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.CreatedAt, _ = time.Parse(db.TimeLayout, createdAt)
	j.UpdatedAt, _ = time.Parse(db.TimeLayout, updatedAt)
	return &j, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}
