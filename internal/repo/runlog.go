package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// RunLogRepo persists per-unit run outcomes.
type RunLogRepo interface {
	// Insert appends an entry; RanAt defaults to now() when zero.
	Insert(ctx context.Context, e domain.RunLogEntry) error

	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.RunLogEntry, error)

	// Last returns the newest entry, or domain.ErrNotFound when the log is empty.
	Last(ctx context.Context) (domain.RunLogEntry, error)

	// PurgeOlderThan deletes entries logged strictly before cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type pgRunLogRepo struct {
	db db
}

// NewRunLogRepo constructs a RunLogRepo backed by the provided db connection.
func NewRunLogRepo(db db) RunLogRepo {
	return &pgRunLogRepo{db: db}
}

func (r *pgRunLogRepo) Insert(ctx context.Context, e domain.RunLogEntry) error {
	const q = `
		INSERT INTO run_log (ran_at, module, status, message)
		VALUES (COALESCE(@ran_at, now()), @module, @status, @message)`

	args := pgx.NamedArgs{
		"ran_at":  optTime(e.RanAt),
		"module":  e.Module,
		"status":  string(e.Status),
		"message": e.Message,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.RunLogRepo.Insert: %w", err)
	}
	return nil
}

func (r *pgRunLogRepo) ListRecent(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	const q = `
		SELECT id, ran_at, module, status, message
		FROM run_log
		ORDER BY id DESC
		LIMIT @limit`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("repo.RunLogRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	entries := []domain.RunLogEntry{}
	for rows.Next() {
		e, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.RunLogRepo.ListRecent: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.RunLogRepo.ListRecent: rows: %w", err)
	}
	return entries, nil
}

func (r *pgRunLogRepo) Last(ctx context.Context) (domain.RunLogEntry, error) {
	const q = `
		SELECT id, ran_at, module, status, message
		FROM run_log
		ORDER BY id DESC
		LIMIT 1`

	e, err := scanRunLog(r.db.QueryRow(ctx, q))
	if err != nil {
		return domain.RunLogEntry{}, fmt.Errorf("repo.RunLogRepo.Last: %w", err)
	}
	return e, nil
}

func (r *pgRunLogRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM run_log WHERE ran_at < @cutoff`, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("repo.RunLogRepo.PurgeOlderThan: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRunLog(s scanner) (domain.RunLogEntry, error) {
	var (
		e      domain.RunLogEntry
		status string
	)
	if err := s.Scan(&e.ID, &e.RanAt, &e.Module, &status, &e.Message); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RunLogEntry{}, domain.ErrNotFound
		}
		return domain.RunLogEntry{}, err
	}
	e.Status = domain.RunStatus(status)
	e.RanAt = e.RanAt.UTC()
	return e, nil
}
