package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/montygracey/mediaconverter/internal/core/job"
)

// JobStore is the Postgres-backed job.Store.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

var _ job.Store = (*JobStore)(nil)

func (s *JobStore) Create(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversions (id, owner_id, url, source, format, status, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		j.ID, j.OwnerID, j.URL, j.Source, j.Format, j.Status, j.Title, j.CreatedAt,
	)
	return err
}

const jobColumns = `id, owner_id, url, source, format, status, title, COALESCE(artifact_ref, ''), created_at`

func scanJob(row pgx.Row) (*job.Job, error) {
	var j job.Job
	err := row.Scan(&j.ID, &j.OwnerID, &j.URL, &j.Source, &j.Format, &j.Status, &j.Title, &j.ArtifactRef, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

// Get enforces ownership in the query itself so a foreign job reads exactly
// like a missing one.
func (s *JobStore) Get(ctx context.Context, id, ownerID string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM conversions WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	return scanJob(row)
}

func (s *JobStore) ListByOwner(ctx context.Context, ownerID string) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM conversions WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateTerminal is the guarded write: the row only changes while it is
// still processing, so a duplicate or late callback is a reported no-op.
func (s *JobStore) UpdateTerminal(ctx context.Context, id string, status job.Status, title, artifactRef string) error {
	if !status.Terminal() {
		return fmt.Errorf("non-terminal status %q", status)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE conversions
		SET status = $2, title = $3, artifact_ref = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`,
		id, status, title, artifactRef,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing updated: distinguish a terminal row from a missing one.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversions WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return job.ErrAlreadyTerminal
	}
	return job.ErrNotFound
}

func (s *JobStore) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversions WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (s *JobStore) Counts(ctx context.Context, ownerID string) (job.Counts, error) {
	var c job.Counts
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*)
		FROM conversions WHERE owner_id = $1`,
		ownerID,
	).Scan(&c.Processing, &c.Completed, &c.Failed, &c.Total)
	return c, err
}
