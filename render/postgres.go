package render

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"wawbook/config"
)

// PostgresStore is the shared multi-worker queue backend. Claiming relies on
// FOR UPDATE SKIP LOCKED so concurrent workers never block on or double-claim
// one row.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS render_jobs (
	id              TEXT PRIMARY KEY,
	book_id         TEXT NOT NULL,
	context         TEXT NOT NULL,
	dedication_only BOOLEAN NOT NULL DEFAULT FALSE,
	priority        INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	progress        INTEGER NOT NULL DEFAULT 0,
	page_count      INTEGER NOT NULL DEFAULT 0,
	pages           TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	worker          TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	started_at      TIMESTAMPTZ,
	finished_at     TIMESTAMPTZ,
	expires_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS render_jobs_claim ON render_jobs (status, priority DESC, created_at ASC);
`

// NewPostgresStore connects and makes sure the job table exists.
func NewPostgresStore(ctx context.Context, cfg *config.PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, string(cfg.Password), cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to job database: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing job database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Enqueue(ctx context.Context, job *Job) error {
	pctx, err := marshalContext(&job.Context)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO render_jobs (id, book_id, context, dedication_only, priority, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.BookID, pctx, job.DedicationOnly, job.Priority,
		string(StatusPending), job.CreatedAt, job.ExpiresAt)
	return err
}

func (s *PostgresStore) Claim(ctx context.Context, worker string, staleAfter time.Duration) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE render_jobs
		 SET status = $1, worker = $2, started_at = now()
		 WHERE id = (
			SELECT id FROM render_jobs
			WHERE status = $3 OR (status = $1 AND started_at < now() - $4 * interval '1 second')
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1)
		 RETURNING id, book_id, context, dedication_only, priority, status, progress,
			page_count, pages, error, worker, created_at, started_at, finished_at, expires_at`,
		string(StatusProcessing), worker, string(StatusPending), int(staleAfter.Seconds()))

	job, err := scanPostgresJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, progress, pageCount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs SET progress = $1, page_count = $2 WHERE id = $3`,
		progress, pageCount, id)
	return err
}

func (s *PostgresStore) Complete(ctx context.Context, id string, pages map[int]string) error {
	payload, err := marshalPages(pages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE render_jobs SET status = $1, pages = $2, finished_at = now() WHERE id = $3`,
		string(StatusCompleted), payload, id)
	return err
}

func (s *PostgresStore) Fail(ctx context.Context, id string, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs SET status = $1, error = $2, finished_at = now() WHERE id = $3`,
		string(StatusFailed), errMsg, id)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, book_id, context, dedication_only, priority, status, progress,
			page_count, pages, error, worker, created_at, started_at, finished_at, expires_at
		 FROM render_jobs WHERE id = $1`, id)

	job, err := scanPostgresJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return job, err
}

func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM render_jobs WHERE status IN ($1, $2) AND expires_at IS NOT NULL AND expires_at < $3`,
		string(StatusCompleted), string(StatusFailed), now)
	if err != nil {
		return 0, fmt.Errorf("sweeping jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanPostgresJob(row *sql.Row) (*Job, error) {
	var (
		job        Job
		pctx       string
		payload    string
		status     string
		startedAt  sql.NullTime
		finishedAt sql.NullTime
		expiresAt  sql.NullTime
	)
	err := row.Scan(&job.ID, &job.BookID, &pctx, &job.DedicationOnly, &job.Priority,
		&status, &job.Progress, &job.PageCount, &payload, &job.Error, &job.Worker,
		&job.CreatedAt, &startedAt, &finishedAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.StartedAt = startedAt.Time
	job.FinishedAt = finishedAt.Time
	job.ExpiresAt = expiresAt.Time
	if err := unmarshalContext(pctx, &job.Context); err != nil {
		return nil, err
	}
	if job.Pages, err = unmarshalPages(payload); err != nil {
		return nil, err
	}
	return &job, nil
}
