package render

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SqliteStore is the embedded single-node queue backend.
type SqliteStore struct {
	pool *sqlitex.Pool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS render_jobs (
	id              TEXT PRIMARY KEY,
	book_id         TEXT NOT NULL,
	context         TEXT NOT NULL,
	dedication_only INTEGER NOT NULL DEFAULT 0,
	priority        INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	progress        INTEGER NOT NULL DEFAULT 0,
	page_count      INTEGER NOT NULL DEFAULT 0,
	pages           TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	worker          TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	started_at      INTEGER NOT NULL DEFAULT 0,
	finished_at     INTEGER NOT NULL DEFAULT 0,
	expires_at      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS render_jobs_claim ON render_jobs (status, priority DESC, created_at ASC);
`

// NewSqliteStore opens (creating when necessary) the job database. An empty
// path gives a shared in-memory database, used by tests.
func NewSqliteStore(path string) (*SqliteStore, error) {
	uri := "file:" + path
	if len(path) == 0 {
		uri = "file::memory:?mode=memory&cache=shared"
	}
	pool, err := sqlitex.NewPool(uri, sqlitex.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}
	s := &SqliteStore{pool: pool}
	if err := s.init(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteStore) init(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("initializing job database: %w", err)
	}
	defer s.pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("initializing job database: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.pool.Close()
}

func (s *SqliteStore) Enqueue(ctx context.Context, job *Job) error {
	pctx, err := marshalContext(&job.Context)
	if err != nil {
		return err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return sqlitex.Execute(conn,
		`INSERT INTO render_jobs (id, book_id, context, dedication_only, priority, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			job.ID, job.BookID, pctx, boolToInt(job.DedicationOnly), job.Priority,
			string(StatusPending), job.CreatedAt.Unix(), job.ExpiresAt.Unix(),
		}})
}

// Claim atomically selects and marks one eligible job. Eligible means
// pending, or processing with a stale start timestamp. The pool serializes
// writers, so a single UPDATE..RETURNING is the whole claiming transaction.
func (s *SqliteStore) Claim(ctx context.Context, worker string, staleAfter time.Duration) (*Job, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	now := time.Now().UTC()
	staleBefore := now.Add(-staleAfter).Unix()

	var job *Job
	err = sqlitex.Execute(conn,
		`UPDATE render_jobs
		 SET status = ?, worker = ?, started_at = ?
		 WHERE id = (
			SELECT id FROM render_jobs
			WHERE status = ? OR (status = ? AND started_at < ?)
			ORDER BY priority DESC, created_at ASC
			LIMIT 1)
		 RETURNING id, book_id, context, dedication_only, priority, status, progress,
			page_count, pages, error, worker, created_at, started_at, finished_at, expires_at`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(StatusProcessing), worker, now.Unix(),
				string(StatusPending), string(StatusProcessing), staleBefore,
			},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				j, err := scanSqliteJob(stmt)
				if err != nil {
					return err
				}
				job = j
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return job, nil
}

func (s *SqliteStore) UpdateProgress(ctx context.Context, id string, progress, pageCount int) error {
	return s.exec(ctx,
		`UPDATE render_jobs SET progress = ?, page_count = ? WHERE id = ?`,
		progress, pageCount, id)
}

func (s *SqliteStore) Complete(ctx context.Context, id string, pages map[int]string) error {
	payload, err := marshalPages(pages)
	if err != nil {
		return err
	}
	return s.exec(ctx,
		`UPDATE render_jobs SET status = ?, pages = ?, finished_at = ? WHERE id = ?`,
		string(StatusCompleted), payload, time.Now().UTC().Unix(), id)
}

func (s *SqliteStore) Fail(ctx context.Context, id string, errMsg string) error {
	return s.exec(ctx,
		`UPDATE render_jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(StatusFailed), errMsg, time.Now().UTC().Unix(), id)
}

func (s *SqliteStore) Get(ctx context.Context, id string) (*Job, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var job *Job
	err = sqlitex.Execute(conn,
		`SELECT id, book_id, context, dedication_only, priority, status, progress,
			page_count, pages, error, worker, created_at, started_at, finished_at, expires_at
		 FROM render_jobs WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				j, err := scanSqliteJob(stmt)
				if err != nil {
					return err
				}
				job = j
				return nil
			},
		})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

func (s *SqliteStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM render_jobs WHERE status IN (?, ?) AND expires_at > 0 AND expires_at < ?`,
		&sqlitex.ExecOptions{Args: []any{
			string(StatusCompleted), string(StatusFailed), now.Unix(),
		}})
	if err != nil {
		return 0, fmt.Errorf("sweeping jobs: %w", err)
	}
	return conn.Changes(), nil
}

func (s *SqliteStore) exec(ctx context.Context, query string, args ...any) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
}

func scanSqliteJob(stmt *sqlite.Stmt) (*Job, error) {
	job := &Job{
		ID:             stmt.ColumnText(0),
		BookID:         stmt.ColumnText(1),
		DedicationOnly: stmt.ColumnInt64(3) != 0,
		Priority:       int(stmt.ColumnInt64(4)),
		Status:         Status(stmt.ColumnText(5)),
		Progress:       int(stmt.ColumnInt64(6)),
		PageCount:      int(stmt.ColumnInt64(7)),
		Error:          stmt.ColumnText(9),
		Worker:         stmt.ColumnText(10),
		CreatedAt:      time.Unix(stmt.ColumnInt64(11), 0).UTC(),
		StartedAt:      time.Unix(stmt.ColumnInt64(12), 0).UTC(),
		FinishedAt:     time.Unix(stmt.ColumnInt64(13), 0).UTC(),
		ExpiresAt:      time.Unix(stmt.ColumnInt64(14), 0).UTC(),
	}
	if err := unmarshalContext(stmt.ColumnText(2), &job.Context); err != nil {
		return nil, err
	}
	pages, err := unmarshalPages(stmt.ColumnText(8))
	if err != nil {
		return nil, err
	}
	job.Pages = pages
	return job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
