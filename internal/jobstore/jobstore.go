// Package jobstore records backup/restore job runs in a small bookkeeping
// table (backy_jobs) so the admin HTTP surface can answer "what happened to
// job X" without re-reading storage. It is an operability add-on: the
// manifest written to the configured Store remains the single source of
// truth a restore needs, exactly as orchestrator.Restore only ever reads
// from Store.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/backydb/internal/database"
	apperrors "github.com/allisson/backydb/internal/errors"
)

// ErrJobNotFound is returned by Get when no row matches the requested id.
var ErrJobNotFound = errors.New("job not found")

// Kind identifies the operation a Job recorded.
type Kind string

const (
	KindBackup  Kind = "backup"
	KindRestore Kind = "restore"
)

// Job is one row of backy_jobs.
type Job struct {
	ID            uuid.UUID
	Kind          Kind
	State         string
	StoragePrefix string
	StartedAt     time.Time
	FinishedAt    *time.Time
	ManifestJSON  []byte
	Error         *string
}

// Store persists Job rows. PostgreSQL and MySQL implementations differ only
// in UUID and placeholder encoding, the same split the teacher's repository
// layer uses for its clients/tokens tables.
type Store interface {
	Start(ctx context.Context, id uuid.UUID, kind Kind, storagePrefix string, startedAt time.Time) error
	Finish(ctx context.Context, id uuid.UUID, state string, finishedAt time.Time, manifest any, jobErr error) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	List(ctx context.Context, limit int) ([]*Job, error)
}

// New returns the Store implementation matching driver ("postgres" or
// "mysql"), mirroring the way internal/app.Container picks a schemaengine
// adapter from the same driver name. Any driver other than "mysql" gets the
// PostgreSQL store.
func New(db *sql.DB, driver string) Store {
	if driver == "mysql" {
		return &mysqlStore{db: db}
	}
	return &postgresStore{db: db}
}

func marshalManifest(manifest any) ([]byte, error) {
	if manifest == nil {
		return nil, nil
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal job manifest")
	}
	return data, nil
}

func errString(jobErr error) *string {
	if jobErr == nil {
		return nil
	}
	s := jobErr.Error()
	return &s
}

type postgresStore struct {
	db *sql.DB
}

func (s *postgresStore) Start(ctx context.Context, id uuid.UUID, kind Kind, storagePrefix string, startedAt time.Time) error {
	querier := database.GetTx(ctx, s.db)
	query := `INSERT INTO backy_jobs (id, kind, state, storage_prefix, started_at)
			  VALUES ($1, $2, $3, $4, $5)`
	_, err := querier.ExecContext(ctx, query, id, string(kind), "running", storagePrefix, startedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to insert job row")
	}
	return nil
}

func (s *postgresStore) Finish(ctx context.Context, id uuid.UUID, state string, finishedAt time.Time, manifest any, jobErr error) error {
	manifestJSON, err := marshalManifest(manifest)
	if err != nil {
		return err
	}

	querier := database.GetTx(ctx, s.db)
	query := `UPDATE backy_jobs SET state = $1, finished_at = $2, manifest_json = $3, error = $4 WHERE id = $5`
	_, err = querier.ExecContext(ctx, query, state, finishedAt, manifestJSON, errString(jobErr), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to finalize job row")
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	querier := database.GetTx(ctx, s.db)
	query := `SELECT id, kind, state, storage_prefix, started_at, finished_at, manifest_json, error
			  FROM backy_jobs WHERE id = $1`
	row := querier.QueryRowContext(ctx, query, id)
	return scanJob(row.Scan)
}

func (s *postgresStore) List(ctx context.Context, limit int) ([]*Job, error) {
	querier := database.GetTx(ctx, s.db)
	query := `SELECT id, kind, state, storage_prefix, started_at, finished_at, manifest_json, error
			  FROM backy_jobs ORDER BY started_at DESC LIMIT $1`
	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list job rows")
	}
	defer rows.Close()
	return scanJobs(rows)
}

type mysqlStore struct {
	db *sql.DB
}

func (s *mysqlStore) Start(ctx context.Context, id uuid.UUID, kind Kind, storagePrefix string, startedAt time.Time) error {
	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal job id")
	}

	querier := database.GetTx(ctx, s.db)
	query := `INSERT INTO backy_jobs (id, kind, state, storage_prefix, started_at)
			  VALUES (?, ?, ?, ?, ?)`
	_, err = querier.ExecContext(ctx, query, idBytes, string(kind), "running", storagePrefix, startedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to insert job row")
	}
	return nil
}

func (s *mysqlStore) Finish(ctx context.Context, id uuid.UUID, state string, finishedAt time.Time, manifest any, jobErr error) error {
	manifestJSON, err := marshalManifest(manifest)
	if err != nil {
		return err
	}

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal job id")
	}

	querier := database.GetTx(ctx, s.db)
	query := `UPDATE backy_jobs SET state = ?, finished_at = ?, manifest_json = ?, error = ? WHERE id = ?`
	_, err = querier.ExecContext(ctx, query, state, finishedAt, manifestJSON, errString(jobErr), idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to finalize job row")
	}
	return nil
}

func (s *mysqlStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal job id")
	}

	querier := database.GetTx(ctx, s.db)
	query := `SELECT id, kind, state, storage_prefix, started_at, finished_at, manifest_json, error
			  FROM backy_jobs WHERE id = ?`
	row := querier.QueryRowContext(ctx, query, idBytes)
	return scanJob(row.Scan)
}

func (s *mysqlStore) List(ctx context.Context, limit int) ([]*Job, error) {
	querier := database.GetTx(ctx, s.db)
	query := `SELECT id, kind, state, storage_prefix, started_at, finished_at, manifest_json, error
			  FROM backy_jobs ORDER BY started_at DESC LIMIT ?`
	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list job rows")
	}
	defer rows.Close()
	return scanJobs(rows)
}

// scannable abstracts *sql.Row.Scan and *sql.Rows.Scan behind one signature
// so Get and List share a single row-decoding path.
type scannable func(dest ...any) error

func scanJob(scan scannable) (*Job, error) {
	var (
		id           uuid.UUID
		kind         string
		state        string
		prefix       string
		startedAt    time.Time
		finishedAt   sql.NullTime
		manifestJSON []byte
		jobError     sql.NullString
	)

	if err := scan(&id, &kind, &state, &prefix, &startedAt, &finishedAt, &manifestJSON, &jobError); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan job row")
	}

	job := &Job{
		ID:            id,
		Kind:          Kind(kind),
		State:         state,
		StoragePrefix: prefix,
		StartedAt:     startedAt,
		ManifestJSON:  manifestJSON,
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	if jobError.Valid {
		job.Error = &jobError.String
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate job rows")
	}
	return jobs, nil
}
