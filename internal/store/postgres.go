package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, so postgres queries are unit-testable without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id            TEXT PRIMARY KEY,
	latest_date   TIMESTAMPTZ NOT NULL,
	etag          TEXT NOT NULL DEFAULT '',
	checked_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	downloaded_at TIMESTAMPTZ,
	path          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS build_runs (
	id          TEXT PRIMARY KEY,
	snapshot_id TEXT REFERENCES snapshots(id),
	status      TEXT NOT NULL DEFAULT 'running',
	zips        INTEGER NOT NULL DEFAULT 0,
	output_dir  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS deploys (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES build_runs(id),
	target      TEXT NOT NULL,
	dest        TEXT NOT NULL,
	deployed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_checked_at ON snapshots(checked_at);
CREATE INDEX IF NOT EXISTS idx_build_runs_started_at ON build_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_deploys_run_id ON deploys(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) RecordSnapshot(ctx context.Context, latestDate time.Time, etag string) (*Snapshot, error) {
	snap := &Snapshot{
		ID:         uuid.New().String(),
		LatestDate: latestDate.UTC(),
		ETag:       etag,
		CheckedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, latest_date, etag, checked_at) VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.LatestDate, snap.ETag, snap.CheckedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}
	return snap, nil
}

func (s *PostgresStore) MarkDownloaded(ctx context.Context, snapshotID, path string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE snapshots SET downloaded_at = $1, path = $2 WHERE id = $3`,
		time.Now().UTC(), path, snapshotID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark downloaded %s", snapshotID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("snapshot not found: %s", snapshotID)
	}
	return nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, latest_date, etag, checked_at, downloaded_at, path FROM snapshots
		 ORDER BY latest_date DESC, checked_at DESC LIMIT 1`,
	)

	var snap Snapshot
	var downloaded *time.Time
	err := row.Scan(&snap.ID, &snap.LatestDate, &snap.ETag, &snap.CheckedAt, &downloaded, &snap.Path)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}
	snap.DownloadedAt = downloaded
	return &snap, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, snapshotID string) (*BuildRun, error) {
	run := &BuildRun{
		ID:         uuid.New().String(),
		SnapshotID: snapshotID,
		Status:     RunRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO build_runs (id, snapshot_id, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, nullString(snapshotID), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, zips int, outputDir string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE build_runs SET status = $1, zips = $2, output_dir = $3, finished_at = $4 WHERE id = $5`,
		string(RunComplete), zips, outputDir, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE build_runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(RunFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]BuildRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, snapshot_id, status, zips, output_dir, error, started_at, finished_at
		 FROM build_runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []BuildRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*BuildRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, snapshot_id, status, zips, output_dir, error, started_at, finished_at
		 FROM build_runs ORDER BY started_at DESC LIMIT 1`,
	)
	r, err := scanPgRun(row)
	if err == errNoRun {
		return nil, nil
	}
	return r, err
}

func (s *PostgresStore) RecordDeploy(ctx context.Context, runID, target, dest string) (*Deploy, error) {
	d := &Deploy{
		ID:         uuid.New().String(),
		RunID:      runID,
		Target:     target,
		Dest:       dest,
		DeployedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO deploys (id, run_id, target, dest, deployed_at) VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.RunID, d.Target, d.Dest, d.DeployedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert deploy for run %s", runID)
	}
	return d, nil
}

func (s *PostgresStore) ListDeploys(ctx context.Context, limit int) ([]Deploy, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, target, dest, deployed_at FROM deploys
		 ORDER BY deployed_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deploys")
	}
	defer rows.Close()

	var deploys []Deploy
	for rows.Next() {
		var d Deploy
		if err := rows.Scan(&d.ID, &d.RunID, &d.Target, &d.Dest, &d.DeployedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deploy")
		}
		deploys = append(deploys, d)
	}
	return deploys, eris.Wrap(rows.Err(), "postgres: list deploys iterate")
}

func scanPgRun(row scannable) (*BuildRun, error) {
	var r BuildRun
	var snapshotID *string
	var finished *time.Time

	err := row.Scan(&r.ID, &snapshotID, &r.Status, &r.Zips, &r.OutputDir, &r.Error, &r.StartedAt, &finished)
	if err == pgx.ErrNoRows {
		return nil, errNoRun
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	if snapshotID != nil {
		r.SnapshotID = *snapshotID
	}
	r.FinishedAt = finished
	return &r, nil
}
